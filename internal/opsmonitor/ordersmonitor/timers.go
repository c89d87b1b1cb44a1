package ordersmonitor

import (
	"context"
	"ops-monitor/internal/opsmonitor/data"
	"time"
)

// TimerRow is the live elapsed-time display of one order. InStateSeconds is nil
// when the state start time is unknown.
type TimerRow struct {
	ExternalID     string      `json:"external_id"`
	Status         data.Status `json:"status"`
	InStateSeconds *int64      `json:"in_state_seconds"`
	TotalSeconds   int64       `json:"total_seconds"`
	OrderID        int64       `json:"order_id"`
	Overdue        bool        `json:"overdue"`
}

func (om *OrdersMonitor) recomputeTimers(_ context.Context) {
	now := om.now()
	batch := om.active.Get()
	rows := make([]TimerRow, 0, len(batch))
	for _, order := range batch {
		if order.Status.Terminal() {
			continue
		}
		total := now.Sub(order.CreatedAt)
		row := TimerRow{
			OrderID:      order.ID,
			ExternalID:   order.ExternalID,
			Status:       order.Status,
			TotalSeconds: seconds(total),
			Overdue:      om.config.OverdueAfter > 0 && total > om.config.OverdueAfter,
		}
		if order.StateStartAt != nil {
			inState := seconds(now.Sub(*order.StateStartAt))
			row.InStateSeconds = &inState
		}
		rows = append(rows, row)
	}
	om.timers.Set(rows)
}

func seconds(d time.Duration) int64 {
	if d < 0 {
		return 0
	}
	return int64(d / time.Second)
}
