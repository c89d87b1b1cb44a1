package ordersmonitor

import (
	"context"
	"ops-monitor/internal/common/backendprotocol"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/metrics"
	"ops-monitor/internal/opsmonitor/timenorm"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// convert normalizes the backend's timestamps. created_at is local wall-clock
// time, state_start_at is UTC. An order whose creation time cannot be read is
// left out of the batch; an unreadable state start only disables its SLA check.
func (om *OrdersMonitor) convert(ctx context.Context, orders []backendprotocol.Order) []data.OrderSnapshot {
	loc := om.config.Location
	res := make([]data.OrderSnapshot, 0, len(orders))
	for _, order := range orders {
		createdAt, err := timenorm.Normalize(order.CreatedAt, false, loc)
		if err != nil {
			om.logger.WarnCtx(ctx, "order skipped, unreadable created_at", zap.Int64("orderID", order.ID), zap.Error(err))
			metrics.ParseErrors.WithLabelValues("created_at").Inc()
			continue
		}
		stateStartAt, err := timenorm.NormalizePtr(order.StateStartAt, true, loc)
		if err != nil {
			om.logger.WarnCtx(ctx, "unreadable state_start_at", zap.Int64("orderID", order.ID), zap.Error(err))
			metrics.ParseErrors.WithLabelValues("state_start_at").Inc()
		}

		snapshot := data.OrderSnapshot{
			ID:           order.ID,
			ExternalID:   order.ExternalID,
			Status:       data.Status(order.CurrentStatus),
			CreatedAt:    createdAt,
			StateStartAt: stateStartAt,
			CustomerName: order.CustomerName,
			TotalAmount:  decimal.Zero,
			Items:        convertItems(order.Items),
		}
		if order.TotalAmount != nil {
			snapshot.TotalAmount = *order.TotalAmount
		}
		if order.Driver != nil {
			snapshot.Driver.Name = order.Driver.Name
			if order.Driver.Phone != nil {
				snapshot.Driver.Phone = *order.Driver.Phone
			}
		}
		res = append(res, snapshot)
	}
	return res
}

func convertItems(items []backendprotocol.Item) []data.LineItem {
	res := make([]data.LineItem, len(items))
	for i, item := range items {
		res[i] = data.LineItem{
			Name:      item.Name,
			UnitPrice: item.UnitPrice,
			Quantity:  item.Quantity,
		}
	}
	return res
}
