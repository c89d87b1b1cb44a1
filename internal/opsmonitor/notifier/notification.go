package notifier

import (
	"fmt"
	"ops-monitor/internal/opsmonitor/data"
	"strings"
	"time"

	"github.com/google/uuid"
)

type Severity string

const (
	InfoSeverity  = Severity("info")
	AlertSeverity = Severity("alert")
)

const (
	chimeSound = "chime"
	alertSound = "alert"
)

var statusLabels = map[data.Status]string{
	data.PendingStatus:        "Pending",
	data.ProcessingStatus:     "Invoicing",
	data.ConfirmedStatus:      "Requesting driver",
	data.DriverAssignedStatus: "Driver assigned",
	data.OnTheWayStatus:       "On the way",
	data.DeliveredStatus:      "Delivered",
	data.CanceledStatus:       "Canceled",
}

type Notification struct {
	CreatedAt          time.Time      `json:"created_at"`
	Title              string         `json:"title"`
	Body               string         `json:"body"`
	Severity           Severity       `json:"severity"`
	Sound              string         `json:"sound"`
	Kind               data.EventKind `json:"kind"`
	ExternalID         string         `json:"external_id"`
	OrderID            int64          `json:"order_id"`
	RequireInteraction bool           `json:"require_interaction"`
	ID                 uuid.UUID      `json:"id"`
}

// FromEvent renders a monitor event for the operator.
func FromEvent(event data.MonitorEvent) Notification {
	n := Notification{
		ID:         event.ID,
		Kind:       event.Kind,
		OrderID:    event.Order.ID,
		ExternalID: event.Order.ExternalID,
		CreatedAt:  event.DetectedAt,
		Severity:   InfoSeverity,
		Sound:      chimeSound,
	}
	switch event.Kind {
	case data.NewOrderEvent:
		n.Title = fmt.Sprintf("New order #%s", event.Order.ExternalID)
		n.Body = fmt.Sprintf("%s · $%s", customer(event.Order), event.Order.TotalAmount.StringFixed(2))
	case data.StatusChangedEvent:
		n.Title = fmt.Sprintf("Order #%s updated", event.Order.ExternalID)
		n.Body = fmt.Sprintf("%s → %s", StatusLabel(event.From), StatusLabel(event.To))
	case data.SLABreachEvent:
		n.Severity = AlertSeverity
		n.Sound = alertSound
		n.RequireInteraction = true
		n.Title = fmt.Sprintf("Order #%s is late", event.Order.ExternalID)
		n.Body = fmt.Sprintf(
			"%s for %d min (limit %d min)",
			StatusLabel(event.Status),
			event.ElapsedMinutes,
			event.LimitMinutes,
		)
	}
	return n
}

// StatusLabel is the operator facing name of a status, falling back to the raw value.
func StatusLabel(status data.Status) string {
	if label, ok := statusLabels[status]; ok {
		return label
	}
	return strings.ToUpper(string(status))
}

func customer(order data.OrderSnapshot) string {
	if order.CustomerName == "" {
		return "Unknown customer"
	}
	return order.CustomerName
}
