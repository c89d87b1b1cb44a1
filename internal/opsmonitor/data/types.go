package data

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Status string

const (
	NullStatus           = Status("")
	PendingStatus        = Status("pending")
	ProcessingStatus     = Status("processing")
	ConfirmedStatus      = Status("confirmed")
	DriverAssignedStatus = Status("driver_assigned")
	OnTheWayStatus       = Status("on_the_way")
	DeliveredStatus      = Status("delivered")
	CanceledStatus       = Status("canceled")
)

// Terminal statuses have no live timer.
func (s Status) Terminal() bool {
	return s == DeliveredStatus || s == CanceledStatus
}

type Driver struct {
	Name  string
	Phone string
}

type LineItem struct {
	Name      string
	UnitPrice decimal.Decimal
	Quantity  int
}

type OrderSnapshot struct {
	CreatedAt    time.Time
	StateStartAt *time.Time
	ExternalID   string
	CustomerName string
	Status       Status
	TotalAmount  decimal.Decimal
	Driver       Driver
	Items        []LineItem
	ID           int64
}

type MonitorEntry struct {
	LastSeenAt   time.Time
	AlertedFlags map[Status]struct{}
	LastStatus   Status
}

type EventKind string

const (
	NewOrderEvent      = EventKind("new_order")
	StatusChangedEvent = EventKind("status_changed")
	SLABreachEvent     = EventKind("sla_breach")
)

// MonitorEvent is one of NewOrder, StatusChanged or SlaBreach, told apart by Kind.
// From/To are set for StatusChanged, Status and ElapsedMinutes for SlaBreach.
type MonitorEvent struct {
	DetectedAt     time.Time     `json:"detected_at"`
	Order          OrderSnapshot `json:"-"`
	Kind           EventKind     `json:"kind"`
	From           Status        `json:"from,omitempty"`
	To             Status        `json:"to,omitempty"`
	Status         Status        `json:"status,omitempty"`
	ElapsedMinutes int           `json:"elapsed_minutes,omitempty"`
	LimitMinutes   int           `json:"limit_minutes,omitempty"`
	ID             uuid.UUID     `json:"id"`
}

func NewOrder(order OrderSnapshot, now time.Time) MonitorEvent {
	return MonitorEvent{
		ID:         uuid.New(),
		Kind:       NewOrderEvent,
		Order:      order,
		DetectedAt: now,
	}
}

func StatusChanged(order OrderSnapshot, from, to Status, now time.Time) MonitorEvent {
	return MonitorEvent{
		ID:         uuid.New(),
		Kind:       StatusChangedEvent,
		Order:      order,
		From:       from,
		To:         to,
		DetectedAt: now,
	}
}

func SLABreach(order OrderSnapshot, status Status, elapsed, limit time.Duration, now time.Time) MonitorEvent {
	return MonitorEvent{
		ID:             uuid.New(),
		Kind:           SLABreachEvent,
		Order:          order,
		Status:         status,
		ElapsedMinutes: int(elapsed / time.Minute),
		LimitMinutes:   int(limit / time.Minute),
		DetectedAt:     now,
	}
}

// AuditEntry is an operator note attached to an order after reviewing it.
type AuditEntry struct {
	CreatedAt   time.Time
	Stage       string
	ActionTaken string
	RootCause   string
	Notes       *string
	Author      string
	ID          int64
	OrderID     int64
}
