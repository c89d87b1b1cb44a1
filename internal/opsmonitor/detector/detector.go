package detector

import (
	"ops-monitor/internal/opsmonitor/data"
	"time"
)

// DefaultLimits is the maximum dwell time per workflow status.
// Statuses missing here are never checked for SLA breaches.
var DefaultLimits = map[data.Status]time.Duration{
	data.PendingStatus:        10 * time.Minute,
	data.ProcessingStatus:     15 * time.Minute,
	data.ConfirmedStatus:      15 * time.Minute,
	data.DriverAssignedStatus: 15 * time.Minute,
	data.OnTheWayStatus:       45 * time.Minute,
}

type SnapshotStore interface {
	Get(id int64) (data.MonitorEntry, bool)
	Upsert(id int64, status data.Status, seenAt time.Time, flags ...data.Status)
	HasAlerted(id int64, status data.Status) bool
}

type Config struct {
	Limits map[data.Status]time.Duration
}

type Detector struct {
	store  SnapshotStore
	limits map[data.Status]time.Duration
	now    func() time.Time
}

type Option func(d *Detector)

func WithClock(now func() time.Time) Option {
	return func(d *Detector) {
		d.now = now
	}
}

func New(cfg Config, store SnapshotStore, opts ...Option) *Detector {
	limits := cfg.Limits
	if limits == nil {
		limits = DefaultLimits
	}
	d := &Detector{
		store:  store,
		limits: limits,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Detect diffs batch against the store and returns the events to announce.
// The first poll of a session only seeds the store: it returns nothing and
// marks breaches that already exist as alerted.
func (d *Detector) Detect(batch []data.OrderSnapshot, todayStart time.Time, isFirstPoll bool) []data.MonitorEvent {
	now := d.now()
	events := make([]data.MonitorEvent, 0)
	for _, order := range batch {
		if order.CreatedAt.Before(todayStart) {
			continue
		}

		entry, seen := d.store.Get(order.ID)
		switch {
		case isFirstPoll:
		case !seen:
			events = append(events, data.NewOrder(order, now))
		case entry.LastStatus != order.Status:
			events = append(events, data.StatusChanged(order, entry.LastStatus, order.Status, now))
		}
		d.store.Upsert(order.ID, order.Status, now)

		elapsed, limit, breached := d.breach(order, now)
		if !breached || d.store.HasAlerted(order.ID, order.Status) {
			continue
		}
		d.store.Upsert(order.ID, order.Status, now, order.Status)
		if !isFirstPoll {
			events = append(events, data.SLABreach(order, order.Status, elapsed, limit, now))
		}
	}
	return events
}

func (d *Detector) breach(order data.OrderSnapshot, now time.Time) (elapsed, limit time.Duration, breached bool) {
	limit, ok := d.limits[order.Status]
	if !ok || order.StateStartAt == nil {
		return 0, 0, false
	}
	elapsed = now.Sub(*order.StateStartAt)
	return elapsed, limit, elapsed > limit
}
