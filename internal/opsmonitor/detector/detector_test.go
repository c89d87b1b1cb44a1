package detector

import (
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/snapshotstore"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	todayStart = time.Date(2025, 10, 18, 4, 0, 0, 0, time.UTC)
	noon       = time.Date(2025, 10, 18, 16, 0, 0, 0, time.UTC)
)

type clock struct {
	now time.Time
}

func (c *clock) Now() time.Time {
	return c.now
}

func newDetector() (*Detector, *clock) {
	c := &clock{now: noon}
	return New(Config{}, snapshotstore.New(), WithClock(c.Now)), c
}

func order(id int64, status data.Status, inStateFor time.Duration) data.OrderSnapshot {
	stateStart := noon.Add(-inStateFor)
	return data.OrderSnapshot{
		ID:           id,
		ExternalID:   "EXT-1",
		Status:       status,
		CreatedAt:    noon.Add(-time.Hour),
		StateStartAt: &stateStart,
	}
}

func kinds(events []data.MonitorEvent) []data.EventKind {
	res := make([]data.EventKind, len(events))
	for i, event := range events {
		res[i] = event.Kind
	}
	return res
}

func TestDetect_FirstPollIsSilent(t *testing.T) {
	d, _ := newDetector()
	batch := []data.OrderSnapshot{
		order(1, data.PendingStatus, time.Hour),
		order(2, data.OnTheWayStatus, 2*time.Hour),
		order(2, data.DeliveredStatus, 0),
		order(3, data.Status("mystery"), time.Hour),
	}
	assert.Empty(t, d.Detect(batch, todayStart, true))
}

func TestDetect_FirstPollBreachesAreBaseline(t *testing.T) {
	d, _ := newDetector()
	batch := []data.OrderSnapshot{order(1, data.PendingStatus, time.Hour)}
	require.Empty(t, d.Detect(batch, todayStart, true))
	assert.Empty(t, d.Detect(batch, todayStart, false))
}

func TestDetect_NewOrder(t *testing.T) {
	d, _ := newDetector()
	d.Detect([]data.OrderSnapshot{order(1, data.PendingStatus, 0)}, todayStart, true)

	events := d.Detect([]data.OrderSnapshot{
		order(1, data.PendingStatus, time.Minute),
		order(2, data.PendingStatus, time.Minute),
	}, todayStart, false)
	require.Len(t, events, 1)
	assert.Equal(t, data.NewOrderEvent, events[0].Kind)
	assert.EqualValues(t, 2, events[0].Order.ID)
	assert.Equal(t, noon, events[0].DetectedAt)
}

func TestDetect_StatusChanged(t *testing.T) {
	d, _ := newDetector()
	d.Detect([]data.OrderSnapshot{order(1, data.PendingStatus, 0)}, todayStart, true)

	events := d.Detect([]data.OrderSnapshot{order(1, data.ProcessingStatus, 0)}, todayStart, false)
	require.Len(t, events, 1)
	assert.Equal(t, data.StatusChangedEvent, events[0].Kind)
	assert.Equal(t, data.PendingStatus, events[0].From)
	assert.Equal(t, data.ProcessingStatus, events[0].To)
}

func TestDetect_OldOrdersAreIgnored(t *testing.T) {
	d, _ := newDetector()
	old := order(1, data.PendingStatus, time.Hour)
	old.CreatedAt = todayStart.Add(-time.Second)

	d.Detect([]data.OrderSnapshot{old}, todayStart, true)
	for _, status := range []data.Status{data.PendingStatus, data.ProcessingStatus, data.OnTheWayStatus, data.CanceledStatus} {
		old.Status = status
		assert.Empty(t, d.Detect([]data.OrderSnapshot{old}, todayStart, false), "status %s", status)
	}
}

func TestDetect_SLABreachFiresOnce(t *testing.T) {
	d, c := newDetector()
	d.Detect(nil, todayStart, true)

	stateStart := noon.Add(-5 * time.Minute)
	o := order(1, data.PendingStatus, 0)
	o.StateStartAt = &stateStart

	events := d.Detect([]data.OrderSnapshot{o}, todayStart, false)
	assert.Equal(t, []data.EventKind{data.NewOrderEvent}, kinds(events))

	c.now = noon.Add(6 * time.Minute)
	events = d.Detect([]data.OrderSnapshot{o}, todayStart, false)
	require.Equal(t, []data.EventKind{data.SLABreachEvent}, kinds(events))
	assert.Equal(t, data.PendingStatus, events[0].Status)
	assert.Equal(t, 11, events[0].ElapsedMinutes)
	assert.Equal(t, 10, events[0].LimitMinutes)

	for i := range 20 {
		c.now = noon.Add(time.Duration(7+i) * time.Minute)
		assert.Empty(t, d.Detect([]data.OrderSnapshot{o}, todayStart, false))
	}
}

func TestDetect_ExactlyAtLimitIsNotBreach(t *testing.T) {
	d, _ := newDetector()
	d.Detect(nil, todayStart, true)
	events := d.Detect([]data.OrderSnapshot{order(1, data.PendingStatus, 10*time.Minute)}, todayStart, false)
	assert.Equal(t, []data.EventKind{data.NewOrderEvent}, kinds(events))
}

func TestDetect_BreachRearmsAfterStatusChange(t *testing.T) {
	d, _ := newDetector()
	d.Detect([]data.OrderSnapshot{order(1, data.ProcessingStatus, 0)}, todayStart, true)

	events := d.Detect([]data.OrderSnapshot{order(1, data.ProcessingStatus, 20*time.Minute)}, todayStart, false)
	require.Equal(t, []data.EventKind{data.SLABreachEvent}, kinds(events))

	events = d.Detect([]data.OrderSnapshot{order(1, data.ConfirmedStatus, 0)}, todayStart, false)
	require.Equal(t, []data.EventKind{data.StatusChangedEvent}, kinds(events))

	events = d.Detect([]data.OrderSnapshot{order(1, data.ProcessingStatus, 20*time.Minute)}, todayStart, false)
	assert.Equal(t, []data.EventKind{data.StatusChangedEvent, data.SLABreachEvent}, kinds(events))

	events = d.Detect([]data.OrderSnapshot{order(1, data.ProcessingStatus, 30*time.Minute)}, todayStart, false)
	assert.Empty(t, events)
}

func TestDetect_IdenticalBatchIsIdempotent(t *testing.T) {
	d, _ := newDetector()
	d.Detect([]data.OrderSnapshot{order(1, data.PendingStatus, 0)}, todayStart, true)

	batch := []data.OrderSnapshot{
		order(1, data.ProcessingStatus, 20*time.Minute),
		order(2, data.OnTheWayStatus, time.Hour),
	}
	assert.NotEmpty(t, d.Detect(batch, todayStart, false))
	assert.Empty(t, d.Detect(batch, todayStart, false))
}

func TestDetect_UnknownStatusSkipsOnlySLA(t *testing.T) {
	d, _ := newDetector()
	d.Detect([]data.OrderSnapshot{order(1, data.PendingStatus, 0)}, todayStart, true)

	events := d.Detect([]data.OrderSnapshot{
		order(1, data.Status("on_hold"), 3*time.Hour),
		order(2, data.Status("on_hold"), 3*time.Hour),
	}, todayStart, false)
	assert.Equal(t, []data.EventKind{data.StatusChangedEvent, data.NewOrderEvent}, kinds(events))
}

func TestDetect_MissingStateStartSkipsOnlySLA(t *testing.T) {
	d, _ := newDetector()
	d.Detect(nil, todayStart, true)

	o := order(1, data.PendingStatus, 0)
	o.StateStartAt = nil
	events := d.Detect([]data.OrderSnapshot{o}, todayStart, false)
	assert.Equal(t, []data.EventKind{data.NewOrderEvent}, kinds(events))
}

func TestDetect_CustomLimits(t *testing.T) {
	c := &clock{now: noon}
	d := New(Config{Limits: map[data.Status]time.Duration{data.DeliveredStatus: time.Minute}}, snapshotstore.New(), WithClock(c.Now))
	d.Detect(nil, todayStart, true)

	events := d.Detect([]data.OrderSnapshot{
		order(1, data.DeliveredStatus, 2*time.Minute),
		order(2, data.PendingStatus, time.Hour),
	}, todayStart, false)
	assert.Equal(t, []data.EventKind{data.NewOrderEvent, data.SLABreachEvent, data.NewOrderEvent}, kinds(events))
}
