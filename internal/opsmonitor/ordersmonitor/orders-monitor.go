package ordersmonitor

import (
	"context"
	"errors"
	"fmt"
	"ops-monitor/internal/common/backendprotocol"
	"ops-monitor/internal/opsmonitor/backend"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/metrics"
	"ops-monitor/internal/opsmonitor/timenorm"
	"ops-monitor/pkg/logging"
	"ops-monitor/pkg/threadsafe"
	"ops-monitor/pkg/timeutils"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

var ErrSessionExpired = errors.New("backend session expired")

type OrdersSource interface {
	GetOrders(ctx context.Context, filter backend.Filter) ([]backendprotocol.Order, error)
}

type Detector interface {
	Detect(batch []data.OrderSnapshot, todayStart time.Time, isFirstPoll bool) []data.MonitorEvent
}

type Dispatcher interface {
	DispatchAll(ctx context.Context, events []data.MonitorEvent)
}

type SnapshotStore interface {
	Len() int
}

type Config struct {
	TickPeriod           time.Duration
	FastTickPeriod       time.Duration
	WorkersCount         int
	TasksBufferLength    int
	RecentEventsCapacity int
	OverdueAfter         time.Duration
	Location             *time.Location
}

type fetchTask struct {
	filter backend.Filter
	seq    uint64
}

type OrdersMonitor struct {
	source     OrdersSource
	detector   Detector
	dispatcher Dispatcher
	store      SnapshotStore
	config     Config
	logger     *logging.ZapLogger
	now        func() time.Time

	filter *threadsafe.Value[backend.Filter]
	events *threadsafe.Ring[data.MonitorEvent]
	active *threadsafe.Value[[]data.OrderSnapshot]
	timers *threadsafe.Value[[]TimerRow]

	seq         atomic.Uint64
	applyMux    *sync.Mutex
	lastApplied uint64
	firstPoll   bool

	refresh  *timeutils.Interval
	fastTick *timeutils.Interval
	fatal    chan error
	done     chan struct{}
	stopOnce *sync.Once
}

type Option func(om *OrdersMonitor)

func WithClock(now func() time.Time) Option {
	return func(om *OrdersMonitor) {
		om.now = now
	}
}

func NewOrdersMonitor(
	config Config,
	source OrdersSource,
	detector Detector,
	dispatcher Dispatcher,
	store SnapshotStore,
	logger *logging.ZapLogger,
	opts ...Option,
) *OrdersMonitor {
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.WorkersCount <= 0 {
		config.WorkersCount = 1
	}
	if config.TasksBufferLength <= 0 {
		config.TasksBufferLength = 1
	}
	om := &OrdersMonitor{
		source:     source,
		detector:   detector,
		dispatcher: dispatcher,
		store:      store,
		config:     config,
		logger:     logger,
		now:        time.Now,
		filter:     threadsafe.NewValue(backend.Filter{}),
		events:     threadsafe.NewRing[data.MonitorEvent](config.RecentEventsCapacity),
		active:     threadsafe.NewValue[[]data.OrderSnapshot](nil),
		timers:     threadsafe.NewValue(make([]TimerRow, 0)),
		applyMux:   &sync.Mutex{},
		firstPoll:  true,
		refresh:    timeutils.NewInterval(),
		fastTick:   timeutils.NewInterval(),
		fatal:      make(chan error, 1),
		done:       make(chan struct{}),
		stopOnce:   &sync.Once{},
	}
	for _, opt := range opts {
		opt(om)
	}
	return om
}

// Run polls until ctx is done, Stop is called, or the backend rejects the
// session. The last case returns ErrSessionExpired.
func (om *OrdersMonitor) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	tasks := make(chan fetchTask, om.config.TasksBufferLength)

	wg := &sync.WaitGroup{}
	for range om.config.WorkersCount {
		wg.Add(1)
		go func(tasks <-chan fetchTask) {
			defer wg.Done()
			om.worker(ctx, tasks)
		}(tasks)
	}

	om.refresh.Start(ctx, om.config.TickPeriod, true, func(ctx context.Context) {
		om.schedule(ctx, tasks)
	})
	om.fastTick.Start(ctx, om.config.FastTickPeriod, false, om.recomputeTimers)

	var err error
	select {
	case <-ctx.Done():
	case <-om.done:
	case err = <-om.fatal:
	}

	om.refresh.Stop()
	om.fastTick.Stop()
	cancel()
	close(tasks)
	wg.Wait()
	return err
}

func (om *OrdersMonitor) Stop() {
	om.stopOnce.Do(func() {
		close(om.done)
	})
}

// SetFilter changes the reporting window of the next refresh. Fetches already
// in flight keep the old one.
func (om *OrdersMonitor) SetFilter(filter backend.Filter) {
	om.filter.Set(filter)
}

func (om *OrdersMonitor) Filter() backend.Filter {
	return om.filter.Get()
}

func (om *OrdersMonitor) RecentEvents() []data.MonitorEvent {
	return om.events.Snapshot()
}

func (om *OrdersMonitor) Timers() []TimerRow {
	return om.timers.Get()
}

func (om *OrdersMonitor) schedule(ctx context.Context, tasks chan<- fetchTask) {
	task := fetchTask{
		seq:    om.seq.Add(1),
		filter: om.filter.Get(),
	}
	select {
	case tasks <- task:
		om.logger.DebugCtx(ctx, "refresh scheduled", zap.Uint64("seq", task.seq))
	default:
		om.logger.WarnCtx(ctx, "refresh skipped, previous fetches still pending", zap.Uint64("seq", task.seq))
		metrics.Polls.WithLabelValues("skipped").Inc()
	}
}

func (om *OrdersMonitor) worker(ctx context.Context, tasks <-chan fetchTask) {
	for task := range tasks {
		if ctx.Err() != nil {
			continue
		}
		if err := om.poll(ctx, task); err != nil {
			om.logger.ErrorCtx(ctx, "failed to refresh orders", zap.Uint64("seq", task.seq), zap.Error(err))
		}
	}
}

func (om *OrdersMonitor) poll(ctx context.Context, task fetchTask) error {
	start := time.Now()
	orders, err := om.source.GetOrders(ctx, task.filter)
	metrics.PollDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		switch {
		case errors.Is(err, backend.ErrUnauthorized):
			metrics.Polls.WithLabelValues("unauthorized").Inc()
			om.fail(fmt.Errorf("%w: %w", ErrSessionExpired, err))
			return nil
		case ctx.Err() != nil:
			return nil
		case errors.Is(err, backend.ErrDecode):
			metrics.Polls.WithLabelValues("decode_error").Inc()
		default:
			metrics.Polls.WithLabelValues("network_error").Inc()
		}
		return fmt.Errorf("poll skipped: %w", err)
	}
	om.apply(ctx, task.seq, orders)
	return nil
}

func (om *OrdersMonitor) apply(ctx context.Context, seq uint64, orders []backendprotocol.Order) {
	batch := om.convert(ctx, orders)

	om.applyMux.Lock()
	if seq < om.lastApplied {
		om.applyMux.Unlock()
		om.logger.DebugCtx(ctx, "discarding stale response", zap.Uint64("seq", seq), zap.Uint64("lastApplied", om.lastApplied))
		metrics.Polls.WithLabelValues("stale").Inc()
		return
	}
	om.lastApplied = seq
	now := om.now()
	events := om.detector.Detect(batch, timenorm.StartOfDay(now, om.config.Location), om.firstPoll)
	om.firstPoll = false
	om.active.Set(batch)
	om.applyMux.Unlock()

	metrics.Polls.WithLabelValues("applied").Inc()
	metrics.TrackedOrders.Set(float64(om.store.Len()))
	for _, event := range events {
		metrics.MonitorEvents.WithLabelValues(string(event.Kind)).Inc()
	}
	om.events.Append(events...)
	om.dispatcher.DispatchAll(ctx, events)
	om.recomputeTimers(ctx)
}

func (om *OrdersMonitor) fail(err error) {
	select {
	case om.fatal <- err:
	default:
	}
}
