package notifier

import (
	"context"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/metrics"
	"ops-monitor/pkg/logging"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

type Sink interface {
	Name() string
	Deliver(ctx context.Context, n Notification) error
}

type Config struct {
	// RateLimit paces info deliveries per second, zero disables pacing.
	// Alerts are never paced.
	RateLimit float64
	Burst     int
}

type Dispatcher struct {
	toggle  Toggle
	sinks   []Sink
	limiter *rate.Limiter
	logger  *logging.ZapLogger
}

func NewDispatcher(cfg Config, toggle Toggle, logger *logging.ZapLogger, sinks ...Sink) *Dispatcher {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RateLimit > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	return &Dispatcher{
		toggle:  toggle,
		sinks:   sinks,
		limiter: limiter,
		logger:  logger,
	}
}

// Dispatch delivers one event to every sink. Failures are logged and never
// returned: one broken sink must not hold back the rest of the batch.
func (d *Dispatcher) Dispatch(ctx context.Context, event data.MonitorEvent) {
	if !d.toggle.Enabled() {
		return
	}
	n := FromEvent(event)
	if n.Severity != AlertSeverity {
		if err := d.limiter.Wait(ctx); err != nil {
			d.logger.WarnCtx(ctx, "notification dropped while waiting for rate limit",
				zap.String("id", n.ID.String()),
				zap.Error(err),
			)
			metrics.NotificationDeliveries.WithLabelValues("all", "dropped").Inc()
			return
		}
	}
	for _, sink := range d.sinks {
		d.deliver(ctx, sink, n)
	}
}

func (d *Dispatcher) DispatchAll(ctx context.Context, events []data.MonitorEvent) {
	for _, event := range events {
		d.Dispatch(ctx, event)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, sink Sink, n Notification) {
	defer func() {
		if rcv := recover(); rcv != nil {
			d.logger.ErrorCtx(ctx, "panic in notification sink", zap.String("sink", sink.Name()), zap.Any("recover", rcv))
			metrics.NotificationDeliveries.WithLabelValues(sink.Name(), "failed").Inc()
		}
	}()
	if err := sink.Deliver(ctx, n); err != nil {
		d.logger.ErrorCtx(
			ctx,
			"failed to deliver notification",
			zap.String("sink", sink.Name()),
			zap.String("id", n.ID.String()),
			zap.Error(err),
		)
		metrics.NotificationDeliveries.WithLabelValues(sink.Name(), "failed").Inc()
		return
	}
	metrics.NotificationDeliveries.WithLabelValues(sink.Name(), "delivered").Inc()
}
