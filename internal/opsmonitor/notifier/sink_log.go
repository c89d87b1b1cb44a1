package notifier

import (
	"context"
	"ops-monitor/pkg/logging"

	"go.uber.org/zap"
)

// LogSink writes notifications to the service log. Alerts go out at warn level.
type LogSink struct {
	logger *logging.ZapLogger
}

func NewLogSink(logger *logging.ZapLogger) *LogSink {
	return &LogSink{
		logger: logger,
	}
}

func (s *LogSink) Name() string {
	return "log"
}

func (s *LogSink) Deliver(ctx context.Context, n Notification) error {
	fields := []zap.Field{
		zap.String("kind", string(n.Kind)),
		zap.Int64("orderID", n.OrderID),
		zap.String("externalID", n.ExternalID),
		zap.String("body", n.Body),
	}
	if n.Severity == AlertSeverity {
		s.logger.WarnCtx(ctx, n.Title, fields...)
		return nil
	}
	s.logger.InfoCtx(ctx, n.Title, fields...)
	return nil
}
