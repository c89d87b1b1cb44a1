package service

import (
	"context"
	"fmt"
	"ops-monitor/internal/common/backendprotocol"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/legacy"
	"ops-monitor/internal/opsmonitor/metrics"
	"ops-monitor/internal/opsmonitor/taxreconciler"
	"ops-monitor/pkg/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	DefaultTaxField  = "iva"
	DefaultRateField = "tasa"
)

type ReconciliationConfig struct {
	TaxField  string
	RateField string
}

// Report is a reconciliation result together with the invoice lines it
// was computed from, in the same order as Multipliers and Amounts.
type Report struct {
	taxreconciler.Result
	Items   []data.LineItem
	OrderID int64
}

type Reconciliation struct {
	source LiveAuditSource
	cfg    ReconciliationConfig
	logger *logging.ZapLogger
}

func NewReconciliation(cfg ReconciliationConfig, source LiveAuditSource, logger *logging.ZapLogger) *Reconciliation {
	if cfg.TaxField == "" {
		cfg.TaxField = DefaultTaxField
	}
	if cfg.RateField == "" {
		cfg.RateField = DefaultRateField
	}
	return &Reconciliation{
		source: source,
		cfg:    cfg,
		logger: logger,
	}
}

// Reconcile fetches the live invoice of an order and reconstructs its per-item
// tax. Unreadable legacy fields and irreconcilable totals are reported as
// ErrCannotCompute; backend failures are returned as they are.
func (r *Reconciliation) Reconcile(ctx context.Context, orderID int64) (Report, error) {
	if orderID <= 0 {
		return Report{}, ErrInvalidOrderNumber
	}
	audit, err := r.source.GetLiveAudit(ctx, orderID)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get live audit: %w", err)
	}

	ctx = logging.WithContextFields(ctx, zap.Int64("orderID", orderID))
	reportedTax, err := r.legacyValue(audit, r.cfg.TaxField, legacy.ParseAmount)
	if err != nil {
		r.logger.WarnCtx(ctx, "unreadable reported tax", zap.Error(err))
		return Report{}, fmt.Errorf("%w: %w", ErrCannotCompute, err)
	}
	rate, err := r.legacyValue(audit, r.cfg.RateField, legacy.ExtractRate)
	if err != nil {
		r.logger.WarnCtx(ctx, "unreadable exchange rate", zap.Error(err))
		return Report{}, fmt.Errorf("%w: %w", ErrCannotCompute, err)
	}

	items := lineItems(audit.Items)
	res, err := taxreconciler.Reconcile(items, reportedTax, rate)
	if err != nil {
		r.logger.WarnCtx(ctx, "tax cannot be reconciled", zap.Error(err))
		metrics.Reconciliations.WithLabelValues("failed").Inc()
		return Report{}, fmt.Errorf("%w: %w", ErrCannotCompute, err)
	}
	metrics.Reconciliations.WithLabelValues(string(res.Method)).Inc()
	r.logger.DebugCtx(ctx, "tax reconciled",
		zap.String("method", string(res.Method)),
		zap.String("confidence", string(res.Confidence)),
		zap.Stringer("refundTotal", res.RefundTotal),
	)
	return Report{
		Result:  res,
		Items:   items,
		OrderID: orderID,
	}, nil
}

func (r *Reconciliation) legacyValue(
	audit backendprotocol.LiveAudit,
	key string,
	parse func(string) (decimal.Decimal, error),
) (decimal.Decimal, error) {
	raw, ok := legacy.Field(audit.Legacy, key)
	if !ok {
		return decimal.Zero, fmt.Errorf("%w: legacy field %q is missing", legacy.ErrParse, key)
	}
	return parse(raw)
}

func lineItems(items []backendprotocol.Item) []data.LineItem {
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
