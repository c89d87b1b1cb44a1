package handlers

import (
	"context"
	"errors"
	"net/http"
	"ops-monitor/internal/opsmonitor/backend"
	"ops-monitor/internal/opsmonitor/service"
	"ops-monitor/pkg/logging"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

const (
	reconciledStatus    = "ok"
	cannotComputeStatus = "cannot_compute"
)

type ReconciliationService interface {
	Reconcile(ctx context.Context, orderID int64) (service.Report, error)
}

type ReconciledItem struct {
	Name       string          `json:"name"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
	Multiplier decimal.Decimal `json:"multiplier"`
	Amount     decimal.Decimal `json:"amount"`
	Quantity   int             `json:"quantity"`
}

type ReconciliationResponse struct {
	Status       string           `json:"status"`
	Method       string           `json:"method"`
	Confidence   string           `json:"confidence"`
	NetTotal     decimal.Decimal  `json:"net_total"`
	ReportedTax  decimal.Decimal  `json:"reported_tax"`
	ExchangeRate decimal.Decimal  `json:"exchange_rate"`
	RefundTotal  decimal.Decimal  `json:"refund_total"`
	Items        []ReconciledItem `json:"items"`
	OrderID      int64            `json:"order_id"`
}

type CannotComputeResponse struct {
	Status string `json:"status"`
	Reason string `json:"reason"`
}

type ReconciliationHandler struct {
	service ReconciliationService
	logger  *logging.ZapLogger
}

func NewReconciliationHandler(service ReconciliationService, logger *logging.ZapLogger) *ReconciliationHandler {
	return &ReconciliationHandler{
		service: service,
		logger:  logger,
	}
}

func (h *ReconciliationHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "Invalid order id", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	report, err := h.service.Reconcile(r.Context(), orderID)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrCannotCompute):
			h.logger.DebugCtx(r.Context(), "Reconciliation cannot be computed", zap.Int64("orderID", orderID), zap.Error(err))
			response := CannotComputeResponse{Status: cannotComputeStatus, Reason: err.Error()}
			if err := tryWriteResponseJSON(w, http.StatusUnprocessableEntity, response); err != nil {
				h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
			}
			return
		case errors.Is(err, backend.ErrNoOrderFound):
			h.logger.DebugCtx(r.Context(), "Order not found", zap.Int64("orderID", orderID))
			w.WriteHeader(http.StatusNotFound)
			return
		case errors.Is(err, backend.ErrNetwork),
			errors.Is(err, backend.ErrDecode),
			errors.Is(err, backend.ErrUnauthorized):
			h.logger.ErrorCtx(r.Context(), "Backend error during reconciliation", zap.Error(err))
			w.WriteHeader(http.StatusBadGateway)
			return
		default:
			h.logger.ErrorCtx(r.Context(), "Error reconciling order", zap.Error(err))
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
	}

	if err := tryWriteResponseJSON(w, http.StatusOK, newReconciliationResponse(report)); err != nil {
		h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
	}
}

func newReconciliationResponse(report service.Report) ReconciliationResponse {
	items := make([]ReconciledItem, len(report.Items))
	for i, item := range report.Items {
		items[i] = ReconciledItem{
			Name:       item.Name,
			Quantity:   item.Quantity,
			UnitPrice:  item.UnitPrice,
			Multiplier: report.Multipliers[i],
			Amount:     report.Amounts[i],
		}
	}
	return ReconciliationResponse{
		Status:       reconciledStatus,
		OrderID:      report.OrderID,
		Method:       string(report.Method),
		Confidence:   string(report.Confidence),
		NetTotal:     report.NetTotal,
		ReportedTax:  report.ReportedTax,
		ExchangeRate: report.ExchangeRate,
		RefundTotal:  report.RefundTotal,
		Items:        items,
	}
}
