package handlers

import (
	"context"
	"errors"
	"net/http"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/service"
	"ops-monitor/pkg/logging"
	"time"

	"go.uber.org/zap"
)

type JournalService interface {
	LogAudit(ctx context.Context, entry data.AuditEntry) (data.AuditEntry, error)
	GetAuditHistory(ctx context.Context, orderID int64) ([]data.AuditEntry, error)
}

type AuditRequest struct {
	Stage       string  `json:"stage"`
	ActionTaken string  `json:"action_taken"`
	RootCause   string  `json:"root_cause"`
	Notes       *string `json:"notes"`
}

type AuditResponse struct {
	CreatedAt   time.Time `json:"created_at"`
	Stage       string    `json:"stage"`
	ActionTaken string    `json:"action_taken"`
	RootCause   string    `json:"root_cause"`
	Notes       *string   `json:"notes"`
	Author      string    `json:"author"`
	ID          int64     `json:"id"`
	OrderID     int64     `json:"order_id"`
}

func newAuditResponse(entry data.AuditEntry) AuditResponse {
	return AuditResponse{
		ID:          entry.ID,
		OrderID:     entry.OrderID,
		Stage:       entry.Stage,
		ActionTaken: entry.ActionTaken,
		RootCause:   entry.RootCause,
		Notes:       entry.Notes,
		Author:      entry.Author,
		CreatedAt:   entry.CreatedAt,
	}
}

type JournalHandler struct {
	service JournalService
	logger  *logging.ZapLogger
}

func NewJournalHandler(service JournalService, logger *logging.ZapLogger) *JournalHandler {
	return &JournalHandler{
		service: service,
		logger:  logger,
	}
}

// LogAudit stores an operator note. The author is the subject of the caller's token.
func (h *JournalHandler) LogAudit(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "Invalid order id", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	request, err := decodeJSON[AuditRequest](r.Body)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "input decoding error", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	stored, err := h.service.LogAudit(r.Context(), data.AuditEntry{
		OrderID:     orderID,
		Stage:       request.Stage,
		ActionTaken: request.ActionTaken,
		RootCause:   request.RootCause,
		Notes:       request.Notes,
		Author:      subjectFromCtx(r.Context()),
	})
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	if err := tryWriteResponseJSON(w, http.StatusCreated, newAuditResponse(stored)); err != nil {
		h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
	}
}

func (h *JournalHandler) GetAuditHistory(w http.ResponseWriter, r *http.Request) {
	orderID, err := orderIDFromURL(r)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "Invalid order id", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
		return
	}

	entries, err := h.service.GetAuditHistory(r.Context(), orderID)
	if err != nil {
		h.writeError(r.Context(), w, err)
		return
	}

	res := make([]AuditResponse, len(entries))
	for i, entry := range entries {
		res[i] = newAuditResponse(entry)
	}
	if err := tryWriteResponseJSON(w, http.StatusOK, res); err != nil {
		h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
	}
}

func (h *JournalHandler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, data.ErrJournalDisabled):
		h.logger.DebugCtx(ctx, "Audit journal is disabled")
		w.WriteHeader(http.StatusServiceUnavailable)
	case errors.Is(err, service.ErrInvalidAuditEntry), errors.Is(err, service.ErrInvalidOrderNumber):
		h.logger.DebugCtx(ctx, "Invalid audit entry", zap.Error(err))
		w.WriteHeader(http.StatusBadRequest)
	default:
		h.logger.ErrorCtx(ctx, "Audit journal error", zap.Error(err))
		w.WriteHeader(http.StatusInternalServerError)
	}
}
