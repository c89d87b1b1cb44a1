package handlers

import (
	"net/http"
	"ops-monitor/internal/opsmonitor/backend"
	"ops-monitor/internal/opsmonitor/data"
	"ops-monitor/internal/opsmonitor/notifier"
	"ops-monitor/internal/opsmonitor/ordersmonitor"
	"ops-monitor/pkg/logging"
	"time"

	"go.uber.org/zap"
)

type MonitorView interface {
	RecentEvents() []data.MonitorEvent
	Timers() []ordersmonitor.TimerRow
}

type EventResponse struct {
	data.MonitorEvent
	ExternalID string `json:"external_id"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	Severity   string `json:"severity"`
	OrderID    int64  `json:"order_id"`
}

type EventsHandler struct {
	monitor MonitorView
	logger  *logging.ZapLogger
}

func NewEventsHandler(monitor MonitorView, logger *logging.ZapLogger) *EventsHandler {
	return &EventsHandler{
		monitor: monitor,
		logger:  logger,
	}
}

// ServeHTTP lists recent events newest first.
func (h *EventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	events := h.monitor.RecentEvents()
	res := make([]EventResponse, 0, len(events))
	for i := len(events) - 1; i >= 0; i-- {
		event := events[i]
		n := notifier.FromEvent(event)
		res = append(res, EventResponse{
			MonitorEvent: event,
			OrderID:      event.Order.ID,
			ExternalID:   event.Order.ExternalID,
			Title:        n.Title,
			Body:         n.Body,
			Severity:     string(n.Severity),
		})
	}
	if err := tryWriteResponseJSON(w, http.StatusOK, res); err != nil {
		h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
	}
}

type TimersHandler struct {
	monitor MonitorView
	logger  *logging.ZapLogger
}

func NewTimersHandler(monitor MonitorView, logger *logging.ZapLogger) *TimersHandler {
	return &TimersHandler{
		monitor: monitor,
		logger:  logger,
	}
}

func (h *TimersHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := tryWriteResponseJSON(w, http.StatusOK, h.monitor.Timers()); err != nil {
		h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
	}
}

type NotificationsToggle interface {
	Enabled() bool
	Set(enabled bool)
}

type NotificationsRequest struct {
	Enabled *bool `json:"enabled"`
}

type NotificationsResponse struct {
	Enabled bool `json:"enabled"`
}

type NotificationsHandler struct {
	toggle NotificationsToggle
	logger *logging.ZapLogger
}

func NewNotificationsHandler(toggle NotificationsToggle, logger *logging.ZapLogger) *NotificationsHandler {
	return &NotificationsHandler{
		toggle: toggle,
		logger: logger,
	}
}

func (h *NotificationsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	if r.Method == http.MethodPut {
		request, err := decodeJSON[NotificationsRequest](r.Body)
		if err != nil || request.Enabled == nil {
			h.logger.DebugCtx(r.Context(), "input decoding error", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.toggle.Set(*request.Enabled)
		h.logger.InfoCtx(r.Context(), "notifications toggled", zap.Bool("enabled", *request.Enabled))
	}

	if err := tryWriteResponseJSON(w, http.StatusOK, NotificationsResponse{Enabled: h.toggle.Enabled()}); err != nil {
		h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
	}
}

type FilterSetter interface {
	SetFilter(filter backend.Filter)
	Filter() backend.Filter
}

type FilterHandler struct {
	monitor FilterSetter
	logger  *logging.ZapLogger
}

func NewFilterHandler(monitor FilterSetter, logger *logging.ZapLogger) *FilterHandler {
	return &FilterHandler{
		monitor: monitor,
		logger:  logger,
	}
}

const filterDateLayout = "2006-01-02"

// ServeHTTP replaces the filter used by the next refresh. Refreshes already in
// flight keep the previous one.
func (h *FilterHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	defer closeBody(r.Context(), r.Body, h.logger)

	if r.Method == http.MethodPut {
		filter, err := decodeJSON[backend.Filter](r.Body)
		if err != nil {
			h.logger.DebugCtx(r.Context(), "input decoding error", zap.Error(err))
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		if !validFilterDates(filter) {
			h.logger.DebugCtx(r.Context(), "invalid filter dates",
				zap.String("startDate", filter.StartDate),
				zap.String("endDate", filter.EndDate),
			)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		h.monitor.SetFilter(filter)
		h.logger.InfoCtx(r.Context(), "monitor filter changed", zap.Any("filter", filter))
	}

	if err := tryWriteResponseJSON(w, http.StatusOK, h.monitor.Filter()); err != nil {
		h.logger.ErrorCtx(r.Context(), failedToWriteResponseErrorMessage, zap.Error(err))
	}
}

func validFilterDates(filter backend.Filter) bool {
	var start, end time.Time
	var err error
	if filter.StartDate != "" {
		if start, err = time.Parse(filterDateLayout, filter.StartDate); err != nil {
			return false
		}
	}
	if filter.EndDate != "" {
		if end, err = time.Parse(filterDateLayout, filter.EndDate); err != nil {
			return false
		}
	}
	return start.IsZero() || end.IsZero() || !end.Before(start)
}
