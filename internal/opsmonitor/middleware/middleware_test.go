package middleware

import (
	"net/http"
	"net/http/httptest"
	"ops-monitor/pkg/logging"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerContext_AddsRequestFields(t *testing.T) {
	core, logs := observer.New(zap.DebugLevel)
	logger := logging.NewFromZap(zap.New(core))

	router := chi.NewRouter()
	router.Use(NewLoggerContext(logger).CreateHandler)
	router.Get("/api/audit/{orderID}/journal", func(w http.ResponseWriter, r *http.Request) {
		logger.InfoCtx(r.Context(), "inside handler")
		w.WriteHeader(http.StatusTeapot)
	})

	req := httptest.NewRequest(http.MethodGet, "/api/audit/42/journal", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusTeapot, rec.Code)
	requestID := rec.Header().Get(requestIDHeader)
	_, err := uuid.Parse(requestID)
	require.NoError(t, err)

	entries := logs.FilterMessage("inside handler").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, requestID, fields["request-id"])
	assert.Equal(t, "/api/audit/42/journal", fields["path"])
	assert.Equal(t, http.MethodGet, fields["method"])

	served := logs.FilterMessage("request served").All()
	require.Len(t, served, 1)
	assert.EqualValues(t, http.StatusTeapot, served[0].ContextMap()["status"])
}

func TestLoggerContext_KeepsIncomingRequestID(t *testing.T) {
	handler := NewLoggerContext(logging.NewNop()).CreateHandler(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))

	requestID := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(requestIDHeader, requestID)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, requestID, rec.Header().Get(requestIDHeader))
}

func TestPanicRecover(t *testing.T) {
	core, logs := observer.New(zap.ErrorLevel)
	handler := NewPanicRecover(logging.NewFromZap(zap.New(core))).CreateHandler(
		http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		}),
	)

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, 1, logs.FilterMessage("panic in HTTP handler").Len())
}
