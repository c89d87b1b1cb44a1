package opsmonitor

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"ops-monitor/internal/opsmonitor/handlers"
	"ops-monitor/internal/opsmonitor/metrics"
	"ops-monitor/internal/opsmonitor/middleware"
	"ops-monitor/pkg/logging"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// tokenQueryParam carries the token for websocket clients, which cannot set headers.
const tokenQueryParam = "token"

type Config struct {
	ServerAddress   string
	ShutdownTimeout time.Duration
}

type Monitor interface {
	handlers.MonitorView
	handlers.FilterSetter
}

type Services struct {
	Monitor        Monitor
	Notifications  handlers.NotificationsToggle
	Stream         http.Handler
	Reconciliation handlers.ReconciliationService
	Journal        handlers.JournalService
}

type Server struct {
	logger     *logging.ZapLogger
	httpServer *http.Server
	cfg        Config
}

func NewServer(
	cfg Config,
	tokenAuth *jwtauth.JWTAuth,
	services Services,
	logger *logging.ZapLogger,
) *Server {
	srv := &http.Server{
		Addr:              cfg.ServerAddress,
		Handler:           createMux(tokenAuth, services, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return &Server{
		cfg:        cfg,
		logger:     logger,
		httpServer: srv,
	}
}

func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Run() error {
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("server ListenAndServe failed: %w", err)
	}
	return nil
}

func (s *Server) Shutdown() error {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	return nil
}

func createMux(
	tokenAuth *jwtauth.JWTAuth,
	services Services,
	logger *logging.ZapLogger,
) *chi.Mux {
	eventsHandler := handlers.NewEventsHandler(services.Monitor, logger)
	timersHandler := handlers.NewTimersHandler(services.Monitor, logger)
	filterHandler := handlers.NewFilterHandler(services.Monitor, logger)
	notificationsHandler := handlers.NewNotificationsHandler(services.Notifications, logger)
	reconciliationHandler := handlers.NewReconciliationHandler(services.Reconciliation, logger)
	journalHandler := handlers.NewJournalHandler(services.Journal, logger)

	router := chi.NewRouter()
	router.Use(middleware.NewLoggerContext(logger).CreateHandler)
	router.Use(middleware.NewPanicRecover(logger).CreateHandler)

	router.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	router.Route("/api", func(router chi.Router) {
		router.Use(jwtauth.Verify(tokenAuth, jwtauth.TokenFromHeader, jwtauth.TokenFromCookie, tokenFromQuery))
		router.Use(jwtauth.Authenticator(tokenAuth))

		router.Route("/monitor", func(router chi.Router) {
			router.Get("/events", eventsHandler.ServeHTTP)
			router.Get("/timers", timersHandler.ServeHTTP)
			router.Get("/filter", filterHandler.ServeHTTP)
			router.Put("/filter", filterHandler.ServeHTTP)
			router.Get("/notifications", notificationsHandler.ServeHTTP)
			router.Put("/notifications", notificationsHandler.ServeHTTP)
			if services.Stream != nil {
				router.Get("/stream", services.Stream.ServeHTTP)
			}
		})

		router.Route("/audit/{orderID}", func(router chi.Router) {
			router.Get("/reconciliation", reconciliationHandler.ServeHTTP)
			router.Get("/journal", journalHandler.GetAuditHistory)
			router.Post("/journal", journalHandler.LogAudit)
		})
	})

	return router
}

func tokenFromQuery(r *http.Request) string {
	return r.URL.Query().Get(tokenQueryParam)
}
