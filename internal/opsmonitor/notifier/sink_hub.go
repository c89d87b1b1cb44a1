package notifier

import (
	"context"
	"net/http"
	"net/url"
	"ops-monitor/pkg/logging"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	subscriberBuffer = 16
	writeWait        = 5 * time.Second
	pingPeriod       = 30 * time.Second
)

// Hub fans notifications out to the dashboards connected over websocket.
// Slow subscribers lose notifications instead of blocking delivery.
type Hub struct {
	mu       sync.Mutex
	subs     map[chan Notification]struct{}
	upgrader websocket.Upgrader
	origins  map[string]struct{}
	logger   *logging.ZapLogger
}

// NewHub accepts websocket clients from the serving host and from
// allowedOrigins. Requests without an Origin header are not browsers and
// always pass.
func NewHub(logger *logging.ZapLogger, allowedOrigins ...string) *Hub {
	h := &Hub{
		subs:    make(map[chan Notification]struct{}),
		origins: make(map[string]struct{}, len(allowedOrigins)),
		logger:  logger,
	}
	for _, origin := range allowedOrigins {
		h.origins[normalizeOrigin(origin)] = struct{}{}
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     h.checkOrigin,
	}
	return h
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	u, err := url.Parse(origin)
	if err != nil {
		return false
	}
	if strings.EqualFold(u.Host, r.Host) {
		return true
	}
	_, ok := h.origins[normalizeOrigin(origin)]
	if !ok {
		h.logger.WarnCtx(r.Context(), "websocket origin rejected", zap.String("origin", origin))
	}
	return ok
}

func normalizeOrigin(origin string) string {
	return strings.ToLower(strings.TrimSuffix(strings.TrimSpace(origin), "/"))
}

func (h *Hub) Name() string {
	return "websocket"
}

func (h *Hub) Subscribe() chan Notification {
	ch := make(chan Notification, subscriberBuffer)
	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()
	return ch
}

func (h *Hub) Unsubscribe(ch chan Notification) {
	h.mu.Lock()
	if _, ok := h.subs[ch]; ok {
		delete(h.subs, ch)
		close(ch)
	}
	h.mu.Unlock()
}

func (h *Hub) Subscribers() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

func (h *Hub) Deliver(_ context.Context, n Notification) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- n:
		default:
		}
	}
	return nil
}

// ServeHTTP upgrades the request and streams notifications as JSON frames
// until the client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.DebugCtx(r.Context(), "websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch := h.Subscribe()
	defer h.Unsubscribe(ch)

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-closed:
			return
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		case n, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(n); err != nil {
				h.logger.DebugCtx(r.Context(), "websocket write failed", zap.Error(err))
				return
			}
		}
	}
}
