package backend

import (
	"context"
	"net/http"
	"net/http/httptest"
	"ops-monitor/pkg/logging"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticTokens struct{}

func (staticTokens) Generate(subject string) (string, error) {
	return "minted-for-" + subject, nil
}

const ordersBody = `[
  {
    "id": 7,
    "external_id": "48213",
    "current_status": "on_the_way",
    "total_amount": 23.5,
    "store_name": "Farmacia Centro",
    "customer_name": "Ana",
    "customer_phone": null,
    "driver": {"name": "Luis", "phone": null},
    "created_at": "2025-10-18T08:00:00",
    "state_start_at": "2025-10-18T12:10:00.123456",
    "duration_text": null,
    "items": [{"name": "Ibuprofeno", "quantity": 2, "unit_price": 4.25, "total_price": 8.5}]
  }
]`

func newClient(t *testing.T, handler http.HandlerFunc, cfg Config) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	cfg.ServerAddress = srv.URL
	return New(cfg, staticTokens{}, logging.NewNop())
}

func TestGetOrders(t *testing.T) {
	var gotQuery map[string]string
	var gotAuth string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, ordersPath, r.URL.Path)
		gotAuth = r.Header.Get("Authorization")
		gotQuery = map[string]string{
			"start_date": r.URL.Query().Get("start_date"),
			"store_name": r.URL.Query().Get("store_name"),
		}
		_, hasSearch := r.URL.Query()["search"]
		assert.False(t, hasSearch)
		_, _ = w.Write([]byte(ordersBody))
	}, Config{})

	orders, err := client.GetOrders(context.Background(), Filter{StartDate: "2025-10-18", StoreName: "Farmacia Centro"})
	require.NoError(t, err)
	require.Len(t, orders, 1)

	order := orders[0]
	assert.EqualValues(t, 7, order.ID)
	assert.Equal(t, "on_the_way", order.CurrentStatus)
	require.NotNil(t, order.TotalAmount)
	assert.True(t, decimal.RequireFromString("23.5").Equal(*order.TotalAmount))
	require.NotNil(t, order.StateStartAt)
	assert.Equal(t, "2025-10-18T12:10:00.123456", *order.StateStartAt)
	require.Len(t, order.Items, 1)
	assert.Equal(t, 2, order.Items[0].Quantity)

	assert.Equal(t, "Bearer minted-for-opsmonitor", gotAuth)
	assert.Equal(t, "2025-10-18", gotQuery["start_date"])
	assert.Equal(t, "Farmacia Centro", gotQuery["store_name"])
}

func TestGetOrdersStaticToken(t *testing.T) {
	var gotAuth string
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(`[]`))
	}, Config{StaticToken: "session-token"})

	orders, err := client.GetOrders(context.Background(), Filter{})
	require.NoError(t, err)
	assert.Empty(t, orders)
	assert.Equal(t, "Bearer session-token", gotAuth)
}

func TestGetOrdersErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		expected error
	}{
		{name: "unauthorized", status: http.StatusUnauthorized, expected: ErrUnauthorized},
		{name: "forbidden", status: http.StatusForbidden, expected: ErrUnauthorized},
		{name: "server error", status: http.StatusBadGateway, expected: ErrNetwork},
		{name: "malformed", status: http.StatusOK, body: `{"detail":`, expected: ErrDecode},
	}
	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(test.status)
				_, _ = w.Write([]byte(test.body))
			}, Config{})
			_, err := client.GetOrders(context.Background(), Filter{})
			assert.ErrorIs(t, err, test.expected)
		})
	}
}

func TestGetOrdersTimeout(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
		_, _ = w.Write([]byte(`[]`))
	}, Config{RequestTimeout: 20 * time.Millisecond})

	_, err := client.GetOrders(context.Background(), Filter{})
	assert.ErrorIs(t, err, ErrNetwork)
}

func TestGetLiveAudit(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/audit/live/7":
			_, _ = w.Write([]byte(`{"legacy": {"iva": "Bs. 1,36", "tasa": "Tasa BCV: Bs 36,50"}, "items": [{"name": "A", "quantity": 1, "unit_price": 8.5}]}`))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}, Config{})

	audit, err := client.GetLiveAudit(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Bs. 1,36", audit.Legacy["iva"])
	require.Len(t, audit.Items, 1)
	assert.True(t, decimal.RequireFromString("8.5").Equal(audit.Items[0].UnitPrice))

	_, err = client.GetLiveAudit(context.Background(), 8)
	assert.ErrorIs(t, err, ErrNoOrderFound)
}

func TestRateLimiterHonorsContext(t *testing.T) {
	client := newClient(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[]`))
	}, Config{RequestsPerSecond: 0.01})

	_, err := client.GetOrders(context.Background(), Filter{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.GetOrders(ctx, Filter{})
	assert.ErrorIs(t, err, ErrNetwork)
}
