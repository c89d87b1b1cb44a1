package backend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"ops-monitor/internal/common/backendprotocol"
	"ops-monitor/pkg/logging"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

var (
	ErrNetwork      = errors.New("backend request failed")
	ErrUnauthorized = errors.New("backend session is no longer valid")
	ErrDecode       = errors.New("backend response is malformed")
	ErrNoOrderFound = errors.New("no order found")
)

const (
	ordersPath    = "/api/data/orders"
	liveAuditPath = "/api/audit/live/{orderID}"
	tokenSubject  = "opsmonitor"
)

type TokenFactory interface {
	Generate(subject string) (string, error)
}

type Config struct {
	ServerAddress string
	// StaticToken is used as is when set, otherwise a token is minted per request.
	StaticToken    string
	RequestTimeout time.Duration
	// RequestsPerSecond caps outgoing requests, zero means unlimited.
	RequestsPerSecond float64
}

// Filter is the reporting window of the dashboard: date range, store and search term.
type Filter struct {
	StartDate string `json:"start_date,omitempty"`
	EndDate   string `json:"end_date,omitempty"`
	StoreName string `json:"store_name,omitempty"`
	Search    string `json:"search,omitempty"`
}

type Client struct {
	cfg          Config
	http         *resty.Client
	tokenFactory TokenFactory
	limiter      *rate.Limiter
	logger       *logging.ZapLogger
}

func New(cfg Config, tokenFactory TokenFactory, logger *logging.ZapLogger) *Client {
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	httpClient := resty.New().
		SetBaseURL(cfg.ServerAddress).
		SetHeader("Accept", "application/json")
	if cfg.RequestTimeout > 0 {
		httpClient.SetTimeout(cfg.RequestTimeout)
	}
	return &Client{
		cfg:          cfg,
		http:         httpClient,
		tokenFactory: tokenFactory,
		limiter:      limiter,
		logger:       logger,
	}
}

func (c *Client) GetOrders(ctx context.Context, filter Filter) ([]backendprotocol.Order, error) {
	req, err := c.request(ctx)
	if err != nil {
		return nil, err
	}
	params := map[string]string{
		"start_date": filter.StartDate,
		"end_date":   filter.EndDate,
		"store_name": filter.StoreName,
		"search":     filter.Search,
	}
	for key, value := range params {
		if value != "" {
			req.SetQueryParam(key, value)
		}
	}
	resp, err := req.Get(ordersPath)
	if err != nil {
		return nil, fmt.Errorf("%w: get orders: %w", ErrNetwork, err)
	}
	if err := checkStatus(resp); err != nil {
		return nil, err
	}
	orders := make([]backendprotocol.Order, 0)
	if err := json.Unmarshal(resp.Body(), &orders); err != nil {
		c.logger.ErrorCtx(ctx, "Error unmarshalling orders response", zap.Error(err))
		return nil, fmt.Errorf("%w: orders: %w", ErrDecode, err)
	}
	c.logger.DebugCtx(ctx, "Orders fetched", zap.Int("count", len(orders)))
	return orders, nil
}

func (c *Client) GetLiveAudit(ctx context.Context, orderID int64) (backendprotocol.LiveAudit, error) {
	req, err := c.request(ctx)
	if err != nil {
		return backendprotocol.LiveAudit{}, err
	}
	resp, err := req.
		SetPathParam("orderID", strconv.FormatInt(orderID, 10)).
		Get(liveAuditPath)
	if err != nil {
		return backendprotocol.LiveAudit{}, fmt.Errorf("%w: get live audit: %w", ErrNetwork, err)
	}
	if resp.StatusCode() == http.StatusNotFound || resp.StatusCode() == http.StatusNoContent {
		c.logger.DebugCtx(ctx, "No order found", zap.Int64("orderID", orderID))
		return backendprotocol.LiveAudit{}, ErrNoOrderFound
	}
	if err := checkStatus(resp); err != nil {
		return backendprotocol.LiveAudit{}, err
	}
	res := backendprotocol.LiveAudit{}
	if err := json.Unmarshal(resp.Body(), &res); err != nil {
		c.logger.ErrorCtx(ctx, "Error unmarshalling live audit response", zap.Error(err))
		return backendprotocol.LiveAudit{}, fmt.Errorf("%w: live audit: %w", ErrDecode, err)
	}
	return res, nil
}

func (c *Client) request(ctx context.Context) (*resty.Request, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("%w: rate limiter: %w", ErrNetwork, err)
	}
	token := c.cfg.StaticToken
	if token == "" && c.tokenFactory != nil {
		generated, err := c.tokenFactory.Generate(tokenSubject)
		if err != nil {
			return nil, fmt.Errorf("failed to generate backend token: %w", err)
		}
		token = generated
	}
	req := c.http.R().SetContext(ctx)
	if token != "" {
		req.SetAuthToken(token)
	}
	return req, nil
}

func checkStatus(resp *resty.Response) error {
	statusCode := resp.StatusCode()
	switch {
	case statusCode == http.StatusUnauthorized || statusCode == http.StatusForbidden:
		return ErrUnauthorized
	case statusCode < 200 || statusCode > 299:
		return fmt.Errorf("%w: unexpected status code %v", ErrNetwork, statusCode)
	}
	return nil
}
