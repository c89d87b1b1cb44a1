package backendprotocol

import "github.com/shopspring/decimal"

// Timestamps are kept as raw strings: created_at is local wall-clock time while
// state_start_at is UTC without a zone marker. They are normalized by the monitor.
type Order struct {
	ID            int64            `json:"id"`
	ExternalID    string           `json:"external_id"`
	CurrentStatus string           `json:"current_status"`
	OrderType     string           `json:"order_type,omitempty"`
	TotalAmount   *decimal.Decimal `json:"total_amount"`
	StoreName     string           `json:"store_name"`
	CustomerName  string           `json:"customer_name"`
	CustomerPhone *string          `json:"customer_phone"`
	Driver        *Driver          `json:"driver"`
	CreatedAt     string           `json:"created_at"`
	StateStartAt  *string          `json:"state_start_at"`
	DurationText  *string          `json:"duration_text"`
	Items         []Item           `json:"items"`
}

type Driver struct {
	Name  string  `json:"name"`
	Phone *string `json:"phone"`
}

type Item struct {
	Name       string           `json:"name"`
	Quantity   int              `json:"quantity"`
	UnitPrice  decimal.Decimal  `json:"unit_price"`
	TotalPrice *decimal.Decimal `json:"total_price,omitempty"`
}

// LiveAudit is the invoice snapshot scraped from the legacy admin panel.
// Legacy values are free text, e.g. "Bs. 1.234,56".
type LiveAudit struct {
	Legacy map[string]any `json:"legacy"`
	Items  []Item         `json:"items"`
}
