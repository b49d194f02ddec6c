package services

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"
)

// CatalogProduct is one entry of the catalog collaborator's validation reply.
type CatalogProduct struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// ProductValidator is the catalog collaborator: it answers a deduplicated
// set of product ids with current names and prices, or an empty reply when
// any product is unavailable.
type ProductValidator interface {
	Validate(ctx context.Context, productIDs []string) ([]CatalogProduct, error)
}

// PaymentSessionItem is a display line sent to the payment provider.
type PaymentSessionItem struct {
	Name     string          `json:"name"`
	Price    decimal.Decimal `json:"price"`
	Quantity int             `json:"quantity"`
}

// PaymentSessionRequest asks the payment collaborator to open a session for
// an order.
type PaymentSessionRequest struct {
	OrderID  string               `json:"orderId"`
	Currency string               `json:"currency"`
	Items    []PaymentSessionItem `json:"items"`
}

// PaymentGateway is the payment collaborator. The provider's session object
// is passed through verbatim; this service never interprets it.
type PaymentGateway interface {
	CreateSession(ctx context.Context, req PaymentSessionRequest) (json.RawMessage, error)
}
