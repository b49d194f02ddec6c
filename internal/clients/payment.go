package clients

import (
	"context"
	"encoding/json"

	"ordersvc/internal/services"
)

// PaymentClient is the broker-backed payment-provider collaborator.
type PaymentClient struct {
	mq Requester
}

// NewPaymentClient creates a new PaymentClient.
func NewPaymentClient(mq Requester) *PaymentClient {
	return &PaymentClient{mq: mq}
}

// CreateSession opens a payment session for an order. The provider's session
// object is returned as raw JSON; its shape belongs to the provider.
func (c *PaymentClient) CreateSession(ctx context.Context, req services.PaymentSessionRequest) (json.RawMessage, error) {
	var session json.RawMessage
	if err := c.mq.Request(ctx, PatternCreatePaymentSession, req, &session); err != nil {
		return nil, mapRequestError(err, PatternCreatePaymentSession)
	}
	return session, nil
}
