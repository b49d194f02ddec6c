package clients_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ordersvc/internal/apperrors"
	"ordersvc/internal/clients"
	"ordersvc/internal/services"
	"ordersvc/pkg/rabbitmq"
)

// stubRequester records the request and plays back a canned reply or error.
type stubRequester struct {
	pattern string
	payload any
	reply   string
	err     error
}

func (s *stubRequester) Request(ctx context.Context, pattern string, payload, reply any) error {
	s.pattern = pattern
	s.payload = payload
	if s.err != nil {
		return s.err
	}
	if reply != nil && s.reply != "" {
		return json.Unmarshal([]byte(s.reply), reply)
	}
	return nil
}

func TestCatalogClient_Validate(t *testing.T) {
	stub := &stubRequester{reply: `[{"id":"prod-1","name":"Widget","price":"10"}]`}
	c := clients.NewCatalogClient(stub)

	products, err := c.Validate(context.Background(), []string{"prod-1"})
	require.NoError(t, err)

	assert.Equal(t, "validate_products", stub.pattern)
	assert.Equal(t, []string{"prod-1"}, stub.payload)
	require.Len(t, products, 1)
	assert.Equal(t, "Widget", products[0].Name)
}

func TestCatalogClient_Validate_ErrorMapping(t *testing.T) {
	// A timeout means the collaborator is unreachable.
	stub := &stubRequester{err: rabbitmq.ErrNoReply}
	c := clients.NewCatalogClient(stub)
	_, err := c.Validate(context.Background(), []string{"prod-1"})
	assert.Equal(t, apperrors.KindUpstreamUnavailable, apperrors.KindOf(err))
	assert.ErrorIs(t, err, rabbitmq.ErrNoReply)

	// A remote error envelope means the collaborator answered with a failure.
	stub = &stubRequester{err: &rabbitmq.RemoteError{StatusCode: 400, Message: "invalid product ids"}}
	c = clients.NewCatalogClient(stub)
	_, err = c.Validate(context.Background(), []string{"prod-1"})
	assert.Equal(t, apperrors.KindUpstreamInvalid, apperrors.KindOf(err))
}

func TestPaymentClient_CreateSession(t *testing.T) {
	stub := &stubRequester{reply: `{"id":"cs_1","url":"https://pay.example/s/1"}`}
	c := clients.NewPaymentClient(stub)

	session, err := c.CreateSession(context.Background(), services.PaymentSessionRequest{
		OrderID:  "order-1",
		Currency: "usd",
	})
	require.NoError(t, err)

	assert.Equal(t, "create.payment.session", stub.pattern)
	sent, ok := stub.payload.(services.PaymentSessionRequest)
	require.True(t, ok)
	assert.Equal(t, "usd", sent.Currency)
	assert.JSONEq(t, `{"id":"cs_1","url":"https://pay.example/s/1"}`, string(session))
}

func TestPaymentClient_CreateSession_Unreachable(t *testing.T) {
	stub := &stubRequester{err: rabbitmq.ErrNoReply}
	c := clients.NewPaymentClient(stub)

	session, err := c.CreateSession(context.Background(), services.PaymentSessionRequest{OrderID: "order-1"})
	assert.Nil(t, session)
	assert.Equal(t, apperrors.KindUpstreamUnavailable, apperrors.KindOf(err))
}
