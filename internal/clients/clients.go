// Package clients adapts the broker's request/reply primitive into the
// collaborator ports the order service depends on, translating transport
// failures into the caller-facing error taxonomy.
package clients

import (
	"context"
	"errors"

	"ordersvc/internal/apperrors"
	"ordersvc/pkg/rabbitmq"
)

// Patterns served by the external collaborators.
const (
	PatternValidateProducts     = "validate_products"
	PatternCreatePaymentSession = "create.payment.session"
)

// Requester is the request/reply capability of the messaging client.
type Requester interface {
	Request(ctx context.Context, pattern string, payload, reply any) error
}

// mapRequestError classifies a transport failure: a collaborator that
// answered with an error envelope is an invalid upstream result, anything
// else (timeout, broker failure) means the upstream is unreachable.
func mapRequestError(err error, pattern string) error {
	var remote *rabbitmq.RemoteError
	if errors.As(err, &remote) {
		return apperrors.Wrap(apperrors.KindUpstreamInvalid, err, "%s rejected the request", pattern)
	}
	if errors.Is(err, rabbitmq.ErrNoReply) {
		return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "%s did not reply", pattern)
	}
	return apperrors.Wrap(apperrors.KindUpstreamUnavailable, err, "%s request failed", pattern)
}
