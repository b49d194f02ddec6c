package clients

import (
	"context"

	"ordersvc/internal/services"
)

// CatalogClient is the broker-backed product catalog collaborator.
type CatalogClient struct {
	mq Requester
}

// NewCatalogClient creates a new CatalogClient.
func NewCatalogClient(mq Requester) *CatalogClient {
	return &CatalogClient{mq: mq}
}

// Validate asks the catalog to confirm and price the given product ids. An
// empty reply means one or more products are unavailable; the caller decides
// what that implies.
func (c *CatalogClient) Validate(ctx context.Context, productIDs []string) ([]services.CatalogProduct, error) {
	var products []services.CatalogProduct
	if err := c.mq.Request(ctx, PatternValidateProducts, productIDs, &products); err != nil {
		return nil, mapRequestError(err, PatternValidateProducts)
	}
	return products, nil
}
