package services

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"

	"ordersvc/internal/apperrors"
	"ordersvc/internal/models"
	"ordersvc/internal/repositories"
	"ordersvc/pkg/pagination"
)

// OrderItemInput is one requested line of a new order.
type OrderItemInput struct {
	ProductID string
	Quantity  int
}

// NamedOrderItem is an order item enriched with the catalog's current
// display name. Names are never stored; they are attached on every read.
type NamedOrderItem struct {
	ProductID string          `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
	Name      string          `json:"name"`
}

// OrderWithProducts is an order whose items carry catalog display names.
type OrderWithProducts struct {
	models.Order
	Items []NamedOrderItem `json:"items"`
}

// PageMeta describes one page of a list result.
type PageMeta struct {
	TotalItems  int64 `json:"totalItems"`
	TotalPages  int   `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
}

// OrderPage is one page of orders.
type OrderPage struct {
	Data []models.Order `json:"data"`
	Meta PageMeta       `json:"meta"`
}

// SettleInput is the payload of a payment-succeeded event.
type SettleInput struct {
	OrderID          string
	ProviderChargeID string
	ReceiptURL       string
}

// OrderService orchestrates order creation and settlement across the order
// store, the catalog collaborator and the payment collaborator.
type OrderService struct {
	orderRepo repositories.OrderRepository
	catalog   ProductValidator
	payments  PaymentGateway
}

// NewOrderService creates a new OrderService.
func NewOrderService(orderRepo repositories.OrderRepository, catalog ProductValidator, payments PaymentGateway) *OrderService {
	return &OrderService{
		orderRepo: orderRepo,
		catalog:   catalog,
		payments:  payments,
	}
}

// Create validates the requested items against the catalog, computes totals,
// and persists the order and its items in one transaction. Prices are
// snapshotted from the catalog reply; names are attached to the response but
// never stored. Nothing is persisted when validation fails.
func (s *OrderService) Create(ctx context.Context, items []OrderItemInput) (*OrderWithProducts, error) {
	productIDs := dedupe(items)

	products, err := s.catalog.Validate(ctx, productIDs)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, apperrors.New(apperrors.KindUpstreamInvalid, "invalid product ids")
	}

	byID := make(map[string]CatalogProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}

	// The catalog reply is untrusted: a non-empty reply can still be missing
	// a product we asked about.
	var (
		totalAmount decimal.Decimal
		totalItems  int
		orderItems  []models.OrderItem
	)
	for _, item := range items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, apperrors.New(apperrors.KindDataIntegrity,
				"product %s missing from catalog reply", item.ProductID)
		}
		totalAmount = totalAmount.Add(product.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		totalItems += item.Quantity
		orderItems = append(orderItems, models.OrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     product.Price,
		})
	}

	order := &models.Order{
		Items:       orderItems,
		TotalAmount: totalAmount,
		TotalItems:  totalItems,
		Status:      models.StatusPending,
	}
	if err := s.orderRepo.Create(ctx, order); err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to persist order")
	}

	return enrich(order, byID)
}

// CreatePaymentSession asks the payment collaborator to open a session for
// an already-persisted order. A failure here leaves the order PENDING with
// no session; there is no compensating rollback, the caller must retry or
// abandon.
func (s *OrderService) CreatePaymentSession(ctx context.Context, order *OrderWithProducts) (json.RawMessage, error) {
	req := PaymentSessionRequest{
		OrderID:  order.ID,
		Currency: "usd",
		Items:    make([]PaymentSessionItem, 0, len(order.Items)),
	}
	for _, item := range order.Items {
		req.Items = append(req.Items, PaymentSessionItem{
			Name:     item.Name,
			Price:    item.Price,
			Quantity: item.Quantity,
		})
	}

	session, err := s.payments.CreateSession(ctx, req)
	if err != nil {
		slog.Error("payment session request failed, order stays PENDING",
			"order_id", order.ID, "error", err)
		return nil, err
	}
	return session, nil
}

// FindOne loads an order and re-queries the catalog for current display
// names. The catalog round-trip is a hard dependency of every read: an
// existing order becomes unreadable while the catalog is down.
func (s *OrderService) FindOne(ctx context.Context, id string) (*OrderWithProducts, error) {
	order, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repositories.ErrOrderNotFound) {
			return nil, apperrors.Wrap(apperrors.KindNotFound, err, "Order with id %s not found", id)
		}
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to load order %s", id)
	}

	ids := make([]string, 0, len(order.Items))
	seen := make(map[string]bool, len(order.Items))
	for _, item := range order.Items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}

	products, err := s.catalog.Validate(ctx, ids)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, apperrors.New(apperrors.KindUpstreamInvalid, "invalid product ids")
	}

	byID := make(map[string]CatalogProduct, len(products))
	for _, p := range products {
		byID[p.ID] = p
	}
	return enrich(order, byID)
}

// FindAll returns one page of orders, optionally filtered by status. A page
// beyond the last yields an empty data set, not an error.
func (s *OrderService) FindAll(ctx context.Context, page, limit int, status *models.OrderStatus) (*OrderPage, error) {
	total, err := s.orderRepo.Count(ctx, status)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to count orders")
	}

	window := pagination.Paginate(page, limit, total)
	orders, err := s.orderRepo.List(ctx, status, window.Offset, window.Limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to list orders")
	}
	if orders == nil {
		orders = []models.Order{}
	}

	return &OrderPage{
		Data: orders,
		Meta: PageMeta{
			TotalItems:  total,
			TotalPages:  window.TotalPages,
			CurrentPage: window.CurrentPage,
			Limit:       window.Limit,
		},
	}, nil
}

// FindByStatus is FindAll with a mandatory status filter.
func (s *OrderService) FindByStatus(ctx context.Context, page, limit int, status models.OrderStatus) (*OrderPage, error) {
	return s.FindAll(ctx, page, limit, &status)
}

// ChangeStatus moves an order to a caller-supplied status. Requesting the
// current status is a Conflict. The write is a compare-and-swap against the
// status that was read, so a concurrent settlement cannot be overwritten.
func (s *OrderService) ChangeStatus(ctx context.Context, id string, status models.OrderStatus) (*models.Order, error) {
	current, err := s.FindOne(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Status == status {
		return nil, apperrors.New(apperrors.KindConflict, "Order with id %s is already %s", id, status)
	}

	if err := s.orderRepo.UpdateStatus(ctx, id, current.Status, status); err != nil {
		switch {
		case errors.Is(err, repositories.ErrOrderNotFound):
			return nil, apperrors.Wrap(apperrors.KindNotFound, err, "Order with id %s not found", id)
		case errors.Is(err, repositories.ErrStatusChanged):
			return nil, apperrors.Wrap(apperrors.KindConflict, err, "Order with id %s changed status concurrently", id)
		default:
			return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to update status of order %s", id)
		}
	}

	updated, err := s.orderRepo.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to reload order %s", id)
	}
	return updated, nil
}

// Settle reconciles a payment-succeeded event into the order: status PAID,
// paid flag, paidAt, provider charge id and the receipt, all in one atomic
// update. The event is delivered at least once; a duplicate finds the order
// already paid and is reported as a no-op success.
func (s *OrderService) Settle(ctx context.Context, in SettleInput) (*models.Order, error) {
	slog.Info("processing payment settlement",
		"order_id", in.OrderID, "charge_id", in.ProviderChargeID)

	order, err := s.orderRepo.MarkPaid(ctx, in.OrderID, in.ProviderChargeID, in.ReceiptURL, time.Now())
	if err != nil {
		switch {
		case errors.Is(err, repositories.ErrAlreadySettled):
			slog.Info("duplicate settlement event ignored",
				"order_id", in.OrderID, "charge_id", in.ProviderChargeID)
			return order, nil
		case errors.Is(err, repositories.ErrOrderNotFound):
			return nil, apperrors.Wrap(apperrors.KindNotFound, err, "Order with id %s not found", in.OrderID)
		default:
			return nil, apperrors.Wrap(apperrors.KindInternal, err, "failed to settle order %s", in.OrderID)
		}
	}

	slog.Info("payment settled", "order_id", in.OrderID)
	return order, nil
}

// dedupe collects the distinct product ids of the requested items,
// preserving first-seen order.
func dedupe(items []OrderItemInput) []string {
	seen := make(map[string]bool, len(items))
	ids := make([]string, 0, len(items))
	for _, item := range items {
		if !seen[item.ProductID] {
			seen[item.ProductID] = true
			ids = append(ids, item.ProductID)
		}
	}
	return ids
}

// enrich re-attaches catalog display names to the order's items for the
// response. The stored items never carry a name.
func enrich(order *models.Order, byID map[string]CatalogProduct) (*OrderWithProducts, error) {
	named := make([]NamedOrderItem, 0, len(order.Items))
	for _, item := range order.Items {
		product, ok := byID[item.ProductID]
		if !ok {
			return nil, apperrors.New(apperrors.KindDataIntegrity,
				"product %s missing from catalog reply", item.ProductID)
		}
		named = append(named, NamedOrderItem{
			ProductID: item.ProductID,
			Quantity:  item.Quantity,
			Price:     item.Price,
			Name:      product.Name,
		})
	}
	return &OrderWithProducts{Order: *order, Items: named}, nil
}
