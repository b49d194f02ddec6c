package repositories

import (
	"context"
	"errors"
	"time"

	"ordersvc/internal/models"
)

// Sentinel errors the store reports; callers translate them into the
// caller-facing taxonomy.
var (
	// ErrOrderNotFound reports that the referenced order does not exist.
	ErrOrderNotFound = errors.New("order not found")
	// ErrStatusChanged reports that a conditional status update matched no
	// row because the order's status moved underneath the caller.
	ErrStatusChanged = errors.New("order status changed concurrently")
	// ErrAlreadySettled reports that MarkPaid found the order already paid;
	// the stored order is still returned so duplicate settlement events can
	// be treated as no-op successes.
	ErrAlreadySettled = errors.New("order already settled")
)

// OrderRepository defines the interface for order data access.
type OrderRepository interface {
	// Create persists the order and its items in a single transaction.
	Create(ctx context.Context, order *models.Order) error
	// GetByID loads one order with its items (in creation order) and
	// receipt, or ErrOrderNotFound.
	GetByID(ctx context.Context, id string) (*models.Order, error)
	// List returns a page of orders, optionally filtered by status. Items
	// are not loaded.
	List(ctx context.Context, status *models.OrderStatus, offset, limit int) ([]models.Order, error)
	// Count returns the number of orders matching the optional status filter.
	Count(ctx context.Context, status *models.OrderStatus) (int64, error)
	// UpdateStatus sets the order's status to "to" only if it still equals
	// "from". Returns ErrOrderNotFound or ErrStatusChanged when no row
	// matches.
	UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error
	// MarkPaid atomically records the settlement: status PAID, paid flag,
	// paidAt, provider charge id, and the receipt row. An already-paid
	// order is left untouched and returned alongside ErrAlreadySettled.
	MarkPaid(ctx context.Context, id, chargeID, receiptURL string, paidAt time.Time) (*models.Order, error)
}
