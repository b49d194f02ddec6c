package repositories

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ordersvc/internal/models"
)

// GORMOrderRepository is a GORM implementation of OrderRepository.
type GORMOrderRepository struct {
	db *gorm.DB
}

// NewGORMOrderRepository creates a new instance of GORMOrderRepository.
func NewGORMOrderRepository(db *gorm.DB) *GORMOrderRepository {
	return &GORMOrderRepository{db: db}
}

// Create persists the order together with its items. GORM inserts the
// association rows inside the same transaction, so the order and its items
// land together or not at all.
func (r *GORMOrderRepository) Create(ctx context.Context, order *models.Order) error {
	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return tx.Create(order).Error
	})
	if err != nil {
		return fmt.Errorf("failed to create order: %w", err)
	}
	return nil
}

// GetByID retrieves a single order with its items and receipt.
func (r *GORMOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	var order models.Order
	err := r.db.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Receipt").
		First(&order, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order %s: %w", id, err)
	}
	return &order, nil
}

// List returns one page of orders. Items are intentionally not loaded;
// listings only need the order headline fields.
func (r *GORMOrderRepository) List(ctx context.Context, status *models.OrderStatus, offset, limit int) ([]models.Order, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var orders []models.Order
	err := q.Order("created_at ASC").Offset(offset).Limit(limit).Find(&orders).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	return orders, nil
}

// Count returns the number of orders matching the optional status filter.
func (r *GORMOrderRepository) Count(ctx context.Context, status *models.OrderStatus) (int64, error) {
	q := r.db.WithContext(ctx).Model(&models.Order{})
	if status != nil {
		q = q.Where("status = ?", *status)
	}
	var total int64
	if err := q.Count(&total).Error; err != nil {
		return 0, fmt.Errorf("failed to count orders: %w", err)
	}
	return total, nil
}

// UpdateStatus performs a compare-and-swap on the status column. A stale
// "from" value matches no row, so a concurrent writer cannot be silently
// overwritten.
func (r *GORMOrderRepository) UpdateStatus(ctx context.Context, id string, from, to models.OrderStatus) error {
	res := r.db.WithContext(ctx).
		Model(&models.Order{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	if res.Error != nil {
		return fmt.Errorf("failed to update status for order %s: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		var n int64
		if err := r.db.WithContext(ctx).Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
			return fmt.Errorf("failed to check order %s: %w", id, err)
		}
		if n == 0 {
			return ErrOrderNotFound
		}
		return ErrStatusChanged
	}
	return nil
}

// MarkPaid records a settlement in one transaction: the paid fields on the
// order plus the receipt row. The update is guarded on paid = false, so a
// duplicate settlement event finds nothing to change and comes back as
// ErrAlreadySettled with the stored order.
func (r *GORMOrderRepository) MarkPaid(ctx context.Context, id, chargeID, receiptURL string, paidAt time.Time) (*models.Order, error) {
	var settled bool
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&models.Order{}).
			Where("id = ? AND paid = ?", id, false).
			Updates(map[string]any{
				"status":             models.StatusPaid,
				"paid":               true,
				"paid_at":            paidAt,
				"provider_charge_id": chargeID,
			})
		if res.Error != nil {
			return fmt.Errorf("failed to mark order %s paid: %w", id, res.Error)
		}
		if res.RowsAffected == 0 {
			var n int64
			if err := tx.Model(&models.Order{}).Where("id = ?", id).Count(&n).Error; err != nil {
				return fmt.Errorf("failed to check order %s: %w", id, err)
			}
			if n == 0 {
				return ErrOrderNotFound
			}
			settled = true
			return nil
		}
		receipt := models.OrderReceipt{
			ID:         uuid.New().String(),
			OrderID:    id,
			ReceiptURL: receiptURL,
		}
		if err := tx.Create(&receipt).Error; err != nil {
			return fmt.Errorf("failed to create receipt for order %s: %w", id, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	order, getErr := r.GetByID(ctx, id)
	if getErr != nil {
		return nil, getErr
	}
	if settled {
		return order, ErrAlreadySettled
	}
	return order, nil
}
