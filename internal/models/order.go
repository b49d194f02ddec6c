package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderItem represents a single line of an order. Price is the catalog price
// at the time the order was created and is never re-read afterwards. The
// product name is not stored; reads enrich items with the current catalog name.
type OrderItem struct {
	ID        uint            `json:"-" gorm:"primaryKey;autoIncrement"`
	OrderID   string          `json:"-" gorm:"index;type:varchar(36)"`
	ProductID string          `json:"productId" gorm:"type:varchar(36)"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price" gorm:"type:decimal(12,2)"`
}

// Order represents a customer order.
type Order struct {
	ID               string          `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Items            []OrderItem     `json:"items" gorm:"foreignKey:OrderID"`
	TotalAmount      decimal.Decimal `json:"totalAmount" gorm:"type:decimal(14,2)"`
	TotalItems       int             `json:"totalItems"`
	Status           OrderStatus     `json:"status" gorm:"type:varchar(20);index"`
	Paid             bool            `json:"paid"`
	PaidAt           *time.Time      `json:"paidAt,omitempty"`
	ProviderChargeID string          `json:"providerChargeId,omitempty" gorm:"type:varchar(64)"`
	Receipt          *OrderReceipt   `json:"receipt,omitempty" gorm:"foreignKey:OrderID"`
	CreatedAt        time.Time       `json:"createdAt"`
	UpdatedAt        time.Time       `json:"updatedAt"`
}

// OrderReceipt is created exactly once, at settlement.
type OrderReceipt struct {
	ID         string    `json:"id" gorm:"primaryKey;type:varchar(36)"`
	OrderID    string    `json:"-" gorm:"uniqueIndex;type:varchar(36)"`
	ReceiptURL string    `json:"receiptUrl"`
	CreatedAt  time.Time `json:"createdAt"`
}
