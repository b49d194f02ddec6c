package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending   OrderStatus = "PENDING"
	StatusPaid      OrderStatus = "PAID"
	StatusDelivered OrderStatus = "DELIVERED"
	StatusCancelled OrderStatus = "CANCELLED"
)

// OrderStatusList is every status accepted on the wire, in declaration order.
var OrderStatusList = []OrderStatus{StatusPending, StatusPaid, StatusDelivered, StatusCancelled}

// Valid reports whether s is one of the known statuses.
func (s OrderStatus) Valid() bool {
	for _, known := range OrderStatusList {
		if s == known {
			return true
		}
	}
	return false
}
