package models_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"ordersvc/internal/models"
)

func TestOrderStatus_Valid(t *testing.T) {
	for _, s := range models.OrderStatusList {
		assert.True(t, s.Valid(), "%s should be a known status", s)
	}
	assert.False(t, models.OrderStatus("SHIPPED").Valid())
	assert.False(t, models.OrderStatus("").Valid())
	assert.False(t, models.OrderStatus("paid").Valid(), "statuses are case sensitive")
}
