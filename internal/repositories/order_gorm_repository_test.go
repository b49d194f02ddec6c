package repositories_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"ordersvc/internal/models"
	"ordersvc/internal/repositories"
)

func newTestRepo(t *testing.T) *repositories.GORMOrderRepository {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&models.Order{}, &models.OrderItem{}, &models.OrderReceipt{}))
	return repositories.NewGORMOrderRepository(db)
}

func pendingOrder(items ...models.OrderItem) *models.Order {
	total := decimal.Zero
	count := 0
	for _, item := range items {
		total = total.Add(item.Price.Mul(decimal.NewFromInt(int64(item.Quantity))))
		count += item.Quantity
	}
	return &models.Order{
		Items:       items,
		TotalAmount: total,
		TotalItems:  count,
		Status:      models.StatusPending,
	}
}

func TestGORMOrderRepository_CreateAndGet(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	order := pendingOrder(
		models.OrderItem{ProductID: "prod-1", Quantity: 2, Price: decimal.NewFromInt(10)},
		models.OrderItem{ProductID: "prod-2", Quantity: 1, Price: decimal.RequireFromString("7.50")},
	)
	require.NoError(t, repo.Create(ctx, order))
	require.NotEmpty(t, order.ID)

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)

	assert.True(t, got.TotalAmount.Equal(decimal.RequireFromString("27.50")),
		"totalAmount should be 27.50, got %s", got.TotalAmount)
	assert.Equal(t, 3, got.TotalItems)
	assert.Equal(t, models.StatusPending, got.Status)
	assert.False(t, got.Paid)
	assert.Nil(t, got.PaidAt)
	assert.Nil(t, got.Receipt)

	// Items come back in insertion order.
	require.Len(t, got.Items, 2)
	assert.Equal(t, "prod-1", got.Items[0].ProductID)
	assert.Equal(t, "prod-2", got.Items[1].ProductID)
	assert.True(t, got.Items[1].Price.Equal(decimal.RequireFromString("7.50")))
}

func TestGORMOrderRepository_GetByID_NotFound(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.GetByID(context.Background(), "does-not-exist")
	assert.Nil(t, got)
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}

func TestGORMOrderRepository_ListAndCount(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	for i := 0; i < 25; i++ {
		order := pendingOrder(models.OrderItem{
			ProductID: fmt.Sprintf("prod-%d", i), Quantity: 1, Price: decimal.NewFromInt(1),
		})
		if i < 5 {
			order.Status = models.StatusCancelled
		}
		require.NoError(t, repo.Create(ctx, order))
	}

	total, err := repo.Count(ctx, nil)
	require.NoError(t, err)
	assert.Equal(t, int64(25), total)

	cancelled := models.StatusCancelled
	cancelledTotal, err := repo.Count(ctx, &cancelled)
	require.NoError(t, err)
	assert.Equal(t, int64(5), cancelledTotal)

	page, err := repo.List(ctx, nil, 20, 10)
	require.NoError(t, err)
	assert.Len(t, page, 5)

	beyond, err := repo.List(ctx, nil, 30, 10)
	require.NoError(t, err)
	assert.Empty(t, beyond)

	filtered, err := repo.List(ctx, &cancelled, 0, 10)
	require.NoError(t, err)
	assert.Len(t, filtered, 5)
	for _, o := range filtered {
		assert.Equal(t, models.StatusCancelled, o.Status)
	}
}

func TestGORMOrderRepository_UpdateStatus(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	order := pendingOrder(models.OrderItem{ProductID: "prod-1", Quantity: 1, Price: decimal.NewFromInt(5)})
	require.NoError(t, repo.Create(ctx, order))

	// Stale expected status matches nothing.
	err := repo.UpdateStatus(ctx, order.ID, models.StatusPaid, models.StatusDelivered)
	assert.ErrorIs(t, err, repositories.ErrStatusChanged)

	// Missing order is reported as such, not as a race.
	err = repo.UpdateStatus(ctx, "does-not-exist", models.StatusPending, models.StatusCancelled)
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)

	require.NoError(t, repo.UpdateStatus(ctx, order.ID, models.StatusPending, models.StatusCancelled))

	got, err := repo.GetByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, models.StatusCancelled, got.Status)
}

func TestGORMOrderRepository_MarkPaid(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	order := pendingOrder(models.OrderItem{ProductID: "prod-1", Quantity: 2, Price: decimal.NewFromInt(10)})
	require.NoError(t, repo.Create(ctx, order))

	paidAt := time.Now().UTC().Truncate(time.Second)
	settled, err := repo.MarkPaid(ctx, order.ID, "ch_1", "https://receipts.example/1", paidAt)
	require.NoError(t, err)

	assert.Equal(t, models.StatusPaid, settled.Status)
	assert.True(t, settled.Paid)
	require.NotNil(t, settled.PaidAt)
	assert.Equal(t, paidAt.Unix(), settled.PaidAt.Unix())
	assert.Equal(t, "ch_1", settled.ProviderChargeID)
	require.NotNil(t, settled.Receipt)
	assert.Equal(t, "https://receipts.example/1", settled.Receipt.ReceiptURL)
}

func TestGORMOrderRepository_MarkPaid_DuplicateDelivery(t *testing.T) {
	repo := newTestRepo(t)
	ctx := context.Background()

	order := pendingOrder(models.OrderItem{ProductID: "prod-1", Quantity: 1, Price: decimal.NewFromInt(10)})
	require.NoError(t, repo.Create(ctx, order))

	firstPaidAt := time.Now().UTC().Add(-time.Minute)
	first, err := repo.MarkPaid(ctx, order.ID, "ch_1", "https://receipts.example/1", firstPaidAt)
	require.NoError(t, err)

	// The same event again: nothing changes, no second receipt.
	again, err := repo.MarkPaid(ctx, order.ID, "ch_1", "https://receipts.example/other", time.Now().UTC())
	assert.ErrorIs(t, err, repositories.ErrAlreadySettled)
	require.NotNil(t, again)

	assert.Equal(t, first.PaidAt.Unix(), again.PaidAt.Unix())
	assert.Equal(t, "ch_1", again.ProviderChargeID)
	require.NotNil(t, again.Receipt)
	assert.Equal(t, "https://receipts.example/1", again.Receipt.ReceiptURL)
}

func TestGORMOrderRepository_MarkPaid_UnknownOrder(t *testing.T) {
	repo := newTestRepo(t)

	got, err := repo.MarkPaid(context.Background(), "does-not-exist", "ch_1", "https://receipts.example/1", time.Now())
	assert.Nil(t, got)
	assert.ErrorIs(t, err, repositories.ErrOrderNotFound)
}
