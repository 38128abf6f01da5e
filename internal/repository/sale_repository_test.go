package repository

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockflow/stockflow/internal/model"
)

func seedUser(t *testing.T, db *testDB, id int64, name string) {
	t.Helper()
	err := db.Write(context.Background()).Create(&UserEntity{ID: id, Name: name, Email: name + "@example.com"}).Error
	require.NoError(t, err)
}

func seedSaleFixtures(t *testing.T, db *testDB) {
	t.Helper()
	seedUser(t, db, 1, "cashier")
	seedCategory(t, db, 1, "Beverages")
	seedProduct(t, db, &ProductEntity{
		ID: 1, Name: "Soda 500ml", SKU: "BEV-001", CategoryID: 1,
		CostPrice: decimal.NewFromInt(30), SellingPrice: decimal.NewFromInt(50),
		StockQuantity: 100, Unit: "pcs", IsActive: true,
	})
}

func TestSaleRepository_CreateAndFind(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSaleRepository(db.DB)
	ctx := context.Background()

	seedSaleFixtures(t, db)

	sale, err := repo.Create(ctx, &model.Sale{
		SaleNumber: "SL000001",
		Items: []*model.SaleItem{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(50), Subtotal: decimal.NewFromInt(100)},
		},
		Subtotal:      decimal.NewFromInt(100),
		Discount:      decimal.NewFromInt(10),
		Total:         decimal.NewFromInt(90),
		PaymentMethod: model.PaymentMethodCash,
		PaymentStatus: model.PaymentStatusCompleted,
		SoldByID:      1,
	})
	require.NoError(t, err)
	require.NotZero(t, sale.ID)

	found, err := repo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, "SL000001", found.SaleNumber)
	assert.True(t, found.Total.Equal(decimal.NewFromInt(90)))
	require.Len(t, found.Items, 1)
	require.NotNil(t, found.Items[0].Product)
	assert.Equal(t, "Soda 500ml", found.Items[0].Product.Name)
	require.NotNil(t, found.SoldBy)
	assert.Equal(t, "cashier", found.SoldBy.Name)

	_, err = repo.FindByID(ctx, 999)
	assert.ErrorIs(t, err, ErrSaleNotFound)
}

func TestSaleRepository_MpesaCode(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSaleRepository(db.DB)
	ctx := context.Background()

	seedSaleFixtures(t, db)

	sale, err := repo.Create(ctx, &model.Sale{
		SaleNumber:    "SL000001",
		Subtotal:      decimal.NewFromInt(100),
		Total:         decimal.NewFromInt(100),
		PaymentMethod: model.PaymentMethodMpesa,
		PaymentStatus: model.PaymentStatusPending,
		SoldByID:      1,
	})
	require.NoError(t, err)

	require.NoError(t, repo.SetMpesaCode(ctx, sale.ID, "ws_CO_123456"))

	t.Run("find by checkout request id", func(t *testing.T) {
		found, err := repo.FindByMpesaCode(ctx, "ws_CO_123456")
		require.NoError(t, err)
		assert.Equal(t, sale.ID, found.ID)
	})

	t.Run("any of several codes matches", func(t *testing.T) {
		found, err := repo.FindByMpesaCode(ctx, "QHX12345", "ws_CO_123456")
		require.NoError(t, err)
		assert.Equal(t, sale.ID, found.ID)
	})

	t.Run("unknown code", func(t *testing.T) {
		_, err := repo.FindByMpesaCode(ctx, "nope")
		assert.ErrorIs(t, err, ErrSaleNotFound)
	})

	t.Run("no codes", func(t *testing.T) {
		_, err := repo.FindByMpesaCode(ctx)
		assert.ErrorIs(t, err, ErrSaleNotFound)
	})

	assert.ErrorIs(t, repo.SetMpesaCode(ctx, 999, "x"), ErrSaleNotFound)
}

func TestSaleRepository_UpdatePaymentStatusIfPending(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSaleRepository(db.DB)
	ctx := context.Background()

	seedSaleFixtures(t, db)

	sale, err := repo.Create(ctx, &model.Sale{
		SaleNumber:    "SL000001",
		Subtotal:      decimal.NewFromInt(100),
		Total:         decimal.NewFromInt(100),
		PaymentMethod: model.PaymentMethodMpesa,
		PaymentStatus: model.PaymentStatusPending,
		SoldByID:      1,
	})
	require.NoError(t, err)

	receipt := "QHX12345"

	t.Run("first transition wins", func(t *testing.T) {
		ok, err := repo.UpdatePaymentStatusIfPending(ctx, sale.ID, model.PaymentStatusCompleted, &receipt)
		require.NoError(t, err)
		assert.True(t, ok)

		found, err := repo.FindByID(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusCompleted, found.PaymentStatus)
		require.NotNil(t, found.MpesaCode)
		assert.Equal(t, receipt, *found.MpesaCode)
	})

	t.Run("duplicate transition is a no-op", func(t *testing.T) {
		ok, err := repo.UpdatePaymentStatusIfPending(ctx, sale.ID, model.PaymentStatusCompleted, &receipt)
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("terminal state cannot be overwritten", func(t *testing.T) {
		ok, err := repo.UpdatePaymentStatusIfPending(ctx, sale.ID, model.PaymentStatusFailed, nil)
		require.NoError(t, err)
		assert.False(t, ok)

		found, err := repo.FindByID(ctx, sale.ID)
		require.NoError(t, err)
		assert.Equal(t, model.PaymentStatusCompleted, found.PaymentStatus)
		require.NotNil(t, found.MpesaCode)
		assert.Equal(t, receipt, *found.MpesaCode)
	})
}

func TestSaleRepository_List(t *testing.T) {
	db := setupTestDB(t)
	repo := NewSaleRepository(db.DB)
	ctx := context.Background()

	seedSaleFixtures(t, db)

	now := time.Now().UTC().Truncate(time.Second)
	yesterday := now.Add(-24 * time.Hour)

	mustCreate := func(num string, status model.PaymentStatus, total int64, at time.Time) {
		t.Helper()
		_, err := repo.Create(ctx, &model.Sale{
			SaleNumber:    num,
			Subtotal:      decimal.NewFromInt(total),
			Total:         decimal.NewFromInt(total),
			PaymentMethod: model.PaymentMethodCash,
			PaymentStatus: status,
			SoldByID:      1,
			CreatedAt:     at,
		})
		require.NoError(t, err)
	}

	mustCreate("SL000001", model.PaymentStatusCompleted, 100, yesterday)
	mustCreate("SL000002", model.PaymentStatusCompleted, 200, now)
	mustCreate("SL000003", model.PaymentStatusPending, 300, now)

	t.Run("filter by status", func(t *testing.T) {
		status := model.PaymentStatusCompleted
		sales, total, err := repo.List(ctx, model.SaleFilter{Status: &status})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, sales, 2)
	})

	t.Run("filter by time window", func(t *testing.T) {
		from := now.Add(-time.Hour)
		sales, total, err := repo.List(ctx, model.SaleFilter{From: &from})
		require.NoError(t, err)
		assert.Equal(t, int64(2), total)
		assert.Len(t, sales, 2)
	})

	t.Run("newest first", func(t *testing.T) {
		sales, _, err := repo.List(ctx, model.SaleFilter{Desc: true})
		require.NoError(t, err)
		require.Len(t, sales, 3)
		assert.True(t, !sales[0].CreatedAt.Before(sales[1].CreatedAt))
	})

	t.Run("completed between", func(t *testing.T) {
		sales, err := repo.ListCompletedBetween(ctx, now.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		require.Len(t, sales, 1)
		assert.Equal(t, "SL000002", sales[0].SaleNumber)
	})

	t.Run("sum completed between", func(t *testing.T) {
		total, count, err := repo.SumCompletedBetween(ctx, yesterday.Add(-time.Hour), now.Add(time.Hour))
		require.NoError(t, err)
		assert.Equal(t, int64(2), count)
		assert.InDelta(t, 300, total, 0.001)
	})

	t.Run("latest", func(t *testing.T) {
		sales, err := repo.Latest(ctx, 2)
		require.NoError(t, err)
		assert.Len(t, sales, 2)
	})
}
