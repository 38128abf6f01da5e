package e2e

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"reflect"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/valyala/fasthttp"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	gateway "github.com/stockflow/stockflow/internal/gateways"
	"github.com/stockflow/stockflow/internal/handlers"
	"github.com/stockflow/stockflow/internal/model"
	"github.com/stockflow/stockflow/internal/repository"
	"github.com/stockflow/stockflow/internal/services"
	"github.com/stockflow/stockflow/pkg/pg"
	"github.com/stockflow/stockflow/pkg/redis"
)

type testDB = pg.DB

type TestEnvironment struct {
	DB             *pg.DB
	Redis          *miniredis.Miniredis
	RedisAdapter   redis.RedisAdapter
	Daraja         *httptest.Server
	ProductRepo    *repository.ProductRepository
	SaleRepo       *repository.SaleRepository
	CounterRepo    *repository.CounterRepository
	SaleService    *services.SaleService
	MpesaService   *services.MpesaService
	PaymentHandler *handlers.PaymentHandler
}

// fakeDaraja stands in for the sandbox: it hands out one token and accepts
// every push with a fixed checkout request id.
func fakeDaraja(checkoutRequestID string) *httptest.Server {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/v1/generate", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"access_token":"e2e-token","expires_in":"3599"}`)
	})
	mux.HandleFunc("/mpesa/stkpush/v1/processrequest", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `{
			"MerchantRequestID": "29115-34620561-1",
			"CheckoutRequestID": %q,
			"ResponseCode": "0",
			"ResponseDescription": "Success. Request accepted for processing",
			"CustomerMessage": "Success. Request accepted for processing"
		}`, checkoutRequestID)
	})
	return httptest.NewServer(mux)
}

func setupE2EEnvironment(t *testing.T, checkoutRequestID string) *TestEnvironment {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&repository.UserEntity{},
		&repository.CategoryEntity{},
		&repository.ProductEntity{},
		&repository.CustomerEntity{},
		&repository.SaleEntity{},
		&repository.SaleItemEntity{},
		&repository.CounterEntity{},
		&repository.StoreSettingsEntity{},
	)
	require.NoError(t, err)

	pgDB := &testDB{}
	pgDBValue := reflect.ValueOf(pgDB).Elem()

	readField := pgDBValue.FieldByName("read")
	writeField := pgDBValue.FieldByName("write")

	readField = reflect.NewAt(readField.Type(), readField.Addr().UnsafePointer()).Elem()
	writeField = reflect.NewAt(writeField.Type(), writeField.Addr().UnsafePointer()).Elem()

	readField.Set(reflect.ValueOf(db))
	writeField.Set(reflect.ValueOf(db))

	mr, err := miniredis.Run()
	require.NoError(t, err)

	redisAdapter := redis.NewRedisAdapterFromClient("e2e", goredis.NewUniversalClient(&goredis.UniversalOptions{
		Addrs: []string{mr.Addr()},
	}))

	darajaSrv := fakeDaraja(checkoutRequestID)

	darajaClient, err := gateway.NewClient(&gateway.Config{
		Environment:    "sandbox",
		BaseURL:        darajaSrv.URL,
		ConsumerKey:    "e2e-key",
		ConsumerSecret: "e2e-secret",
		Shortcode:      "174379",
		Passkey:        "e2e-passkey",
		CallbackURL:    "http://localhost/api/v1/payments/mpesa/callback",
		Timeout:        2 * time.Second,
	}, redisAdapter)
	require.NoError(t, err)

	productRepo := repository.NewProductRepository(pgDB, 10)
	saleRepo := repository.NewSaleRepository(pgDB)
	counterRepo := repository.NewCounterRepository(pgDB)

	saleService := services.NewSaleService(saleRepo, productRepo, counterRepo, pgDB)
	mpesaService := services.NewMpesaService(saleRepo, darajaClient)
	paymentHandler := handlers.NewPaymentHandler(mpesaService)

	return &TestEnvironment{
		DB:             pgDB,
		Redis:          mr,
		RedisAdapter:   redisAdapter,
		Daraja:         darajaSrv,
		ProductRepo:    productRepo,
		SaleRepo:       saleRepo,
		CounterRepo:    counterRepo,
		SaleService:    saleService,
		MpesaService:   mpesaService,
		PaymentHandler: paymentHandler,
	}
}

func (env *TestEnvironment) Cleanup() {
	if env.Daraja != nil {
		env.Daraja.Close()
	}
	if env.Redis != nil {
		env.Redis.Close()
	}
}

func (env *TestEnvironment) seedCatalog(t *testing.T, stock int) {
	ctx := context.Background()

	user := &repository.UserEntity{ID: 1, Name: "Cashier", Email: "cashier@example.com"}
	require.NoError(t, env.DB.Write(ctx).Create(user).Error)

	category := &repository.CategoryEntity{ID: 1, Name: "Drinks"}
	require.NoError(t, env.DB.Write(ctx).Create(category).Error)

	product := &repository.ProductEntity{
		ID:            1,
		Name:          "Soda 500ml",
		SKU:           "DRK-001",
		CategoryID:    1,
		CostPrice:     decimal.NewFromInt(30),
		SellingPrice:  decimal.NewFromInt(50),
		StockQuantity: stock,
		MinStockLevel: 5,
		Unit:          "pcs",
		IsActive:      true,
	}
	require.NoError(t, env.DB.Write(ctx).Create(product).Error)
}

func (env *TestEnvironment) seedProduct(t *testing.T, id int64, name, sku string, cost, sell int64, stock int) {
	product := &repository.ProductEntity{
		ID:            id,
		Name:          name,
		SKU:           sku,
		CategoryID:    1,
		CostPrice:     decimal.NewFromInt(cost),
		SellingPrice:  decimal.NewFromInt(sell),
		StockQuantity: stock,
		MinStockLevel: 5,
		Unit:          "pcs",
		IsActive:      true,
	}
	require.NoError(t, env.DB.Write(context.Background()).Create(product).Error)
}

func (env *TestEnvironment) deliverCallback(t *testing.T, body string) {
	var req fasthttp.Request
	req.Header.SetMethod("POST")
	req.SetRequestURI("/api/v1/payments/mpesa/callback")
	req.SetBody([]byte(body))

	// Init gives the ctx a usable Done channel for the database layer
	var ctx fasthttp.RequestCtx
	ctx.Init(&req, nil, nil)

	env.PaymentHandler.Callback(&ctx)

	assert.Equal(t, 200, ctx.Response.StatusCode())

	var ack map[string]any
	require.NoError(t, json.Unmarshal(ctx.Response.Body(), &ack))
	assert.Equal(t, float64(0), ack["ResultCode"])
}

func TestE2E_CashSaleCompletesImmediately(t *testing.T) {
	env := setupE2EEnvironment(t, "ws_CO_001")
	defer env.Cleanup()
	env.seedCatalog(t, 10)

	ctx := context.Background()

	sale, err := env.SaleService.Create(ctx, model.SaleCreateRequest{
		Items: []model.SaleItemInput{
			{ProductID: 1, Quantity: 2, UnitPrice: decimal.NewFromInt(50)},
		},
		PaymentMethod: model.PaymentMethodCash,
		Discount:      decimal.NewFromInt(20),
		SoldByID:      1,
	})
	require.NoError(t, err)

	assert.Equal(t, "SL000001", sale.SaleNumber)
	assert.Equal(t, model.PaymentStatusCompleted, sale.PaymentStatus)
	assert.True(t, decimal.NewFromInt(80).Equal(sale.Total))

	var product repository.ProductEntity
	require.NoError(t, env.DB.Read(ctx).First(&product, 1).Error)
	assert.Equal(t, 8, product.StockQuantity)
}

func TestE2E_MultiItemSaleWithDiscount(t *testing.T) {
	env := setupE2EEnvironment(t, "ws_CO_003")
	defer env.Cleanup()
	env.seedCatalog(t, 10)
	env.seedProduct(t, 2, "Bread", "BKY-001", 60, 100, 10)

	ctx := context.Background()

	sale, err := env.SaleService.Create(ctx, model.SaleCreateRequest{
		Items: []model.SaleItemInput{
			{ProductID: 2, Quantity: 2, UnitPrice: decimal.NewFromInt(100)},
			{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
		PaymentMethod: model.PaymentMethodCash,
		Discount:      decimal.NewFromInt(20),
		SoldByID:      1,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(250).Equal(sale.Subtotal))
	assert.True(t, decimal.NewFromInt(230).Equal(sale.Total))

	// each line decrements its own product
	var soda, bread repository.ProductEntity
	require.NoError(t, env.DB.Read(ctx).First(&soda, 1).Error)
	require.NoError(t, env.DB.Read(ctx).First(&bread, 2).Error)
	assert.Equal(t, 9, soda.StockQuantity)
	assert.Equal(t, 8, bread.StockQuantity)
}

func TestE2E_DiscountLargerThanSubtotalFloorsTotal(t *testing.T) {
	env := setupE2EEnvironment(t, "ws_CO_004")
	defer env.Cleanup()
	env.seedCatalog(t, 10)

	ctx := context.Background()

	sale, err := env.SaleService.Create(ctx, model.SaleCreateRequest{
		Items: []model.SaleItemInput{
			{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
		PaymentMethod: model.PaymentMethodCash,
		Discount:      decimal.NewFromInt(500),
		SoldByID:      1,
	})
	require.NoError(t, err)

	assert.True(t, decimal.NewFromInt(50).Equal(sale.Subtotal))
	assert.True(t, decimal.Zero.Equal(sale.Total))
}

func TestE2E_MpesaPaymentFlow(t *testing.T) {
	const checkoutRequestID = "ws_CO_191220191020363925"

	env := setupE2EEnvironment(t, checkoutRequestID)
	defer env.Cleanup()
	env.seedCatalog(t, 10)

	ctx := context.Background()

	sale, err := env.SaleService.Create(ctx, model.SaleCreateRequest{
		Items: []model.SaleItemInput{
			{ProductID: 1, Quantity: 3, UnitPrice: decimal.NewFromInt(50)},
		},
		PaymentMethod: model.PaymentMethodMpesa,
		SoldByID:      1,
	})
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusPending, sale.PaymentStatus)

	// stock is reserved up front even though payment is still pending
	var product repository.ProductEntity
	require.NoError(t, env.DB.Read(ctx).First(&product, 1).Error)
	assert.Equal(t, 7, product.StockQuantity)

	result, err := env.MpesaService.Initiate(ctx, sale.ID, "0712345678")
	require.NoError(t, err)
	assert.Equal(t, checkoutRequestID, result.CheckoutRequestID)

	callback := fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-1",
				"CheckoutRequestID": %q,
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 150.00},
						{"Name": "MpesaReceiptNumber", "Value": "NLJ7RT61SV"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`, checkoutRequestID)

	env.deliverCallback(t, callback)

	settled, err := env.SaleRepo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, settled.PaymentStatus)
	require.NotNil(t, settled.MpesaCode)
	assert.Equal(t, "NLJ7RT61SV", *settled.MpesaCode)

	// the provider retries callbacks; a duplicate must not change anything
	env.deliverCallback(t, callback)

	again, err := env.SaleRepo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, again.PaymentStatus)
	assert.Equal(t, "NLJ7RT61SV", *again.MpesaCode)
}

func TestE2E_CancelledMpesaPaymentFails(t *testing.T) {
	const checkoutRequestID = "ws_CO_cancelled_1"

	env := setupE2EEnvironment(t, checkoutRequestID)
	defer env.Cleanup()
	env.seedCatalog(t, 10)

	ctx := context.Background()

	sale, err := env.SaleService.Create(ctx, model.SaleCreateRequest{
		Items: []model.SaleItemInput{
			{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
		PaymentMethod: model.PaymentMethodMpesa,
		SoldByID:      1,
	})
	require.NoError(t, err)

	_, err = env.MpesaService.Initiate(ctx, sale.ID, "254712345678")
	require.NoError(t, err)

	callback := fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-2",
				"CheckoutRequestID": %q,
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`, checkoutRequestID)

	env.deliverCallback(t, callback)

	failed, err := env.SaleRepo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusFailed, failed.PaymentStatus)
	// the correlation id from the push attempt stays, no receipt is recorded
	require.NotNil(t, failed.MpesaCode)
	assert.Equal(t, checkoutRequestID, *failed.MpesaCode)
}

func TestE2E_RepeatedAndContradictoryCallbacks(t *testing.T) {
	const checkoutRequestID = "ws_CO_repeat_1"

	env := setupE2EEnvironment(t, checkoutRequestID)
	defer env.Cleanup()
	env.seedCatalog(t, 10)

	ctx := context.Background()

	sale, err := env.SaleService.Create(ctx, model.SaleCreateRequest{
		Items: []model.SaleItemInput{
			{ProductID: 1, Quantity: 1, UnitPrice: decimal.NewFromInt(50)},
		},
		PaymentMethod: model.PaymentMethodMpesa,
		SoldByID:      1,
	})
	require.NoError(t, err)

	_, err = env.MpesaService.Initiate(ctx, sale.ID, "254712345678")
	require.NoError(t, err)

	success := fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-3",
				"CheckoutRequestID": %q,
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully.",
				"CallbackMetadata": {
					"Item": [
						{"Name": "Amount", "Value": 50.00},
						{"Name": "MpesaReceiptNumber", "Value": "QBC4XY12AB"},
						{"Name": "PhoneNumber", "Value": 254712345678}
					]
				}
			}
		}
	}`, checkoutRequestID)

	env.deliverCallback(t, success)
	env.deliverCallback(t, success)
	env.deliverCallback(t, success)

	// a contradictory failure after settlement must be a no-op too
	env.deliverCallback(t, fmt.Sprintf(`{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "29115-34620561-3",
				"CheckoutRequestID": %q,
				"ResultCode": 1032,
				"ResultDesc": "Request cancelled by user"
			}
		}
	}`, checkoutRequestID))

	settled, err := env.SaleRepo.FindByID(ctx, sale.ID)
	require.NoError(t, err)
	assert.Equal(t, model.PaymentStatusCompleted, settled.PaymentStatus)
	require.NotNil(t, settled.MpesaCode)
	assert.Equal(t, "QBC4XY12AB", *settled.MpesaCode)
}

func TestE2E_CallbackForUnknownSaleIsAcked(t *testing.T) {
	env := setupE2EEnvironment(t, "ws_CO_unknown")
	defer env.Cleanup()

	env.deliverCallback(t, `{
		"Body": {
			"stkCallback": {
				"MerchantRequestID": "nope",
				"CheckoutRequestID": "ws_CO_never_issued",
				"ResultCode": 0,
				"ResultDesc": "The service request is processed successfully."
			}
		}
	}`)
}

func TestE2E_InsufficientStockAbortsSale(t *testing.T) {
	env := setupE2EEnvironment(t, "ws_CO_002")
	defer env.Cleanup()
	env.seedCatalog(t, 2)

	ctx := context.Background()

	sale, err := env.SaleService.Create(ctx, model.SaleCreateRequest{
		Items: []model.SaleItemInput{
			{ProductID: 1, Quantity: 5, UnitPrice: decimal.NewFromInt(50)},
		},
		PaymentMethod: model.PaymentMethodCash,
		SoldByID:      1,
	})
	assert.ErrorIs(t, err, services.ErrInsufficientStock)
	assert.Nil(t, sale)

	// nothing persisted, stock untouched, sale number not burned
	var count int64
	env.DB.Read(ctx).Model(&repository.SaleEntity{}).Count(&count)
	assert.Equal(t, int64(0), count)

	var product repository.ProductEntity
	require.NoError(t, env.DB.Read(ctx).First(&product, 1).Error)
	assert.Equal(t, 2, product.StockQuantity)

	next, err := env.CounterRepo.Next(ctx, repository.SaleNumberCounter)
	require.NoError(t, err)
	assert.Equal(t, int64(1), next)
}
