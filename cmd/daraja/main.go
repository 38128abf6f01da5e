package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math/rand"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// PaymentResult is the terminal outcome of a simulated STK push.
type PaymentResult string

const (
	ResultPaid      PaymentResult = "PAID"
	ResultCancelled PaymentResult = "CANCELLED"
	ResultPending   PaymentResult = "PENDING"
)

const (
	resultCodeSuccess   = 0
	resultCodeCancelled = 1032
)

// STKPushRequest mirrors the Daraja processrequest payload.
type STKPushRequest struct {
	BusinessShortCode string      `json:"BusinessShortCode" binding:"required"`
	Password          string      `json:"Password" binding:"required"`
	Timestamp         string      `json:"Timestamp" binding:"required"`
	TransactionType   string      `json:"TransactionType"`
	Amount            json.Number `json:"Amount" binding:"required"`
	PartyA            string      `json:"PartyA"`
	PartyB            string      `json:"PartyB"`
	PhoneNumber       string      `json:"PhoneNumber" binding:"required"`
	CallBackURL       string      `json:"CallBackURL" binding:"required"`
	AccountReference  string      `json:"AccountReference"`
	TransactionDesc   string      `json:"TransactionDesc"`
}

type STKQueryRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	CheckoutRequestID string `json:"CheckoutRequestID" binding:"required"`
}

type transaction struct {
	MerchantRequestID string
	CheckoutRequestID string
	PhoneNumber       string
	Amount            json.Number
	CallBackURL       string
	Result            PaymentResult
	Receipt           string
	CompletedAt       time.Time
}

// MockDaraja simulates the Safaricom sandbox: it hands out tokens, accepts
// STK pushes and posts the asynchronous callback after a random delay.
type MockDaraja struct {
	mu           sync.Mutex
	transactions map[string]*transaction

	payRate  float64
	minDelay time.Duration
	maxDelay time.Duration
	rng      *rand.Rand

	consumerKey    string
	consumerSecret string
	tokens         map[string]time.Time
}

func NewMockDaraja(payRate float64, minDelay, maxDelay time.Duration, key, secret string) *MockDaraja {
	return &MockDaraja{
		transactions:   make(map[string]*transaction),
		payRate:        payRate,
		minDelay:       minDelay,
		maxDelay:       maxDelay,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		consumerKey:    key,
		consumerSecret: secret,
		tokens:         make(map[string]time.Time),
	}
}

func (m *MockDaraja) issueToken() string {
	token := strings.ReplaceAll(uuid.New().String(), "-", "")
	m.mu.Lock()
	m.tokens[token] = time.Now().Add(time.Hour)
	m.mu.Unlock()
	return token
}

func (m *MockDaraja) validToken(token string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	exp, ok := m.tokens[token]
	return ok && time.Now().Before(exp)
}

func (m *MockDaraja) accept(req *STKPushRequest) *transaction {
	tx := &transaction{
		MerchantRequestID: uuid.New().String(),
		CheckoutRequestID: "ws_CO_" + time.Now().Format("02012006150405") + uuid.New().String()[:6],
		PhoneNumber:       req.PhoneNumber,
		Amount:            req.Amount,
		CallBackURL:       req.CallBackURL,
		Result:            ResultPending,
	}

	m.mu.Lock()
	m.transactions[tx.CheckoutRequestID] = tx
	m.mu.Unlock()

	go m.settle(tx)
	return tx
}

// settle waits for the "user" and posts the callback to the registered URL.
// Phone numbers ending in 00 always cancel and ones ending in 99 always pay,
// so integration setups can force either outcome.
func (m *MockDaraja) settle(tx *transaction) {
	time.Sleep(m.randomDelay())

	var paid bool
	switch {
	case strings.HasSuffix(tx.PhoneNumber, "00"):
		paid = false
	case strings.HasSuffix(tx.PhoneNumber, "99"):
		paid = true
	default:
		paid = m.rng.Float64() < m.payRate
	}

	m.mu.Lock()
	if paid {
		tx.Result = ResultPaid
		tx.Receipt = randomReceipt(m.rng)
	} else {
		tx.Result = ResultCancelled
	}
	tx.CompletedAt = time.Now()
	m.mu.Unlock()

	callback := m.buildCallback(tx)
	body, _ := json.Marshal(callback)

	resp, err := http.Post(tx.CallBackURL, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Error().
			Str("checkout_request_id", tx.CheckoutRequestID).
			Str("url", tx.CallBackURL).
			Err(err).
			Msg("Failed to deliver callback")
		return
	}
	defer resp.Body.Close()

	log.Info().
		Str("checkout_request_id", tx.CheckoutRequestID).
		Str("result", string(tx.Result)).
		Int("status", resp.StatusCode).
		Msg("Callback delivered")
}

func (m *MockDaraja) buildCallback(tx *transaction) map[string]any {
	stk := map[string]any{
		"MerchantRequestID": tx.MerchantRequestID,
		"CheckoutRequestID": tx.CheckoutRequestID,
	}

	if tx.Result == ResultPaid {
		stk["ResultCode"] = resultCodeSuccess
		stk["ResultDesc"] = "The service request is processed successfully."
		stk["CallbackMetadata"] = map[string]any{
			"Item": []map[string]any{
				{"Name": "Amount", "Value": tx.Amount},
				{"Name": "MpesaReceiptNumber", "Value": tx.Receipt},
				{"Name": "TransactionDate", "Value": tx.CompletedAt.Format("20060102150405")},
				{"Name": "PhoneNumber", "Value": tx.PhoneNumber},
			},
		}
	} else {
		stk["ResultCode"] = resultCodeCancelled
		stk["ResultDesc"] = "Request cancelled by user"
	}

	return map[string]any{
		"Body": map[string]any{
			"stkCallback": stk,
		},
	}
}

func (m *MockDaraja) lookup(checkoutRequestID string) (*transaction, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	tx, ok := m.transactions[checkoutRequestID]
	return tx, ok
}

func (m *MockDaraja) randomDelay() time.Duration {
	delta := m.maxDelay - m.minDelay
	if delta <= 0 {
		return m.minDelay
	}
	return m.minDelay + time.Duration(m.rng.Int63n(int64(delta)))
}

func randomReceipt(rng *rand.Rand) string {
	const alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ0123456789"
	b := make([]byte, 10)
	for i := range b {
		b[i] = alphabet[rng.Intn(len(alphabet))]
	}
	return string(b)
}

// Handler exposes the mock over the same paths as the real sandbox.
type Handler struct {
	daraja *MockDaraja
}

func NewHandler(daraja *MockDaraja) *Handler {
	return &Handler{daraja: daraja}
}

func (h *Handler) GenerateToken(c *gin.Context) {
	key, secret, ok := c.Request.BasicAuth()
	if !ok || key != h.daraja.consumerKey || secret != h.daraja.consumerSecret {
		c.JSON(http.StatusUnauthorized, gin.H{
			"errorCode":    "401.002.01",
			"errorMessage": "Invalid Authentication passed",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"access_token": h.daraja.issueToken(),
		"expires_in":   "3599",
	})
}

func (h *Handler) ProcessRequest(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	var req STKPushRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid " + err.Error(),
		})
		return
	}

	tx := h.daraja.accept(&req)

	log.Info().
		Str("checkout_request_id", tx.CheckoutRequestID).
		Str("phone", req.PhoneNumber).
		Str("amount", req.Amount.String()).
		Msg("STK push accepted")

	c.JSON(http.StatusOK, gin.H{
		"MerchantRequestID":   tx.MerchantRequestID,
		"CheckoutRequestID":   tx.CheckoutRequestID,
		"ResponseCode":        "0",
		"ResponseDescription": "Success. Request accepted for processing",
		"CustomerMessage":     "Success. Request accepted for processing",
	})
}

func (h *Handler) QueryRequest(c *gin.Context) {
	if !h.authorized(c) {
		return
	}

	var req STKQueryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"errorCode":    "400.002.02",
			"errorMessage": "Bad Request - Invalid " + err.Error(),
		})
		return
	}

	tx, ok := h.daraja.lookup(req.CheckoutRequestID)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{
			"errorCode":    "500.001.1001",
			"errorMessage": "The transaction is being processed",
		})
		return
	}

	response := gin.H{
		"ResponseCode":        "0",
		"ResponseDescription": "The service request has been accepted successfully",
		"MerchantRequestID":   tx.MerchantRequestID,
		"CheckoutRequestID":   tx.CheckoutRequestID,
	}
	switch tx.Result {
	case ResultPaid:
		response["ResultCode"] = "0"
		response["ResultDesc"] = "The service request is processed successfully."
	case ResultCancelled:
		response["ResultCode"] = "1032"
		response["ResultDesc"] = "Request cancelled by user"
	default:
		// still waiting on the user; the sandbox answers 500 for these
		c.JSON(http.StatusInternalServerError, gin.H{
			"errorCode":    "500.001.1001",
			"errorMessage": "The transaction is being processed",
		})
		return
	}

	c.JSON(http.StatusOK, response)
}

func (h *Handler) authorized(c *gin.Context) bool {
	auth := c.GetHeader("Authorization")
	token := strings.TrimPrefix(auth, "Bearer ")
	if token == auth || !h.daraja.validToken(token) {
		c.JSON(http.StatusUnauthorized, gin.H{
			"errorCode":    "404.001.03",
			"errorMessage": "Invalid Access Token",
		})
		return false
	}
	return true
}

// SetupRouter configures all routes
func SetupRouter(handler *Handler) *gin.Engine {
	router := gin.Default()

	router.Use(func(c *gin.Context) {
		start := time.Now()
		c.Next()
		duration := time.Since(start)

		log.Info().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", c.Writer.Status()).
			Dur("duration", duration).
			Msg("Request processed")
	})

	router.GET("/oauth/v1/generate", handler.GenerateToken)
	router.POST("/mpesa/stkpush/v1/processrequest", handler.ProcessRequest)
	router.POST("/mpesa/stkpushquery/v1/query", handler.QueryRequest)

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "healthy", "timestamp": time.Now()})
	})

	return router
}

func main() {
	// Setup logging
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	port := getEnv("PORT", "8082")
	payRate := getEnvFloat("PAY_RATE", 0.9)
	minDelay := getEnvDuration("MIN_DELAY", 2*time.Second)
	maxDelay := getEnvDuration("MAX_DELAY", 10*time.Second)
	consumerKey := getEnv("CONSUMER_KEY", "sandbox-key")
	consumerSecret := getEnv("CONSUMER_SECRET", "sandbox-secret")

	log.Info().
		Str("port", port).
		Float64("pay_rate", payRate).
		Dur("min_delay", minDelay).
		Dur("max_delay", maxDelay).
		Msg("Starting Mock Daraja Sandbox")

	daraja := NewMockDaraja(payRate, minDelay, maxDelay, consumerKey, consumerSecret)
	handler := NewHandler(daraja)
	router := SetupRouter(handler)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Msg("Server started")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		var f float64
		if _, err := fmt.Sscanf(value, "%f", &f); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
