package gateway

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/valyala/fasthttp"

	"github.com/stockflow/stockflow/pkg/logger"
	"github.com/stockflow/stockflow/pkg/redis"
)

var (
	ErrAuthFailed      = errors.New("daraja authentication failed")
	ErrPushRejected    = errors.New("daraja rejected the stk push")
	ErrProviderTimeout = errors.New("daraja request timed out")
)

const (
	oauthPath    = "/oauth/v1/generate?grant_type=client_credentials"
	stkPushPath  = "/mpesa/stkpush/v1/processrequest"
	stkQueryPath = "/mpesa/stkpushquery/v1/query"

	transactionType = "CustomerPayBillOnline"

	tokenCacheKey = "daraja:access_token"
	// tokens are valid for ~an hour; renew with margin
	tokenCacheTTL = 50 * time.Minute
)

type Config struct {
	Environment    string
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	Shortcode      string
	Passkey        string
	CallbackURL    string
	Timeout        time.Duration
	MaxConns       int
}

// STKPushRequest asks the provider to pop a payment prompt on the customer's
// phone. Amount is rounded to whole shillings; Daraja only accepts integers.
type STKPushRequest struct {
	PhoneNumber      string
	Amount           decimal.Decimal
	AccountReference string
	TransactionDesc  string
}

type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
}

type STKQueryResponse struct {
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResultCode          string `json:"ResultCode"`
	ResultDesc          string `json:"ResultDesc"`
}

type oauthResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   string `json:"expires_in"`
}

// Client talks to the Daraja sandbox or production API. Access tokens are
// cached in redis when an adapter is given, falling back to an in-process
// cache so the client also works without one.
type Client struct {
	config *Config
	client *fasthttp.Client
	cache  redis.RedisAdapter

	mu          sync.Mutex
	memToken    string
	memTokenExp time.Time
}

func NewClient(config *Config, cache redis.RedisAdapter) (*Client, error) {
	if config == nil {
		return nil, errors.New("config is required")
	}
	if config.BaseURL == "" {
		return nil, errors.New("base url is required")
	}
	if config.ConsumerKey == "" || config.ConsumerSecret == "" {
		return nil, errors.New("consumer credentials are required")
	}

	timeout := config.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	config.Timeout = timeout

	maxConns := config.MaxConns
	if maxConns <= 0 {
		maxConns = 64
	}

	httpClient := &fasthttp.Client{
		MaxConnsPerHost:     maxConns,
		ReadTimeout:         timeout,
		WriteTimeout:        timeout,
		MaxIdleConnDuration: 60 * time.Second,
	}

	logger.Info("Daraja client initialized", "environment", config.Environment, "shortcode", config.Shortcode, "timeout", timeout)

	return &Client{
		config: config,
		client: httpClient,
		cache:  cache,
	}, nil
}

// Timestamp renders t the way Daraja expects, YYYYMMDDHHMMSS.
func Timestamp(t time.Time) string {
	return t.Format("20060102150405")
}

// Password derives the STK push password: base64(shortcode + passkey + timestamp).
func Password(shortcode, passkey, timestamp string) string {
	return base64.StdEncoding.EncodeToString([]byte(shortcode + passkey + timestamp))
}

// Authenticate returns a valid OAuth access token, from cache when possible.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	if token, ok := c.cachedToken(); ok {
		return token, nil
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + oauthPath)
	req.Header.SetMethod(fasthttp.MethodGet)
	basic := base64.StdEncoding.EncodeToString([]byte(c.config.ConsumerKey + ":" + c.config.ConsumerSecret))
	req.Header.Set("Authorization", "Basic "+basic)

	if err := c.do(ctx, req, resp); err != nil {
		return "", err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		logger.Warn("Daraja auth rejected", "status", resp.StatusCode())
		return "", fmt.Errorf("%w: status %d", ErrAuthFailed, resp.StatusCode())
	}

	var oauth oauthResponse
	if err := json.Unmarshal(resp.Body(), &oauth); err != nil {
		return "", fmt.Errorf("failed to unmarshal oauth response: %w", err)
	}
	if oauth.AccessToken == "" {
		return "", ErrAuthFailed
	}

	c.storeToken(oauth.AccessToken)

	return oauth.AccessToken, nil
}

// STKPush initiates a payment prompt and returns the provider correlation IDs.
func (c *Client) STKPush(ctx context.Context, push *STKPushRequest) (*STKPushResponse, error) {
	phone, err := NormalizePhone(push.PhoneNumber)
	if err != nil {
		return nil, err
	}

	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(time.Now())
	payload := map[string]interface{}{
		"BusinessShortCode": c.config.Shortcode,
		"Password":          Password(c.config.Shortcode, c.config.Passkey, timestamp),
		"Timestamp":         timestamp,
		"TransactionType":   transactionType,
		"Amount":            push.Amount.Round(0).IntPart(),
		"PartyA":            phone,
		"PartyB":            c.config.Shortcode,
		"PhoneNumber":       phone,
		"CallBackURL":       c.config.CallbackURL,
		"AccountReference":  push.AccountReference,
		"TransactionDesc":   push.TransactionDesc,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk push request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + stkPushPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	start := time.Now()
	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}
	latency := time.Since(start).Milliseconds()

	if resp.StatusCode() != fasthttp.StatusOK {
		logger.Warn("STK push rejected", "status", resp.StatusCode(), "body", string(resp.Body()))
		return nil, fmt.Errorf("%w: status %d", ErrPushRejected, resp.StatusCode())
	}

	var pushResp STKPushResponse
	if err := json.Unmarshal(resp.Body(), &pushResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stk push response: %w", err)
	}
	if pushResp.ResponseCode != "0" {
		logger.Warn("STK push declined", "response_code", pushResp.ResponseCode, "description", pushResp.ResponseDescription)
		return nil, fmt.Errorf("%w: %s", ErrPushRejected, pushResp.ResponseDescription)
	}

	logger.Info("STK push accepted", "checkout_request_id", pushResp.CheckoutRequestID, "phone", phone, "latency_ms", latency)

	return &pushResp, nil
}

// QueryStatus asks Daraja for the outcome of a previously pushed request.
// Used for reconciliation when a callback never arrives.
func (c *Client) QueryStatus(ctx context.Context, checkoutRequestID string) (*STKQueryResponse, error) {
	token, err := c.Authenticate(ctx)
	if err != nil {
		return nil, err
	}

	timestamp := Timestamp(time.Now())
	payload := map[string]interface{}{
		"BusinessShortCode": c.config.Shortcode,
		"Password":          Password(c.config.Shortcode, c.config.Passkey, timestamp),
		"Timestamp":         timestamp,
		"CheckoutRequestID": checkoutRequestID,
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal stk query request: %w", err)
	}

	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(c.config.BaseURL + stkQueryPath)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.Header.SetContentType("application/json")
	req.Header.Set("Authorization", "Bearer "+token)
	req.SetBody(body)

	if err := c.do(ctx, req, resp); err != nil {
		return nil, err
	}

	if resp.StatusCode() != fasthttp.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode(), resp.Body())
	}

	var queryResp STKQueryResponse
	if err := json.Unmarshal(resp.Body(), &queryResp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal stk query response: %w", err)
	}

	return &queryResp, nil
}

func (c *Client) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.config.Timeout)
	}

	if err := c.client.DoDeadline(req, resp, deadline); err != nil {
		if errors.Is(err, fasthttp.ErrTimeout) {
			return ErrProviderTimeout
		}
		return fmt.Errorf("request failed: %w", err)
	}
	return nil
}

func (c *Client) cachedToken() (string, bool) {
	if c.cache != nil {
		token, err := c.cache.Get(tokenCacheKey)
		if err == nil && len(token) > 0 {
			return string(token), true
		}
		if err != nil && err != redis.NilError {
			logger.Warn("Token cache read failed", "error", err)
		}
		return "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.memToken != "" && time.Now().Before(c.memTokenExp) {
		return c.memToken, true
	}
	return "", false
}

func (c *Client) storeToken(token string) {
	if c.cache != nil {
		if err := c.cache.Set(tokenCacheKey, []byte(token), tokenCacheTTL); err != nil {
			logger.Warn("Token cache write failed", "error", err)
		}
		return
	}

	c.mu.Lock()
	c.memToken = token
	c.memTokenExp = time.Now().Add(tokenCacheTTL)
	c.mu.Unlock()
}
