package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/KabirBatra18/valoquick-sub001/internal/billing"
	"github.com/KabirBatra18/valoquick-sub001/internal/types"
)

// razorpayAPIBase is the default Razorpay API base URL.
// Overridable in tests via RazorpayClientConfig.BaseURL.
const razorpayAPIBase = "https://api.razorpay.com"

// RazorpayClientConfig holds the configuration for creating a RazorpayClient.
type RazorpayClientConfig struct {
	KeyID     string
	KeySecret types.SecretString
	BaseURL   string
	Logger    *slog.Logger
}

// RazorpayClient implements billing.ProviderGateway by making direct HTTP
// calls to the Razorpay REST API through BaseClient. Routing through
// BaseClient gives every call the platform's resilience treatment and makes
// testing with httptest straightforward.
type RazorpayClient struct {
	base      *BaseClient
	keyID     string
	keySecret types.SecretString
	baseURL   string
	logger    *slog.Logger
}

// NewRazorpayClient creates a RazorpayClient. The httpClient timeout should
// match the configured provider timeout.
func NewRazorpayClient(httpClient *http.Client, cfg RazorpayClientConfig) *RazorpayClient {
	base := NewBaseClient(
		httpClient,
		"razorpay",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"ValoQuick/1.0",
	)
	return NewRazorpayClientWithBase(base, cfg)
}

// NewRazorpayClientWithBase creates a RazorpayClient with a pre-configured
// BaseClient. Useful in tests that control the breaker and retry policy.
func NewRazorpayClientWithBase(base *BaseClient, cfg RazorpayClientConfig) *RazorpayClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = razorpayAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &RazorpayClient{
		base:      base,
		keyID:     cfg.KeyID,
		keySecret: cfg.KeySecret,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		logger:    logger,
	}
}

// ---------------------------------------------------------------------------
// ProviderGateway implementation
// ---------------------------------------------------------------------------

type razorpaySubscription struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	ShortURL string `json:"short_url"`
}

type razorpayOrder struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// CreateSubscription creates a recurring subscription on the provider's
// plan. Notes carry the app tag and firm linkage for webhook correlation.
func (c *RazorpayClient) CreateSubscription(ctx context.Context, req billing.SubscriptionRequest) (*billing.ProviderSubscription, error) {
	body := map[string]any{
		"plan_id":         req.PlanID,
		"quantity":        req.Quantity,
		"total_count":     120,
		"customer_notify": 1,
		"notes":           req.Notes,
	}

	resp, err := c.doPost(ctx, "/v1/subscriptions", body)
	if err != nil {
		return nil, c.wrapError("CreateSubscription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "CreateSubscription")
	}

	var sub razorpaySubscription
	if err := json.NewDecoder(resp.Body).Decode(&sub); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode subscription creation response",
			err,
		)
	}

	return &billing.ProviderSubscription{
		ID:       sub.ID,
		Status:   sub.Status,
		ShortURL: sub.ShortURL,
	}, nil
}

// CreateOrder creates a one-time order for the given amount in paise.
func (c *RazorpayClient) CreateOrder(ctx context.Context, amountPaise int64, receipt string, notes map[string]string) (*billing.ProviderOrder, error) {
	body := map[string]any{
		"amount":   amountPaise,
		"currency": "INR",
		"receipt":  receipt,
		"notes":    notes,
	}

	resp, err := c.doPost(ctx, "/v1/orders", body)
	if err != nil {
		return nil, c.wrapError("CreateOrder", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, c.handleErrorResponse(resp, "CreateOrder")
	}

	var order razorpayOrder
	if err := json.NewDecoder(resp.Body).Decode(&order); err != nil {
		return nil, types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode order creation response",
			err,
		)
	}

	return &billing.ProviderOrder{
		ID:       order.ID,
		Amount:   order.Amount,
		Currency: order.Currency,
	}, nil
}

// UpdateSubscriptionQuantity changes the quantity on an existing
// subscription. The provider applies the change from the next cycle unless
// told otherwise; pro-rated collection for the current cycle is handled by
// a separate one-time order on our side.
func (c *RazorpayClient) UpdateSubscriptionQuantity(ctx context.Context, providerSubID string, quantity int) error {
	body := map[string]any{
		"quantity":          quantity,
		"schedule_change_at": "now",
	}

	resp, err := c.doPatch(ctx, "/v1/subscriptions/"+providerSubID, body)
	if err != nil {
		return c.wrapError("UpdateSubscriptionQuantity", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp, "UpdateSubscriptionQuantity")
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// CancelSubscription cancels a subscription at the provider immediately.
func (c *RazorpayClient) CancelSubscription(ctx context.Context, providerSubID string) error {
	body := map[string]any{
		"cancel_at_cycle_end": 0,
	}

	resp, err := c.doPost(ctx, "/v1/subscriptions/"+providerSubID+"/cancel", body)
	if err != nil {
		return c.wrapError("CancelSubscription", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return c.handleErrorResponse(resp, "CancelSubscription")
	}
	io.Copy(io.Discard, resp.Body)
	return nil
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

func (c *RazorpayClient) doPost(ctx context.Context, path string, body map[string]any) (*http.Response, error) {
	return c.doJSON(ctx, http.MethodPost, path, body)
}

func (c *RazorpayClient) doPatch(ctx context.Context, path string, body map[string]any) (*http.Response, error) {
	return c.doJSON(ctx, http.MethodPatch, path, body)
}

func (c *RazorpayClient) doJSON(ctx context.Context, method, path string, body map[string]any) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.keyID, c.keySecret.Unmask())

	return c.base.Do(req)
}

// ---------------------------------------------------------------------------
// Error handling
// ---------------------------------------------------------------------------

// razorpayErrorResponse is the JSON error body returned by the provider.
type razorpayErrorResponse struct {
	Error razorpayErrorBody `json:"error"`
}

type razorpayErrorBody struct {
	Code        string `json:"code"`
	Description string `json:"description"`
	Field       string `json:"field"`
}

// handleErrorResponse reads a provider error response and maps it to a
// types.AppError.
func (c *RazorpayClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var provErr razorpayErrorResponse
	if jsonErr := json.Unmarshal(body, &provErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: provider rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider server error: %s", operation, provErr.Error.Description),
			nil,
		)
	case resp.StatusCode == http.StatusNotFound:
		return types.NewAppError(
			types.ErrCodeNotFoundSubscription,
			fmt.Sprintf("%s: provider resource not found: %s", operation, provErr.Error.Description),
			nil,
		)
	default:
		return types.NewAppErrorWithDetails(
			types.ErrCodeUpstreamProvider,
			fmt.Sprintf("%s: provider rejected the request: %s", operation, provErr.Error.Description),
			nil,
			map[string]any{
				"provider_code": provErr.Error.Code,
				"field":         provErr.Error.Field,
			},
		)
	}
}

// wrapError wraps a BaseClient transport error with operation context.
func (c *RazorpayClient) wrapError(operation string, err error) error {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return types.NewAppError(
			appErr.Code,
			fmt.Sprintf("%s: %s", operation, appErr.Message),
			appErr.Err,
		)
	}
	return types.NewAppError(
		types.ErrCodeUpstreamProvider,
		fmt.Sprintf("%s: provider request failed", operation),
		err,
	)
}
