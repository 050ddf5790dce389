package external

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	stripe "github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"

	"reride/internal/types"
)

// stripeAPIBase is the default Stripe API base URL. Overridable in tests via
// StripeClientConfig.BaseURL.
const stripeAPIBase = "https://api.stripe.com"

// SellerBillingLookup is the minimal seller data access StripeClient needs:
// resolving a seller into its Stripe customer id and recording a newly
// created customer. db.SellerRepo satisfies it.
type SellerBillingLookup interface {
	// GetBillingInfo returns the stripe customer id and contact email for
	// the seller. The customer id is empty when no checkout ever happened.
	GetBillingInfo(ctx context.Context, sellerID string) (customerID string, email string, err error)

	// SetStripeCustomerID records the customer created for a seller.
	SetStripeCustomerID(ctx context.Context, sellerID, customerID string) error
}

// StripeClientConfig holds the settings for creating a StripeClient.
type StripeClientConfig struct {
	SecretKey string
	BaseURL   string // override for testing; defaults to stripeAPIBase
	Logger    *slog.Logger
}

// StripeClient talks to the Stripe REST API through BaseClient so that
// checkout calls inherit the circuit breaker and retry behavior, and so
// tests can point it at an httptest server.
type StripeClient struct {
	base      *BaseClient
	secretKey string
	baseURL   string
	sellers   SellerBillingLookup
	logger    *slog.Logger
}

// NewStripeClient creates a StripeClient with the default retry policy.
func NewStripeClient(
	httpClient *http.Client,
	sellers SellerBillingLookup,
	cfg StripeClientConfig,
) *StripeClient {
	base := NewBaseClient(
		httpClient,
		"stripe",
		RetryPolicy{
			MaxRetries: 2,
			MinWait:    500 * time.Millisecond,
			MaxWait:    5 * time.Second,
		},
		"Reride/1.0",
	)
	return NewStripeClientWithBase(base, sellers, cfg)
}

// NewStripeClientWithBase creates a StripeClient with a caller-provided
// BaseClient. Tests use it to control retry and sleep behavior.
func NewStripeClientWithBase(
	base *BaseClient,
	sellers SellerBillingLookup,
	cfg StripeClientConfig,
) *StripeClient {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = stripeAPIBase
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &StripeClient{
		base:      base,
		secretKey: cfg.SecretKey,
		baseURL:   strings.TrimSuffix(baseURL, "/"),
		sellers:   sellers,
		logger:    logger,
	}
}

// EnsureCustomer returns the Stripe customer id for the seller, creating the
// customer on first use. Search-first by seller_id metadata so a retried
// checkout never creates a duplicate customer.
func (s *StripeClient) EnsureCustomer(ctx context.Context, sellerID, email string) (string, error) {
	customerID, _, err := s.sellers.GetBillingInfo(ctx, sellerID)
	if err != nil {
		return "", err
	}
	if customerID != "" {
		return customerID, nil
	}

	searchParams := url.Values{}
	searchParams.Set("query", fmt.Sprintf("metadata['seller_id']:'%s'", sellerID))

	searchResp, err := s.doGet(ctx, "/v1/customers/search", searchParams)
	if err != nil {
		return "", s.wrapStripeError("EnsureCustomer.search", err)
	}
	defer searchResp.Body.Close()

	if searchResp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(searchResp, "EnsureCustomer.search")
	}

	var searchResult stripeCustomerList
	if err := json.NewDecoder(searchResp.Body).Decode(&searchResult); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer search response",
			err,
		)
	}

	if len(searchResult.Data) > 0 {
		customerID := searchResult.Data[0].ID
		s.recordCustomerID(ctx, sellerID, customerID)
		return customerID, nil
	}

	createParams := url.Values{}
	createParams.Set("email", email)
	createParams.Set("metadata[seller_id]", sellerID)

	createResp, err := s.doPost(ctx, "/v1/customers", createParams)
	if err != nil {
		return "", s.wrapStripeError("EnsureCustomer.create", err)
	}
	defer createResp.Body.Close()

	if createResp.StatusCode != http.StatusOK {
		return "", s.handleErrorResponse(createResp, "EnsureCustomer.create")
	}

	var customer stripeCustomer
	if err := json.NewDecoder(createResp.Body).Decode(&customer); err != nil {
		return "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe customer creation response",
			err,
		)
	}

	s.recordCustomerID(ctx, sellerID, customer.ID)
	return customer.ID, nil
}

func (s *StripeClient) recordCustomerID(ctx context.Context, sellerID, customerID string) {
	if err := s.sellers.SetStripeCustomerID(ctx, sellerID, customerID); err != nil {
		s.logger.WarnContext(ctx, "failed to record stripe customer id",
			"seller_id", sellerID,
			"customer_id", customerID,
			"error", err,
		)
	}
}

// CreateCheckoutSession creates a Stripe Checkout session for one billing
// cycle of the given plan. Custom plans carry arbitrary prices, so the line
// item uses inline price_data built from the plan definition rather than a
// pre-registered Stripe price. The seller and plan ids travel in the session
// metadata for webhook correlation.
func (s *StripeClient) CreateCheckoutSession(
	ctx context.Context,
	sellerID string,
	email string,
	plan types.PlanDefinition,
	successURL string,
	cancelURL string,
) (checkoutURL string, sessionID string, err error) {
	customerID, err := s.EnsureCustomer(ctx, sellerID, email)
	if err != nil {
		return "", "", err
	}

	params := url.Values{}
	params.Set("customer", customerID)
	params.Set("mode", "payment")
	params.Set("client_reference_id", sellerID)
	params.Set("success_url", successURL)
	params.Set("cancel_url", cancelURL)
	params.Set("metadata[seller_id]", sellerID)
	params.Set("metadata[plan_id]", string(plan.ID))
	params.Set("line_items[0][price_data][currency]", "usd")
	params.Set("line_items[0][price_data][unit_amount]", strconv.FormatInt(plan.Price, 10))
	params.Set("line_items[0][price_data][product_data][name]", plan.Name)
	params.Set("line_items[0][quantity]", "1")

	resp, err := s.doPost(ctx, "/v1/checkout/sessions", params)
	if err != nil {
		return "", "", s.wrapStripeError("CreateCheckoutSession", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", "", s.handleErrorResponse(resp, "CreateCheckoutSession")
	}

	var session stripeCheckoutSession
	if err := json.NewDecoder(resp.Body).Decode(&session); err != nil {
		return "", "", types.NewAppError(
			types.ErrCodeInternalUnexpected,
			"failed to decode Stripe checkout session response",
			err,
		)
	}

	return session.URL, session.ID, nil
}

// --- HTTP helpers ---

func (s *StripeClient) doGet(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	reqURL := s.baseURL + path
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, err
	}
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

func (s *StripeClient) doPost(ctx context.Context, path string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	s.setAuthHeaders(req)

	return s.base.Do(req)
}

func (s *StripeClient) setAuthHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.secretKey)
	req.Header.Set("Stripe-Version", stripe.APIVersion)
}

// --- Error handling ---

type stripeErrorResponse struct {
	Error stripeErrorBody `json:"error"`
}

type stripeErrorBody struct {
	Type    string `json:"type"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Param   string `json:"param"`
}

// handleErrorResponse reads a Stripe error body and maps it to an AppError.
func (s *StripeClient) handleErrorResponse(resp *http.Response, operation string) error {
	body, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d and response body was unreadable", operation, resp.StatusCode),
			readErr,
		)
	}

	var stripeErr stripeErrorResponse
	if jsonErr := json.Unmarshal(body, &stripeErr); jsonErr != nil {
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe returned status %d with non-JSON body", operation, resp.StatusCode),
			jsonErr,
		)
	}

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return types.NewAppError(
			types.ErrCodeUpstreamRateLimited,
			fmt.Sprintf("%s: Stripe rate limit exceeded", operation),
			nil,
		)
	case resp.StatusCode >= 500:
		return types.NewAppError(
			types.ErrCodeUpstreamUnavailable,
			fmt.Sprintf("%s: Stripe server error: %s", operation, stripeErr.Error.Message),
			nil,
		)
	default:
		return types.NewAppError(
			types.ErrCodeUpstreamStripe,
			fmt.Sprintf("%s: Stripe error (%d): %s", operation, resp.StatusCode, stripeErr.Error.Message),
			nil,
		)
	}
}

// wrapStripeError passes through AppErrors from BaseClient (they already
// carry the right upstream code) and wraps anything else.
func (s *StripeClient) wrapStripeError(operation string, err error) error {
	if _, ok := err.(*types.AppError); ok {
		return err
	}
	return types.NewAppError(
		types.ErrCodeUpstreamStripe,
		fmt.Sprintf("%s: Stripe request failed: %v", operation, err),
		err,
	)
}

// --- Stripe response types ---

type stripeCustomer struct {
	ID       string            `json:"id"`
	Email    string            `json:"email"`
	Metadata map[string]string `json:"metadata"`
}

type stripeCustomerList struct {
	Data    []stripeCustomer `json:"data"`
	HasMore bool             `json:"has_more"`
}

type stripeCheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// --- Webhook verification ---

// WebhookVerifier checks webhook payload signatures before any payload field
// is trusted.
type WebhookVerifier interface {
	Verify(payload []byte, signatureHeader string, secret string) error
}

// StripeVerifier implements WebhookVerifier using stripe-go's HMAC-SHA256
// signature check with its default timestamp tolerance.
type StripeVerifier struct{}

// Verify validates a Stripe webhook payload against the Stripe-Signature
// header and the endpoint signing secret.
func (v *StripeVerifier) Verify(payload []byte, signatureHeader string, secret string) error {
	return webhook.ValidatePayload(payload, signatureHeader, secret)
}
