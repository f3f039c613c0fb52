package billing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/JanBecker/ClipFox/internal/pkg/env"
)

const defaultStripeAPIBaseURL = "https://api.stripe.com/v1"

// ErrMisconfiguredIntegration signals that the outbound provider client is
// missing required configuration (secret key, price refs).
var ErrMisconfiguredIntegration = errors.New("billing integration is not configured")

// StripeClient talks to the billing provider's HTTP API for the outbound
// flows: starting checkout sessions and opening the self-service portal.
// Webhook ingestion does not go through it.
type StripeClient struct {
	SecretKey  string
	APIBaseURL string

	SuccessURL string
	CancelURL  string
	ReturnURL  string

	HTTPClient *http.Client
}

// CheckoutSession is the provider's checkout session, reduced to the fields
// the controllers redirect with.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PortalSession is the provider's billing portal session.
type PortalSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// NewStripeClientFromEnv builds the client from the environment. Redirect
// targets default to sensible paths under PUBLIC_DOMAIN.
func NewStripeClientFromEnv() *StripeClient {
	base := strings.TrimRight(env.GetEnv("PUBLIC_DOMAIN", ""), "/")
	successURL := strings.TrimSpace(env.GetEnv("STRIPE_SUCCESS_URL", ""))
	if successURL == "" && base != "" {
		successURL = base + "/user/billing/success"
	}
	cancelURL := strings.TrimSpace(env.GetEnv("STRIPE_CANCEL_URL", ""))
	if cancelURL == "" && base != "" {
		cancelURL = base + "/user/billing"
	}
	returnURL := strings.TrimSpace(env.GetEnv("STRIPE_PORTAL_RETURN_URL", ""))
	if returnURL == "" && base != "" {
		returnURL = base + "/user/billing"
	}

	return &StripeClient{
		SecretKey:  strings.TrimSpace(env.GetSecret("STRIPE_SECRET_KEY")),
		APIBaseURL: strings.TrimSpace(env.GetEnv("STRIPE_API_BASE_URL", defaultStripeAPIBaseURL)),
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		ReturnURL:  returnURL,
		HTTPClient: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// CreateCheckoutSession starts a subscription checkout for the given price.
// The user id travels as client_reference_id so the completion webhook can
// locate the account even before a customer id exists.
func (c *StripeClient) CreateCheckoutSession(ctx context.Context, userID uint, priceRef, customerID string) (*CheckoutSession, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY is missing", ErrMisconfiguredIntegration)
	}
	if strings.TrimSpace(priceRef) == "" {
		return nil, errors.New("price ref is required")
	}
	if userID == 0 {
		return nil, errors.New("user id is required")
	}

	form := url.Values{}
	form.Set("mode", "subscription")
	form.Set("client_reference_id", strconv.FormatUint(uint64(userID), 10))
	form.Set("line_items[0][price]", strings.TrimSpace(priceRef))
	form.Set("line_items[0][quantity]", "1")
	form.Set("success_url", c.SuccessURL)
	form.Set("cancel_url", c.CancelURL)
	if cid := strings.TrimSpace(customerID); cid != "" {
		form.Set("customer", cid)
	}

	var out CheckoutSession
	if err := c.postForm(ctx, "/checkout/sessions", form, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.URL) == "" {
		return nil, errors.New("checkout session response missing url")
	}
	return &out, nil
}

// CreatePortalSession opens the provider-hosted self-service portal for an
// existing billing customer.
func (c *StripeClient) CreatePortalSession(ctx context.Context, customerID string) (*PortalSession, error) {
	if strings.TrimSpace(c.SecretKey) == "" {
		return nil, fmt.Errorf("%w: STRIPE_SECRET_KEY is missing", ErrMisconfiguredIntegration)
	}
	if strings.TrimSpace(customerID) == "" {
		return nil, errors.New("customer id is required")
	}

	form := url.Values{}
	form.Set("customer", strings.TrimSpace(customerID))
	form.Set("return_url", c.ReturnURL)

	var out PortalSession
	if err := c.postForm(ctx, "/billing_portal/sessions", form, &out); err != nil {
		return nil, err
	}
	if strings.TrimSpace(out.URL) == "" {
		return nil, errors.New("portal session response missing url")
	}
	return &out, nil
}

func (c *StripeClient) postForm(ctx context.Context, path string, form url.Values, out interface{}) error {
	base := strings.TrimRight(c.APIBaseURL, "/")
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, base+path, strings.NewReader(form.Encode()))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("stripe request %s failed: status=%d body=%s", path, resp.StatusCode, string(body))
	}
	return json.Unmarshal(body, out)
}
