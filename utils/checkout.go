package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultCheckoutTimeout = 15 * time.Second

// CheckoutSession is a hosted checkout the browser is redirected to.
type CheckoutSession struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// CheckoutDetail is the subset of a checkout used to backfill the buyer email.
type CheckoutDetail struct {
	ID     string `json:"id"`
	Email  string `json:"customer_email"`
	Status string `json:"status"`
}

// CheckoutStatusError is a non-2xx answer from the checkout provider.
type CheckoutStatusError struct {
	StatusCode int
	Body       string
}

func (e *CheckoutStatusError) Error() string {
	return fmt.Sprintf("checkout API status %d: %s", e.StatusCode, e.Body)
}

// Rejected reports a client-error answer, such as an unknown checkout id.
// Timeouts and rate limiting are not rejections.
func (e *CheckoutStatusError) Rejected() bool {
	switch e.StatusCode {
	case http.StatusRequestTimeout, http.StatusTooManyRequests:
		return false
	}
	return e.StatusCode >= 400 && e.StatusCode < 500
}

// CheckoutClient talks to the hosted checkout provider's REST API.
type CheckoutClient struct {
	baseURL    string
	apiKey     string
	productID  string
	successURL string
	httpClient *http.Client
}

// CheckoutOption customizes the client.
type CheckoutOption func(*CheckoutClient)

// WithCheckoutHTTPClient overrides the default HTTP client.
func WithCheckoutHTTPClient(client *http.Client) CheckoutOption {
	return func(c *CheckoutClient) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// NewCheckoutClient builds a checkout client. successURL may contain the
// provider's {CHECKOUT_ID} placeholder.
func NewCheckoutClient(baseURL, apiKey, productID, successURL string, opts ...CheckoutOption) *CheckoutClient {
	c := &CheckoutClient{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		apiKey:     strings.TrimSpace(apiKey),
		productID:  strings.TrimSpace(productID),
		successURL: successURL,
		httpClient: &http.Client{Timeout: defaultCheckoutTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type createCheckoutRequest struct {
	Products      []string `json:"products"`
	SuccessURL    string   `json:"success_url"`
	CustomerEmail string   `json:"customer_email,omitempty"`
}

// CreateCheckout opens a hosted checkout, prefilled with email when given.
func (c *CheckoutClient) CreateCheckout(ctx context.Context, email string) (*CheckoutSession, error) {
	if c.apiKey == "" || c.productID == "" {
		return nil, fmt.Errorf("checkout is not configured")
	}
	body := createCheckoutRequest{
		Products:      []string{c.productID},
		SuccessURL:    c.successURL,
		CustomerEmail: strings.TrimSpace(email),
	}
	var session CheckoutSession
	if err := c.do(ctx, http.MethodPost, "/checkouts/", body, &session); err != nil {
		return nil, err
	}
	if session.ID == "" || session.URL == "" {
		return nil, fmt.Errorf("checkout response missing id or url")
	}
	return &session, nil
}

// GetCheckout looks up a checkout by id.
func (c *CheckoutClient) GetCheckout(ctx context.Context, id string) (*CheckoutDetail, error) {
	if strings.TrimSpace(id) == "" {
		return nil, fmt.Errorf("checkout id is required")
	}
	var detail CheckoutDetail
	if err := c.do(ctx, http.MethodGet, "/checkouts/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, err
	}
	return &detail, nil
}

func (c *CheckoutClient) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode checkout request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("checkout request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &CheckoutStatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode checkout response: %w", err)
	}
	return nil
}
