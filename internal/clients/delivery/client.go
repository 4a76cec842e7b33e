package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	domain "github.com/cateringhub/pricing/internal/domain"
)

const (
	defaultTimeout  = 5 * time.Second
	maxErrorPreview = 512
)

// ErrUnavailable reports that the remote delivery-fee API could not produce a quote.
// It never means the order is ineligible for delivery.
var ErrUnavailable = errors.New("delivery: remote quote unavailable")

// Client calls the remote delivery-fee API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
}

// Option customises the client.
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client. Its timeout is kept as configured.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithAPIKey sends the key as a bearer token.
func WithAPIKey(key string) Option {
	return func(c *Client) {
		c.apiKey = strings.TrimSpace(key)
	}
}

// WithTimeout bounds each call, including reading the response body.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.http.Timeout = timeout
		}
	}
}

// NewClient constructs a delivery API client. When baseURL is empty every call returns ErrUnavailable.
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		http: &http.Client{
			Timeout: defaultTimeout,
		},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	return c
}

// Enabled reports whether a remote endpoint is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type quoteRequestPayload struct {
	DeliveryAddress string   `json:"deliveryAddress"`
	OrderSubtotal   float64  `json:"orderSubtotal"`
	ServiceID       string   `json:"serviceId,omitempty"`
	VendorID        string   `json:"vendorId,omitempty"`
	DistanceMiles   *float64 `json:"distanceMiles,omitempty"`
}

type quoteResponsePayload struct {
	Fee              *float64 `json:"fee"`
	Eligible         *bool    `json:"eligible"`
	Range            string   `json:"range"`
	Reason           string   `json:"reason"`
	MinimumRequired  *float64 `json:"minimumRequired"`
	DistanceEligible *bool    `json:"distanceEligible"`
	MinimumEligible  *bool    `json:"minimumEligible"`
}

// QuoteDelivery posts the order to {baseURL}/delivery/calculate. Any transport failure,
// timeout, non-2xx status or malformed body is returned wrapping ErrUnavailable.
func (c *Client) QuoteDelivery(ctx context.Context, req domain.RemoteDeliveryRequest) (domain.DeliveryQuote, error) {
	if !c.Enabled() {
		return domain.DeliveryQuote{}, ErrUnavailable
	}

	endpoint, err := url.JoinPath(c.baseURL, "delivery", "calculate")
	if err != nil {
		return domain.DeliveryQuote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	payload, err := json.Marshal(quoteRequestPayload{
		DeliveryAddress: strings.TrimSpace(req.DeliveryAddress),
		OrderSubtotal:   req.OrderSubtotal,
		ServiceID:       strings.TrimSpace(req.ServiceID),
		VendorID:        strings.TrimSpace(req.VendorID),
		DistanceMiles:   req.DistanceMiles,
	})
	if err != nil {
		return domain.DeliveryQuote{}, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return domain.DeliveryQuote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.setHeaders(httpReq)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return domain.DeliveryQuote{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return domain.DeliveryQuote{}, fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, drainError(resp.Body))
	}

	var body quoteResponsePayload
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return domain.DeliveryQuote{}, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	return body.toQuote()
}

// Ping checks that the remote API answers its health endpoint.
func (c *Client) Ping(ctx context.Context) error {
	if !c.Enabled() {
		return ErrUnavailable
	}
	endpoint, err := url.JoinPath(c.baseURL, "healthz")
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	c.setHeaders(httpReq)

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: health status %d", ErrUnavailable, resp.StatusCode)
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

func (p quoteResponsePayload) toQuote() (domain.DeliveryQuote, error) {
	if p.Fee == nil || p.Eligible == nil {
		return domain.DeliveryQuote{}, fmt.Errorf("%w: response missing fee or eligibility", ErrUnavailable)
	}
	quote := domain.DeliveryQuote{
		Fee:             *p.Fee,
		Eligible:        *p.Eligible,
		Range:           strings.TrimSpace(p.Range),
		Reason:          strings.TrimSpace(p.Reason),
		MinimumRequired: p.MinimumRequired,
		Source:          domain.DeliveryQuoteSourceRemote,
	}
	// Older deployments only report the overall flag.
	quote.DistanceEligible = boolOr(p.DistanceEligible, quote.Eligible)
	quote.MinimumEligible = boolOr(p.MinimumEligible, quote.Eligible)
	return quote, nil
}

func boolOr(v *bool, fallback bool) bool {
	if v == nil {
		return fallback
	}
	return *v
}

func drainError(r io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(r, maxErrorPreview))
	return strings.TrimSpace(string(data))
}
