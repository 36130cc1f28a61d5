/**
 * @description
 * Client for the giving-service HTTP API. The scheduler uses the internal
 * maintenance endpoints; givingctl uses the public payment endpoints.
 */
package givingclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

// NewClient builds a client. apiKey is only needed for the internal endpoints.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    strings.TrimSuffix(strings.TrimSpace(baseURL), "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 15 * time.Second},
	}
}

// APIError is any non-2xx reply from the giving-service.
type APIError struct {
	StatusCode int    `json:"-"`
	Message    string `json:"message"`
	Kind       string `json:"kind,omitempty"`
	Reference  string `json:"reference,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("giving service returned status %d: %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("giving service returned status %d", e.StatusCode)
}

// SubmitResponse mirrors the POST /payments success body.
type SubmitResponse struct {
	Success       bool            `json:"success"`
	TransactionID string          `json:"transactionId"`
	Reference     string          `json:"reference"`
	PaymentURL    string          `json:"paymentUrl"`
	IsTestMode    bool            `json:"isTestMode"`
	Amount        domain.Money    `json:"amount"`
	Fees          domain.Money    `json:"fees"`
	Total         domain.Money    `json:"total"`
	Data          json.RawMessage `json:"data,omitempty"`
}

type Quote struct {
	domain.FeeBreakdown
	CoverFees bool   `json:"cover_fees"`
	FeeRule   string `json:"fee_rule"`
}

// CompletePastEvents asks the service to close events that have ended.
func (c *Client) CompletePastEvents(ctx context.Context) (int, error) {
	var out struct {
		Completed int `json:"completed"`
	}
	err := c.do(ctx, http.MethodPost, "/internal/events/complete-past", struct{}{}, &out)
	return out.Completed, err
}

// ExpireStaleDonations asks the service to expire long-pending donations.
func (c *Client) ExpireStaleDonations(ctx context.Context) (int, error) {
	var out struct {
		Expired int `json:"expired"`
	}
	err := c.do(ctx, http.MethodPost, "/internal/donations/expire-stale", struct{}{}, &out)
	return out.Expired, err
}

// SubmitDonation posts intent to /payments. Rejections come back as *APIError.
func (c *Client) SubmitDonation(ctx context.Context, intent domain.DonationIntent) (*SubmitResponse, error) {
	var out SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/payments", intent, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Quote(ctx context.Context, amount domain.Money, coverFees bool) (*Quote, error) {
	q := url.Values{}
	q.Set("amount", strconv.FormatInt(int64(amount), 10))
	q.Set("cover_fees", strconv.FormatBool(coverFees))
	var out Quote
	if err := c.do(ctx, http.MethodGet, "/payments/quote?"+q.Encode(), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) Categories(ctx context.Context) ([]domain.PaymentType, error) {
	var out []domain.PaymentType
	if err := c.do(ctx, http.MethodGet, "/payments/categories", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) do(ctx context.Context, method, path string, payload, out interface{}) error {
	if c.baseURL == "" {
		return fmt.Errorf("giving service base URL is not configured")
	}

	var body io.Reader
	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("X-Internal-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to execute request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(raw, apiErr); err != nil {
			log.Printf("level=warn component=giving_client op=%s path=%s status=%d msg=\"unparsable error body\"", method, path, resp.StatusCode)
		}
		apiErr.StatusCode = resp.StatusCode
		return apiErr
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}
