/**
 * @description
 * Client for the Venco payment gateway. It initialises hosted payments for
 * donations and returns the checkout URL the donor is redirected to.
 *
 * @notes
 * - When the client holds no live credentials it never touches the network.
 *   InitiatePayment then returns a simulated pending payment whose id starts
 *   with TEST- so callers can flag the transaction as test mode.
 */
package vencoclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	StatusSuccess = "success"
	StatusPending = "pending"
	StatusFailed  = "failed"

	TestTransactionPrefix = "TEST-"
)

type Client struct {
	BaseURL    string
	APIKey     string
	SecretKey  string
	HTTPClient *http.Client
}

func NewClient(baseURL, apiKey, secretKey string) *Client {
	return &Client{
		BaseURL:   strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		APIKey:    strings.TrimSpace(apiKey),
		SecretKey: strings.TrimSpace(secretKey),
		HTTPClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// IsConfigured reports whether live credentials are present.
func (c *Client) IsConfigured() bool {
	return c != nil && c.BaseURL != "" && c.APIKey != "" && c.SecretKey != ""
}

// PaymentRequest is the payload for a hosted payment. Amount is in whole
// currency units.
type PaymentRequest struct {
	Amount        int64             `json:"amount"`
	Currency      string            `json:"currency"`
	Reference     string            `json:"reference"`
	CustomerName  string            `json:"customerName"`
	CustomerEmail string            `json:"customerEmail"`
	CustomerPhone string            `json:"customerPhone"`
	Description   string            `json:"description"`
	CallbackURL   string            `json:"callbackUrl,omitempty"`
	Metadata      map[string]string `json:"metadata,omitempty"`
}

// PaymentResponse is the gateway's reply. Status is success, pending or failed.
type PaymentResponse struct {
	Status        string          `json:"status"`
	TransactionID string          `json:"transactionId"`
	PaymentURL    string          `json:"paymentUrl"`
	Message       string          `json:"message,omitempty"`
	Data          json.RawMessage `json:"data,omitempty"`
}

// Failed reports a business-level decline.
func (r *PaymentResponse) Failed() bool {
	return strings.EqualFold(r.Status, StatusFailed)
}

// ErrorResponse is returned for non-2xx replies.
type ErrorResponse struct {
	StatusCode int    `json:"-"`
	Status     string `json:"status"`
	Message    string `json:"message"`
}

func (e *ErrorResponse) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("venco api error (status %d): %s", e.StatusCode, e.Message)
	}
	return fmt.Sprintf("venco api error (status %d)", e.StatusCode)
}

// Temporary reports whether the gateway itself failed rather than declining.
func (e *ErrorResponse) Temporary() bool {
	return e.StatusCode >= 500 || e.StatusCode == http.StatusTooManyRequests
}

// InitiatePayment asks the gateway to create a hosted payment. No retries are
// performed; the reference doubles as the gateway's idempotency key.
func (c *Client) InitiatePayment(ctx context.Context, payload PaymentRequest) (*PaymentResponse, error) {
	if !c.IsConfigured() {
		return simulatedPayment(payload), nil
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal payment request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/v1/payments/initialize", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create payment request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.SecretKey)
	req.Header.Set("X-API-Key", c.APIKey)
	req.Header.Set("Idempotency-Key", payload.Reference)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute payment request: %w", err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read payment response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		errResp := ErrorResponse{StatusCode: resp.StatusCode}
		if err := json.Unmarshal(bodyBytes, &errResp); err != nil {
			log.Printf("level=warn component=venco_client op=initiate_payment status=%d msg=\"non-2xx response (unparsable error body)\"", resp.StatusCode)
		} else {
			log.Printf("level=warn component=venco_client op=initiate_payment status=%d reference=%q message=%q", resp.StatusCode, payload.Reference, errResp.Message)
		}
		errResp.StatusCode = resp.StatusCode
		return nil, &errResp
	}

	var successResp PaymentResponse
	if err := json.Unmarshal(bodyBytes, &successResp); err != nil {
		return nil, fmt.Errorf("failed to decode payment response: %w", err)
	}
	if successResp.Failed() {
		log.Printf("level=warn component=venco_client op=initiate_payment reference=%q msg=\"payment declined\" message=%q", payload.Reference, successResp.Message)
	}
	return &successResp, nil
}

func simulatedPayment(payload PaymentRequest) *PaymentResponse {
	txID := TestTransactionPrefix + uuid.NewString()
	paymentURL := ""
	if payload.CallbackURL != "" {
		q := url.Values{}
		q.Set("transaction_id", txID)
		q.Set("reference", payload.Reference)
		q.Set("status", StatusSuccess)
		sep := "?"
		if strings.Contains(payload.CallbackURL, "?") {
			sep = "&"
		}
		paymentURL = payload.CallbackURL + sep + q.Encode()
	}
	data, _ := json.Marshal(map[string]any{
		"simulated": true,
		"amount":    payload.Amount,
		"currency":  payload.Currency,
	})
	return &PaymentResponse{
		Status:        StatusPending,
		TransactionID: txID,
		PaymentURL:    paymentURL,
		Message:       "payment gateway not configured; simulated payment created",
		Data:          data,
	}
}
