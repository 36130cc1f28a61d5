package vencoclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
)

func TestInitiatePayment_Success(t *testing.T) {
	var got PaymentRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/payments/initialize" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer sk_live" || r.Header.Get("X-API-Key") != "pk_live" {
			t.Errorf("missing credentials headers")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if r.Header.Get("Idempotency-Key") != got.Reference {
			t.Errorf("expected idempotency key to equal reference")
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":        "pending",
			"transactionId": "vtx_123",
			"paymentUrl":    "https://checkout.venco.test/vtx_123",
			"data":          map[string]any{"channel": "card"},
		})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, "pk_live", "sk_live")
	resp, err := client.InitiatePayment(context.Background(), PaymentRequest{Amount: 10250, Currency: "NGN", Reference: "PAY-1-ABCDEF"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resp.TransactionID != "vtx_123" || resp.PaymentURL == "" || resp.Failed() {
		t.Fatalf("unexpected response %+v", resp)
	}
	if got.Amount != 10250 || got.Reference != "PAY-1-ABCDEF" {
		t.Fatalf("unexpected request payload %+v", got)
	}
}

func TestInitiatePayment_DeclinedWithin2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "failed", "message": "Insufficient funds"})
	}))
	defer srv.Close()

	resp, err := NewClient(srv.URL, "pk", "sk").InitiatePayment(context.Background(), PaymentRequest{Reference: "r1"})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if !resp.Failed() || resp.Message != "Insufficient funds" {
		t.Fatalf("expected decline, got %+v", resp)
	}
}

func TestInitiatePayment_Non2xxReturnsErrorResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"status":"failed","message":"Invalid customer email"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "pk", "sk").InitiatePayment(context.Background(), PaymentRequest{Reference: "r1"})
	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *ErrorResponse, got %v", err)
	}
	if apiErr.StatusCode != http.StatusUnprocessableEntity || apiErr.Message != "Invalid customer email" || apiErr.Temporary() {
		t.Fatalf("unexpected error response %+v", apiErr)
	}
}

func TestInitiatePayment_ServerErrorIsTemporary(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("<html>bad gateway</html>"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "pk", "sk").InitiatePayment(context.Background(), PaymentRequest{Reference: "r1"})
	var apiErr *ErrorResponse
	if !errors.As(err, &apiErr) || !apiErr.Temporary() {
		t.Fatalf("expected temporary *ErrorResponse, got %v", err)
	}
}

func TestInitiatePayment_UnconfiguredSimulates(t *testing.T) {
	client := NewClient("", "", "")
	if client.IsConfigured() {
		t.Fatal("expected client without credentials to be unconfigured")
	}
	resp, err := client.InitiatePayment(context.Background(), PaymentRequest{
		Amount:      5000,
		Reference:   "PAY-9-ZZZZZZ",
		CallbackURL: "http://localhost:8080/payments",
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if resp.Status != StatusPending || !strings.HasPrefix(resp.TransactionID, TestTransactionPrefix) {
		t.Fatalf("unexpected simulated response %+v", resp)
	}
	u, err := url.Parse(resp.PaymentURL)
	if err != nil {
		t.Fatalf("invalid payment url %q", resp.PaymentURL)
	}
	if u.Query().Get("reference") != "PAY-9-ZZZZZZ" || u.Query().Get("status") != StatusSuccess {
		t.Fatalf("unexpected simulated payment url %q", resp.PaymentURL)
	}
}
