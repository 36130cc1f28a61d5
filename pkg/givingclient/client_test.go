package givingclient

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

func TestCompletePastEvents_SendsInternalKey(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/internal/events/complete-past" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if r.Header.Get("X-Internal-API-Key") != "secret" {
			t.Errorf("missing internal key")
		}
		_, _ = w.Write([]byte(`{"completed":3}`))
	}))
	defer srv.Close()

	n, err := NewClient(srv.URL+"/", "secret").CompletePastEvents(context.Background())
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if n != 3 {
		t.Fatalf("expected 3 completed, got %d", n)
	}
}

func TestSubmitDonation_DecodesAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var intent domain.DonationIntent
		if err := json.NewDecoder(r.Body).Decode(&intent); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if intent.Category != domain.CategoryTithe || intent.Amount != 500 {
			t.Errorf("unexpected intent %+v", intent)
		}
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"success":false,"message":"Minimum amount for Tithe is ₦1,000"}`))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, "").SubmitDonation(context.Background(), domain.DonationIntent{Category: domain.CategoryTithe, Amount: 500})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected *APIError, got %v", err)
	}
	if apiErr.StatusCode != http.StatusBadRequest || apiErr.Message != "Minimum amount for Tithe is ₦1,000" {
		t.Fatalf("unexpected api error %+v", apiErr)
	}
}

func TestQuote_DecodesBreakdown(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("amount") != "10000" || r.URL.Query().Get("cover_fees") != "true" {
			t.Errorf("unexpected query %s", r.URL.RawQuery)
		}
		_, _ = w.Write([]byte(`{"amount":10000,"fees":250,"total":10250,"cover_fees":true,"fee_rule":"1.5% + ₦100"}`))
	}))
	defer srv.Close()

	q, err := NewClient(srv.URL, "").Quote(context.Background(), 10000, true)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if q.Fees != 250 || q.Total != 10250 || !q.CoverFees {
		t.Fatalf("unexpected quote %+v", q)
	}
}

func TestDo_RequiresBaseURL(t *testing.T) {
	if _, err := NewClient("", "").Categories(context.Background()); err == nil {
		t.Fatal("expected error without base URL")
	}
}
