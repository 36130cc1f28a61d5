package mailer

import (
	"context"
	"errors"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/jordan-wright/email"
)

func TestNew_RejectsHostWithoutPort(t *testing.T) {
	if _, err := New("smtp.example.com", "u", "p", "giving@example.com"); err == nil {
		t.Fatal("expected error for host without port")
	}
}

func TestSendDonationReceipt_ComposesMessage(t *testing.T) {
	m, err := New("smtp.example.com:587", "u", "p", "giving@example.com")
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	var sent *email.Email
	var addr string
	m.send = func(e *email.Email, a string, _ smtp.Auth) error {
		sent, addr = e, a
		return nil
	}

	err = m.SendDonationReceipt(context.Background(), Receipt{
		DonorName:  "Ada Okafor",
		DonorEmail: "ada@example.com",
		Reference:  "PAY-1-ABCDEF",
		Category:   "Tithe",
		Frequency:  "monthly",
		Amount:     10000,
		Fees:       250,
		Total:      10250,
		IsTestMode: true,
	})
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if addr != "smtp.example.com:587" {
		t.Fatalf("unexpected smtp addr %q", addr)
	}
	if len(sent.To) != 1 || sent.To[0] != "ada@example.com" || sent.From != "giving@example.com" {
		t.Fatalf("unexpected envelope %+v", sent)
	}
	if !strings.HasPrefix(sent.Subject, "[TEST]") {
		t.Fatalf("expected test subject, got %q", sent.Subject)
	}
	body := string(sent.Text)
	for _, want := range []string{"Dear Ada Okafor", "PAY-1-ABCDEF", "₦10,000", "₦250", "₦10,250", "test transaction"} {
		if !strings.Contains(body, want) {
			t.Fatalf("expected body to contain %q, got:\n%s", want, body)
		}
	}
}

func TestSendDonationReceipt_PropagatesSendError(t *testing.T) {
	m, _ := New("smtp.example.com:25", "", "", "giving@example.com")
	m.send = func(*email.Email, string, smtp.Auth) error { return errors.New("connection refused") }
	if err := m.SendDonationReceipt(context.Background(), Receipt{DonorEmail: "a@b.co"}); err == nil {
		t.Fatal("expected send error")
	}
	if err := m.SendDonationReceipt(context.Background(), Receipt{}); err == nil {
		t.Fatal("expected missing recipient error")
	}
}

func TestSendDonationReceipt_GivesUpWhenContextEnds(t *testing.T) {
	m, _ := New("smtp.example.com:25", "", "", "giving@example.com")
	release := make(chan struct{})
	defer close(release)
	m.send = func(*email.Email, string, smtp.Auth) error {
		<-release
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := m.SendDonationReceipt(ctx, Receipt{DonorEmail: "a@b.co", Reference: "PAY-1-ABCDEF"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Fatal("expected send to be abandoned promptly")
	}
}
