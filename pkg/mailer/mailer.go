/**
 * @description
 * SMTP notifier that emails donors a receipt once their payment has been
 * initiated. Delivery is best effort; callers log failures and move on.
 */
package mailer

import (
	"context"
	"fmt"
	"log"
	"net"
	"net/smtp"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/jordan-wright/email"
)

// Receipt is the data rendered into a donation confirmation.
type Receipt struct {
	DonorName  string
	DonorEmail string
	Reference  string
	Category   string
	Frequency  string
	Amount     int64
	Fees       int64
	Total      int64
	PaymentURL string
	Dedication string
	IsTestMode bool
}

type sendFunc func(e *email.Email, addr string, auth smtp.Auth) error

type Mailer struct {
	host string
	auth smtp.Auth
	from string
	send sendFunc
}

// New builds a mailer for host in host:port form.
func New(host, username, password, from string) (*Mailer, error) {
	hostname, _, err := net.SplitHostPort(host)
	if err != nil {
		return nil, fmt.Errorf("invalid SMTP_HOST %q: %w", host, err)
	}
	var auth smtp.Auth
	if username != "" {
		auth = smtp.PlainAuth("", username, password, hostname)
	}
	return &Mailer{
		host: host,
		auth: auth,
		from: from,
		send: func(e *email.Email, addr string, a smtp.Auth) error { return e.Send(addr, a) },
	}, nil
}

// SendDonationReceipt emails r to the donor. The SMTP client has no deadline of
// its own, so the call returns ctx.Err() once ctx is done and the send is
// abandoned in the background.
func (m *Mailer) SendDonationReceipt(ctx context.Context, r Receipt) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if strings.TrimSpace(r.DonorEmail) == "" {
		return fmt.Errorf("receipt %s has no recipient", r.Reference)
	}

	em := m.compose(r)
	done := make(chan error, 1)
	go func() {
		done <- m.send(em, m.host, m.auth)
	}()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		log.Printf("level=warn component=mailer msg=\"smtp send abandoned\" reference=%s err=%v", r.Reference, ctx.Err())
		return ctx.Err()
	}
}

func naira(v int64) string {
	return "₦" + humanize.Comma(v)
}

func (m *Mailer) compose(r Receipt) *email.Email {
	em := email.NewEmail()
	em.From = m.from
	em.To = []string{r.DonorEmail}
	em.Subject = fmt.Sprintf("Thank you for your %s gift (%s)", r.Category, r.Reference)
	if r.IsTestMode {
		em.Subject = "[TEST] " + em.Subject
	}

	var b strings.Builder
	name := strings.TrimSpace(r.DonorName)
	if name == "" {
		name = "friend"
	}
	fmt.Fprintf(&b, "Dear %s,\n\n", name)
	fmt.Fprintf(&b, "We have received your %s gift towards %s.\n\n", strings.ToLower(r.Frequency), r.Category)
	fmt.Fprintf(&b, "Reference: %s\n", r.Reference)
	fmt.Fprintf(&b, "Gift:      %s\n", naira(r.Amount))
	if r.Fees > 0 {
		fmt.Fprintf(&b, "Fees:      %s\n", naira(r.Fees))
	}
	fmt.Fprintf(&b, "Total:     %s\n", naira(r.Total))
	if r.Dedication != "" {
		fmt.Fprintf(&b, "\n%s\n", r.Dedication)
	}
	if r.PaymentURL != "" {
		fmt.Fprintf(&b, "\nIf you have not completed payment yet, continue here:\n%s\n", r.PaymentURL)
	}
	if r.IsTestMode {
		b.WriteString("\nThis was a test transaction. No money has been collected.\n")
	}
	b.WriteString("\nGod bless you,\nFoursquare Gospel Church, Ajebo\n")
	em.Text = []byte(b.String())
	return em
}

// Noop discards receipts. Used when SMTP is not configured.
type Noop struct{}

func (Noop) SendDonationReceipt(ctx context.Context, r Receipt) error { return nil }
