/**
 * @description
 * The donation submission pipeline: validate an intent, claim its reference,
 * initiate a hosted payment with the gateway and record the outcome.
 *
 * @notes
 * - Submit makes at most one gateway call per invocation and never retries.
 *   A timed-out call may still have reached the gateway, so the guarantee is
 *   at-most-once attempt, not at-most-once effect. The reference is sent as
 *   the gateway's idempotency key to absorb donor retries.
 * - A reference the gateway already accepted is never sent again; Submit
 *   returns the stored result instead.
 * - Receipts are sent asynchronously. Their failure is logged and counted,
 *   never returned.
 */
package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/store"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/mailer"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/rabbitmq"
	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/pkg/vencoclient"
)

// processingLease bounds how long an in-flight claim blocks other submissions
// of the same reference. A claim older than this is treated as abandoned.
const processingLease = 2 * time.Minute

var errAlreadyInitiated = errors.New("reference already initiated")

// PaymentGateway is the external payment collaborator.
type PaymentGateway interface {
	InitiatePayment(ctx context.Context, payload vencoclient.PaymentRequest) (*vencoclient.PaymentResponse, error)
	IsConfigured() bool
}

// Notifier delivers donation receipts.
type Notifier interface {
	SendDonationReceipt(ctx context.Context, r mailer.Receipt) error
}

// EventPublisher is satisfied by rabbitmq.EventProducer and its fallback.
type EventPublisher interface {
	Publish(ctx context.Context, routingKey string, body interface{}) error
}

type GivingConfig struct {
	FeeRule        domain.FeeRule
	Currency       string
	CallbackURL    string
	SuccessURL     string
	FailureURL     string
	AnonymousDonor domain.DonorInfo
}

// SubmissionResult is what a successful Submit hands back to the caller.
type SubmissionResult struct {
	TransactionID string              `json:"transactionId"`
	Reference     string              `json:"reference"`
	PaymentURL    string              `json:"paymentUrl"`
	Status        string              `json:"status"`
	IsTestMode    bool                `json:"isTestMode"`
	Breakdown     domain.FeeBreakdown `json:"-"`
	Data          json.RawMessage     `json:"data,omitempty"`
}

type GivingService struct {
	repo      store.DonationRepository
	gateway   PaymentGateway
	notifier  Notifier
	publisher EventPublisher
	refs      *domain.ReferenceGenerator
	cfg       GivingConfig
	logger    *slog.Logger
	now       func() time.Time
	pending   sync.WaitGroup
}

func NewGivingService(repo store.DonationRepository, gateway PaymentGateway, notifier Notifier, publisher EventPublisher, cfg GivingConfig, logger *slog.Logger) *GivingService {
	if cfg.Currency == "" {
		cfg.Currency = "NGN"
	}
	return &GivingService{
		repo:      repo,
		gateway:   gateway,
		notifier:  notifier,
		publisher: publisher,
		refs:      domain.NewReferenceGenerator(),
		cfg:       cfg,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// FeeRule is the rule quotes and submissions are priced with.
func (s *GivingService) FeeRule() domain.FeeRule {
	return s.cfg.FeeRule
}

// Quote prices amount without validating a category.
func (s *GivingService) Quote(amount domain.Money, coverFees bool) (domain.FeeBreakdown, error) {
	breakdown, err := s.cfg.FeeRule.Breakdown(amount, coverFees)
	if err != nil {
		return domain.FeeBreakdown{}, domain.NewValidationError("amount", "must not be negative")
	}
	return breakdown, nil
}

// ValidateIntent re-checks everything the giving form checks, plus the phone
// number the gateway needs for named donors.
func (s *GivingService) ValidateIntent(intent domain.DonationIntent) (domain.PaymentType, error) {
	if strings.TrimSpace(intent.Category) == "" {
		return domain.PaymentType{}, domain.NewValidationError("category", "is required")
	}
	pt, err := domain.LookupPaymentType(intent.Category)
	if err != nil {
		return domain.PaymentType{}, err
	}
	if intent.Amount <= 0 {
		return pt, domain.NewValidationError("amount", "must be greater than zero")
	}
	if intent.Amount > domain.MaxAmount {
		return pt, domain.NewValidationError("amount", "must not exceed %s", domain.MaxAmount)
	}
	if pt.MinAmount > 0 && intent.Amount < pt.MinAmount {
		return pt, domain.NewValidationError("amount", "Minimum amount for %s is %s", pt.Name, pt.MinAmount)
	}
	if intent.Frequency != "" && !intent.Frequency.Valid() {
		return pt, domain.NewValidationError("frequency", "%q is not a supported frequency", intent.Frequency)
	}
	if pt.RequiresDetails && strings.TrimSpace(intent.Details) == "" {
		return pt, domain.NewValidationError("details", "Please tell us what your %s gift is for", strings.ToLower(pt.Name))
	}
	if intent.Anonymous {
		email := strings.TrimSpace(intent.Donor.Email)
		if err := validation.Validate(email, is.EmailFormat); err != nil {
			return pt, domain.NewValidationError("email", "%s", err.Error())
		}
	} else if err := intent.Donor.Validate(true); err != nil {
		return pt, err
	}
	if intent.Dedication != nil {
		if err := intent.Dedication.Validate(); err != nil {
			return pt, err
		}
	}
	if ref := strings.TrimSpace(intent.Reference); ref != "" && !domain.ValidReference(ref) {
		return pt, domain.NewValidationError("reference", "is malformed")
	}
	return pt, nil
}

// Submit runs the pipeline for intent. Errors are *domain.ValidationError,
// domain.ErrUnknownCategory, domain.ErrSubmissionInProgress or
// *domain.SubmissionError; anything else is a storage failure.
func (s *GivingService) Submit(ctx context.Context, intent domain.DonationIntent) (*SubmissionResult, error) {
	intent.Donor = intent.Donor.Normalized()
	intent.Reference = strings.TrimSpace(intent.Reference)
	if intent.Frequency == "" {
		intent.Frequency = domain.FrequencyOneTime
	}

	pt, err := s.ValidateIntent(intent)
	if err != nil {
		donationSubmissions.WithLabelValues(intent.Category, "invalid").Inc()
		return nil, err
	}

	breakdown, err := s.cfg.FeeRule.Breakdown(intent.Amount, intent.CoverFees)
	if err != nil {
		return nil, domain.NewValidationError("amount", "must not be negative")
	}

	ref := intent.Reference
	if ref == "" {
		if ref, err = s.refs.Next(); err != nil {
			return nil, err
		}
	} else {
		s.refs.Reserve(ref)
	}

	var existing domain.DonationRecord
	now := s.now()
	_, err = s.repo.MutateDonation(ctx, ref, func(cur *domain.DonationRecord) (domain.DonationRecord, error) {
		next := domain.DonationRecord{CreatedAt: now}
		if cur != nil {
			if cur.Initiated() {
				existing = *cur
				return *cur, errAlreadyInitiated
			}
			if cur.Status == domain.DonationProcessing && now.Sub(cur.UpdatedAt) < processingLease {
				return *cur, domain.ErrSubmissionInProgress
			}
			next = *cur
		}
		next.Status = domain.DonationProcessing
		next.Category = pt.ID
		next.Frequency = intent.Frequency
		next.Anonymous = intent.Anonymous
		next.DonorName = ""
		if !intent.Anonymous {
			next.DonorName = intent.Donor.FullName()
		}
		next.DonorEmail = intent.Donor.Email
		next.Breakdown = breakdown
		next.TransactionID = ""
		next.PaymentURL = ""
		next.ProviderState = ""
		next.LastError = ""
		next.Attempts++
		next.UpdatedAt = now
		return next, nil
	})
	switch {
	case errors.Is(err, errAlreadyInitiated):
		donationSubmissions.WithLabelValues(pt.ID, "duplicate").Inc()
		s.logger.Info("reference already initiated; returning stored result", "reference", ref, "transaction_id", existing.TransactionID)
		return resultFromRecord(existing), nil
	case errors.Is(err, domain.ErrSubmissionInProgress):
		donationSubmissions.WithLabelValues(pt.ID, "in_progress").Inc()
		return nil, err
	case err != nil:
		return nil, fmt.Errorf("failed to record donation attempt: %w", err)
	}

	resp, callErr := s.gateway.InitiatePayment(ctx, s.paymentRequest(intent, pt, breakdown, ref))
	if subErr := classifyGatewayFailure(ref, resp, callErr); subErr != nil {
		s.recordFailure(ctx, ref, subErr)
		donationSubmissions.WithLabelValues(pt.ID, string(subErr.Kind)).Inc()
		return nil, subErr
	}

	isTestMode := !s.gateway.IsConfigured() || strings.HasPrefix(resp.TransactionID, vencoclient.TestTransactionPrefix)
	status := domain.DonationPending
	if strings.EqualFold(resp.Status, vencoclient.StatusSuccess) {
		status = domain.DonationSuccess
	}

	// The gateway has accepted; persisting must not be abandoned because the
	// donor's request went away.
	persistCtx := context.WithoutCancel(ctx)
	rec, err := s.repo.MutateDonation(persistCtx, ref, func(cur *domain.DonationRecord) (domain.DonationRecord, error) {
		var next domain.DonationRecord
		if cur != nil {
			next = *cur
		}
		next.Status = status
		next.TransactionID = resp.TransactionID
		next.PaymentURL = resp.PaymentURL
		next.ProviderState = resp.Status
		next.IsTestMode = isTestMode
		next.UpdatedAt = s.now()
		return next, nil
	})
	if err != nil {
		s.logger.Error("failed to persist initiated donation", "reference", ref, "transaction_id", resp.TransactionID, "error", err)
		rec = &domain.DonationRecord{
			Reference: ref, Status: status, Category: pt.ID, Frequency: intent.Frequency,
			Breakdown: breakdown, TransactionID: resp.TransactionID, PaymentURL: resp.PaymentURL,
			ProviderState: resp.Status, IsTestMode: isTestMode,
		}
	}

	donationSubmissions.WithLabelValues(pt.ID, "initiated").Inc()
	if !isTestMode {
		donationAmountInitiated.WithLabelValues(pt.ID).Add(float64(breakdown.Total))
	}
	s.logger.Info("donation initiated",
		"reference", ref,
		"transaction_id", resp.TransactionID,
		"category", pt.ID,
		"total", int64(breakdown.Total),
		"test_mode", isTestMode,
	)

	s.publish(persistCtx, rabbitmq.RoutingDonationInitiated, *rec)
	s.sendReceipt(intent, pt, *rec)

	result := resultFromRecord(*rec)
	result.Data = resp.Data
	return result, nil
}

func (s *GivingService) paymentRequest(intent domain.DonationIntent, pt domain.PaymentType, breakdown domain.FeeBreakdown, ref string) vencoclient.PaymentRequest {
	customer := intent.Donor
	if intent.Anonymous {
		customer = s.cfg.AnonymousDonor
	}
	metadata := map[string]string{
		"category":   pt.ID,
		"frequency":  string(intent.Frequency),
		"amount":     strconv.FormatInt(int64(breakdown.Amount), 10),
		"fees":       strconv.FormatInt(int64(breakdown.Fees), 10),
		"cover_fees": strconv.FormatBool(intent.CoverFees),
		"anonymous":  strconv.FormatBool(intent.Anonymous),
	}
	if d := intent.Dedication; d != nil {
		metadata["dedication_kind"] = string(d.Kind)
		metadata["dedication_name"] = d.Name
	}
	return vencoclient.PaymentRequest{
		Amount:        int64(breakdown.Total),
		Currency:      s.cfg.Currency,
		Reference:     ref,
		CustomerName:  customer.FullName(),
		CustomerEmail: customer.Email,
		CustomerPhone: customer.Phone,
		Description:   intent.Description(),
		CallbackURL:   s.cfg.CallbackURL,
		Metadata:      metadata,
	}
}

// classifyGatewayFailure returns nil when the gateway accepted the payment.
func classifyGatewayFailure(ref string, resp *vencoclient.PaymentResponse, err error) *domain.SubmissionError {
	if err != nil {
		var apiErr *vencoclient.ErrorResponse
		if errors.As(err, &apiErr) && !apiErr.Temporary() {
			return &domain.SubmissionError{Kind: domain.SubmissionDeclined, Reference: ref, Message: apiErr.Message, Err: err}
		}
		return &domain.SubmissionError{Kind: domain.SubmissionTransport, Reference: ref, Err: err}
	}
	if resp == nil {
		return &domain.SubmissionError{Kind: domain.SubmissionTransport, Reference: ref, Err: errors.New("empty gateway response")}
	}
	if resp.Failed() {
		return &domain.SubmissionError{Kind: domain.SubmissionDeclined, Reference: ref, Message: resp.Message}
	}
	if strings.TrimSpace(resp.TransactionID) == "" {
		return &domain.SubmissionError{Kind: domain.SubmissionTransport, Reference: ref, Err: fmt.Errorf("gateway returned status %q without a transaction id", resp.Status)}
	}
	return nil
}

// recordFailure releases the reference for a later retry.
func (s *GivingService) recordFailure(ctx context.Context, ref string, subErr *domain.SubmissionError) {
	ctx = context.WithoutCancel(ctx)
	rec, err := s.repo.MutateDonation(ctx, ref, func(cur *domain.DonationRecord) (domain.DonationRecord, error) {
		var next domain.DonationRecord
		if cur != nil {
			next = *cur
		}
		next.Status = domain.DonationFailed
		next.LastError = subErr.Error()
		next.UpdatedAt = s.now()
		return next, nil
	})
	if err != nil {
		s.logger.Error("failed to record donation failure", "reference", ref, "error", err)
		return
	}
	s.logger.Warn("donation submission failed", "reference", ref, "kind", string(subErr.Kind), "error", subErr)
	s.publish(ctx, rabbitmq.RoutingDonationFailed, *rec)
}

func resultFromRecord(rec domain.DonationRecord) *SubmissionResult {
	return &SubmissionResult{
		TransactionID: rec.TransactionID,
		Reference:     rec.Reference,
		PaymentURL:    rec.PaymentURL,
		Status:        string(rec.Status),
		IsTestMode:    rec.IsTestMode,
		Breakdown:     rec.Breakdown,
	}
}

func (s *GivingService) sendReceipt(intent domain.DonationIntent, pt domain.PaymentType, rec domain.DonationRecord) {
	if s.notifier == nil || strings.TrimSpace(intent.Donor.Email) == "" {
		return
	}
	receipt := mailer.Receipt{
		DonorName:  intent.Donor.FullName(),
		DonorEmail: intent.Donor.Email,
		Reference:  rec.Reference,
		Category:   pt.Name,
		Frequency:  string(intent.Frequency),
		Amount:     int64(rec.Breakdown.Amount),
		Fees:       int64(rec.Breakdown.Fees),
		Total:      int64(rec.Breakdown.Total),
		PaymentURL: rec.PaymentURL,
		IsTestMode: rec.IsTestMode,
	}
	if d := intent.Dedication; d != nil {
		prefix := "In honour of"
		if d.Kind == domain.DedicationInMemoryOf {
			prefix = "In memory of"
		}
		receipt.Dedication = prefix + " " + d.Name
	}

	s.pending.Add(1)
	go func() {
		defer s.pending.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.notifier.SendDonationReceipt(ctx, receipt); err != nil {
			notificationFailures.Inc()
			s.logger.Warn("failed to send donation receipt", "reference", receipt.Reference, "error", err)
		}
	}()
}

// Wait blocks until queued receipts have been attempted.
func (s *GivingService) Wait() {
	s.pending.Wait()
}

// GetDonation returns the stored record for reference.
func (s *GivingService) GetDonation(ctx context.Context, reference string) (*domain.DonationRecord, error) {
	if !domain.ValidReference(reference) {
		return nil, domain.ErrDonationNotFound
	}
	return s.repo.GetDonation(ctx, strings.TrimSpace(reference))
}

// ListDonations returns donations currently in status.
func (s *GivingService) ListDonations(ctx context.Context, status domain.DonationStatus) ([]domain.DonationRecord, error) {
	return s.repo.ListDonationsByStatus(ctx, status, s.now().Add(time.Second))
}

// CallbackParams are the query parameters of the gateway redirect.
type CallbackParams struct {
	TransactionID string
	Reference     string
	Status        string
}

type CallbackOutcome struct {
	Succeeded   bool
	Reference   string
	RedirectURL string
}

// HandleCallback records the gateway's verdict and picks the donor redirect.
// It never fails: anything unexpected degrades to the failure redirect.
func (s *GivingService) HandleCallback(ctx context.Context, p CallbackParams) CallbackOutcome {
	ref := strings.TrimSpace(p.Reference)
	txID := strings.TrimSpace(p.TransactionID)
	status := strings.ToLower(strings.TrimSpace(p.Status))
	if !domain.ValidReference(ref) {
		ref = ""
	}

	// Only the gateway knows the transaction id, so a report without it is
	// treated as unverified.
	succeeded := status == vencoclient.StatusSuccess && ref != "" && txID != ""
	label := status
	if label != vencoclient.StatusSuccess && label != vencoclient.StatusFailed && label != vencoclient.StatusPending {
		label = "unknown"
	}
	donationCallbacks.WithLabelValues(label).Inc()

	if ref != "" && txID != "" && status != vencoclient.StatusPending {
		s.applyCallback(ctx, ref, txID, status, succeeded)
	}

	out := CallbackOutcome{Succeeded: succeeded, Reference: ref}
	q := url.Values{}
	if ref != "" {
		q.Set("reference", ref)
	}
	if succeeded {
		q.Set("transaction_id", txID)
	}
	target := s.cfg.FailureURL
	if succeeded {
		target = s.cfg.SuccessURL
	}
	out.RedirectURL = withQuery(target, q)
	return out
}

var errNoChange = errors.New("no change")

func (s *GivingService) applyCallback(ctx context.Context, ref, txID, status string, succeeded bool) {
	var changed bool
	rec, err := s.repo.MutateDonation(ctx, ref, func(cur *domain.DonationRecord) (domain.DonationRecord, error) {
		if cur == nil {
			return domain.DonationRecord{}, errNoChange
		}
		if cur.Status == domain.DonationSuccess {
			return *cur, errNoChange
		}
		if txID == "" || txID != cur.TransactionID {
			return *cur, errNoChange
		}
		next := *cur
		next.Status = domain.DonationFailed
		if succeeded {
			next.Status = domain.DonationSuccess
		}
		next.ProviderState = status
		next.UpdatedAt = s.now()
		changed = next.Status != cur.Status
		return next, nil
	})
	switch {
	case errors.Is(err, errNoChange):
		s.logger.Info("payment callback ignored", "reference", ref, "transaction_id", txID, "status", status)
		return
	case err != nil:
		s.logger.Error("failed to apply payment callback", "reference", ref, "error", err)
		return
	}
	if !changed {
		return
	}
	key := rabbitmq.RoutingDonationFailed
	if succeeded {
		key = rabbitmq.RoutingDonationCompleted
	}
	s.publish(ctx, key, *rec)
}

func withQuery(target string, q url.Values) string {
	if len(q) == 0 {
		return target
	}
	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + q.Encode()
}

// ExpireStaleDonations marks pending or abandoned in-flight donations older
// than olderThan as expired.
func (s *GivingService) ExpireStaleDonations(ctx context.Context, olderThan time.Duration) (int, error) {
	cutoff := s.now().Add(-olderThan)
	expired := 0
	for _, status := range []domain.DonationStatus{domain.DonationPending, domain.DonationProcessing} {
		records, err := s.repo.ListDonationsByStatus(ctx, status, cutoff)
		if err != nil {
			return expired, err
		}
		for _, candidate := range records {
			rec, err := s.repo.MutateDonation(ctx, candidate.Reference, func(cur *domain.DonationRecord) (domain.DonationRecord, error) {
				if cur == nil || cur.Status != status || !cur.UpdatedAt.Before(cutoff) {
					return domain.DonationRecord{}, errNoChange
				}
				next := *cur
				next.Status = domain.DonationExpired
				next.UpdatedAt = s.now()
				return next, nil
			})
			if errors.Is(err, errNoChange) {
				continue
			}
			if err != nil {
				s.logger.Error("failed to expire donation", "reference", candidate.Reference, "error", err)
				continue
			}
			expired++
			s.publish(ctx, rabbitmq.RoutingDonationExpired, *rec)
		}
	}
	if expired > 0 {
		s.logger.Info("expired stale donations", "count", expired, "older_than", olderThan.String())
	}
	return expired, nil
}

type donationEvent struct {
	Reference     string    `json:"reference"`
	Status        string    `json:"status"`
	Category      string    `json:"category"`
	Frequency     string    `json:"frequency"`
	Amount        int64     `json:"amount"`
	Fees          int64     `json:"fees"`
	Total         int64     `json:"total"`
	TransactionID string    `json:"transaction_id,omitempty"`
	Anonymous     bool      `json:"anonymous"`
	IsTestMode    bool      `json:"is_test_mode"`
	Timestamp     time.Time `json:"timestamp"`
}

func (s *GivingService) publish(ctx context.Context, routingKey string, rec domain.DonationRecord) {
	if s.publisher == nil {
		return
	}
	payload := donationEvent{
		Reference:     rec.Reference,
		Status:        string(rec.Status),
		Category:      rec.Category,
		Frequency:     string(rec.Frequency),
		Amount:        int64(rec.Breakdown.Amount),
		Fees:          int64(rec.Breakdown.Fees),
		Total:         int64(rec.Breakdown.Total),
		TransactionID: rec.TransactionID,
		Anonymous:     rec.Anonymous,
		IsTestMode:    rec.IsTestMode,
		Timestamp:     s.now(),
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.logger.Warn("failed to publish donation event", "routing_key", routingKey, "reference", rec.Reference, "error", err)
	}
}
