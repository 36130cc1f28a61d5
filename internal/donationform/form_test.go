package donationform

import (
	"errors"
	"testing"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

func mustTransition(t *testing.T, s State, ev Event) State {
	t.Helper()
	next, err := Transition(s, ev)
	if err != nil {
		t.Fatalf("%s: unexpected error %v", ev.eventName(), err)
	}
	return next
}

func validDonor() domain.DonorInfo {
	return domain.DonorInfo{FirstName: "Ada", LastName: "Okafor", Email: "ada@example.com", Phone: "08031234567"}
}

func atPaymentStep(t *testing.T) State {
	t.Helper()
	s := New(domain.CategoryOffering)
	s = mustTransition(t, s, SelectPreset{Amount: 5000})
	s = mustTransition(t, s, Next{})
	s = mustTransition(t, s, UpdateDonor{Donor: validDonor()})
	s = mustTransition(t, s, Next{})
	if s.Step != PaymentStep {
		t.Fatalf("expected payment step, got %s", s.Step)
	}
	return s
}

func TestTransition_AmountRequiredBeforeDonorStep(t *testing.T) {
	s := New(domain.CategoryTithe)
	got, err := Transition(s, Next{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got.Step != AmountStep {
		t.Fatalf("expected to stay on amount step, got %s", got.Step)
	}
}

func TestTransition_LastAmountWriteWins(t *testing.T) {
	s := New(domain.CategoryOffering)
	s = mustTransition(t, s, SelectPreset{Amount: 2000})
	s = mustTransition(t, s, EnterCustomAmount{Amount: 3500})
	if s.Amount != 3500 || s.Preset {
		t.Fatalf("expected custom 3500 to win, got %d preset=%v", s.Amount, s.Preset)
	}
	s = mustTransition(t, s, SelectPreset{Amount: 10000})
	if s.Amount != 10000 || !s.Preset {
		t.Fatalf("expected preset 10000 to win, got %d preset=%v", s.Amount, s.Preset)
	}
}

func TestTransition_DonorGuard(t *testing.T) {
	s := New(domain.CategoryOffering)
	s = mustTransition(t, s, EnterCustomAmount{Amount: 1500})
	s = mustTransition(t, s, Next{})

	cases := []struct {
		name  string
		donor domain.DonorInfo
	}{
		{name: "missing first name", donor: domain.DonorInfo{LastName: "Okafor", Email: "ada@example.com"}},
		{name: "missing last name", donor: domain.DonorInfo{FirstName: "Ada", Email: "ada@example.com"}},
		{name: "bad email", donor: domain.DonorInfo{FirstName: "Ada", LastName: "Okafor", Email: "not-an-email"}},
		{name: "blank names", donor: domain.DonorInfo{FirstName: "  ", LastName: " ", Email: "ada@example.com"}},
	}
	for _, tc := range cases {
		withDonor := mustTransition(t, s, UpdateDonor{Donor: tc.donor})
		got, err := Transition(withDonor, Next{})
		if err == nil {
			t.Fatalf("%s: expected guard to reject", tc.name)
		}
		if got.Step != DonorInfoStep {
			t.Fatalf("%s: expected to stay on donor step, got %s", tc.name, got.Step)
		}
	}
}

func TestTransition_AnonymousSkipsDonorFields(t *testing.T) {
	s := New(domain.CategoryOffering)
	s = mustTransition(t, s, EnterCustomAmount{Amount: 1500})
	s = mustTransition(t, s, Next{})
	s = mustTransition(t, s, UpdateDonor{Donor: domain.DonorInfo{FirstName: "Kept"}})
	s = mustTransition(t, s, SetAnonymous{Anonymous: true})
	s = mustTransition(t, s, Next{})
	if s.Step != PaymentStep {
		t.Fatalf("expected payment step, got %s", s.Step)
	}
	if s.Donor.FirstName != "Kept" {
		t.Fatal("expected optional donor fields to be captured")
	}
}

func TestTransition_PreviousPreservesFields(t *testing.T) {
	s := atPaymentStep(t)
	s = mustTransition(t, s, SetDetails{Details: "choir robes"})
	s = mustTransition(t, s, Previous{})
	if s.Step != DonorInfoStep {
		t.Fatalf("expected donor step, got %s", s.Step)
	}
	s = mustTransition(t, s, Previous{})
	if s.Step != AmountStep {
		t.Fatalf("expected amount step, got %s", s.Step)
	}
	if s.Amount != 5000 || s.Donor != validDonor() || s.Details != "choir robes" {
		t.Fatalf("expected fields preserved, got %+v", s)
	}
	s = mustTransition(t, s, Previous{})
	if s.Step != AmountStep {
		t.Fatalf("expected previous on first step to stay put, got %s", s.Step)
	}
}

func TestTransition_SubmittingLocksForm(t *testing.T) {
	s := atPaymentStep(t)
	s = mustTransition(t, s, Submit{})
	if s.Step != Submitting || s.Attempts != 1 {
		t.Fatalf("expected submitting with one attempt, got %s/%d", s.Step, s.Attempts)
	}

	locked := []Event{
		Submit{}, Previous{}, Next{}, SelectPreset{Amount: 100}, UpdateDonor{}, ToggleCoverFees{}, RenewReference{},
	}
	for _, ev := range locked {
		got, err := Transition(s, ev)
		if !errors.Is(err, ErrSubmissionLocked) {
			t.Fatalf("%s: expected ErrSubmissionLocked, got %v", ev.eventName(), err)
		}
		if got.Step != Submitting || got.Amount != 5000 {
			t.Fatalf("%s: state changed while submitting", ev.eventName())
		}
	}
}

func TestTransition_FailureReturnsToPaymentWithReference(t *testing.T) {
	s := atPaymentStep(t)
	s = mustTransition(t, s, Submit{})
	s = mustTransition(t, s, SubmissionFailed{Message: "Card declined", Reference: "PAY-1-ABCDEF"})

	if s.Step != PaymentStep {
		t.Fatalf("expected payment step, got %s", s.Step)
	}
	if s.Error != "Card declined" || s.Reference != "PAY-1-ABCDEF" {
		t.Fatalf("expected error and reference kept, got %q/%q", s.Error, s.Reference)
	}
	if s.Intent().Reference != "PAY-1-ABCDEF" {
		t.Fatal("expected retry intent to reuse the reference")
	}

	retried := mustTransition(t, s, Submit{})
	if retried.Error != "" || retried.Attempts != 2 {
		t.Fatalf("expected cleared error on retry, got %q/%d", retried.Error, retried.Attempts)
	}

	renewed := mustTransition(t, s, RenewReference{})
	if renewed.Reference != "" {
		t.Fatalf("expected reference cleared, got %q", renewed.Reference)
	}
}

func TestTransition_FailureWithoutMessageUsesFallback(t *testing.T) {
	s := atPaymentStep(t)
	s = mustTransition(t, s, Submit{})
	s = mustTransition(t, s, SubmissionFailed{})
	if s.Error != domain.GenericSubmissionMessage {
		t.Fatalf("expected generic message, got %q", s.Error)
	}
}

func TestTransition_SuccessIsTerminal(t *testing.T) {
	s := atPaymentStep(t)
	s = mustTransition(t, s, Submit{})
	s = mustTransition(t, s, SubmissionSucceeded{Result: Result{TransactionID: "tx_1", Reference: "PAY-2-XYZ123", PaymentURL: "https://pay.example/tx_1"}})
	if s.Step != Success || s.Result == nil || s.Reference != "PAY-2-XYZ123" {
		t.Fatalf("unexpected success state %+v", s)
	}
	if _, err := Transition(s, Previous{}); !errors.Is(err, ErrFinished) {
		t.Fatalf("expected ErrFinished, got %v", err)
	}
}

func TestTransition_SubmitOnlyFromPaymentStep(t *testing.T) {
	s := New(domain.CategoryOffering)
	if _, err := Transition(s, Submit{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition, got %v", err)
	}
	if _, err := Transition(s, SubmissionSucceeded{}); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("expected ErrInvalidTransition for stray result, got %v", err)
	}
}

func TestTransition_SubmitRechecksEarlierSteps(t *testing.T) {
	s := atPaymentStep(t)

	cleared := mustTransition(t, s, EnterCustomAmount{Amount: 0})
	got, err := Transition(cleared, Submit{})
	var verr *domain.ValidationError
	if !errors.As(err, &verr) || verr.Field != "amount" {
		t.Fatalf("expected amount validation error, got %v", err)
	}
	if got.Step != PaymentStep || got.Attempts != 0 {
		t.Fatalf("expected to stay on payment step, got %s attempts=%d", got.Step, got.Attempts)
	}

	blanked := mustTransition(t, s, UpdateDonor{Donor: domain.DonorInfo{}})
	if got, err = Transition(blanked, Submit{}); !errors.As(err, &verr) || got.Step != PaymentStep {
		t.Fatalf("expected donor validation error on payment step, got %v (%s)", err, got.Step)
	}

	anonymous := mustTransition(t, blanked, SetAnonymous{Anonymous: true})
	if got = mustTransition(t, anonymous, Submit{}); got.Step != Submitting {
		t.Fatalf("expected anonymous gift to submit, got %s", got.Step)
	}
}

func TestTransition_CategoryAndFrequencyGuards(t *testing.T) {
	s := New(domain.CategoryOffering)
	if _, err := Transition(s, ChooseCategory{Category: "lottery"}); !errors.Is(err, domain.ErrUnknownCategory) {
		t.Fatalf("expected ErrUnknownCategory, got %v", err)
	}
	if _, err := Transition(s, ChooseFrequency{Frequency: "daily"}); err == nil {
		t.Fatal("expected unsupported frequency to fail")
	}
	s = mustTransition(t, s, ChooseFrequency{Frequency: domain.FrequencyMonthly})
	if s.Intent().Frequency != domain.FrequencyMonthly {
		t.Fatal("expected frequency carried into intent")
	}
}

func TestState_Breakdown(t *testing.T) {
	s := New(domain.CategoryOffering)
	s = mustTransition(t, s, EnterCustomAmount{Amount: 10000})
	if b := s.Breakdown(domain.DefaultFeeRule); b.Total != 10000 {
		t.Fatalf("expected total 10000 without fees, got %d", b.Total)
	}
	s = mustTransition(t, s, ToggleCoverFees{})
	b := s.Breakdown(domain.DefaultFeeRule)
	if b.Fees != 250 || b.Total != 10250 {
		t.Fatalf("expected 250/10250, got %d/%d", b.Fees, b.Total)
	}
}
