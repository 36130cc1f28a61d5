/**
 * @description
 * Multi-step giving wizard modelled as an explicit state machine.
 *
 * @notes
 * - Transition is the only way to move between steps. It never mutates its
 *   input and returns either the next State or an error that leaves the
 *   caller holding the previous State.
 * - A failed submission lands back on PaymentStep with the same reference so
 *   a retry cannot produce a second confirmed donation for that reference.
 */
package donationform

import (
	"errors"
	"fmt"
	"strings"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

type Step string

const (
	AmountStep    Step = "amount"
	DonorInfoStep Step = "donor_info"
	PaymentStep   Step = "payment"
	Submitting    Step = "submitting"
	Success       Step = "success"
)

// Editable reports whether field events are accepted in this step.
func (s Step) Editable() bool {
	return s == AmountStep || s == DonorInfoStep || s == PaymentStep
}

var (
	ErrInvalidTransition = errors.New("invalid transition")
	ErrSubmissionLocked  = errors.New("submission in progress")
	ErrFinished          = errors.New("donation already completed")
)

// Result is what a successful submission hands back to the donor.
type Result struct {
	TransactionID string              `json:"transaction_id"`
	Reference     string              `json:"reference"`
	PaymentURL    string              `json:"payment_url"`
	IsTestMode    bool                `json:"is_test_mode"`
	Breakdown     domain.FeeBreakdown `json:"breakdown"`
}

// State holds every value the donor has entered so far. Going back never
// clears anything.
type State struct {
	Step Step

	Category string
	Amount   domain.Money
	// Preset is true when Amount came from a suggested amount rather than
	// free entry. The last amount event wins.
	Preset    bool
	Frequency domain.Frequency
	CoverFees bool

	Donor      domain.DonorInfo
	Anonymous  bool
	Dedication *domain.Dedication
	Details    string

	Reference string
	Attempts  int
	Error     string
	Result    *Result
}

// New starts a wizard on the amount step.
func New(category string) State {
	return State{
		Step:      AmountStep,
		Category:  category,
		Frequency: domain.FrequencyOneTime,
	}
}

type Event interface {
	eventName() string
}

type (
	SelectPreset        struct{ Amount domain.Money }
	EnterCustomAmount   struct{ Amount domain.Money }
	ChooseCategory      struct{ Category string }
	ChooseFrequency     struct{ Frequency domain.Frequency }
	ToggleCoverFees     struct{}
	UpdateDonor         struct{ Donor domain.DonorInfo }
	SetAnonymous        struct{ Anonymous bool }
	SetDedication       struct{ Dedication *domain.Dedication }
	SetDetails          struct{ Details string }
	Next                struct{}
	Previous            struct{}
	Submit              struct{}
	SubmissionSucceeded struct{ Result Result }
	RenewReference      struct{}
)

// SubmissionFailed carries the collaborator's message and the reference that
// was attempted, which stays available for a retry.
type SubmissionFailed struct {
	Message   string
	Reference string
}

func (SelectPreset) eventName() string        { return "select_preset" }
func (EnterCustomAmount) eventName() string   { return "enter_custom_amount" }
func (ChooseCategory) eventName() string      { return "choose_category" }
func (ChooseFrequency) eventName() string     { return "choose_frequency" }
func (ToggleCoverFees) eventName() string     { return "toggle_cover_fees" }
func (UpdateDonor) eventName() string         { return "update_donor" }
func (SetAnonymous) eventName() string        { return "set_anonymous" }
func (SetDedication) eventName() string       { return "set_dedication" }
func (SetDetails) eventName() string          { return "set_details" }
func (Next) eventName() string                { return "next" }
func (Previous) eventName() string            { return "previous" }
func (Submit) eventName() string              { return "submit" }
func (SubmissionSucceeded) eventName() string { return "submission_succeeded" }
func (SubmissionFailed) eventName() string    { return "submission_failed" }
func (RenewReference) eventName() string      { return "renew_reference" }

// Transition applies ev to s.
func Transition(s State, ev Event) (State, error) {
	switch s.Step {
	case Success:
		return s, fmt.Errorf("%w: %s", ErrFinished, ev.eventName())
	case Submitting:
		return whileSubmitting(s, ev)
	}
	if !s.Step.Editable() {
		return s, fmt.Errorf("%w: unknown step %q", ErrInvalidTransition, s.Step)
	}

	next := s
	switch e := ev.(type) {
	case SelectPreset:
		if e.Amount <= 0 {
			return s, domain.NewValidationError("amount", "must be greater than zero")
		}
		next.Amount, next.Preset = e.Amount, true
	case EnterCustomAmount:
		if e.Amount < 0 {
			return s, domain.NewValidationError("amount", "must not be negative")
		}
		next.Amount, next.Preset = e.Amount, false
	case ChooseCategory:
		if _, err := domain.LookupPaymentType(e.Category); err != nil {
			return s, err
		}
		next.Category = e.Category
	case ChooseFrequency:
		if !e.Frequency.Valid() {
			return s, domain.NewValidationError("frequency", "%q is not a supported frequency", e.Frequency)
		}
		next.Frequency = e.Frequency
	case ToggleCoverFees:
		next.CoverFees = !s.CoverFees
	case UpdateDonor:
		next.Donor = e.Donor
	case SetAnonymous:
		next.Anonymous = e.Anonymous
	case SetDedication:
		if e.Dedication != nil {
			if err := e.Dedication.Validate(); err != nil {
				return s, err
			}
			d := *e.Dedication
			next.Dedication = &d
		} else {
			next.Dedication = nil
		}
	case SetDetails:
		next.Details = e.Details
	case Next:
		return advance(s)
	case Previous:
		next.Step = previousStep(s.Step)
	case Submit:
		if s.Step != PaymentStep {
			return s, fmt.Errorf("%w: submit from %s", ErrInvalidTransition, s.Step)
		}
		// Fields stay editable on PaymentStep, so the earlier step guards run again.
		if err := checkAmount(s); err != nil {
			return s, err
		}
		if err := checkDonor(s); err != nil {
			return s, err
		}
		next.Step = Submitting
		next.Error = ""
		next.Attempts++
	case RenewReference:
		next.Reference = ""
	case SubmissionSucceeded, SubmissionFailed:
		return s, fmt.Errorf("%w: %s outside submission", ErrInvalidTransition, ev.eventName())
	default:
		return s, fmt.Errorf("%w: unsupported event %T", ErrInvalidTransition, ev)
	}
	return next, nil
}

func whileSubmitting(s State, ev Event) (State, error) {
	next := s
	switch e := ev.(type) {
	case SubmissionSucceeded:
		result := e.Result
		next.Step = Success
		next.Result = &result
		next.Error = ""
		if result.Reference != "" {
			next.Reference = result.Reference
		}
	case SubmissionFailed:
		next.Step = PaymentStep
		next.Error = strings.TrimSpace(e.Message)
		if next.Error == "" {
			next.Error = domain.GenericSubmissionMessage
		}
		if e.Reference != "" {
			next.Reference = e.Reference
		}
	default:
		return s, fmt.Errorf("%w: %s", ErrSubmissionLocked, ev.eventName())
	}
	return next, nil
}

func advance(s State) (State, error) {
	next := s
	switch s.Step {
	case AmountStep:
		if err := checkAmount(s); err != nil {
			return s, err
		}
		next.Step = DonorInfoStep
	case DonorInfoStep:
		if err := checkDonor(s); err != nil {
			return s, err
		}
		next.Step = PaymentStep
	default:
		return s, fmt.Errorf("%w: next from %s", ErrInvalidTransition, s.Step)
	}
	return next, nil
}

func checkAmount(s State) error {
	if s.Amount <= 0 {
		return domain.NewValidationError("amount", "must be greater than zero")
	}
	return nil
}

func checkDonor(s State) error {
	if s.Anonymous {
		return nil
	}
	return s.Donor.Validate(false)
}

func previousStep(step Step) Step {
	switch step {
	case PaymentStep:
		return DonorInfoStep
	case DonorInfoStep:
		return AmountStep
	}
	return step
}

// Intent builds the donation intent the pipeline receives.
func (s State) Intent() domain.DonationIntent {
	intent := domain.DonationIntent{
		Category:  s.Category,
		Amount:    s.Amount,
		Frequency: s.Frequency,
		CoverFees: s.CoverFees,
		Donor:     s.Donor.Normalized(),
		Anonymous: s.Anonymous,
		Details:   strings.TrimSpace(s.Details),
		Reference: s.Reference,
	}
	if s.Dedication != nil {
		d := *s.Dedication
		intent.Dedication = &d
	}
	return intent
}

// Breakdown is the live total shown while the donor edits the form.
func (s State) Breakdown(rule domain.FeeRule) domain.FeeBreakdown {
	b, err := rule.Breakdown(s.Amount, s.CoverFees)
	if err != nil {
		return domain.FeeBreakdown{}
	}
	return b
}
