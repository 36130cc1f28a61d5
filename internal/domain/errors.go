package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
)

var (
	ErrUnknownCategory    = errors.New("unknown giving category")
	ErrRegistrationClosed = errors.New("registration closed")
	ErrNotRegistered      = errors.New("member is not registered for this event")
	ErrEventNotFound      = errors.New("event not found")
	ErrDonationNotFound   = errors.New("donation not found")
)

// ErrSubmissionInProgress is returned when the same reference is already
// being submitted.
var ErrSubmissionInProgress = errors.New("a submission for this reference is already in progress")

// ValidationError is raised before any external call is made. It is always
// correctable by the donor.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// NewValidationError builds a ValidationError for field.
func NewValidationError(field, format string, args ...interface{}) *ValidationError {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

// AsValidationError flattens an ozzo-validation result into a single
// ValidationError, reporting the first failing field by name.
func AsValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validation.Errors
	if errors.As(err, &fieldErrs) {
		fields := make([]string, 0, len(fieldErrs))
		for field, fieldErr := range fieldErrs {
			if fieldErr != nil {
				fields = append(fields, field)
			}
		}
		if len(fields) == 0 {
			return nil
		}
		sort.Strings(fields)
		return &ValidationError{Field: fields[0], Message: fieldErrs[fields[0]].Error()}
	}
	var existing *ValidationError
	if errors.As(err, &existing) {
		return existing
	}
	return &ValidationError{Message: err.Error()}
}

// SubmissionErrorKind distinguishes a declined payment from a transport failure.
type SubmissionErrorKind string

const (
	SubmissionDeclined  SubmissionErrorKind = "declined"
	SubmissionTransport SubmissionErrorKind = "transport"
)

// GenericSubmissionMessage is shown when the collaborator gives no usable message.
const GenericSubmissionMessage = "We could not start your payment. Please try again."

// SubmissionError reports a payment collaborator rejection or failure. The
// reference it carries was not consumed and may be resubmitted.
type SubmissionError struct {
	Kind      SubmissionErrorKind
	Reference string
	Message   string
	Err       error
}

func (e *SubmissionError) Error() string {
	msg := strings.TrimSpace(e.Message)
	if msg == "" {
		msg = GenericSubmissionMessage
	}
	if e.Err != nil {
		return fmt.Sprintf("payment %s (%s): %s: %v", e.Kind, e.Reference, msg, e.Err)
	}
	return fmt.Sprintf("payment %s (%s): %s", e.Kind, e.Reference, msg)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

// UserMessage is the text safe to show a donor.
func (e *SubmissionError) UserMessage() string {
	if e.Kind == SubmissionDeclined && strings.TrimSpace(e.Message) != "" {
		return e.Message
	}
	return GenericSubmissionMessage
}

// RegistrationReason names why a member cannot register.
type RegistrationReason string

const (
	ReasonNone              RegistrationReason = ""
	ReasonNotRequired       RegistrationReason = "not_required"
	ReasonAlreadyRegistered RegistrationReason = "already_registered"
	ReasonFull              RegistrationReason = "full"
	ReasonDeadlinePassed    RegistrationReason = "deadline_passed"
	ReasonEventClosed       RegistrationReason = "event_closed"
)

var reasonMessages = map[RegistrationReason]string{
	ReasonNotRequired:       "This event does not take registrations.",
	ReasonAlreadyRegistered: "You are already registered for this event.",
	ReasonFull:              "This event is full.",
	ReasonDeadlinePassed:    "The registration deadline has passed.",
	ReasonEventClosed:       "This event is no longer open.",
}

// Message returns donor-facing text for the reason.
func (r RegistrationReason) Message() string {
	return reasonMessages[r]
}

// RegistrationError wraps ErrRegistrationClosed with the specific reason.
type RegistrationError struct {
	Reason RegistrationReason
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("%s: %s", ErrRegistrationClosed, e.Reason)
}

func (e *RegistrationError) Unwrap() error { return ErrRegistrationClosed }

// RegistrationReasonOf extracts the reason from err, or ReasonNone.
func RegistrationReasonOf(err error) RegistrationReason {
	var regErr *RegistrationError
	if errors.As(err, &regErr) {
		return regErr.Reason
	}
	return ReasonNone
}
