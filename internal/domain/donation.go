package domain

import (
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/go-ozzo/ozzo-validation/v4/is"
)

// Frequency is descriptive only and never changes the fee math.
type Frequency string

const (
	FrequencyOneTime   Frequency = "one-time"
	FrequencyWeekly    Frequency = "weekly"
	FrequencyMonthly   Frequency = "monthly"
	FrequencyQuarterly Frequency = "quarterly"
	FrequencyYearly    Frequency = "yearly"
)

// Frequencies lists the accepted values in display order.
var Frequencies = []Frequency{FrequencyOneTime, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly}

func (f Frequency) Valid() bool {
	for _, known := range Frequencies {
		if f == known {
			return true
		}
	}
	return false
}

type DonorInfo struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// FullName joins first and last name.
func (d DonorInfo) FullName() string {
	return strings.TrimSpace(strings.TrimSpace(d.FirstName) + " " + strings.TrimSpace(d.LastName))
}

// Normalized trims surrounding whitespace from every field.
func (d DonorInfo) Normalized() DonorInfo {
	return DonorInfo{
		FirstName: strings.TrimSpace(d.FirstName),
		LastName:  strings.TrimSpace(d.LastName),
		Email:     strings.TrimSpace(d.Email),
		Phone:     strings.TrimSpace(d.Phone),
	}
}

// Validate checks the identity of a named donor. Phone is only mandatory
// when requirePhone is set.
func (d DonorInfo) Validate(requirePhone bool) error {
	d = d.Normalized()
	phoneRules := []validation.Rule{validation.Length(7, 20)}
	if requirePhone {
		phoneRules = append([]validation.Rule{validation.Required}, phoneRules...)
	}
	return AsValidationError(validation.ValidateStruct(&d,
		validation.Field(&d.FirstName, validation.Required, validation.Length(1, 100)),
		validation.Field(&d.LastName, validation.Required, validation.Length(1, 100)),
		validation.Field(&d.Email, validation.Required, is.EmailFormat),
		validation.Field(&d.Phone, phoneRules...),
	))
}

type DedicationKind string

const (
	DedicationInHonorOf  DedicationKind = "in-honor-of"
	DedicationInMemoryOf DedicationKind = "in-memory-of"
)

func (k DedicationKind) Valid() bool {
	return k == DedicationInHonorOf || k == DedicationInMemoryOf
}

type Dedication struct {
	Kind    DedicationKind `json:"kind"`
	Name    string         `json:"name"`
	Message string         `json:"message,omitempty"`
}

func (d Dedication) Validate() error {
	return AsValidationError(validation.ValidateStruct(&d,
		validation.Field(&d.Kind, validation.Required, validation.In(DedicationInHonorOf, DedicationInMemoryOf)),
		validation.Field(&d.Name, validation.Required, validation.Length(1, 120)),
		validation.Field(&d.Message, validation.Length(0, 500)),
	))
}

// DonationIntent is one attempted contribution, not yet confirmed.
type DonationIntent struct {
	Category   string      `json:"category"`
	Amount     Money       `json:"amount"`
	Frequency  Frequency   `json:"frequency"`
	CoverFees  bool        `json:"cover_fees"`
	Donor      DonorInfo   `json:"donor"`
	Anonymous  bool        `json:"anonymous"`
	Dedication *Dedication `json:"dedication,omitempty"`
	Details    string      `json:"details,omitempty"`
	Reference  string      `json:"reference,omitempty"`
}

// Description is the free-text line sent to the payment collaborator.
func (i DonationIntent) Description() string {
	name := i.Category
	if pt, ok := GetPaymentType(i.Category); ok {
		name = pt.Name
	}
	desc := name
	if i.Frequency != "" && i.Frequency != FrequencyOneTime {
		desc += " (" + string(i.Frequency) + ")"
	}
	if d := strings.TrimSpace(i.Details); d != "" {
		desc += ": " + d
	}
	return desc
}

type DonationStatus string

const (
	// DonationProcessing marks an attempt whose collaborator call is in flight.
	DonationProcessing DonationStatus = "processing"
	DonationPending    DonationStatus = "pending"
	DonationSuccess    DonationStatus = "success"
	DonationFailed     DonationStatus = "failed"
	DonationExpired    DonationStatus = "expired"
)

// Terminal reports whether no further transition is expected.
func (s DonationStatus) Terminal() bool {
	return s == DonationSuccess || s == DonationFailed || s == DonationExpired
}

// DonationRecord is the persisted history of one reference.
type DonationRecord struct {
	Reference     string         `json:"reference"`
	Status        DonationStatus `json:"status"`
	Category      string         `json:"category"`
	Frequency     Frequency      `json:"frequency"`
	Anonymous     bool           `json:"anonymous"`
	DonorName     string         `json:"donor_name,omitempty"`
	DonorEmail    string         `json:"donor_email,omitempty"`
	Breakdown     FeeBreakdown   `json:"breakdown"`
	TransactionID string         `json:"transaction_id,omitempty"`
	PaymentURL    string         `json:"payment_url,omitempty"`
	ProviderState string         `json:"provider_status,omitempty"`
	IsTestMode    bool           `json:"is_test_mode"`
	Attempts      int            `json:"attempts"`
	LastError     string         `json:"last_error,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`
}

// Initiated reports whether the collaborator accepted this reference.
func (r DonationRecord) Initiated() bool {
	return r.TransactionID != "" && (r.Status == DonationPending || r.Status == DonationSuccess)
}
