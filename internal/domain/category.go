package domain

import "fmt"

// PaymentType is a giving category with its validation rules. Name, Description
// and Icon are presentation only.
type PaymentType struct {
	ID               string  `json:"id"`
	Name             string  `json:"name"`
	Description      string  `json:"description"`
	Icon             string  `json:"icon"`
	SuggestedAmounts []Money `json:"suggested_amounts"`
	MinAmount        Money   `json:"min_amount,omitempty"`
	RequiresDetails  bool    `json:"requires_details,omitempty"`
}

const (
	CategoryTithe        = "tithe"
	CategoryOffering     = "offering"
	CategoryBuildingFund = "building-fund"
	CategoryMissions     = "missions"
	CategoryThanksgiving = "thanksgiving"
	CategorySpecial      = "special"
)

var paymentTypes = []PaymentType{
	{
		ID:               CategoryTithe,
		Name:             "Tithe",
		Description:      "Return a tenth of your increase to the house of God.",
		Icon:             "hand-heart",
		SuggestedAmounts: []Money{5000, 10000, 25000, 50000},
		MinAmount:        1000,
	},
	{
		ID:               CategoryOffering,
		Name:             "Offering",
		Description:      "General offering for the ministry and its services.",
		Icon:             "gift",
		SuggestedAmounts: []Money{1000, 2000, 5000, 10000},
	},
	{
		ID:               CategoryBuildingFund,
		Name:             "Building Fund",
		Description:      "Support the church building and facility projects.",
		Icon:             "building",
		SuggestedAmounts: []Money{10000, 25000, 50000, 100000},
		MinAmount:        5000,
	},
	{
		ID:               CategoryMissions,
		Name:             "Missions",
		Description:      "Fund outreach and missionary work.",
		Icon:             "globe",
		SuggestedAmounts: []Money{2000, 5000, 10000, 20000},
	},
	{
		ID:               CategoryThanksgiving,
		Name:             "Thanksgiving",
		Description:      "Give thanks for answered prayers and milestones.",
		Icon:             "sparkles",
		SuggestedAmounts: []Money{5000, 10000, 20000, 50000},
	},
	{
		ID:               CategorySpecial,
		Name:             "Special Project",
		Description:      "Give towards a named project or appeal.",
		Icon:             "star",
		SuggestedAmounts: []Money{5000, 10000, 25000},
		RequiresDetails:  true,
	},
}

var paymentTypesByID = func() map[string]PaymentType {
	m := make(map[string]PaymentType, len(paymentTypes))
	for _, pt := range paymentTypes {
		m[pt.ID] = pt
	}
	return m
}()

// GetPaymentType looks up a category. The boolean is false for unknown ids.
func GetPaymentType(id string) (PaymentType, bool) {
	pt, ok := paymentTypesByID[id]
	if !ok {
		return PaymentType{}, false
	}
	pt.SuggestedAmounts = append([]Money(nil), pt.SuggestedAmounts...)
	return pt, true
}

// LookupPaymentType is GetPaymentType with an ErrUnknownCategory error.
func LookupPaymentType(id string) (PaymentType, error) {
	pt, ok := GetPaymentType(id)
	if !ok {
		return PaymentType{}, fmt.Errorf("%w: %q", ErrUnknownCategory, id)
	}
	return pt, nil
}

// PaymentTypes returns the registry in display order.
func PaymentTypes() []PaymentType {
	out := make([]PaymentType, 0, len(paymentTypes))
	for _, pt := range paymentTypes {
		pt.SuggestedAmounts = append([]Money(nil), pt.SuggestedAmounts...)
		out = append(out, pt)
	}
	return out
}
