/**
 * @description
 * Money type and processing-fee arithmetic for the giving flow.
 *
 * @notes
 * - Amounts are whole naira held in an int64. The giving UI never collects kobo,
 *   so the naira is the smallest unit any donation is expressed in.
 * - Percentage math goes through shopspring/decimal so a rate such as 1.5% is
 *   exact; the percentage component is rounded half-up exactly once per call.
 */
package domain

import (
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/shopspring/decimal"
)

// ErrInvalidAmount is returned for negative or non-finite amounts.
var ErrInvalidAmount = errors.New("invalid amount")

// CurrencySymbol is prefixed to formatted amounts.
const CurrencySymbol = "₦"

// Money is a monetary value in whole naira.
type Money int64

// MaxAmount is the largest gift the fee arithmetic accepts. Amount, percentage
// part and fixed fee each stay at or below it, so a total never overflows.
const MaxAmount Money = math.MaxInt64 / 4

// String renders the amount with a currency symbol and thousands separators, e.g. ₦10,250.
func (m Money) String() string {
	if m < 0 {
		return "-" + CurrencySymbol + humanize.Comma(int64(-m))
	}
	return CurrencySymbol + humanize.Comma(int64(m))
}

// ParseMoney parses user input such as "10000", "10,000" or "₦10,000".
// Fractional input is rounded half-up to the nearest naira.
func ParseMoney(raw string) (Money, error) {
	clean := strings.TrimSpace(raw)
	clean = strings.TrimPrefix(clean, CurrencySymbol)
	clean = strings.ReplaceAll(clean, ",", "")
	clean = strings.TrimSpace(clean)
	if clean == "" {
		return 0, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	lower := strings.ToLower(clean)
	if strings.Contains(lower, "nan") || strings.Contains(lower, "inf") {
		return 0, fmt.Errorf("%w: %q is not finite", ErrInvalidAmount, raw)
	}

	value, err := decimal.NewFromString(clean)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidAmount, raw)
	}
	if value.IsNegative() {
		return 0, fmt.Errorf("%w: %q is negative", ErrInvalidAmount, raw)
	}
	rounded := value.Round(0)
	if rounded.GreaterThan(decimal.NewFromInt(int64(MaxAmount))) {
		return 0, fmt.Errorf("%w: %q is too large", ErrInvalidAmount, raw)
	}
	return Money(rounded.IntPart()), nil
}

// FeeRule describes how the processing fee is derived from a gift amount:
// Percent% of the amount plus a Fixed component, optionally capped.
type FeeRule struct {
	Percent decimal.Decimal
	Fixed   Money
	// Cap bounds the total fee when positive.
	Cap Money
}

// DefaultFeeRule is 1.5% + ₦100.
var DefaultFeeRule = FeeRule{
	Percent: decimal.NewFromFloat(1.5),
	Fixed:   100,
}

// NewFeeRule builds a rule from configuration values, coercing negatives to zero.
func NewFeeRule(percent float64, fixed, feeCap int64) FeeRule {
	if percent < 0 || math.IsNaN(percent) || math.IsInf(percent, 0) {
		percent = 0
	}
	if percent > 100 {
		percent = 100
	}
	if fixed < 0 {
		fixed = 0
	}
	if feeCap < 0 {
		feeCap = 0
	}
	if fixed > int64(MaxAmount) {
		fixed = int64(MaxAmount)
	}
	return FeeRule{Percent: decimal.NewFromFloat(percent), Fixed: Money(fixed), Cap: Money(feeCap)}
}

// FeeBreakdown is derived, never stored on its own.
type FeeBreakdown struct {
	Amount Money `json:"amount"`
	Fees   Money `json:"fees"`
	Total  Money `json:"total"`
}

// ComputeTotalFees returns the processing fee for amount. It is zero unless the
// donor opted to cover fees.
func (r FeeRule) ComputeTotalFees(amount Money, coverFees bool) (Money, error) {
	if amount < 0 {
		return 0, fmt.Errorf("%w: %d is negative", ErrInvalidAmount, amount)
	}
	if amount > MaxAmount {
		return 0, fmt.Errorf("%w: %d exceeds %d", ErrInvalidAmount, amount, MaxAmount)
	}
	if !coverFees || amount == 0 {
		return 0, nil
	}

	percentPart := decimal.NewFromInt(int64(amount)).
		Mul(r.Percent).
		Div(decimal.NewFromInt(100)).
		Round(0)

	fixed := r.Fixed
	if fixed > MaxAmount {
		fixed = MaxAmount
	}
	fee := Money(percentPart.IntPart()) + fixed
	if r.Cap > 0 && fee > r.Cap {
		fee = r.Cap
	}
	if fee < 0 {
		fee = 0
	}
	return fee, nil
}

// GetTotalAmount returns amount plus fees.
func (r FeeRule) GetTotalAmount(amount Money, coverFees bool) (Money, error) {
	fees, err := r.ComputeTotalFees(amount, coverFees)
	if err != nil {
		return 0, err
	}
	return amount + fees, nil
}

// Breakdown returns amount, fees and total together.
func (r FeeRule) Breakdown(amount Money, coverFees bool) (FeeBreakdown, error) {
	fees, err := r.ComputeTotalFees(amount, coverFees)
	if err != nil {
		return FeeBreakdown{}, err
	}
	return FeeBreakdown{Amount: amount, Fees: fees, Total: amount + fees}, nil
}

// String describes the rule, e.g. "1.5% + ₦100".
func (r FeeRule) String() string {
	desc := r.Percent.String() + "%"
	if r.Fixed > 0 {
		desc += " + " + r.Fixed.String()
	}
	if r.Cap > 0 {
		desc += " (capped at " + r.Cap.String() + ")"
	}
	return desc
}

// ComputeTotalFees applies DefaultFeeRule.
func ComputeTotalFees(amount Money, coverFees bool) (Money, error) {
	return DefaultFeeRule.ComputeTotalFees(amount, coverFees)
}

// GetTotalAmount applies DefaultFeeRule.
func GetTotalAmount(amount Money, coverFees bool) (Money, error) {
	return DefaultFeeRule.GetTotalAmount(amount, coverFees)
}
