package domain

import (
	"errors"
	"math"
	"testing"

	"github.com/shopspring/decimal"
)

func TestComputeTotalFees_DefaultRuleScenario(t *testing.T) {
	fees, err := ComputeTotalFees(10000, true)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if fees != 250 {
		t.Fatalf("expected fees 250, got %d", fees)
	}
	total, err := GetTotalAmount(10000, true)
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if total != 10250 {
		t.Fatalf("expected total 10250, got %d", total)
	}
}

func TestComputeTotalFees_ZeroWhenNotCovering(t *testing.T) {
	for _, amount := range []Money{0, 1, 999, 10000, 1_000_000_000} {
		fees, err := ComputeTotalFees(amount, false)
		if err != nil {
			t.Fatalf("amount %d: unexpected error %v", amount, err)
		}
		if fees != 0 {
			t.Fatalf("amount %d: expected zero fees, got %d", amount, fees)
		}
		total, _ := GetTotalAmount(amount, false)
		if total != amount {
			t.Fatalf("amount %d: expected total to equal amount, got %d", amount, total)
		}
	}
}

func TestComputeTotalFees_ZeroAmount(t *testing.T) {
	fees, err := ComputeTotalFees(0, true)
	if err != nil || fees != 0 {
		t.Fatalf("expected 0/nil, got %d/%v", fees, err)
	}
}

func TestComputeTotalFees_RejectsNegative(t *testing.T) {
	_, err := ComputeTotalFees(-1, true)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	_, err = GetTotalAmount(-50, false)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for total, got %v", err)
	}
}

func TestComputeTotalFees_Monotonic(t *testing.T) {
	rules := []FeeRule{
		DefaultFeeRule,
		NewFeeRule(2.9, 0, 0),
		NewFeeRule(1.5, 100, 2000),
		NewFeeRule(0, 50, 0),
	}
	for _, rule := range rules {
		var prev Money
		for amount := Money(0); amount <= 200_000; amount += 37 {
			fees, err := rule.ComputeTotalFees(amount, true)
			if err != nil {
				t.Fatalf("rule %s amount %d: unexpected error %v", rule, amount, err)
			}
			if fees < prev {
				t.Fatalf("rule %s: fees decreased at %d (%d < %d)", rule, amount, fees, prev)
			}
			if fees < 0 {
				t.Fatalf("rule %s: negative fee at %d", rule, amount)
			}
			prev = fees
		}
	}
}

func TestComputeTotalFees_TotalExceedsAmountWhenCovering(t *testing.T) {
	for _, amount := range []Money{1, 10, 1000, 123457} {
		total, err := GetTotalAmount(amount, true)
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if total <= amount {
			t.Fatalf("amount %d: expected total above amount, got %d", amount, total)
		}
	}
}

func TestComputeTotalFees_RoundsHalfUpOnce(t *testing.T) {
	rule := FeeRule{Percent: decimal.NewFromFloat(1.5)}
	cases := []struct {
		amount Money
		want   Money
	}{
		{amount: 100, want: 2},   // 1.5
		{amount: 99, want: 1},    // 1.485
		{amount: 1033, want: 15}, // 15.495
		{amount: 1034, want: 16}, // 15.51
	}
	for _, tc := range cases {
		got, err := rule.ComputeTotalFees(tc.amount, true)
		if err != nil {
			t.Fatalf("unexpected error %v", err)
		}
		if got != tc.want {
			t.Fatalf("amount %d: expected %d, got %d", tc.amount, tc.want, got)
		}
	}
}

func TestFeeRule_Cap(t *testing.T) {
	rule := NewFeeRule(1.5, 100, 2000)
	fees, _ := rule.ComputeTotalFees(1_000_000, true)
	if fees != 2000 {
		t.Fatalf("expected capped fee 2000, got %d", fees)
	}
}

func TestNewFeeRule_CoercesInvalidValues(t *testing.T) {
	rule := NewFeeRule(-3, -100, -1)
	if !rule.Percent.IsZero() || rule.Fixed != 0 || rule.Cap != 0 {
		t.Fatalf("expected zeroed rule, got %+v", rule)
	}
	if got := NewFeeRule(250, 0, 0); !got.Percent.Equal(decimal.NewFromInt(100)) {
		t.Fatalf("expected percent capped at 100, got %s", got.Percent)
	}
}

func TestComputeTotalFees_RejectsAmountsAboveCeiling(t *testing.T) {
	if _, err := ComputeTotalFees(MaxAmount+1, true); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if _, err := GetTotalAmount(9_200_000_000_000_000_000, false); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount without fee cover, got %v", err)
	}

	rule := FeeRule{Percent: decimal.NewFromInt(100), Fixed: Money(math.MaxInt64)}
	b, err := rule.Breakdown(MaxAmount, true)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if b.Total < b.Amount || b.Fees < 0 {
		t.Fatalf("expected total >= amount at the ceiling, got %+v", b)
	}
}

func TestParseMoney(t *testing.T) {
	cases := []struct {
		raw     string
		want    Money
		wantErr bool
	}{
		{raw: "10000", want: 10000},
		{raw: "₦10,000", want: 10000},
		{raw: " 2,500.50 ", want: 2501},
		{raw: "0", want: 0},
		{raw: "", wantErr: true},
		{raw: "-5", wantErr: true},
		{raw: "NaN", wantErr: true},
		{raw: "+Inf", wantErr: true},
		{raw: "ten", wantErr: true},
		{raw: "9200000000000000000", wantErr: true},
	}
	for _, tc := range cases {
		got, err := ParseMoney(tc.raw)
		if tc.wantErr {
			if !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("%q: expected ErrInvalidAmount, got %v", tc.raw, err)
			}
			continue
		}
		if err != nil {
			t.Fatalf("%q: unexpected error %v", tc.raw, err)
		}
		if got != tc.want {
			t.Fatalf("%q: expected %d, got %d", tc.raw, tc.want, got)
		}
	}
}

func TestMoney_String(t *testing.T) {
	if got := Money(10250).String(); got != "₦10,250" {
		t.Fatalf("expected ₦10,250, got %s", got)
	}
	if got := Money(1000).String(); got != "₦1,000" {
		t.Fatalf("expected ₦1,000, got %s", got)
	}
}
