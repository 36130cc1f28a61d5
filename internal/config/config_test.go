package config

import (
	"testing"

	"github.com/spf13/viper"
)

func TestLoadConfig_Defaults(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("PORT", "")
	t.Setenv("FEE_PERCENT", "")
	t.Setenv("PUBLIC_BASE_URL", "https://foursquareajebo.org/")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "8080" {
		t.Fatalf("expected default port 8080, got %q", cfg.ServerPort)
	}
	if cfg.Currency != "NGN" {
		t.Fatalf("expected NGN, got %q", cfg.Currency)
	}
	rule := cfg.FeeRule()
	fees, _ := rule.ComputeTotalFees(10000, true)
	if fees != 250 {
		t.Fatalf("expected default rule to charge 250 on 10000, got %d", fees)
	}
	if cfg.PaymentSuccessURL != "https://foursquareajebo.org/give/success" {
		t.Fatalf("unexpected success url %q", cfg.PaymentSuccessURL)
	}
	if cfg.PaymentFailureURL != "https://foursquareajebo.org/give/failed" {
		t.Fatalf("unexpected failure url %q", cfg.PaymentFailureURL)
	}
}

func TestLoadConfig_PortOverridesServerPort(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("SERVER_PORT", "9000")
	t.Setenv("PORT", "7000")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.ServerPort != "7000" {
		t.Fatalf("expected PORT to win, got %q", cfg.ServerPort)
	}
}

func TestLoadConfig_CoercesInvalidFees(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)

	t.Setenv("FEE_PERCENT", "-2")
	t.Setenv("FEE_FIXED", "-100")
	t.Setenv("FEE_CAP", "-5")

	cfg, err := LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.FeePercent != 0 || cfg.FeeFixed != 0 || cfg.FeeCap != 0 {
		t.Fatalf("expected coerced fees, got percent=%f fixed=%d cap=%d", cfg.FeePercent, cfg.FeeFixed, cfg.FeeCap)
	}

	viper.Reset()
	t.Setenv("FEE_PERCENT", "150")
	cfg, err = LoadConfig(t.TempDir())
	if err != nil {
		t.Fatalf("LoadConfig returned error: %v", err)
	}
	if cfg.FeePercent != 100 {
		t.Fatalf("expected percent capped at 100, got %f", cfg.FeePercent)
	}
}

func TestConfig_AnonymousDonor(t *testing.T) {
	cfg := Config{AnonymousDonorName: "Anonymous Giver", AnonymousDonorEmail: "giving@example.org", AnonymousDonorPhone: "08000000000"}
	donor := cfg.AnonymousDonor()
	if donor.FirstName != "Anonymous" || donor.LastName != "Giver" || donor.Email != "giving@example.org" {
		t.Fatalf("unexpected placeholder donor %+v", donor)
	}
}
