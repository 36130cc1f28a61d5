/**
 * @description
 * Configuration for the giving-service, scheduler and givingctl binaries. Values
 * come from the environment, optionally seeded by a .env file in the working
 * directory.
 *
 * @dependencies
 * - github.com/spf13/viper: environment binding and defaults.
 */

package config

import (
	"log"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/Moyowalker/foursquare-ajebo-website-V2-sub001/internal/domain"
)

type Config struct {
	ServerPort                string  `mapstructure:"SERVER_PORT"`
	DatabaseURL               string  `mapstructure:"DATABASE_URL"`
	BoltPath                  string  `mapstructure:"BOLT_PATH"`
	RedisURL                  string  `mapstructure:"REDIS_URL"`
	RedisRateLimitPrefix      string  `mapstructure:"REDIS_RATE_LIMIT_PREFIX"`
	PaymentRateLimitPerMinute int     `mapstructure:"PAYMENT_RATE_LIMIT_PER_MINUTE"`
	RabbitMQURL               string  `mapstructure:"RABBITMQ_URL"`
	VencoAPIBaseURL           string  `mapstructure:"VENCO_API_BASE_URL"`
	VencoAPIKey               string  `mapstructure:"VENCO_API_KEY"`
	VencoSecretKey            string  `mapstructure:"VENCO_SECRET_KEY"`
	Currency                  string  `mapstructure:"CURRENCY"`
	FeePercent                float64 `mapstructure:"FEE_PERCENT"`
	FeeFixed                  int64   `mapstructure:"FEE_FIXED"`
	FeeCap                    int64   `mapstructure:"FEE_CAP"`
	PaymentSuccessURL         string  `mapstructure:"PAYMENT_SUCCESS_URL"`
	PaymentFailureURL         string  `mapstructure:"PAYMENT_FAILURE_URL"`
	PublicBaseURL             string  `mapstructure:"PUBLIC_BASE_URL"`
	SMTPHost                  string  `mapstructure:"SMTP_HOST"`
	SMTPUsername              string  `mapstructure:"SMTP_USERNAME"`
	SMTPPassword              string  `mapstructure:"SMTP_PASSWORD"`
	MailFrom                  string  `mapstructure:"MAIL_FROM"`
	MemberJWKSURL             string  `mapstructure:"MEMBER_JWKS_URL"`
	InternalAPIKey            string  `mapstructure:"INTERNAL_API_KEY"`
	AnonymousDonorName        string  `mapstructure:"ANONYMOUS_DONOR_NAME"`
	AnonymousDonorEmail       string  `mapstructure:"ANONYMOUS_DONOR_EMAIL"`
	AnonymousDonorPhone       string  `mapstructure:"ANONYMOUS_DONOR_PHONE"`
	BusinessTimezone          string  `mapstructure:"BUSINESS_TIMEZONE"`
	LogDebug                  bool    `mapstructure:"LOG_DEBUG"`

	// Scheduler
	GivingServiceURL          string `mapstructure:"GIVING_SERVICE_URL"`
	EventSweepSchedule        string `mapstructure:"EVENT_SWEEP_SCHEDULE"`
	DonationSweepSchedule     string `mapstructure:"DONATION_SWEEP_SCHEDULE"`
	DonationPendingTTLMinutes int    `mapstructure:"DONATION_PENDING_TTL_MINUTES"`
}

// LoadConfig reads configuration from the environment and an optional .env
// file under path.
func LoadConfig(path string) (config Config, err error) {
	viper.AddConfigPath(path)
	viper.SetConfigName(".env")
	viper.SetConfigType("env")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	viper.SetDefault("SERVER_PORT", "8080")
	viper.SetDefault("BOLT_PATH", "giving.db")
	viper.SetDefault("REDIS_RATE_LIMIT_PREFIX", "ajebo:rate_limit")
	viper.SetDefault("PAYMENT_RATE_LIMIT_PER_MINUTE", 20)
	viper.SetDefault("CURRENCY", "NGN")
	viper.SetDefault("FEE_PERCENT", 1.5)
	viper.SetDefault("FEE_FIXED", 100)
	viper.SetDefault("FEE_CAP", 0)
	viper.SetDefault("PUBLIC_BASE_URL", "http://localhost:8080")
	viper.SetDefault("ANONYMOUS_DONOR_NAME", "Anonymous Giver")
	viper.SetDefault("ANONYMOUS_DONOR_EMAIL", "giving@foursquareajebo.org")
	viper.SetDefault("ANONYMOUS_DONOR_PHONE", "08000000000")
	viper.SetDefault("BUSINESS_TIMEZONE", "Africa/Lagos")
	viper.SetDefault("LOG_DEBUG", false)
	viper.SetDefault("GIVING_SERVICE_URL", "http://localhost:8080")
	viper.SetDefault("EVENT_SWEEP_SCHEDULE", "*/15 * * * *")
	viper.SetDefault("DONATION_SWEEP_SCHEDULE", "0 * * * *")
	viper.SetDefault("DONATION_PENDING_TTL_MINUTES", 120)

	for _, key := range []string{
		"SERVER_PORT", "PORT", "DATABASE_URL", "BOLT_PATH", "REDIS_URL", "REDIS_RATE_LIMIT_PREFIX",
		"PAYMENT_RATE_LIMIT_PER_MINUTE", "RABBITMQ_URL", "VENCO_API_BASE_URL", "VENCO_API_KEY",
		"VENCO_SECRET_KEY", "CURRENCY", "FEE_PERCENT", "FEE_FIXED", "FEE_CAP", "PAYMENT_SUCCESS_URL",
		"PAYMENT_FAILURE_URL", "PUBLIC_BASE_URL", "SMTP_HOST", "SMTP_USERNAME", "SMTP_PASSWORD",
		"MAIL_FROM", "MEMBER_JWKS_URL", "INTERNAL_API_KEY", "ANONYMOUS_DONOR_NAME",
		"ANONYMOUS_DONOR_EMAIL", "ANONYMOUS_DONOR_PHONE", "BUSINESS_TIMEZONE", "LOG_DEBUG",
		"GIVING_SERVICE_URL", "EVENT_SWEEP_SCHEDULE", "DONATION_SWEEP_SCHEDULE",
		"DONATION_PENDING_TTL_MINUTES",
	} {
		_ = viper.BindEnv(key)
	}

	if err = viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			log.Printf("level=warn component=config msg=\"failed to read config file; using environment values\" err=%v", err)
		}
	}

	err = viper.Unmarshal(&config)
	if err != nil {
		return
	}

	if port := strings.TrimSpace(os.Getenv("PORT")); port != "" {
		config.ServerPort = port
	}
	config.DatabaseURL = strings.TrimSpace(config.DatabaseURL)
	config.RedisURL = strings.TrimSpace(config.RedisURL)
	config.InternalAPIKey = strings.TrimSpace(config.InternalAPIKey)
	config.Currency = strings.ToUpper(strings.TrimSpace(config.Currency))
	config.PublicBaseURL = strings.TrimRight(strings.TrimSpace(config.PublicBaseURL), "/")

	if config.FeePercent < 0 {
		log.Printf("level=warn component=config msg=\"negative fee percent configured; coercing to zero\" fee_percent=%f", config.FeePercent)
		config.FeePercent = 0
	}
	if config.FeePercent > 100 {
		log.Printf("level=warn component=config msg=\"fee percent too high; capping at 100\" fee_percent=%f", config.FeePercent)
		config.FeePercent = 100
	}
	if config.FeeFixed < 0 {
		log.Printf("level=warn component=config msg=\"negative fixed fee configured; coercing to zero\" fee_fixed=%d", config.FeeFixed)
		config.FeeFixed = 0
	}
	if config.FeeCap < 0 {
		log.Printf("level=warn component=config msg=\"negative fee cap configured; disabling cap\" fee_cap=%d", config.FeeCap)
		config.FeeCap = 0
	}

	if config.PaymentSuccessURL == "" {
		config.PaymentSuccessURL = config.PublicBaseURL + "/give/success"
	}
	if config.PaymentFailureURL == "" {
		config.PaymentFailureURL = config.PublicBaseURL + "/give/failed"
	}
	if config.DonationPendingTTLMinutes <= 0 {
		config.DonationPendingTTLMinutes = 120
	}
	if config.PaymentRateLimitPerMinute < 0 {
		config.PaymentRateLimitPerMinute = 0
	}

	return
}

// FeeRule is the processing-fee rule the giving flow charges.
func (c Config) FeeRule() domain.FeeRule {
	return domain.NewFeeRule(c.FeePercent, c.FeeFixed, c.FeeCap)
}

// AnonymousDonor is the placeholder identity sent to the payment collaborator
// for anonymous gifts.
func (c Config) AnonymousDonor() domain.DonorInfo {
	first, last, _ := strings.Cut(strings.TrimSpace(c.AnonymousDonorName), " ")
	return domain.DonorInfo{FirstName: first, LastName: last, Email: c.AnonymousDonorEmail, Phone: c.AnonymousDonorPhone}
}

// Location resolves BUSINESS_TIMEZONE, falling back to UTC.
func (c Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.BusinessTimezone)
	if err != nil {
		log.Printf("level=warn component=config msg=\"invalid business timezone; using UTC\" timezone=%q err=%v", c.BusinessTimezone, err)
		return time.UTC
	}
	return loc
}

// DonationPendingTTL is how long a donation may sit pending before the sweep
// marks it expired.
func (c Config) DonationPendingTTL() time.Duration {
	return time.Duration(c.DonationPendingTTLMinutes) * time.Minute
}

// MailConfigured reports whether confirmation emails can be sent.
func (c Config) MailConfigured() bool {
	return strings.TrimSpace(c.SMTPHost) != "" && strings.TrimSpace(c.MailFrom) != ""
}
