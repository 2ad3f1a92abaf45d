package configs

import (
	"log"
	"time"

	"github.com/shopspring/decimal"
)

type SchedulingConfig struct {
	MinDuration time.Duration
	MaxDuration time.Duration
	MinAdvance  time.Duration
	MaxAdvance  time.Duration
	BreakBuffer time.Duration
	Location    *time.Location
}

func DefaultSchedulingConfig() SchedulingConfig {
	return SchedulingConfig{
		MinDuration: 30 * time.Minute,
		MaxDuration: 180 * time.Minute,
		MinAdvance:  2 * time.Hour,
		MaxAdvance:  90 * 24 * time.Hour,
		BreakBuffer: 15 * time.Minute,
		Location:    time.UTC,
	}
}

func LoadSchedulingConfig() SchedulingConfig {
	cfg := DefaultSchedulingConfig()
	cfg.MinAdvance = time.Duration(GetEnvInt("LESSON_MIN_ADVANCE_HOURS", 2)) * time.Hour
	cfg.MaxAdvance = time.Duration(GetEnvInt("LESSON_MAX_ADVANCE_DAYS", 90)) * 24 * time.Hour
	cfg.BreakBuffer = time.Duration(GetEnvInt("LESSON_BREAK_MINUTES", 15)) * time.Minute
	cfg.Location = SchoolLocation()
	return cfg
}

type PaymentConfig struct {
	Currency       string
	MinAmount      decimal.Decimal
	MaxAmount      decimal.Decimal
	MaxDaily       decimal.Decimal
	GatewayTimeout time.Duration
}

func DefaultPaymentConfig() PaymentConfig {
	return PaymentConfig{
		Currency:       "KES",
		MinAmount:      decimal.NewFromInt(100),
		MaxAmount:      decimal.NewFromInt(500000),
		MaxDaily:       decimal.NewFromInt(1000000),
		GatewayTimeout: 30 * time.Second,
	}
}

func LoadPaymentConfig() PaymentConfig {
	cfg := DefaultPaymentConfig()
	cfg.MinAmount = envDecimal("PAYMENT_MIN_AMOUNT", cfg.MinAmount)
	cfg.MaxAmount = envDecimal("PAYMENT_MAX_AMOUNT", cfg.MaxAmount)
	cfg.MaxDaily = envDecimal("PAYMENT_MAX_DAILY", cfg.MaxDaily)
	cfg.GatewayTimeout = GetEnvDuration("PAYMENT_GATEWAY_TIMEOUT", cfg.GatewayTimeout)
	return cfg
}

type MpesaConfig struct {
	BaseURL        string
	ConsumerKey    string
	ConsumerSecret string
	ShortCode      string
	PassKey        string
	CallbackURL    string
	CallbackToken  string
}

const (
	MpesaSandboxURL    = "https://sandbox.safaricom.co.ke"
	MpesaProductionURL = "https://api.safaricom.co.ke"
)

func LoadMpesaConfig() MpesaConfig {
	base := MpesaSandboxURL
	if GetEnv("MPESA_ENVIRONMENT", "sandbox") == "production" {
		base = MpesaProductionURL
	}
	return MpesaConfig{
		BaseURL:        GetEnv("MPESA_BASE_URL", base),
		ConsumerKey:    GetEnv("MPESA_CONSUMER_KEY"),
		ConsumerSecret: GetEnv("MPESA_CONSUMER_SECRET"),
		ShortCode:      GetEnv("MPESA_SHORTCODE", "174379"),
		PassKey:        GetEnv("MPESA_PASSKEY"),
		CallbackURL:    GetEnv("MPESA_CALLBACK_URL"),
		CallbackToken:  GetEnv("MPESA_CALLBACK_TOKEN"),
	}
}

type MidtransConfig struct {
	ServerKey     string
	UseProduction bool
}

func LoadMidtransConfig() MidtransConfig {
	return MidtransConfig{
		ServerKey:     GetEnv("MIDTRANS_SERVER_KEY"),
		UseProduction: GetEnvBool("MIDTRANS_USE_PROD", false),
	}
}

func envDecimal(key string, def decimal.Decimal) decimal.Decimal {
	v := GetEnv(key)
	if v == "" {
		return def
	}
	d, err := decimal.NewFromString(v)
	if err != nil {
		log.Printf("[WARN] %s=%q is not a decimal, using %s", key, v, def)
		return def
	}
	return d
}
