package config

import (
	"context"
	"crypto/rsa"
	"encoding/base64"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"github.com/launchdarkly/go-sdk-common/v3/ldcontext"
	ld "github.com/launchdarkly/go-server-sdk/v7"
	"github.com/poofware/homeservices/backend/services/booking-service/internal/constants"
	"github.com/poofware/homeservices/backend/shared/go-utils"
)

type Config struct {
	OrganizationName string
	AppName          string
	AppPort          string
	AppUrl           string
	UniqueRunNumber  string
	UniqueRunnerID   string

	BackendBaseURL   string
	BackendAPIToken  string
	RSAPublicKey     *rsa.PublicKey
	DBUrl            string
	RedisAddr        string
	RedisPassword    string
	RedisDB          int
	StripeSecretKey  string
	PaymentCurrency  string
	TwilioAccountSID string
	TwilioAuthToken  string
	SendgridAPIKey   string

	LDFlag_PollInterval              time.Duration
	LDFlag_PollTimeout               time.Duration
	LDFlag_PollOnPartialDispatch     bool
	LDFlag_SendConfirmationSMS       bool
	LDFlag_AlertOpsOnPartialDispatch bool
	LDFlag_SendgridSandboxMode       bool
	LDFlag_TwilioFromPhone           string
	LDFlag_SendgridFromEmail         string
	LDFlag_CORSHighSecurity          bool
}

// Env is the environment surface, read with envconfig after an optional .env.
type Env struct {
	AppPort            string `envconfig:"APP_PORT" required:"true"`
	AppUrl             string `envconfig:"APP_URL_FROM_ANYWHERE" required:"true"`
	BackendBaseURL     string `envconfig:"BACKEND_BASE_URL" required:"true"`
	BackendAPIToken    string `envconfig:"BACKEND_API_TOKEN"`
	RSAPublicKeyBase64 string `envconfig:"RSA_PUBLIC_KEY_BASE64" required:"true"`
	DBUrl              string `envconfig:"DB_URL"`
	RedisAddr          string `envconfig:"REDIS_ADDR"`
	RedisPassword      string `envconfig:"REDIS_PASSWORD"`
	RedisDB            int    `envconfig:"REDIS_DB" default:"0"`
	StripeSecretKey    string `envconfig:"STRIPE_SECRET_KEY"`
	PaymentCurrency    string `envconfig:"PAYMENT_CURRENCY" default:"inr"`
	TwilioAccountSID   string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken    string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioFromPhone    string `envconfig:"TWILIO_FROM_PHONE"`
	SendgridAPIKey     string `envconfig:"SENDGRID_API_KEY"`
	SendgridFromEmail  string `envconfig:"SENDGRID_FROM_EMAIL" default:"no-reply@thepoofapp.com"`
	LDSDKKey           string `envconfig:"LD_SDK_KEY"`

	PollInterval          time.Duration `envconfig:"POLL_INTERVAL" default:"3s"`
	PollTimeout           time.Duration `envconfig:"POLL_TIMEOUT" default:"5m"`
	PollOnPartialDispatch bool          `envconfig:"POLL_ON_PARTIAL_DISPATCH" default:"true"`
	SendConfirmationSMS   bool          `envconfig:"SEND_CONFIRMATION_SMS" default:"false"`
	AlertOpsOnPartial     bool          `envconfig:"ALERT_OPS_ON_PARTIAL_DISPATCH" default:"true"`
}

const (
	OrganizationName    = utils.OrganizationName
	LDConnectionTimeout = 5 * time.Second
	HCPFetchTimeout     = 15 * time.Second
)

var (
	AppName             string
	UniqueRunNumber     string
	UniqueRunnerID      string
	LDServerContextKey  string
	LDServerContextKind string
)

// FlagSource is the part of the LaunchDarkly client config reads from.
type FlagSource interface {
	BoolVariation(key string, context ldcontext.Context, defaultVal bool) (bool, error)
	IntVariation(key string, context ldcontext.Context, defaultVal int) (int, error)
	StringVariation(key string, context ldcontext.Context, defaultVal string) (string, error)
}

func LoadConfig() *Config {
	if AppName == "" {
		utils.Logger.Fatal("AppName ldflag missing")
	}
	if UniqueRunNumber == "" {
		utils.Logger.Fatal("UniqueRunNumber ldflag missing")
	}
	if UniqueRunnerID == "" {
		utils.Logger.Fatal("UniqueRunnerID ldflag missing")
	}

	utils.Logger.Info("Loading config for app: ", AppName)

	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(); err != nil {
			utils.Logger.WithError(err).Fatal("Failed to load .env")
		}
	}

	if os.Getenv("HCP_ENCRYPTED_API_TOKEN") != "" {
		loadHCPSecrets()
	}

	var env Env
	if err := envconfig.Process("", &env); err != nil {
		utils.Logger.WithError(err).Fatal("Failed to read environment")
	}

	cfg, err := FromEnv(env)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Invalid configuration")
	}

	if env.LDSDKKey == "" {
		utils.Logger.Warn("LD_SDK_KEY not set; using environment defaults for all flags")
		return cfg
	}
	if LDServerContextKey == "" || LDServerContextKind == "" {
		utils.Logger.Fatal("LD context ldflags missing")
	}

	ldClient, err := ld.MakeClient(env.LDSDKKey, LDConnectionTimeout)
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to create LaunchDarkly client")
	}
	defer ldClient.Close()

	ctx := ldcontext.NewWithKind(ldcontext.Kind(LDServerContextKind), LDServerContextKey)
	if err := cfg.ApplyFlags(ldClient, ctx); err != nil {
		utils.Logger.WithError(err).Fatal("Error retrieving LaunchDarkly flags")
	}
	return cfg
}

// loadHCPSecrets exports the app-specific (appName-env) and shared
// (shared-env) secrets into the environment. Variables already set win.
func loadHCPSecrets() {
	env := os.Getenv("ENV")
	if env == "" {
		utils.Logger.Fatal("ENV must be set to fetch HCP secrets")
	}

	client, err := utils.NewHCPSecretsClient()
	if err != nil {
		utils.Logger.WithError(err).Fatal("Failed to initialize HCPSecretsClient")
	}

	ctx, cancel := context.WithTimeout(context.Background(), HCPFetchTimeout)
	defer cancel()
	for _, hcpAppName := range []string{fmt.Sprintf("%s-%s", AppName, env), fmt.Sprintf("shared-%s", env)} {
		utils.Logger.Debugf("Fetching secrets from HCP for %s", hcpAppName)
		secrets, err := client.GetHCPSecretsFromSecretsJSON(ctx, hcpAppName)
		if err != nil {
			utils.Logger.WithError(err).Fatalf("Failed to fetch secrets from HCP for %s", hcpAppName)
		}
		set, err := utils.ExportMissingEnv(secrets)
		if err != nil {
			utils.Logger.WithError(err).Fatal("Failed to export HCP secrets")
		}
		utils.Logger.Debugf("Exported %d secrets from %s", len(set), hcpAppName)
	}
}

// FromEnv builds a Config from the environment alone. Flag fields get the
// environment defaults.
func FromEnv(env Env) (*Config, error) {
	pubPEM, err := base64.StdEncoding.DecodeString(env.RSAPublicKeyBase64)
	if err != nil {
		return nil, fmt.Errorf("RSA_PUBLIC_KEY_BASE64 is not base64: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RSA public key: %w", err)
	}

	interval := env.PollInterval
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	return &Config{
		OrganizationName: OrganizationName,
		AppName:          AppName,
		AppPort:          env.AppPort,
		AppUrl:           env.AppUrl,
		UniqueRunNumber:  UniqueRunNumber,
		UniqueRunnerID:   UniqueRunnerID,
		BackendBaseURL:   env.BackendBaseURL,
		BackendAPIToken:  env.BackendAPIToken,
		RSAPublicKey:     pubKey,
		DBUrl:            env.DBUrl,
		RedisAddr:        env.RedisAddr,
		RedisPassword:    env.RedisPassword,
		RedisDB:          env.RedisDB,
		StripeSecretKey:  env.StripeSecretKey,
		PaymentCurrency:  env.PaymentCurrency,
		TwilioAccountSID: env.TwilioAccountSID,
		TwilioAuthToken:  env.TwilioAuthToken,
		SendgridAPIKey:   env.SendgridAPIKey,

		LDFlag_PollInterval:              interval,
		LDFlag_PollTimeout:               env.PollTimeout,
		LDFlag_PollOnPartialDispatch:     env.PollOnPartialDispatch,
		LDFlag_SendConfirmationSMS:       env.SendConfirmationSMS,
		LDFlag_AlertOpsOnPartialDispatch: env.AlertOpsOnPartial,
		LDFlag_TwilioFromPhone:           env.TwilioFromPhone,
		LDFlag_SendgridFromEmail:         env.SendgridFromEmail,
	}, nil
}

// ApplyFlags overrides the environment defaults with LaunchDarkly values.
func (c *Config) ApplyFlags(flags FlagSource, ctx ldcontext.Context) error {
	intervalMs, err := flags.IntVariation("poll_interval_ms", ctx, int(c.LDFlag_PollInterval/time.Millisecond))
	if err != nil {
		return fmt.Errorf("poll_interval_ms: %w", err)
	}
	if intervalMs > 0 {
		c.LDFlag_PollInterval = time.Duration(intervalMs) * time.Millisecond
	}
	utils.Logger.Debugf("poll_interval_ms flag: %d", intervalMs)

	timeoutSec, err := flags.IntVariation("poll_timeout_seconds", ctx, int(c.LDFlag_PollTimeout/time.Second))
	if err != nil {
		return fmt.Errorf("poll_timeout_seconds: %w", err)
	}
	if timeoutSec >= 0 {
		c.LDFlag_PollTimeout = time.Duration(timeoutSec) * time.Second
	}
	utils.Logger.Debugf("poll_timeout_seconds flag: %d", timeoutSec)

	bools := []struct {
		key string
		dst *bool
	}{
		{"poll_on_partial_dispatch", &c.LDFlag_PollOnPartialDispatch},
		{"send_confirmation_sms", &c.LDFlag_SendConfirmationSMS},
		{"alert_ops_on_partial_dispatch", &c.LDFlag_AlertOpsOnPartialDispatch},
		{"sendgrid_sandbox_mode", &c.LDFlag_SendgridSandboxMode},
		{"cors_high_security", &c.LDFlag_CORSHighSecurity},
	}
	for _, b := range bools {
		v, err := flags.BoolVariation(b.key, ctx, *b.dst)
		if err != nil {
			return fmt.Errorf("%s: %w", b.key, err)
		}
		*b.dst = v
		utils.Logger.Debugf("%s flag: %t", b.key, v)
	}

	fromPhone, err := flags.StringVariation("twilio_from_phone", ctx, c.LDFlag_TwilioFromPhone)
	if err != nil {
		return fmt.Errorf("twilio_from_phone: %w", err)
	}
	c.LDFlag_TwilioFromPhone = fromPhone
	utils.Logger.Debugf("twilio_from_phone flag: %s", fromPhone)

	fromEmail, err := flags.StringVariation("sendgrid_from_email", ctx, c.LDFlag_SendgridFromEmail)
	if err != nil {
		return fmt.Errorf("sendgrid_from_email: %w", err)
	}
	if fromEmail == "" {
		fromEmail = "no-reply@thepoofapp.com" // Fallback
	}
	c.LDFlag_SendgridFromEmail = fromEmail
	utils.Logger.Debugf("sendgrid_from_email flag: %s", fromEmail)

	return nil
}

func (c *Config) Close() {}
