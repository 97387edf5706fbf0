package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the application
type Config struct {
	Server     ServerConfig     `mapstructure:"server"`
	Database   DatabaseConfig   `mapstructure:"database"`
	Redis      RedisConfig      `mapstructure:"redis"`
	Log        LogConfig        `mapstructure:"log"`
	Security   SecurityConfig   `mapstructure:"security"`
	Webhook    WebhookConfig    `mapstructure:"webhook"`
	Email      EmailConfig      `mapstructure:"email"`
	Dashboard  DashboardConfig  `mapstructure:"dashboard"`
	Submission SubmissionConfig `mapstructure:"submission"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// DatabaseConfig holds PostgreSQL configuration
type DatabaseConfig struct {
	Host           string `mapstructure:"host"`
	Port           int    `mapstructure:"port"`
	Name           string `mapstructure:"name"`
	User           string `mapstructure:"user"`
	Password       string `mapstructure:"password"`
	SSLMode        string `mapstructure:"ssl_mode"`
	MaxConnections int    `mapstructure:"max_connections"`
}

// DSN returns the PostgreSQL connection string
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Name, c.SSLMode,
	)
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// Addr returns the Redis address
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// LogConfig holds logging configuration
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	RateLimiting RateLimitingConfig `mapstructure:"rate_limiting"`
}

// RateLimitingConfig holds rate limiting configuration
type RateLimitingConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Limit   int           `mapstructure:"limit"`
	Window  time.Duration `mapstructure:"window"`
	// TrustProxy keys clients by the first X-Forwarded-For entry. Enable only
	// behind a proxy that overwrites the header.
	TrustProxy bool `mapstructure:"trust_proxy"`
}

// WebhookConfig holds the shared secret used to authenticate form webhooks.
type WebhookConfig struct {
	// Secret signs and verifies HS256 webhook tokens. Empty disables authentication.
	Secret string `mapstructure:"secret"`
	// Issuer is the expected "iss" claim of webhook tokens
	Issuer string `mapstructure:"issuer"`
}

// EmailConfig holds email sending configuration
type EmailConfig struct {
	// Provider is the email provider to use: "gmail", "resend", "smtp" or "log"
	Provider string `mapstructure:"provider"`
	// SenderAddress is the "From" email address
	SenderAddress string `mapstructure:"sender_address"`
	// SenderName is the display name for the sender
	SenderName string `mapstructure:"sender_name"`
	// RedirectTo sends every email to this address instead of the respondent (development only)
	RedirectTo string `mapstructure:"redirect_to"`

	Gmail  GmailEmailConfig  `mapstructure:"gmail"`
	Resend ResendEmailConfig `mapstructure:"resend"`
	SMTP   SMTPEmailConfig   `mapstructure:"smtp"`
}

// GmailEmailConfig holds Gmail API configuration
type GmailEmailConfig struct {
	// CredentialsJSON is the service account credentials JSON content
	CredentialsJSON string `mapstructure:"credentials_json"`
	// ClientID for OAuth2 token-based auth (alternative to service account)
	ClientID string `mapstructure:"client_id"`
	// ClientSecret for OAuth2 token-based auth
	ClientSecret string `mapstructure:"client_secret"`
	// RefreshToken for OAuth2 token-based auth
	RefreshToken string `mapstructure:"refresh_token"`
}

// ResendEmailConfig holds Resend API configuration
type ResendEmailConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// SMTPEmailConfig holds SMTP relay configuration
type SMTPEmailConfig struct {
	Host               string `mapstructure:"host"`
	Port               int    `mapstructure:"port"`
	Username           string `mapstructure:"username"`
	Password           string `mapstructure:"password"`
	InsecureSkipVerify bool   `mapstructure:"insecure_skip_verify"`
}

// DashboardConfig describes the external results dashboard and the mail that links to it
type DashboardConfig struct {
	// BaseURL is the dashboard root, e.g. "https://profile.example.app"
	BaseURL string `mapstructure:"base_url"`
	// Subject is the subject line of the results email
	Subject string `mapstructure:"subject"`
	// SurveyName is shown in the body ("Thank you for completing the ...")
	SurveyName string `mapstructure:"survey_name"`
	// ButtonLabel is the text of the link button
	ButtonLabel string `mapstructure:"button_label"`
	// EmailField is the form question holding the respondent's address
	EmailField string `mapstructure:"email_field"`
	// NameField is the optional form question holding the respondent's name
	NameField string `mapstructure:"name_field"`
	// NormalizeEmail trims and lowercases the address placed in the link, the
	// key the dashboard matches responses on
	NormalizeEmail bool `mapstructure:"normalize_email"`
}

// ErrInvalidBaseURL is returned for a dashboard base URL that cannot carry the email query.
var ErrInvalidBaseURL = errors.New("dashboard base URL must be an absolute http(s) URL without query")

// ParseBaseURL checks that base is an absolute http(s) URL with a host and
// no query or fragment.
func ParseBaseURL(base string) (*url.URL, error) {
	u, err := url.Parse(base)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
	}
	if u.RawQuery != "" || u.Fragment != "" || u.ForceQuery {
		return nil, fmt.Errorf("%w: %q", ErrInvalidBaseURL, base)
	}
	return u, nil
}

// SubmissionConfig controls how incoming submissions are handled
type SubmissionConfig struct {
	// DedupeWindow suppresses repeat links to the same address within the window. Zero disables.
	DedupeWindow time.Duration `mapstructure:"dedupe_window"`
	// RecordDeliveries stores every delivery attempt in PostgreSQL
	RecordDeliveries bool `mapstructure:"record_deliveries"`
}

// Load reads configuration from file and environment variables
func Load() (*Config, error) {
	v := viper.New()

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.AddConfigPath("/etc/formlink")

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults and env vars
	}

	v.SetEnvPrefix("FORMLINK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

// Validate checks the settings needed to send results emails.
// The migrate tool only needs the database section and skips this.
func (c *Config) Validate() error {
	if c.Dashboard.BaseURL == "" {
		return fmt.Errorf("dashboard.base_url is required")
	}
	if _, err := ParseBaseURL(c.Dashboard.BaseURL); err != nil {
		return fmt.Errorf("dashboard.base_url: %w", err)
	}
	if c.Dashboard.EmailField == "" {
		return fmt.Errorf("dashboard.email_field is required")
	}
	switch c.Email.Provider {
	case "gmail", "resend", "smtp", "log":
	default:
		return fmt.Errorf("unknown email provider %q", c.Email.Provider)
	}
	return nil
}

func setDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	// Database defaults
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.name", "formlink")
	v.SetDefault("database.user", "formlink")
	v.SetDefault("database.password", "")
	v.SetDefault("database.ssl_mode", "disable")
	v.SetDefault("database.max_connections", 10)

	// Redis defaults
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	v.SetDefault("security.rate_limiting.enabled", true)
	v.SetDefault("security.rate_limiting.limit", 60)
	v.SetDefault("security.rate_limiting.window", "1m")
	v.SetDefault("security.rate_limiting.trust_proxy", false)

	v.SetDefault("webhook.secret", "")
	v.SetDefault("webhook.issuer", "formlink")

	// Email defaults
	v.SetDefault("email.provider", "gmail")
	v.SetDefault("email.sender_address", "")
	v.SetDefault("email.sender_name", "Strategic Impact Assessment")
	v.SetDefault("email.redirect_to", "")
	v.SetDefault("email.gmail.credentials_json", "")
	v.SetDefault("email.gmail.client_id", "")
	v.SetDefault("email.gmail.client_secret", "")
	v.SetDefault("email.gmail.refresh_token", "")
	v.SetDefault("email.resend.api_key", "")
	v.SetDefault("email.smtp.host", "")
	v.SetDefault("email.smtp.port", 587)
	v.SetDefault("email.smtp.username", "")
	v.SetDefault("email.smtp.password", "")
	v.SetDefault("email.smtp.insecure_skip_verify", false)

	// Dashboard defaults
	v.SetDefault("dashboard.base_url", "")
	v.SetDefault("dashboard.subject", "Your Strategic Impact Profile is Ready")
	v.SetDefault("dashboard.survey_name", "Strategic Impact Self-Assessment")
	v.SetDefault("dashboard.button_label", "View My Profile")
	v.SetDefault("dashboard.email_field", "Work Email Address")
	v.SetDefault("dashboard.name_field", "Name")
	v.SetDefault("dashboard.normalize_email", true)

	v.SetDefault("submission.dedupe_window", "10m")
	v.SetDefault("submission.record_deliveries", true)
}
