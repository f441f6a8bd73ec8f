// Package config builds the immutable process configuration from the
// environment. The struct is constructed once in main and passed down;
// nothing mutates it afterwards.
package config

import (
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultBaseURL is used when the configured provider URL is unusable.
const DefaultBaseURL = "https://api.verification.example.com/"

// Provider holds credentials and endpoints for the verification provider.
type Provider struct {
	ClientID    string
	SecretKey   string
	BaseURL     string
	CallbackURL string
	RedirectURL string
	Timeout     time.Duration
}

// Verification holds the core's tunables.
type Verification struct {
	TableName       string
	ReferenceIndex  string
	DefaultLanguage string
	Languages       map[string]string
	RatePerMinute   int
}

// Store selects and configures the ledger backend.
type Store struct {
	// Backend is one of "memory", "dynamo", "postgres".
	Backend        string
	DynamoRegion   string
	DynamoEndpoint string
	PostgresURL    string
}

// Redis configures the optional shared rate-guard window.
type Redis struct {
	URL          string
	PoolSize     int
	MinIdleConns int
	DialTimeout  time.Duration
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type Config struct {
	Addr          string
	JWTSigningKey string
	Provider      Provider
	Verification  Verification
	Store         Store
	Redis         Redis
}

// defaultLanguages maps locales the service recognizes to provider language
// codes. Primary-subtag fallback happens at resolution time, so only exact
// locale overrides need rows here.
func defaultLanguages() map[string]string {
	return map[string]string{
		"en":    "en",
		"en-us": "en",
		"en-gb": "en",
		"et":    "et",
		"ru":    "ru",
		"es":    "es",
		"pt":    "pt",
		"pt-br": "pt",
	}
}

// FromEnv builds a Config from environment variables so main stays lean.
func FromEnv() Config {
	return Config{
		Addr:          envOr("ATTEST_ADDR", ":8080"),
		JWTSigningKey: envOr("ATTEST_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		Provider: Provider{
			ClientID:    os.Getenv("ATTEST_PROVIDER_CLIENT_ID"),
			SecretKey:   os.Getenv("ATTEST_PROVIDER_SECRET_KEY"),
			BaseURL:     NormalizeBaseURL(os.Getenv("ATTEST_PROVIDER_BASE_URL")),
			CallbackURL: os.Getenv("ATTEST_CALLBACK_URL"),
			RedirectURL: os.Getenv("ATTEST_REDIRECT_URL"),
			Timeout:     envDuration("ATTEST_PROVIDER_TIMEOUT", 10*time.Second),
		},
		Verification: Verification{
			TableName:       envOr("ATTEST_LEDGER_TABLE", "verification_ledger"),
			ReferenceIndex:  envOr("ATTEST_REFERENCE_INDEX", "reference-index"),
			DefaultLanguage: envOr("ATTEST_DEFAULT_LANGUAGE", "en"),
			Languages:       defaultLanguages(),
			RatePerMinute:   envInt("ATTEST_RATE_PER_MINUTE", 60),
		},
		Store: Store{
			Backend:        envOr("ATTEST_STORE_BACKEND", "memory"),
			DynamoRegion:   envOr("AWS_REGION", "eu-west-1"),
			DynamoEndpoint: os.Getenv("DYNAMO_ENDPOINT"),
			PostgresURL:    os.Getenv("ATTEST_POSTGRES_URL"),
		},
		Redis: Redis{
			URL:          os.Getenv("ATTEST_REDIS_URL"),
			PoolSize:     envInt("ATTEST_REDIS_POOL_SIZE", 10),
			MinIdleConns: envInt("ATTEST_REDIS_MIN_IDLE", 2),
			DialTimeout:  envDuration("ATTEST_REDIS_DIAL_TIMEOUT", 5*time.Second),
			ReadTimeout:  envDuration("ATTEST_REDIS_READ_TIMEOUT", 3*time.Second),
			WriteTimeout: envDuration("ATTEST_REDIS_WRITE_TIMEOUT", 3*time.Second),
		},
	}
}

// NormalizeBaseURL forces the provider base URL into the http(s)://…/ shape
// the client expects, falling back to the default when unusable.
func NormalizeBaseURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return DefaultBaseURL
	}
	parsed, err := url.Parse(raw)
	if err != nil || (parsed.Scheme != "http" && parsed.Scheme != "https") || parsed.Host == "" {
		return DefaultBaseURL
	}
	if !strings.HasSuffix(raw, "/") {
		raw += "/"
	}
	return raw
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}
