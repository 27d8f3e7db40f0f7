package config

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"coaproxy/internal/security"

	"github.com/caarlos0/env/v10"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

const (
	BackendRedis    = "redis"
	BackendDynamoDB = "dynamodb"
	BackendStatic   = "static"
	BackendMemory   = "memory"

	ModePersist = "persist"
	ModeDisplay = "display"
)

// Config holds all application configuration. It is built once at startup
// and passed by pointer into constructors; nothing reads it back from the
// process environment afterwards.
type Config struct {
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=debug info warn error"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"json" validate:"oneof=json text"`
	HTTPAddr    string `env:"HTTP_ADDR" envDefault:":8080"`
	MetricsAddr string `env:"METRICS_ADDR" envDefault:":9091"`

	Shopify     ShopifyConfig
	COA         COAConfig
	Credentials CredentialsConfig
	HTTP        HTTPConfig
	Telemetry   TelemetryConfig
}

type ShopifyConfig struct {
	// Shop is the default tenant, used by single-tenant deployments, the
	// install entry point and the operator API.
	Shop        string        `env:"SHOPIFY_SHOP" validate:"omitempty,fqdn"`
	APIKey      string        `env:"SHOPIFY_API_KEY,required" validate:"required"`
	APISecret   string        `env:"SHOPIFY_API_SECRET,required" validate:"required"`
	Scopes      string        `env:"SHOPIFY_SCOPES" envDefault:"read_metaobjects,read_files"`
	RedirectURI string        `env:"SHOPIFY_REDIRECT_URI,required" validate:"required,url"`
	APIVersion  string        `env:"SHOPIFY_API_VERSION" envDefault:"2025-01"`
	AccessToken string        `env:"SHOPIFY_ACCESS_TOKEN"`
	HTTPTimeout time.Duration `env:"SHOPIFY_HTTP_TIMEOUT" envDefault:"30s" validate:"gt=0"`
	// AppURL is the public base URL of this service. When set, webhook
	// subscriptions are created for a shop right after install.
	AppURL string `env:"APP_URL" validate:"omitempty,url"`
}

type COAConfig struct {
	MetaobjectType string        `env:"COA_METAOBJECT_TYPE" envDefault:"coa" validate:"required"`
	PageSize       int           `env:"COA_PAGE_SIZE" envDefault:"50" validate:"gte=1,lte=250"`
	MaxAttempts    int           `env:"FETCH_MAX_ATTEMPTS" envDefault:"3" validate:"gte=1,lte=10"`
	RetryBaseDelay time.Duration `env:"FETCH_RETRY_BASE_DELAY" envDefault:"1s" validate:"gte=0"`
}

type CredentialsConfig struct {
	Backend string `env:"CREDENTIAL_BACKEND" envDefault:"redis" validate:"oneof=redis dynamodb static memory"`
	Mode    string `env:"CREDENTIAL_MODE" envDefault:"persist" validate:"oneof=persist display"`

	KVURL       string `env:"KV_URL"`
	KVToken     string `env:"KV_TOKEN"`
	KVKeyPrefix string `env:"KV_KEY_PREFIX"`

	Table string `env:"CREDENTIALS_TABLE"`
	// DynamoEndpoint overrides the regional endpoint, e.g. for DynamoDB Local.
	DynamoEndpoint string `env:"DYNAMODB_ENDPOINT"`

	// EncryptionKey is a base64 AES-256 key; when set, tokens are sealed
	// before they reach the backend.
	EncryptionKey string `env:"TOKEN_ENC_KEY_B64"`
}

type HTTPConfig struct {
	AllowedOrigins   []string `env:"ALLOWED_ORIGINS" envSeparator:","`
	DebugAPIEnabled  bool     `env:"DEBUG_API_ENABLED" envDefault:"false"`
	DebugAPIToken    string   `env:"DEBUG_API_TOKEN"`
	PurgeOnUninstall bool     `env:"PURGE_ON_UNINSTALL" envDefault:"false"`
	RateLimitRPS     float64  `env:"RATE_LIMIT_RPS" envDefault:"10" validate:"gte=0"`
	RateLimitBurst   int      `env:"RATE_LIMIT_BURST" envDefault:"20" validate:"gte=0"`
	// WebhookDedupeTTL is how long uninstall delivery IDs are remembered
	// when PurgeOnUninstall is set; zero turns deduplication off.
	WebhookDedupeTTL time.Duration `env:"WEBHOOK_DEDUPE_TTL" envDefault:"168h" validate:"gte=0"`
	// WriteTimeout bounds a whole response on the API server. Zero leaves it
	// unbounded so a long pagination walk is never cut off mid-response.
	WriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"0s" validate:"gte=0"`
}

type TelemetryConfig struct {
	OTelEnabled    bool    `env:"OTEL_ENABLED" envDefault:"false"`
	ServiceName    string  `env:"SERVICE_NAME" envDefault:"coa-proxy"`
	ServiceVersion string  `env:"SERVICE_VERSION" envDefault:"dev"`
	SamplingRate   float64 `env:"OTEL_SAMPLING_RATE" envDefault:"1" validate:"gte=0,lte=1"`
}

// Load reads configuration from the process environment, an optional .env
// file and, when SSM_PARAMETER_PREFIX is set, AWS SSM Parameter Store.
func Load(ctx context.Context) (*Config, error) {
	// Attempt to load .env file for local development.
	_ = godotenv.Load()

	environ := environMap(os.Environ())

	if prefix := strings.TrimSpace(environ["SSM_PARAMETER_PREFIX"]); prefix != "" {
		client, err := NewSSMClient(ctx)
		if err != nil {
			return nil, fmt.Errorf("init ssm client: %w", err)
		}
		if err := MergeSSMParameters(ctx, client, prefix, environ); err != nil {
			return nil, err
		}
	}

	return Parse(environ)
}

// Parse builds a validated Config from an explicit environment map.
func Parse(environ map[string]string) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, env.Options{Environment: environ}); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	cfg.Shopify.Shop = strings.ToLower(strings.TrimSpace(cfg.Shopify.Shop))
	cfg.HTTP.AllowedOrigins = compact(cfg.HTTP.AllowedOrigins)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field shapes and the settings each backend and mode needs.
func (c *Config) Validate() error {
	v := validator.New(validator.WithRequiredStructEnabled())
	if err := v.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	var errs []error
	switch c.Credentials.Backend {
	case BackendRedis:
		if c.Credentials.KVURL == "" {
			errs = append(errs, errors.New("KV_URL is required for the redis credential backend"))
		}
	case BackendDynamoDB:
		if c.Credentials.Table == "" {
			errs = append(errs, errors.New("CREDENTIALS_TABLE is required for the dynamodb credential backend"))
		}
	case BackendStatic:
		if c.Shopify.Shop == "" || c.Shopify.AccessToken == "" {
			errs = append(errs, errors.New("SHOPIFY_SHOP and SHOPIFY_ACCESS_TOKEN are required for the static credential backend"))
		}
		if c.Credentials.Mode == ModePersist {
			errs = append(errs, errors.New("CREDENTIAL_MODE=persist cannot write to the static credential backend"))
		}
	}

	if c.HTTP.DebugAPIEnabled && c.Shopify.Shop == "" {
		errs = append(errs, errors.New("SHOPIFY_SHOP is required when DEBUG_API_ENABLED is set"))
	}

	if c.Credentials.EncryptionKey != "" {
		if _, err := security.LoadKeyFromBase64(c.Credentials.EncryptionKey); err != nil {
			errs = append(errs, fmt.Errorf("TOKEN_ENC_KEY_B64: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// MultiTenant reports whether credentials are written by the install flow.
func (c *Config) MultiTenant() bool {
	return c.Credentials.Mode == ModePersist
}

func environMap(pairs []string) map[string]string {
	out := make(map[string]string, len(pairs))
	for _, kv := range pairs {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		out[k] = v
	}
	return out
}

func compact(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
