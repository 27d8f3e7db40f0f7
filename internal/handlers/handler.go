package handlers

import (
	"context"
	"log/slog"
	"time"

	"coaproxy/internal/coa"
	"coaproxy/internal/credentials"
	"coaproxy/internal/metrics"
	"coaproxy/internal/security"
	"coaproxy/internal/shopify"
)

type RecordFetcher interface {
	FetchAll(ctx context.Context, shop string) ([]coa.AnalysisRecord, error)
}

// Installer runs the OAuth install flow. Exchange persists the credential,
// RequestToken does not.
type Installer interface {
	AuthorizeURL(shop, state string) string
	Exchange(ctx context.Context, shop, code string) (credentials.Credential, error)
	RequestToken(ctx context.Context, shop, code string) (credentials.Credential, error)
}

type WebhookRegistrar interface {
	RegisterWebhooks(ctx context.Context, shop, accessToken, appURL string) ([]string, []shopify.WebhookFailure)
}

// Options are the HTTP-facing settings, copied out of the process config.
type Options struct {
	// Shop is the default tenant for the install entry point and the
	// operator API.
	Shop    string
	Backend string
	// Persist stores credentials from the install callback; otherwise the
	// token is displayed for manual configuration.
	Persist bool
	AppURL  string

	AllowedOrigins   []string
	DebugAPIEnabled  bool
	DebugAPIToken    string
	PurgeOnUninstall bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

type Deps struct {
	Verifier  *security.Verifier
	Fetcher   RecordFetcher
	Installer Installer
	// Registrar is optional; without it no webhooks are subscribed.
	Registrar WebhookRegistrar
	// Deduper is optional; without it every delivery is handled.
	Deduper shopify.WebhookDeduper
	Store   credentials.Store
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

type Handler struct {
	opts      Options
	verifier  *security.Verifier
	fetcher   RecordFetcher
	installer Installer
	registrar WebhookRegistrar
	deduper   shopify.WebhookDeduper
	store     credentials.Store
	metrics   *metrics.Metrics
	logger    *slog.Logger
	now       func() time.Time
}

func NewHandler(opts Options, deps Deps) *Handler {
	return &Handler{
		opts:      opts,
		verifier:  deps.Verifier,
		fetcher:   deps.Fetcher,
		installer: deps.Installer,
		registrar: deps.Registrar,
		deduper:   deps.Deduper,
		store:     deps.Store,
		metrics:   deps.Metrics,
		logger:    deps.Logger,
		now:       time.Now,
	}
}
