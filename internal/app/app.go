// Package app assembles the service from its configuration. The HTTP server
// and the Lambda entry point share it so both expose the same routes.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"coaproxy/internal/coa"
	"coaproxy/internal/config"
	"coaproxy/internal/credentials"
	"coaproxy/internal/db"
	"coaproxy/internal/handlers"
	"coaproxy/internal/logger"
	"coaproxy/internal/metrics"
	"coaproxy/internal/security"
	"coaproxy/internal/shopify"

	"github.com/prometheus/client_golang/prometheus"
)

type App struct {
	Router   http.Handler
	Store    credentials.Store
	Client   *shopify.Client
	Fetcher  *coa.Fetcher
	Verifier *security.Verifier
	Metrics  *metrics.Metrics
	Deduper  shopify.WebhookDeduper

	closers []func() error
}

// Build wires every component from cfg. Callers must Close the result.
func Build(ctx context.Context, cfg *config.Config, reg prometheus.Registerer, log *slog.Logger, opts ...shopify.Option) (*App, error) {
	store, closeStore, err := credentials.Open(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("open credential store: %w", err)
	}

	deduper, closeDeduper, err := openDeduper(ctx, cfg)
	if err != nil {
		_ = closeStore()
		return nil, fmt.Errorf("open webhook deduper: %w", err)
	}

	m := metrics.New(reg)
	verifier := security.NewVerifier(cfg.Shopify.APISecret)

	clientOpts := append([]shopify.Option{
		shopify.WithAPIVersion(cfg.Shopify.APIVersion),
		shopify.WithTimeout(cfg.Shopify.HTTPTimeout),
	}, opts...)
	client := shopify.NewClient(clientOpts...)

	fetcher := coa.NewFetcher(client, store, coa.FetcherConfig{
		MetaobjectType: cfg.COA.MetaobjectType,
		PageSize:       cfg.COA.PageSize,
		Retry: coa.RetryPolicy{
			MaxAttempts: cfg.COA.MaxAttempts,
			BaseDelay:   cfg.COA.RetryBaseDelay,
		},
	}, m, log)

	oauth := shopify.NewOAuth(client, shopify.OAuthConfig{
		APIKey:      cfg.Shopify.APIKey,
		APISecret:   cfg.Shopify.APISecret,
		Scopes:      cfg.Shopify.Scopes,
		RedirectURI: cfg.Shopify.RedirectURI,
	}, store, m, log)

	h := handlers.NewHandler(handlers.Options{
		Shop:             cfg.Shopify.Shop,
		Backend:          cfg.Credentials.Backend,
		Persist:          cfg.MultiTenant(),
		AppURL:           cfg.Shopify.AppURL,
		AllowedOrigins:   cfg.HTTP.AllowedOrigins,
		DebugAPIEnabled:  cfg.HTTP.DebugAPIEnabled,
		DebugAPIToken:    cfg.HTTP.DebugAPIToken,
		PurgeOnUninstall: cfg.HTTP.PurgeOnUninstall,
		RateLimitRPS:     cfg.HTTP.RateLimitRPS,
		RateLimitBurst:   cfg.HTTP.RateLimitBurst,
	}, handlers.Deps{
		Verifier:  verifier,
		Fetcher:   fetcher,
		Installer: oauth,
		Registrar: client,
		Deduper:   deduper,
		Store:     store,
		Metrics:   m,
		Logger:    log,
	})

	log.InfoContext(ctx, "service configured",
		logger.Backend(cfg.Credentials.Backend),
		logger.Shop(cfg.Shopify.Shop),
		slog.String("mode", cfg.Credentials.Mode),
		slog.Bool("debug_api", cfg.HTTP.DebugAPIEnabled),
	)

	return &App{
		Router:   handlers.NewRouter(h),
		Store:    store,
		Client:   client,
		Fetcher:  fetcher,
		Verifier: verifier,
		Metrics:  m,
		Deduper:  deduper,
		closers:  []func() error{closeDeduper, closeStore},
	}, nil
}

func (a *App) Close() error {
	var errs []error
	for _, c := range a.closers {
		if err := c(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// openDeduper guards the uninstall purge against redelivery, so it is only
// built when purging is on. Delivery IDs live next to the credentials so every
// instance sees the same claims; the static and memory backends dedupe per
// process.
func openDeduper(ctx context.Context, cfg *config.Config) (shopify.WebhookDeduper, func() error, error) {
	noop := func() error { return nil }
	ttl := cfg.HTTP.WebhookDedupeTTL
	if ttl <= 0 || !cfg.HTTP.PurgeOnUninstall {
		return nil, noop, nil
	}

	switch cfg.Credentials.Backend {
	case config.BackendRedis:
		client, err := db.NewRedisClient(cfg.Credentials.KVURL, cfg.Credentials.KVToken)
		if err != nil {
			return nil, nil, err
		}
		return shopify.NewRedisDeduper(client, cfg.Credentials.KVKeyPrefix+"webhook:", ttl), client.Close, nil
	case config.BackendDynamoDB:
		client, err := db.NewDynamoClient(ctx, cfg.Credentials.DynamoEndpoint)
		if err != nil {
			return nil, nil, err
		}
		return shopify.NewDynamoDeduper(client, cfg.Credentials.Table, ttl), noop, nil
	default:
		return shopify.NewMemoryDeduper(ttl), noop, nil
	}
}
