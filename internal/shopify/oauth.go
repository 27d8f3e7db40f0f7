package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"coaproxy/internal/credentials"
	"coaproxy/internal/logger"
	"coaproxy/internal/metrics"
)

// OAuthError is returned when the authorization code could not be turned
// into an access token. Its message is safe to show to a merchant: it never
// contains the client secret or the remote response body.
type OAuthError struct {
	Shop       string
	StatusCode int
	Reason     string
	Err        error
}

func (e *OAuthError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("token exchange for %s failed: %s (http %d)", e.Shop, e.Reason, e.StatusCode)
	}
	return fmt.Sprintf("token exchange for %s failed: %s", e.Shop, e.Reason)
}

func (e *OAuthError) Unwrap() error { return e.Err }

type OAuthConfig struct {
	APIKey      string
	APISecret   string
	Scopes      string
	RedirectURI string
}

type OAuth struct {
	client  *Client
	cfg     OAuthConfig
	store   credentials.Store
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewOAuth(client *Client, cfg OAuthConfig, store credentials.Store, m *metrics.Metrics, log *slog.Logger) *OAuth {
	return &OAuth{client: client, cfg: cfg, store: store, metrics: m, logger: log}
}

// AuthorizeURL is where a merchant is sent to grant the app access.
func (o *OAuth) AuthorizeURL(shop, state string) string {
	q := url.Values{}
	q.Set("client_id", o.cfg.APIKey)
	q.Set("scope", o.cfg.Scopes)
	q.Set("redirect_uri", o.cfg.RedirectURI)
	q.Set("state", state)
	return o.client.shopURL(shop, "/admin/oauth/authorize") + "?" + q.Encode()
}

// RequestToken trades a one-time authorization code for an offline access
// token. It makes a single attempt and persists nothing.
func (o *OAuth) RequestToken(ctx context.Context, shop, code string) (credentials.Credential, error) {
	status, raw, err := o.client.postJSON(ctx, o.client.shopURL(shop, "/admin/oauth/access_token"), "", map[string]string{
		"client_id":     o.cfg.APIKey,
		"client_secret": o.cfg.APISecret,
		"code":          code,
	})
	if err != nil {
		o.metrics.ObserveOAuth(false)
		return credentials.Credential{}, &OAuthError{Shop: shop, Reason: "token endpoint unreachable", Err: err}
	}
	if !isSuccess(status) {
		o.metrics.ObserveOAuth(false)
		return credentials.Credential{}, &OAuthError{Shop: shop, StatusCode: status, Reason: "token endpoint rejected the code"}
	}

	var tok struct {
		AccessToken string `json:"access_token"`
		Scope       string `json:"scope"`
	}
	if err := json.Unmarshal(raw, &tok); err != nil || strings.TrimSpace(tok.AccessToken) == "" {
		o.metrics.ObserveOAuth(false)
		return credentials.Credential{}, &OAuthError{Shop: shop, StatusCode: status, Reason: "token response had no access_token"}
	}

	o.metrics.ObserveOAuth(true)
	return credentials.Credential{
		Shop:        shop,
		AccessToken: tok.AccessToken,
		Scope:       tok.Scope,
		UpdatedAt:   time.Now().UTC(),
	}, nil
}

// Exchange runs RequestToken and stores the result, overwriting any earlier
// credential for the shop.
func (o *OAuth) Exchange(ctx context.Context, shop, code string) (credentials.Credential, error) {
	cred, err := o.RequestToken(ctx, shop, code)
	if err != nil {
		return credentials.Credential{}, err
	}

	if err := o.store.Set(ctx, cred); err != nil {
		return credentials.Credential{}, fmt.Errorf("store credential: %w", err)
	}

	o.logger.InfoContext(ctx, "shop installed", logger.Shop(shop), slog.String("scope", cred.Scope))
	return cred, nil
}
