package coa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"coaproxy/internal/credentials"
	"coaproxy/internal/logger"
	"coaproxy/internal/metrics"
	"coaproxy/internal/shopify"

	"github.com/cenkalti/backoff/v4"
)

var (
	ErrUnauthenticated  = errors.New("shop is not installed")
	ErrRetriesExhausted = errors.New("remote unavailable after retries")
	ErrRemoteRejected   = errors.New("remote rejected the query")
	ErrStoreUnavailable = errors.New("credential store unavailable")
)

// FetchError aborts a whole walk. Kind is one of the Err* sentinels above and
// matches with errors.Is; Err is the underlying cause when there is one.
type FetchError struct {
	Kind     error
	Shop     string
	Page     int
	Attempts int
	// Messages holds remote GraphQL error messages, for logs only.
	Messages []string
	Err      error
}

func (e *FetchError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Page > 0 {
		fmt.Fprintf(&b, " (page %d, %d attempts)", e.Page, e.Attempts)
	}
	if len(e.Messages) > 0 {
		b.WriteString(": ")
		b.WriteString(strings.Join(e.Messages, "; "))
	} else if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *FetchError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

type FetcherConfig struct {
	MetaobjectType string
	PageSize       int
	Retry          RetryPolicy
}

// Fetcher walks every page of a shop's certificate metaobjects. It keeps no
// state between calls; each FetchAll starts from the first page.
type Fetcher struct {
	client  *shopify.Client
	store   credentials.Store
	cfg     FetcherConfig
	metrics *metrics.Metrics
	logger  *slog.Logger
}

func NewFetcher(client *shopify.Client, store credentials.Store, cfg FetcherConfig, m *metrics.Metrics, log *slog.Logger) *Fetcher {
	if cfg.PageSize <= 0 {
		cfg.PageSize = 50
	}
	if cfg.MetaobjectType == "" {
		cfg.MetaobjectType = "coa"
	}
	return &Fetcher{client: client, store: store, cfg: cfg, metrics: m, logger: log}
}

// FetchAll returns every kept record for shop, newest first. Any failure
// abandons the walk; partial results are never returned.
func (f *Fetcher) FetchAll(ctx context.Context, shop string) ([]AnalysisRecord, error) {
	cred, err := f.store.Get(ctx, shop)
	if err != nil {
		kind := ErrStoreUnavailable
		if errors.Is(err, credentials.ErrNotFound) {
			kind = ErrUnauthenticated
		}
		f.metrics.ObserveFetch(resultLabel(kind), 0)
		return nil, &FetchError{Kind: kind, Shop: shop, Err: err}
	}

	records := make([]AnalysisRecord, 0)
	seen := make(map[string]struct{})
	cursor := ""
	page := 1

	for ; ; page++ {
		conn, err := f.fetchPage(ctx, shop, cred.AccessToken, cursor, page)
		if err != nil {
			f.metrics.ObserveFetch(resultLabel(err), 0)
			return nil, err
		}

		for _, edge := range conn.Edges {
			if rec, ok := Normalize(edge.Node); ok {
				records = append(records, rec)
			}
		}

		if !conn.PageInfo.HasNextPage {
			break
		}
		next := conn.PageInfo.EndCursor
		if next == "" {
			f.metrics.ObserveFetch(resultLabel(ErrRemoteRejected), 0)
			return nil, &FetchError{Kind: ErrRemoteRejected, Shop: shop, Page: page, Attempts: 1, Messages: []string{"next page without cursor"}}
		}
		if _, dup := seen[next]; dup {
			f.metrics.ObserveFetch(resultLabel(ErrRemoteRejected), 0)
			return nil, &FetchError{Kind: ErrRemoteRejected, Shop: shop, Page: page, Attempts: 1, Messages: []string{"pagination cursor repeated"}}
		}
		seen[next] = struct{}{}
		cursor = next
	}

	SortByDateDesc(records)

	f.metrics.ObserveFetch("ok", len(records))
	f.logger.InfoContext(ctx, "fetched certificates", logger.Shop(shop), logger.Page(page), logger.Records(len(records)))
	return records, nil
}

func (f *Fetcher) fetchPage(ctx context.Context, shop, token, cursor string, page int) (metaobjectConnection, error) {
	vars := pageVariables(f.cfg.MetaobjectType, f.cfg.PageSize, cursor)

	var (
		conn     metaobjectConnection
		attempts int
	)
	op := func() error {
		attempts++
		resp, _, err := shopify.PostGraphQL[metaobjectsData](ctx, f.client, shop, token, metaobjectsQuery, vars)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			f.metrics.ObservePage("transient")
			return err
		}
		if len(resp.Errors) > 0 {
			f.metrics.ObservePage("rejected")
			return backoff.Permanent(&FetchError{
				Kind:     ErrRemoteRejected,
				Shop:     shop,
				Page:     page,
				Attempts: attempts,
				Messages: resp.ErrorMessages(),
			})
		}
		f.metrics.ObservePage("ok")
		conn = resp.Data.Metaobjects
		return nil
	}

	notify := func(err error, wait time.Duration) {
		f.metrics.ObserveRetry()
		f.logger.WarnContext(ctx, "page request failed, retrying",
			logger.Shop(shop), logger.Page(page), logger.Attempt(attempts),
			slog.Duration("retry_in", wait), logger.Err(err))
	}

	err := backoff.RetryNotifyWithTimer(op, f.cfg.Retry.backOff(ctx), notify, f.cfg.Retry.timer())
	if err == nil {
		return conn, nil
	}

	var fe *FetchError
	if errors.As(err, &fe) {
		return metaobjectConnection{}, fe
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return metaobjectConnection{}, fmt.Errorf("fetch page %d for %s: %w", page, shop, ctxErr)
	}
	return metaobjectConnection{}, &FetchError{Kind: ErrRetriesExhausted, Shop: shop, Page: page, Attempts: attempts, Err: err}
}

func resultLabel(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrRemoteRejected):
		return "remote_rejected"
	case errors.Is(err, ErrRetriesExhausted):
		return "retries_exhausted"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "error"
	}
}
