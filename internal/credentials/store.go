package credentials

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNotFound means the shop never completed the install flow (or was
	// purged). It is never returned for transport failures.
	ErrNotFound = errors.New("credential not found")
	// ErrUnavailable is matched by every backend failure (see StoreError).
	ErrUnavailable = errors.New("credential store unavailable")
	ErrReadOnly    = errors.New("credential store is read-only")
	ErrInvalid     = errors.New("invalid credential")
)

// Credential is the offline access token granted to one shop.
type Credential struct {
	Shop        string    `json:"shop"`
	AccessToken string    `json:"accessToken"`
	Scope       string    `json:"scope,omitempty"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

func (c Credential) Validate() error {
	if strings.TrimSpace(c.Shop) == "" {
		return fmt.Errorf("%w: empty shop", ErrInvalid)
	}
	if strings.TrimSpace(c.AccessToken) == "" {
		return fmt.Errorf("%w: empty access token", ErrInvalid)
	}
	return nil
}

// Store keeps one credential per shop domain. Implementations are safe for
// concurrent use; Set overwrites, Delete of a missing shop is not an error.
type Store interface {
	Get(ctx context.Context, shop string) (Credential, error)
	Set(ctx context.Context, cred Credential) error
	Delete(ctx context.Context, shop string) error
	// Ping round-trips a throwaway key to prove the backend is reachable
	// and writable.
	Ping(ctx context.Context) error
}

// StoreError wraps a backend failure. errors.Is(err, ErrUnavailable) holds for
// every StoreError, and the underlying cause stays reachable too.
type StoreError struct {
	Backend string
	Op      string
	Shop    string
	Err     error
}

func (e *StoreError) Error() string {
	if e.Shop == "" {
		return fmt.Sprintf("%s %s: %v", e.Backend, e.Op, e.Err)
	}
	return fmt.Sprintf("%s %s %s: %v", e.Backend, e.Op, e.Shop, e.Err)
}

func (e *StoreError) Unwrap() []error {
	return []error{ErrUnavailable, e.Err}
}

func unavailable(backend, op, shop string, err error) error {
	return &StoreError{Backend: backend, Op: op, Shop: shop, Err: err}
}

func now() time.Time {
	return time.Now().UTC().Truncate(time.Second)
}
