package credentials

import (
	"context"

	"coaproxy/internal/tenancy"
)

// StaticStore serves the single shop and token configured for a
// single-tenant deployment. It cannot be written to.
type StaticStore struct {
	cred Credential
}

func NewStaticStore(shop, token string) *StaticStore {
	return &StaticStore{cred: Credential{Shop: shop, AccessToken: token, UpdatedAt: now()}}
}

func (s *StaticStore) Get(_ context.Context, shop string) (Credential, error) {
	if s.cred.AccessToken == "" || !tenancy.ShopsEqual(shop, s.cred.Shop) {
		return Credential{}, ErrNotFound
	}
	return s.cred, nil
}

func (s *StaticStore) Set(context.Context, Credential) error { return ErrReadOnly }

func (s *StaticStore) Delete(context.Context, string) error { return ErrReadOnly }

func (s *StaticStore) Ping(context.Context) error { return nil }
