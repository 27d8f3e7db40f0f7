package credentials

import (
	"context"
	"fmt"

	"coaproxy/internal/security"
)

// Encrypted seals access tokens before they reach the wrapped backend and
// opens them on read. The shop domain is the additional authenticated data.
type Encrypted struct {
	Store
	cipher *security.TokenCipher
}

func NewEncrypted(inner Store, cipher *security.TokenCipher) *Encrypted {
	return &Encrypted{Store: inner, cipher: cipher}
}

func (e *Encrypted) Get(ctx context.Context, shop string) (Credential, error) {
	cred, err := e.Store.Get(ctx, shop)
	if err != nil {
		return Credential{}, err
	}

	token, err := e.cipher.Open(cred.AccessToken, shop)
	if err != nil {
		return Credential{}, unavailable("encrypted", "get", shop, fmt.Errorf("open token: %w", err))
	}
	cred.AccessToken = token
	return cred, nil
}

func (e *Encrypted) Set(ctx context.Context, cred Credential) error {
	if err := cred.Validate(); err != nil {
		return err
	}

	sealed, err := e.cipher.Seal(cred.AccessToken, cred.Shop)
	if err != nil {
		return fmt.Errorf("seal token: %w", err)
	}
	cred.AccessToken = sealed
	return e.Store.Set(ctx, cred)
}
