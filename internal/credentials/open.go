package credentials

import (
	"context"
	"fmt"

	"coaproxy/internal/config"
	"coaproxy/internal/db"
	"coaproxy/internal/security"
)

// Open builds the store selected by cfg.Credentials.Backend, wrapped with
// token encryption when a key is configured. The returned close func
// releases backend connections.
func Open(ctx context.Context, cfg *config.Config) (Store, func() error, error) {
	var (
		store   Store
		closeFn = func() error { return nil }
	)

	switch cfg.Credentials.Backend {
	case config.BackendRedis:
		client, err := db.NewRedisClient(cfg.Credentials.KVURL, cfg.Credentials.KVToken)
		if err != nil {
			return nil, nil, err
		}
		store = NewRedisStore(client, cfg.Credentials.KVKeyPrefix)
		closeFn = client.Close

	case config.BackendDynamoDB:
		client, err := db.NewDynamoClient(ctx, cfg.Credentials.DynamoEndpoint)
		if err != nil {
			return nil, nil, fmt.Errorf("init dynamodb: %w", err)
		}
		store = NewDynamoStore(client, cfg.Credentials.Table)

	case config.BackendStatic:
		// The configured token is plaintext; never wrap it with encryption.
		return NewStaticStore(cfg.Shopify.Shop, cfg.Shopify.AccessToken), closeFn, nil

	case config.BackendMemory:
		store = NewMemoryStore()

	default:
		return nil, nil, fmt.Errorf("unknown credential backend %q", cfg.Credentials.Backend)
	}

	if cfg.Credentials.EncryptionKey != "" {
		key, err := security.LoadKeyFromBase64(cfg.Credentials.EncryptionKey)
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("TOKEN_ENC_KEY_B64: %w", err)
		}
		cipher, err := security.NewTokenCipher(key)
		if err != nil {
			_ = closeFn()
			return nil, nil, err
		}
		store = NewEncrypted(store, cipher)
	}

	return store, closeFn, nil
}
