package handlers

import "context"

type contextKey string

const shopKey contextKey = "shop"

func withShop(ctx context.Context, shop string) context.Context {
	return context.WithValue(ctx, shopKey, shop)
}

// ShopFromContext returns the tenant resolved by the signature middleware.
func ShopFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(shopKey).(string); ok {
		return v
	}
	return ""
}
