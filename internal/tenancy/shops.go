package tenancy

import (
	"errors"
	"strings"
)

var ErrInvalidShop = errors.New("invalid shop domain")

// NormalizeShop trims, lowercases and strips an accidental scheme or
// trailing slash from a shop domain, then validates it.
func NormalizeShop(raw string) (string, error) {
	shop := strings.ToLower(strings.TrimSpace(raw))
	shop = strings.TrimPrefix(shop, "https://")
	shop = strings.TrimPrefix(shop, "http://")
	shop = strings.TrimSuffix(shop, "/")

	if !IsValidShopDomain(shop) {
		return "", ErrInvalidShop
	}
	return shop, nil
}

// IsValidShopDomain accepts a bare DNS hostname with at least two labels.
// Custom domains are allowed, so the platform suffix is not enforced.
func IsValidShopDomain(shop string) bool {
	if len(shop) < 3 || len(shop) > 253 {
		return false
	}
	if strings.ContainsAny(shop, "/ :?#@") {
		return false
	}

	labels := strings.Split(shop, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if !validLabel(l) {
			return false
		}
	}
	return true
}

func validLabel(l string) bool {
	if l == "" || len(l) > 63 {
		return false
	}
	if l[0] == '-' || l[len(l)-1] == '-' {
		return false
	}
	for _, r := range l {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9', r == '-':
		default:
			return false
		}
	}
	return true
}

// ShopsEqual compares two shop domains case-insensitively.
func ShopsEqual(a, b string) bool {
	return strings.EqualFold(strings.TrimSpace(a), strings.TrimSpace(b))
}
