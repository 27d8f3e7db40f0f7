package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "hush"

func hexMAC(secret, msg string) string {
	m := hmac.New(sha256.New, []byte(secret))
	m.Write([]byte(msg))
	return hex.EncodeToString(m.Sum(nil))
}

func TestVerifyQuery(t *testing.T) {
	v := NewVerifier(testSecret)

	values := url.Values{
		"shop":        {"acme.example.com"},
		"timestamp":   {"1700000000"},
		"path_prefix": {"/apps/coa"},
	}
	// sorted: path_prefix, shop, timestamp; no separator between pairs
	want := hexMAC(testSecret, "path_prefix=/apps/coashop=acme.example.comtimestamp=1700000000")
	require.Equal(t, want, v.SignQuery(values))

	values.Set("signature", want)
	assert.NoError(t, v.VerifyQuery(values))
}

func TestVerifyQuery_MultiValueJoinedWithComma(t *testing.T) {
	v := NewVerifier(testSecret)

	values := url.Values{"ids": {"1", "2", "3"}, "shop": {"acme.example.com"}}
	want := hexMAC(testSecret, "ids=1,2,3shop=acme.example.com")
	assert.Equal(t, want, v.SignQuery(values))
}

func TestVerifyQuery_Rejects(t *testing.T) {
	good := url.Values{"shop": {"acme.example.com"}, "timestamp": {"1"}}
	sig := NewVerifier(testSecret).SignQuery(good)

	tests := []struct {
		name   string
		secret string
		values url.Values
	}{
		{
			name:   "missing signature",
			secret: testSecret,
			values: url.Values{"shop": {"acme.example.com"}, "timestamp": {"1"}},
		},
		{
			name:   "tampered value",
			secret: testSecret,
			values: url.Values{"shop": {"evil.example.com"}, "timestamp": {"1"}, "signature": {sig}},
		},
		{
			name:   "extra parameter",
			secret: testSecret,
			values: url.Values{"shop": {"acme.example.com"}, "timestamp": {"1"}, "x": {"y"}, "signature": {sig}},
		},
		{
			name:   "uppercase hex",
			secret: testSecret,
			values: url.Values{"shop": {"acme.example.com"}, "timestamp": {"1"}, "signature": {strings.ToUpper(sig)}},
		},
		{
			name:   "truncated signature",
			secret: testSecret,
			values: url.Values{"shop": {"acme.example.com"}, "timestamp": {"1"}, "signature": {sig[:10]}},
		},
		{
			name:   "unset secret",
			secret: "",
			values: url.Values{"shop": {"acme.example.com"}, "timestamp": {"1"}, "signature": {sig}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewVerifier(tt.secret).VerifyQuery(tt.values)
			assert.ErrorIs(t, err, ErrUnauthorized)
		})
	}
}

func TestVerifyQuery_DoesNotMutateInput(t *testing.T) {
	v := NewVerifier(testSecret)
	values := url.Values{"shop": {"acme.example.com"}, "signature": {"abc"}}

	_ = v.VerifyQuery(values)

	assert.Equal(t, url.Values{"shop": {"acme.example.com"}, "signature": {"abc"}}, values)
}

func TestVerifyHeader(t *testing.T) {
	v := NewVerifier(testSecret)
	body := []byte(`{"id":1,"domain":"acme.example.com"}`)

	m := hmac.New(sha256.New, []byte(testSecret))
	m.Write(body)
	want := base64.StdEncoding.EncodeToString(m.Sum(nil))

	require.Equal(t, want, v.SignBody(body))
	assert.NoError(t, v.VerifyHeader(body, want))

	assert.ErrorIs(t, v.VerifyHeader(body, ""), ErrMissingSignature)
	assert.ErrorIs(t, v.VerifyHeader([]byte(`{"id":2}`), want), ErrInvalidSignature)
	assert.ErrorIs(t, NewVerifier("").VerifyHeader(body, want), ErrUnauthorized)
}

func TestVerifyInstall(t *testing.T) {
	v := NewVerifier(testSecret)

	values := url.Values{
		"code":      {"abc123"},
		"shop":      {"acme.example.com"},
		"state":     {"1700000000000"},
		"timestamp": {"1700000000"},
	}
	want := hexMAC(testSecret, "code=abc123&shop=acme.example.com&state=1700000000000&timestamp=1700000000")
	require.Equal(t, want, v.SignInstall(values))

	values.Set("hmac", want)
	assert.NoError(t, v.VerifyInstall(values))

	// a stray signature parameter is excluded from the message
	values.Set("signature", "ignored")
	assert.NoError(t, v.VerifyInstall(values))

	values.Set("code", "other")
	assert.ErrorIs(t, v.VerifyInstall(values), ErrInvalidSignature)

	values.Del("hmac")
	assert.ErrorIs(t, v.VerifyInstall(values), ErrMissingSignature)
}

// Comparison time must not depend on how many leading bytes match. The bound
// is loose so the test stays stable on shared CI machines.
func TestVerifyQuery_ConstantTime(t *testing.T) {
	if testing.Short() {
		t.Skip("timing test")
	}

	v := NewVerifier(testSecret)
	base := url.Values{"shop": {"acme.example.com"}}
	sig := v.SignQuery(base)

	nearMiss := []byte(sig)
	nearMiss[len(nearMiss)-1] ^= 1
	farMiss := []byte(sig)
	farMiss[0] ^= 1

	measure := func(candidate string) time.Duration {
		values := url.Values{"shop": {"acme.example.com"}, "signature": {candidate}}
		best := time.Duration(1<<63 - 1)
		for batch := 0; batch < 20; batch++ {
			start := time.Now()
			for i := 0; i < 2000; i++ {
				_ = v.VerifyQuery(values)
			}
			if d := time.Since(start); d < best {
				best = d
			}
		}
		return best
	}

	near := measure(string(nearMiss))
	far := measure(string(farMiss))

	ratio := float64(near) / float64(far)
	if ratio < 1 {
		ratio = 1 / ratio
	}
	assert.Less(t, ratio, 2.0, "near=%s far=%s", near, far)
}
