package main

import (
	"net/url"
	"testing"

	"coaproxy/internal/security"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParsePairs(t *testing.T) {
	values, err := parsePairs([]string{"shop=acme.example.com", "ids=1", "ids=2", "empty="})
	require.NoError(t, err)
	assert.Equal(t, url.Values{
		"shop":  {"acme.example.com"},
		"ids":   {"1", "2"},
		"empty": {""},
	}, values)

	_, err = parsePairs([]string{"novalue"})
	assert.Error(t, err)
	_, err = parsePairs([]string{"=x"})
	assert.Error(t, err)
}

func TestParsePairs_SignedOutputVerifies(t *testing.T) {
	v := security.NewVerifier("hush")
	values, err := parsePairs([]string{"shop=acme.example.com", "timestamp=1700000000"})
	require.NoError(t, err)
	values.Set("signature", v.SignQuery(values))

	parsed, err := url.ParseQuery(values.Encode())
	require.NoError(t, err)
	assert.NoError(t, v.VerifyQuery(parsed))
}

func TestMaskToken(t *testing.T) {
	assert.Equal(t, "shpat_...cdef", maskToken("shpat_0123456789abcdef"))
	assert.Equal(t, "********", maskToken("short"))
}

func TestDash(t *testing.T) {
	assert.Equal(t, "-", dash("  "))
	assert.Equal(t, "x", dash("x"))
}
