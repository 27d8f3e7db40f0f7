package handlers

import (
	"context"
	"encoding/base64"
	"net/http"
	"testing"

	"coaproxy/internal/shopify"

	"github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLambdaHandler_SignedProxyRequest(t *testing.T) {
	e := newTestEnv(t)
	e.install(t, acme, "shpat_acme")
	fn := LambdaHandler(e.router)

	values := proxyValues(acme)
	values.Set("signature", e.verifier.SignQuery(values))

	resp, err := fn(context.Background(), events.APIGatewayV2HTTPRequest{
		RawPath:        "/proxy/coas",
		RawQueryString: values.Encode(),
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			RequestID: "req-123",
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{
				Method:   http.MethodGet,
				SourceIP: "203.0.113.7",
			},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.False(t, resp.IsBase64Encoded)
	assert.JSONEq(t, `[]`, resp.Body)
	assert.Equal(t, "application/json", resp.Headers["Content-Type"])
}

func TestLambdaHandler_Base64WebhookBody(t *testing.T) {
	e := newTestEnv(t)
	fn := LambdaHandler(e.router)

	body := []byte(`{"domain":"acme.example.com"}`)
	event := events.APIGatewayV2HTTPRequest{
		RawPath: shopify.WebhookPath(shopify.TopicAppUninstalled),
		Headers: map[string]string{
			"content-type":          "application/json",
			"x-shopify-hmac-sha256": e.verifier.SignBody(body),
			"x-shopify-shop-domain": acme,
		},
		Body:            base64.StdEncoding.EncodeToString(body),
		IsBase64Encoded: true,
		RequestContext: events.APIGatewayV2HTTPRequestContext{
			HTTP: events.APIGatewayV2HTTPRequestContextHTTPDescription{Method: http.MethodPost},
		},
	}

	resp, err := fn(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode, "signature is checked against the decoded bytes")

	event.Body = "!!not base64"
	resp, err = fn(context.Background(), event)
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLambdaHandler_Redirect(t *testing.T) {
	e := newTestEnv(t)
	fn := LambdaHandler(e.router)

	resp, err := fn(context.Background(), events.APIGatewayV2HTTPRequest{
		RawPath:        "/",
		RawQueryString: "shop=acme.example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, resp.StatusCode)
	assert.Contains(t, resp.Headers["Location"], "/admin/oauth/authorize")
}

func TestLambdaResponseWriter(t *testing.T) {
	w := newLambdaResponseWriter()
	w.Header().Add("Set-Cookie", "a=1")
	w.Header().Add("Set-Cookie", "b=2")
	w.Header().Set("Content-Type", "application/octet-stream")
	w.WriteHeader(http.StatusAccepted)
	w.WriteHeader(http.StatusTeapot)
	_, _ = w.Write([]byte{0xff, 0x00})

	resp := w.toEvent()
	assert.Equal(t, http.StatusAccepted, resp.StatusCode, "first status wins")
	assert.Equal(t, []string{"a=1", "b=2"}, resp.Cookies)
	assert.NotContains(t, resp.Headers, "Set-Cookie")
	assert.True(t, resp.IsBase64Encoded)
	assert.Equal(t, base64.StdEncoding.EncodeToString([]byte{0xff, 0x00}), resp.Body)
}

func TestIsTextual(t *testing.T) {
	assert.True(t, isTextual(""))
	assert.True(t, isTextual("text/html; charset=utf-8"))
	assert.True(t, isTextual("application/json"))
	assert.True(t, isTextual("application/problem+json"))
	assert.False(t, isTextual("application/pdf"))
	assert.False(t, isTextual(";;"))
}
