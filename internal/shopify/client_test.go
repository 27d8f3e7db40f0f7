package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type shopData struct {
	Shop struct {
		Name string `json:"name"`
	} `json:"shop"`
}

func TestPostGraphQL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/admin/api/2025-04/graphql.json", r.URL.Path)
		assert.Equal(t, "shpat_1", r.Header.Get(HeaderAccessToken))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "{ shop { name } }", body.Query)
		assert.Equal(t, "x", body.Variables["a"])

		_, _ = w.Write([]byte(`{"data":{"shop":{"name":"Acme"}}}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL), WithAPIVersion("2025-04"))
	resp, status, err := PostGraphQL[shopData](context.Background(), c, "acme.example.com", "shpat_1", "{ shop { name } }", map[string]any{"a": "x"})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "Acme", resp.Data.Shop.Name)
	assert.Empty(t, resp.Errors)
}

func TestPostGraphQL_Errors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"errors":[{"message":"Access denied","extensions":{"code":"ACCESS_DENIED"}}]}`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	resp, _, err := PostGraphQL[shopData](context.Background(), c, "acme.example.com", "t", "q", nil)
	require.NoError(t, err)
	require.Len(t, resp.Errors, 1)
	assert.Equal(t, "ACCESS_DENIED", resp.Errors[0].Extensions.Code)
	assert.Equal(t, []string{"Access denied"}, resp.ErrorMessages())
}

func TestPostGraphQL_NonSuccessStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`upstream sad`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, status, err := PostGraphQL[shopData](context.Background(), c, "acme.example.com", "t", "q", nil)
	assert.Equal(t, http.StatusServiceUnavailable, status)

	var se *HTTPStatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusServiceUnavailable, se.StatusCode)
	assert.NotContains(t, err.Error(), "upstream sad")
}

func TestPostGraphQL_Undecodable(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html>`))
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	_, status, err := PostGraphQL[shopData](context.Background(), c, "acme.example.com", "t", "q", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.ErrorContains(t, err, "decode graphql response")
}

func TestClient_ShopURL(t *testing.T) {
	c := NewClient(WithAPIVersion(""))
	assert.Equal(t, DefaultAPIVersion, c.APIVersion())
	assert.Equal(t, "https://acme.example.com/admin/api/2025-01/graphql.json", c.adminURL("acme.example.com", "graphql.json"))
}
