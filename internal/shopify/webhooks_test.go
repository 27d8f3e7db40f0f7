package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterWebhooks(t *testing.T) {
	var (
		mu   sync.Mutex
		seen = map[string]string{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/admin/api/2025-01/webhooks.json", r.URL.Path)
		assert.Equal(t, "shpat_1", r.Header.Get(HeaderAccessToken))

		var req webhookCreateReq
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		mu.Lock()
		seen[req.Webhook.Topic] = req.Webhook.Address
		mu.Unlock()

		switch req.Webhook.Topic {
		case TopicAppUninstalled:
			w.WriteHeader(http.StatusCreated)
			_, _ = w.Write([]byte(`{"webhook":{"id":1}}`))
		case TopicScopesUpdated:
			w.WriteHeader(http.StatusUnprocessableEntity)
			_, _ = w.Write([]byte(`{"errors":{"address":["for this topic has already been taken"]}}`))
		}
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	created, failed := c.RegisterWebhooks(context.Background(), "acme.example.com", "shpat_1", "https://coa.example.com/")

	assert.ElementsMatch(t, WebhookTopics, created)
	assert.Empty(t, failed)
	assert.Equal(t, "https://coa.example.com/webhooks/app/uninstalled", seen[TopicAppUninstalled])
	assert.Equal(t, "https://coa.example.com/webhooks/app/scopes_updated", seen[TopicScopesUpdated])
}

func TestRegisterWebhooks_PartialFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req webhookCreateReq
		_ = json.NewDecoder(r.Body).Decode(&req)
		if req.Webhook.Topic == TopicScopesUpdated {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	c := NewClient(WithBaseURL(srv.URL))
	created, failed := c.RegisterWebhooks(context.Background(), "acme.example.com", "t", "https://coa.example.com")

	assert.Equal(t, []string{TopicAppUninstalled}, created)
	require.Len(t, failed, 1)
	assert.Equal(t, TopicScopesUpdated, failed[0].Topic)

	var se *HTTPStatusError
	assert.ErrorAs(t, failed[0].Err, &se)
	assert.Equal(t, http.StatusForbidden, se.StatusCode)
}
