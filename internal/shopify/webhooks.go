package shopify

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	TopicAppUninstalled = "app/uninstalled"
	TopicScopesUpdated  = "app/scopes_updated"

	HeaderHMAC       = "X-Shopify-Hmac-Sha256"
	HeaderTopic      = "X-Shopify-Topic"
	HeaderShopDomain = "X-Shopify-Shop-Domain"
)

// WebhookTopics are subscribed for every shop right after install.
var WebhookTopics = []string{TopicAppUninstalled, TopicScopesUpdated}

// WebhookPath is the route this service receives topic deliveries on.
func WebhookPath(topic string) string {
	return "/webhooks/" + topic
}

type webhookCreateReq struct {
	Webhook struct {
		Address string `json:"address"`
		Topic   string `json:"topic"`
		Format  string `json:"format"`
	} `json:"webhook"`
}

type webhookCreateResp struct {
	Errors map[string][]string `json:"errors"`
}

// CreateWebhook subscribes address to topic. An existing identical
// subscription counts as success.
func (c *Client) CreateWebhook(ctx context.Context, shop, accessToken, topic, address string) error {
	var payload webhookCreateReq
	payload.Webhook.Address = address
	payload.Webhook.Topic = topic
	payload.Webhook.Format = "json"

	status, raw, err := c.postJSON(ctx, c.adminURL(shop, "webhooks.json"), accessToken, payload)
	if err != nil {
		return err
	}
	if isSuccess(status) {
		return nil
	}

	if status == http.StatusUnprocessableEntity {
		var resp webhookCreateResp
		if json.Unmarshal(raw, &resp) == nil && alreadyTaken(resp.Errors) {
			return nil
		}
	}
	return fmt.Errorf("create webhook %s: %w", topic, &HTTPStatusError{StatusCode: status})
}

func alreadyTaken(errs map[string][]string) bool {
	for _, msgs := range errs {
		for _, m := range msgs {
			if strings.Contains(m, "already been taken") {
				return true
			}
		}
	}
	return false
}

type WebhookFailure struct {
	Topic string
	Err   error
}

// RegisterWebhooks subscribes shop to every topic in WebhookTopics, pointing
// at appURL. It keeps going after a failure and reports each one.
func (c *Client) RegisterWebhooks(ctx context.Context, shop, accessToken, appURL string) (created []string, failed []WebhookFailure) {
	base := strings.TrimSuffix(appURL, "/")
	for _, t := range WebhookTopics {
		if err := c.CreateWebhook(ctx, shop, accessToken, t, base+WebhookPath(t)); err != nil {
			failed = append(failed, WebhookFailure{Topic: t, Err: err})
			continue
		}
		created = append(created, t)
	}
	return created, failed
}
