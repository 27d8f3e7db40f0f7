package shopify

import (
	"context"
	"encoding/json"
	"fmt"
)

type GraphQLError struct {
	Message    string `json:"message"`
	Path       []any  `json:"path,omitempty"`
	Extensions struct {
		Code string `json:"code,omitempty"`
	} `json:"extensions,omitempty"`
}

type GraphQLResponse[T any] struct {
	Data   T              `json:"data"`
	Errors []GraphQLError `json:"errors"`
}

func (r *GraphQLResponse[T]) ErrorMessages() []string {
	out := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		out = append(out, e.Message)
	}
	return out
}

// PostGraphQL makes exactly one Admin GraphQL request. A non-2xx status is
// returned as *HTTPStatusError; GraphQL-level errors are left in the
// response for the caller to judge.
func PostGraphQL[T any](ctx context.Context, c *Client, shop, accessToken, query string, variables any) (*GraphQLResponse[T], int, error) {
	status, raw, err := c.postJSON(ctx, c.adminURL(shop, "graphql.json"), accessToken, map[string]any{
		"query":     query,
		"variables": variables,
	})
	if err != nil {
		return nil, status, err
	}
	if !isSuccess(status) {
		return nil, status, &HTTPStatusError{StatusCode: status}
	}

	var out GraphQLResponse[T]
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, status, fmt.Errorf("decode graphql response: %w", err)
	}
	return &out, status, nil
}
