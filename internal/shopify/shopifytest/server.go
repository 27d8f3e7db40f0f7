// Package shopifytest runs a fake Admin API for tests: metaobject pages,
// injected transient failures, the OAuth token endpoint and webhook creation.
package shopifytest

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
)

type Field struct {
	Key   string
	Value string
}

type Node struct {
	ID     string
	Fields []Field
}

// Page is one metaobjects response. A non-empty Errors turns it into a
// GraphQL error payload.
type Page struct {
	Nodes       []Node
	HasNextPage bool
	EndCursor   string
	Errors      []string
}

// Request records one GraphQL call as received.
type Request struct {
	Token string
	Type  string
	First int
	After string
}

type Server struct {
	*httptest.Server

	mu       sync.Mutex
	pages    map[string]Page
	failures map[string][]int
	requests []Request
	webhooks []string

	oauthStatus int
	oauthBody   string
	oauthCodes  []string
}

func NewServer(t testing.TB) *Server {
	s := &Server{
		pages:       map[string]Page{},
		failures:    map[string][]int{},
		oauthStatus: http.StatusOK,
		oauthBody:   `{"access_token":"shpat_test","scope":"read_metaobjects"}`,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/admin/oauth/access_token", s.handleToken)
	mux.HandleFunc("/admin/api/", s.handleAdmin)
	s.Server = httptest.NewServer(mux)
	t.Cleanup(s.Close)
	return s
}

// ChainPages registers pages so each one's cursor leads to the next; the
// first page answers a request with no cursor.
func (s *Server) ChainPages(pages ...Page) {
	s.mu.Lock()
	defer s.mu.Unlock()

	after := ""
	for i, p := range pages {
		if i < len(pages)-1 {
			p.HasNextPage = true
			p.EndCursor = fmt.Sprintf("cursor-%d", i+1)
		}
		s.pages[after] = p
		after = p.EndCursor
	}
}

// SetPage answers requests carrying cursor after with p, verbatim.
func (s *Server) SetPage(after string, p Page) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pages[after] = p
}

// FailNext makes the next n requests for cursor after answer with status.
func (s *Server) FailNext(after string, n, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := 0; i < n; i++ {
		s.failures[after] = append(s.failures[after], status)
	}
}

func (s *Server) SetOAuthResponse(status int, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.oauthStatus = status
	s.oauthBody = body
}

func (s *Server) Requests() []Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Request(nil), s.requests...)
}

func (s *Server) OAuthCodes() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.oauthCodes...)
}

func (s *Server) WebhookTopics() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.webhooks...)
}

func (s *Server) handleToken(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"code"`
	}
	_ = json.NewDecoder(r.Body).Decode(&body)

	s.mu.Lock()
	s.oauthCodes = append(s.oauthCodes, body.Code)
	status, resp := s.oauthStatus, s.oauthBody
	s.mu.Unlock()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(resp))
}

func (s *Server) handleAdmin(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasSuffix(r.URL.Path, "/graphql.json"):
		s.handleGraphQL(w, r)
	case strings.HasSuffix(r.URL.Path, "/webhooks.json"):
		var body struct {
			Webhook struct {
				Topic string `json:"topic"`
			} `json:"webhook"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		s.mu.Lock()
		s.webhooks = append(s.webhooks, body.Webhook.Topic)
		s.mu.Unlock()
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"webhook":{}}`))
	default:
		http.NotFound(w, r)
	}
}

func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Variables struct {
			Type  string  `json:"type"`
			First int     `json:"first"`
			After *string `json:"after"`
		} `json:"variables"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "bad body", http.StatusBadRequest)
		return
	}
	after := ""
	if body.Variables.After != nil {
		after = *body.Variables.After
	}

	s.mu.Lock()
	s.requests = append(s.requests, Request{
		Token: r.Header.Get("X-Shopify-Access-Token"),
		Type:  body.Variables.Type,
		First: body.Variables.First,
		After: after,
	})
	var failStatus int
	if q := s.failures[after]; len(q) > 0 {
		failStatus, s.failures[after] = q[0], q[1:]
	}
	page, ok := s.pages[after]
	s.mu.Unlock()

	if failStatus != 0 {
		http.Error(w, "injected failure", failStatus)
		return
	}
	if !ok {
		page = Page{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(encodePage(page))
}

func encodePage(p Page) map[string]any {
	if len(p.Errors) > 0 {
		errs := make([]map[string]any, 0, len(p.Errors))
		for _, m := range p.Errors {
			errs = append(errs, map[string]any{"message": m})
		}
		return map[string]any{"data": nil, "errors": errs}
	}

	edges := make([]map[string]any, 0, len(p.Nodes))
	for _, n := range p.Nodes {
		fields := make([]map[string]any, 0, len(n.Fields))
		for _, f := range n.Fields {
			fields = append(fields, map[string]any{"key": f.Key, "value": f.Value, "reference": nil})
		}
		edges = append(edges, map[string]any{"node": map[string]any{"id": n.ID, "fields": fields}})
	}

	var cursor any
	if p.EndCursor != "" {
		cursor = p.EndCursor
	}
	return map[string]any{
		"data": map[string]any{
			"metaobjects": map[string]any{
				"edges":    edges,
				"pageInfo": map[string]any{"hasNextPage": p.HasNextPage, "endCursor": cursor},
			},
		},
	}
}

// COA builds a node with the usual certificate fields; empty values are
// omitted so tests can model missing fields.
func COA(id, date, product, batch string) Node {
	n := Node{ID: id}
	for _, f := range []Field{{"date", date}, {"product_name", product}, {"batch_number", batch}} {
		if f.Value != "" {
			n.Fields = append(n.Fields, f)
		}
	}
	return n
}
