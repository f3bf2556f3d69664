package api

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/kalambet/thoughtchain/internal/dispatch"
	"github.com/kalambet/thoughtchain/internal/extract"
	"github.com/kalambet/thoughtchain/internal/summary"
)

const testToken = "test-token-12345"

type observed struct {
	method, route string
	status        int
}

type mockHTTPRecorder struct {
	mu   sync.Mutex
	seen []observed
}

func (m *mockHTTPRecorder) ObserveHTTP(method, route string, status int, _ time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seen = append(m.seen, observed{method, route, status})
}

func setupHandler(t *testing.T) (http.Handler, *testEnv, *mockHTTPRecorder) {
	t.Helper()
	env := newTestEnv(t)
	rec := &mockHTTPRecorder{}
	h := NewHandler(Deps{
		Dispatcher: env.disp,
		Token:      testToken,
		Recorder:   rec,
		Metrics: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("# metrics\n"))
		}),
	})
	return h, env, rec
}

func authReq(method, url, body, token string) *http.Request {
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, url, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func serve(t *testing.T, h http.Handler, method, url, body string) (int, dispatch.Response) {
	t.Helper()
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(method, url, body, testToken))
	var resp dispatch.Response
	if err := json.Unmarshal(rr.Body.Bytes(), &resp); err != nil {
		t.Fatalf("%s %s: decoding body %q: %v", method, url, rr.Body.String(), err)
	}
	return rr.Code, resp
}

func TestHealthAndMetricsArePublic(t *testing.T) {
	h, _, _ := setupHandler(t)

	for _, path := range []string{"/health", "/metrics"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Errorf("GET %s = %d, want 200", path, rr.Code)
		}
	}
}

func TestAuthRequired(t *testing.T) {
	h, _, _ := setupHandler(t)

	for _, token := range []string{"", "wrong"} {
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, authReq(http.MethodGet, "/chains", "", token))
		if rr.Code != http.StatusUnauthorized {
			t.Errorf("token %q: status = %d, want 401", token, rr.Code)
		}
		if rr.Header().Get("WWW-Authenticate") == "" {
			t.Error("missing WWW-Authenticate header")
		}
	}
}

func TestEmptyTokenRejectsEverything(t *testing.T) {
	h := NewHandler(Deps{Dispatcher: newTestEnv(t).disp})

	rr := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/chains", nil)
	req.Header.Set("Authorization", "Bearer ")
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rr.Code)
	}
}

func TestMessagesEndpoint(t *testing.T) {
	h, _, _ := setupHandler(t)

	code, resp := serve(t, h, http.MethodPost, "/messages", `{"action":"addNode","node":{"title":"A","url":"http://a.example","notes":""}}`)
	if code != http.StatusOK || !resp.Success || resp.NodeID == "" {
		t.Fatalf("addNode: %d %+v", code, resp)
	}

	code, resp = serve(t, h, http.MethodPost, "/messages", `{"action":"getActiveChain"}`)
	if code != http.StatusOK || resp.Chain == nil || len(resp.Chain.Nodes) != 1 {
		t.Fatalf("getActiveChain: %d %+v", code, resp)
	}

	// Failures still answer 200 with the envelope.
	code, resp = serve(t, h, http.MethodPost, "/messages", `{"action":"deleteChain","chainId":"missing"}`)
	if code != http.StatusOK || resp.Success || resp.Error == "" {
		t.Errorf("deleteChain missing: %d %+v", code, resp)
	}
}

func TestMessagesBadJSON(t *testing.T) {
	h, _, _ := setupHandler(t)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPost, "/messages", `{not json`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestChainRoutes(t *testing.T) {
	h, env, rec := setupHandler(t)
	ctx := context.Background()

	c, err := env.store.CreateChain(ctx, "research")
	if err != nil {
		t.Fatal(err)
	}

	code, resp := serve(t, h, http.MethodPost, "/chains/"+c.ID+"/nodes", `{"title":"Go memory model","url":"https://go.dev/ref/mem"}`)
	if code != http.StatusOK || resp.ChainID != c.ID {
		t.Fatalf("add node: %d %+v", code, resp)
	}
	nodeID := resp.NodeID

	code, resp = serve(t, h, http.MethodPatch, "/chains/"+c.ID, `{"name":"memory model reading"}`)
	if code != http.StatusOK {
		t.Fatalf("rename: %d %+v", code, resp)
	}
	code, resp = serve(t, h, http.MethodGet, "/chains/"+c.ID, "")
	if code != http.StatusOK || resp.Chain.Name != "memory model reading" {
		t.Errorf("get chain: %d %+v", code, resp.Chain)
	}

	code, resp = serve(t, h, http.MethodPatch, "/chains/"+c.ID+"/nodes/"+nodeID, `{"notes":"read twice","position":3}`)
	if code != http.StatusOK {
		t.Fatalf("patch node: %d %+v", code, resp)
	}
	n, _, _ := env.store.NodeByID(ctx, c.ID, nodeID)
	if n.Notes != "read twice" {
		t.Errorf("notes = %q", n.Notes)
	}

	code, resp = serve(t, h, http.MethodGet, "/chains/recent?limit=1", "")
	if code != http.StatusOK || len(resp.Chains) != 1 {
		t.Errorf("recent chains: %d %+v", code, resp)
	}
	code, resp = serve(t, h, http.MethodGet, "/nodes/recent", "")
	if code != http.StatusOK || len(resp.Nodes) != 1 || resp.Nodes[0].ChainName != "memory model reading" {
		t.Errorf("recent nodes: %d %+v", code, resp)
	}

	code, resp = serve(t, h, http.MethodPost, "/chains/split", "")
	if code != http.StatusOK || resp.NewChainID == "" {
		t.Fatalf("split: %d %+v", code, resp)
	}
	code, resp = serve(t, h, http.MethodPut, "/chains/active", `{"chainId":"`+c.ID+`"}`)
	if code != http.StatusOK {
		t.Fatalf("set active: %d %+v", code, resp)
	}
	code, resp = serve(t, h, http.MethodGet, "/chains/active", "")
	if code != http.StatusOK || resp.Chain.ID != c.ID {
		t.Errorf("get active: %d %+v", code, resp)
	}

	code, _ = serve(t, h, http.MethodDelete, "/chains/"+c.ID+"/nodes/"+nodeID, "")
	if code != http.StatusOK {
		t.Errorf("remove node: %d", code)
	}
	code, _ = serve(t, h, http.MethodDelete, "/chains/"+c.ID, "")
	if code != http.StatusOK {
		t.Errorf("delete chain: %d", code)
	}
	code, _ = serve(t, h, http.MethodGet, "/chains/"+c.ID, "")
	if code != http.StatusNotFound {
		t.Errorf("get deleted chain: %d, want 404", code)
	}

	var sawPattern bool
	for _, o := range rec.seen {
		if o.route == "/chains/{id}/nodes/{nodeID}" && o.method == http.MethodPatch {
			sawPattern = true
		}
	}
	if !sawPattern {
		t.Errorf("recorder did not see the route pattern: %+v", rec.seen)
	}
}

func TestRouteValidation(t *testing.T) {
	h, env, _ := setupHandler(t)
	c, _ := env.store.CreateChain(context.Background(), "x")

	code, _ := serve(t, h, http.MethodPost, "/chains/"+c.ID+"/nodes", `{"title":"no url"}`)
	if code != http.StatusBadRequest {
		t.Errorf("add node without url: %d, want 400", code)
	}

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, authReq(http.MethodPatch, "/chains/"+c.ID+"/nodes/n", `{}`, testToken))
	if rr.Code != http.StatusBadRequest {
		t.Errorf("empty patch: %d, want 400", rr.Code)
	}
}

func TestReportRoutes(t *testing.T) {
	h, env, _ := setupHandler(t)
	ctx := context.Background()
	c, _ := env.store.CreateChain(ctx, "x")

	env.gen.report = summary.ReportResult{Report: "# Findings", Success: true}
	code, resp := serve(t, h, http.MethodPost, "/chains/"+c.ID+"/report", `{"guidance":"short"}`)
	if code != http.StatusOK || resp.SummaryDoc != "# Findings" {
		t.Fatalf("request report: %d %+v", code, resp)
	}

	env.gen.report = summary.ReportResult{Report: summary.MarkerReportFailed + " timeout", Error: "timeout"}
	code, resp = serve(t, h, http.MethodPost, "/chains/"+c.ID+"/report", "")
	if code != http.StatusOK || resp.Success {
		t.Errorf("failed report: %d %+v", code, resp)
	}

	if _, err := env.store.UpdateChainSummaryDoc(ctx, c.ID, "# Stored"); err != nil {
		t.Fatal(err)
	}
	code, resp = serve(t, h, http.MethodGet, "/chains/"+c.ID+"/report", "")
	if code != http.StatusOK || resp.SummaryDoc != "# Stored" {
		t.Errorf("get report: %d %+v", code, resp)
	}

	env.gen.node = summary.NodeResult{Summary: "fresh", Success: true}
	code, resp = serve(t, h, http.MethodPost, "/chains/"+c.ID+"/nodes/n1/summary", "")
	if code != http.StatusOK || resp.Summary != "fresh" {
		t.Errorf("regenerate: %d %+v", code, resp)
	}
}

func TestExtractRoute(t *testing.T) {
	h, env, _ := setupHandler(t)

	env.content.art = extract.Article{Title: "T", TextContent: "body", Length: 4}
	code, resp := serve(t, h, http.MethodPost, "/extract", `{"url":"https://example.com"}`)
	if code != http.StatusOK || resp.Content == nil || resp.Content.Title != "T" {
		t.Fatalf("extract: %d %+v", code, resp)
	}

	env.content.err = io.ErrUnexpectedEOF
	code, _ = serve(t, h, http.MethodPost, "/extract", `{"url":"https://example.com"}`)
	if code != http.StatusBadGateway {
		t.Errorf("failed extract: %d, want 502", code)
	}
}

func TestCORSAllowsExtensionOriginsOnly(t *testing.T) {
	h, _, _ := setupHandler(t)

	tests := []struct {
		origin string
		want   string
	}{
		{"chrome-extension://abcdefghijklmnop", "chrome-extension://abcdefghijklmnop"},
		{"moz-extension://0f1e2d3c", "moz-extension://0f1e2d3c"},
		{"https://example.com", ""},
	}
	for _, tt := range tests {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodOptions, "/chains", nil)
		req.Header.Set("Origin", tt.origin)
		req.Header.Set("Access-Control-Request-Method", http.MethodGet)
		req.Header.Set("Access-Control-Request-Headers", "Authorization")
		h.ServeHTTP(rr, req)

		if got := rr.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
			t.Errorf("origin %s: Allow-Origin = %q, want %q", tt.origin, got, tt.want)
		}
		if rr.Code == http.StatusUnauthorized {
			t.Errorf("origin %s: preflight hit bearer auth", tt.origin)
		}
	}
}

func TestRenameChain_StatusCodes(t *testing.T) {
	h, env, _ := setupHandler(t)
	c, _ := env.store.CreateChain(context.Background(), "reading")

	if code, resp := serve(t, h, http.MethodPatch, "/chains/missing", `{"name":"other"}`); code != http.StatusNotFound {
		t.Errorf("unknown chain: status = %d (%+v), want 404", code, resp)
	}
	if code, resp := serve(t, h, http.MethodPatch, "/chains/"+c.ID, `{"name":"  "}`); code != http.StatusBadRequest {
		t.Errorf("blank name: status = %d (%+v), want 400", code, resp)
	}
}
