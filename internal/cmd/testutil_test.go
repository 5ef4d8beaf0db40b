package cmd

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
)

// routeHandler routes mock requests by exact "METHOD PATH" key. Unmatched
// requests get a 404 so tests fail loudly on unexpected calls.
type routeHandler struct {
	routes map[string]http.HandlerFunc
}

func newRouteHandler() *routeHandler {
	return &routeHandler{routes: map[string]http.HandlerFunc{}}
}

func (rh *routeHandler) On(method, path string, handler http.HandlerFunc) *routeHandler {
	rh.routes[method+" "+path] = handler
	return rh
}

func (rh *routeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	handler, ok := rh.routes[r.Method+" "+r.URL.Path]
	if !ok {
		http.NotFound(w, r)
		return
	}
	handler(w, r)
}

func jsonResponse(statusCode int, body string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(statusCode)
		_, _ = io.WriteString(w, body)
	}
}

// setupTestEnv starts a mock server and points the CLI at it through the
// environment. t.Setenv restores everything on cleanup. The file cache is
// disabled so tests never touch the real cache directory.
func setupTestEnv(t *testing.T, handler http.Handler) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	for key, value := range map[string]string{
		"BRANCH_BASE_URL":   server.URL,
		"BRANCH_API_TOKEN":  "test-token",
		"BRANCH_AGENT_ID":   "7",
		"BRANCH_TESTING":    "1",
		"BRANCH_OUTPUT":     "text",
		"BRANCH_NO_CACHE":   "1",
		"BRANCH_REDIS_ADDR": "",
		"NO_COLOR":          "1",
	} {
		t.Setenv(key, value)
	}

	return server
}

// capturePipe swaps *target (os.Stdout or os.Stderr) for a pipe while fn
// runs and returns everything written to it. Commands resolve their writer
// during execution, so the swap is visible to them.
func capturePipe(t *testing.T, target **os.File, fn func()) string {
	t.Helper()

	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("os.Pipe: %v", err)
	}
	saved := *target
	*target = w

	fn()

	_ = w.Close()
	*target = saved

	var buf bytes.Buffer
	_, _ = io.Copy(&buf, r)
	return buf.String()
}

func captureStdout(t *testing.T, fn func()) string {
	return capturePipe(t, &os.Stdout, fn)
}

func captureStderr(t *testing.T, fn func()) string {
	return capturePipe(t, &os.Stderr, fn)
}

// decodeJSON parses command output into a generic map for assertions.
func decodeJSON(t *testing.T, output string) map[string]any {
	t.Helper()
	var v map[string]any
	if err := json.Unmarshal([]byte(output), &v); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, output)
	}
	return v
}

// decodeItems parses list-command JSON output, which wraps slices in
// {"items": [...]}, and returns the inner array.
func decodeItems(t *testing.T, output string) []map[string]any {
	t.Helper()
	var wrapper struct {
		Items []map[string]any `json:"items"`
	}
	if err := json.Unmarshal([]byte(output), &wrapper); err != nil {
		t.Fatalf("output is not valid JSON: %v\noutput: %s", err, output)
	}
	return wrapper.Items
}
