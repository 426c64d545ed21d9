package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

// RequestOption adjusts a test request before it is served.
type RequestOption func(*http.Request)

// WithClientIP sets X-Forwarded-For so per-IP login limits see distinct clients.
func WithClientIP(ip string) RequestOption {
	return func(r *http.Request) {
		r.Header.Set("X-Forwarded-For", ip)
	}
}

// Serve sends a JSON request through router. A nil body sends no payload.
func Serve(router http.Handler, method, path string, body any, opts ...RequestOption) *httptest.ResponseRecorder {
	var payload io.Reader = http.NoBody
	if body != nil {
		raw, _ := json.Marshal(body)
		payload = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, payload)
	req.Header.Set("Content-Type", "application/json")
	for _, opt := range opts {
		opt(req)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func MakeAPIRequest(router http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	return Serve(router, method, path, body)
}

// DecodeJSON fails the test when resp does not hold a JSON document for out.
func DecodeJSON(t *testing.T, resp *httptest.ResponseRecorder, out any) {
	t.Helper()
	if err := json.Unmarshal(resp.Body.Bytes(), out); err != nil {
		t.Fatalf("decode %d response %q: %v", resp.Code, resp.Body.String(), err)
	}
}
