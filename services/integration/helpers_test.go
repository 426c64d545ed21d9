package integration

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"net/http"
	"os"
	"testing"
	"time"
)

func serviceURL(env, fallback string) string {
	if url := os.Getenv(env); url != "" {
		return url
	}
	return fallback
}

var (
	authURL    = serviceURL("AUTH_URL", "http://localhost:8080")
	accountURL = serviceURL("ACCOUNT_URL", "http://localhost:8082")
	marketURL  = serviceURL("MARKET_URL", "http://localhost:8084")
)

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type loginResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
	Role         string `json:"role"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func skipUnlessIntegration(t *testing.T) {
	t.Helper()
	if os.Getenv("RUN_INTEGRATION") == "" {
		t.Skip("set RUN_INTEGRATION=1 to run")
	}
}

func doJSON(t *testing.T, method, url string, body any, token string, out any) int {
	t.Helper()
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
	}

	req, err := http.NewRequest(method, url, bytes.NewReader(payload))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	// login is rate limited per client ip
	req.Header.Set("X-Forwarded-For", randomIP())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	client := &http.Client{Timeout: 5 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer resp.Body.Close()

	if out != nil && resp.StatusCode < 300 && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("decode %s %s: %v", method, url, err)
		}
	} else if resp.StatusCode >= 400 {
		if errOut, ok := out.(*errorResponse); ok {
			_ = json.NewDecoder(resp.Body).Decode(errOut)
		}
	}
	return resp.StatusCode
}

func login(t *testing.T, email, password string) string {
	t.Helper()
	var out loginResponse
	if status := doJSON(t, http.MethodPost, authURL+"/auth/login", loginRequest{Email: email, Password: password}, "", &out); status != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d", email, status)
	}
	if out.AccessToken == "" {
		t.Fatalf("login %s: empty access token", email)
	}
	return out.AccessToken
}

func randomIP() string {
	return fmt.Sprintf("10.0.%d.%d", rand.IntN(255), rand.IntN(255))
}

// eventually polls check until it passes or the deadline is hit.
func eventually(t *testing.T, timeout time.Duration, check func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if check() {
			return
		}
		time.Sleep(200 * time.Millisecond)
	}
	t.Fatalf("condition not met within %v", timeout)
}
