package captcha

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/tinylog/tinylog/internal/config"
)

// newClientFor builds a client pointed at the given test provider.
func newClientFor(provider *httptest.Server, allowTestToken bool) *Client {
	return NewClient(config.CaptchaConfig{
		Secret:         "test-secret",
		ChallengeURL:   provider.URL + "/challenge",
		VerifyURL:      provider.URL + "/verify",
		AllowTestToken: allowTestToken,
	})
}

func TestVerify_Success(t *testing.T) {
	var gotSecret, gotResponse string
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Errorf("parsing form: %v", err)
		}
		gotSecret = r.PostFormValue("secret")
		gotResponse = r.PostFormValue("response")
		w.Write([]byte(`{"success": true}`))
	}))
	defer provider.Close()

	client := newClientFor(provider, false)
	if !client.Verify(context.Background(), "human-token") {
		t.Error("provider said success=true but Verify returned false")
	}
	if gotSecret != "test-secret" || gotResponse != "human-token" {
		t.Errorf("provider received secret=%q response=%q", gotSecret, gotResponse)
	}
}

func TestVerify_ProviderSaysNo(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"success": false}`))
	}))
	defer provider.Close()

	if newClientFor(provider, false).Verify(context.Background(), "bot-token") {
		t.Error("Verify returned true for success=false")
	}
}

func TestVerify_FailsClosed(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"missing success flag", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"score": 0.9}`))
		}},
		{"malformed payload", func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`this is not json`))
		}},
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"rate limited", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "slow down", http.StatusTooManyRequests)
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			provider := httptest.NewServer(tc.handler)
			defer provider.Close()

			if newClientFor(provider, false).Verify(context.Background(), "token") {
				t.Error("Verify returned true; it must fail closed")
			}
		})
	}
}

func TestVerify_ProviderUnreachable(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newClientFor(provider, false)
	provider.Close()

	if client.Verify(context.Background(), "token") {
		t.Error("Verify returned true with the provider down")
	}
}

func TestVerify_EmptyToken(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("provider called for an empty token")
	}))
	defer provider.Close()

	if newClientFor(provider, false).Verify(context.Background(), "") {
		t.Error("Verify returned true for an empty token")
	}
}

func TestVerify_TestToken(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("bypass token must never reach the provider")
	}))
	defer provider.Close()

	// Honored only when explicitly enabled.
	if !newClientFor(provider, true).Verify(context.Background(), TestToken) {
		t.Error("test token rejected with bypass enabled")
	}
	if newClientFor(provider, false).Verify(context.Background(), TestToken) {
		t.Error("test token accepted with bypass disabled")
	}
}

func TestChallenge_Success(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("  opaque-challenge-data\n"))
	}))
	defer provider.Close()

	challenge, err := newClientFor(provider, false).Challenge(context.Background())
	if err != nil {
		t.Fatalf("Challenge: %v", err)
	}
	if challenge != "opaque-challenge-data" {
		t.Errorf("expected trimmed challenge body, got %q", challenge)
	}
}

func TestChallenge_ProviderErrors(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down for maintenance", http.StatusServiceUnavailable)
	}))
	defer provider.Close()

	if _, err := newClientFor(provider, false).Challenge(context.Background()); err == nil {
		t.Error("expected an error for a 503 from the provider")
	}
}

func TestChallenge_ProviderUnreachable(t *testing.T) {
	provider := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	client := newClientFor(provider, false)
	provider.Close()

	if _, err := client.Challenge(context.Background()); err == nil {
		t.Error("expected an error with the provider down")
	}
}
