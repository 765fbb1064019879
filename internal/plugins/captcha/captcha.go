// Package captcha talks to the external human-verification provider. The
// server never sees captcha state; it only forwards challenge requests and
// checks response tokens. Verification fails closed: a provider outage, a
// malformed payload, or a missing success flag all count as "not human",
// because a wrong answer and an unreachable verifier are indistinguishable
// to the registrant and both must block account creation.
package captcha

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tinylog/tinylog/internal/apperror"
	"github.com/tinylog/tinylog/internal/config"
)

// TestToken is the reserved bypass value for test clients. It is only
// honored when the config explicitly enables it, and config.Load refuses
// that flag in production.
const TestToken = "tinylog-test-captcha-bypass"

// requestTimeout bounds every call to the provider so a hung verifier
// can't hold registration requests open indefinitely.
const requestTimeout = 10 * time.Second

// maxChallengeBytes caps how much of a provider challenge response is read.
const maxChallengeBytes = 64 * 1024

// Client calls the external captcha provider's challenge and verification
// endpoints. It implements the auth plugin's CaptchaVerifier and
// CaptchaChallenger contracts.
type Client struct {
	secret         string
	challengeURL   string
	verifyURL      string
	allowTestToken bool
	http           *http.Client
}

// NewClient creates a captcha client from config.
func NewClient(cfg config.CaptchaConfig) *Client {
	return &Client{
		secret:         cfg.Secret,
		challengeURL:   cfg.ChallengeURL,
		verifyURL:      cfg.VerifyURL,
		allowTestToken: cfg.AllowTestToken,
		http:           &http.Client{Timeout: requestTimeout},
	}
}

// Challenge fetches a fresh opaque challenge from the provider. Unlike
// Verify, a failure here is surfaced to the caller (as a 502) -- there is
// nothing to fail closed about when merely requesting a challenge.
func (c *Client) Challenge(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.challengeURL, nil)
	if err != nil {
		return "", apperror.NewInternal(err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return "", apperror.NewUpstream("captcha provider unavailable", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", apperror.NewUpstream("captcha provider unavailable", nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxChallengeBytes))
	if err != nil {
		return "", apperror.NewUpstream("captcha provider unavailable", err)
	}

	return strings.TrimSpace(string(body)), nil
}

// Verify posts the secret and the client's response token to the provider
// and returns its success flag. Any failure along the way -- network error,
// non-2xx status, unparseable body, absent flag -- returns false.
func (c *Client) Verify(ctx context.Context, responseToken string) bool {
	if responseToken == "" {
		return false
	}

	if responseToken == TestToken {
		// Reserved bypass for test environments only.
		if c.allowTestToken {
			slog.Debug("captcha test bypass token accepted")
			return true
		}
		return false
	}

	form := url.Values{
		"secret":   {c.secret},
		"response": {responseToken},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.verifyURL,
		strings.NewReader(form.Encode()))
	if err != nil {
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		slog.Warn("captcha verification request failed", slog.Any("error", err))
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Warn("captcha provider returned non-success status",
			slog.Int("status", resp.StatusCode))
		return false
	}

	// A missing "success" field decodes to false, which is what we want.
	var result struct {
		Success bool `json:"success"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		slog.Warn("captcha provider returned malformed payload", slog.Any("error", err))
		return false
	}

	return result.Success
}
