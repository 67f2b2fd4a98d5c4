// Package appapi is the HTTP client for the target application. Records are
// seeded the way a browser would enter them: a form login followed by form
// POSTs against the application's create endpoints.
package appapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/seedforge/seedforge/pkg/retry"
)

// Config holds connection settings for the target application.
type Config struct {
	BaseURL string
	Timeout time.Duration // default 30s
	Retry   *retry.Config // nil means retry.DefaultConfig
}

// Client is a cookie-bearing session against the target application.
type Client struct {
	baseURL  string
	http     *http.Client
	retryCfg *retry.Config
	logger   *zap.Logger
}

// SubmitResult is the outcome of one form submission.
type SubmitResult struct {
	StatusCode int
	// URL is the final URL after redirects.
	URL  string
	Body string
	// EntityID is the created record's id when the application exposed
	// one, 0 otherwise. A zero id is not an error.
	EntityID int
}

// NewClient creates a session client. The cookie jar carries the login
// session across subsequent submissions.
func NewClient(cfg *Config, logger *zap.Logger) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base url is required")
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	retryCfg := cfg.Retry
	if retryCfg == nil {
		retryCfg = retry.DefaultConfig()
	}

	return &Client{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		http:     &http.Client{Jar: jar, Timeout: timeout},
		retryCfg: retryCfg,
		logger:   logger.Named("appapi"),
	}, nil
}

// Login authenticates the session with the application's login form.
// siteName is optional; multi-tenant installs require it.
func (c *Client) Login(ctx context.Context, email, password, siteName string) error {
	if email == "" || password == "" {
		return fmt.Errorf("email and password are required")
	}

	form := url.Values{}
	form.Set("email", email)
	form.Set("password", password)
	if siteName != "" {
		form.Set("siteName", siteName)
	}

	resp, err := c.postForm(ctx, "/login", form)
	if err != nil {
		return fmt.Errorf("login: %w", err)
	}
	if resp.StatusCode >= 400 {
		return fmt.Errorf("login: status %d", resp.StatusCode)
	}

	c.logger.Info("logged in", zap.String("email", email))
	return nil
}

// SubmitForm posts one record's form values to endpoint. The application's
// forms expect a postback marker; it is added when absent. The created
// entity id is recovered from the redirect URL or response body when the
// application exposes it.
func (c *Client) SubmitForm(ctx context.Context, endpoint string, form url.Values) (*SubmitResult, error) {
	if form == nil {
		form = url.Values{}
	}
	if form.Get("postback") == "" {
		form.Set("postback", "postback")
	}

	resp, err := c.postForm(ctx, endpoint, form)
	if err != nil {
		return nil, fmt.Errorf("submit %s: %w", endpoint, err)
	}

	resp.EntityID = extractEntityID(resp.URL, resp.Body)

	c.logger.Debug("form submitted",
		zap.String("endpoint", endpoint),
		zap.Int("status", resp.StatusCode),
		zap.Int("entity_id", resp.EntityID))

	return resp, nil
}

// postForm posts form values with transport-level retry. Redirects are
// followed; the final URL is recorded for entity-id recovery.
func (c *Client) postForm(ctx context.Context, endpoint string, form url.Values) (*SubmitResult, error) {
	target := c.baseURL + "/" + strings.TrimLeft(endpoint, "/")
	body := form.Encode()

	var result *SubmitResult
	err := retry.DoIfRetryable(ctx, c.retryCfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, strings.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

		resp, err := c.http.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return err
		}

		result = &SubmitResult{
			StatusCode: resp.StatusCode,
			URL:        resp.Request.URL.String(),
			Body:       string(data),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

var bodyIDPatterns = []*regexp.Regexp{
	regexp.MustCompile(`[?&]entityID=(\d+)`),
	regexp.MustCompile(`[?&]id=(\d+)`),
	regexp.MustCompile(`name="entityID"\s+value="(\d+)"`),
}

// extractEntityID recovers the created record's id from the final URL's
// query parameters, falling back to known patterns in the response body.
// Returns 0 when nothing matched.
func extractEntityID(finalURL, body string) int {
	if u, err := url.Parse(finalURL); err == nil {
		for _, param := range []string{"entityID", "id"} {
			if v := u.Query().Get(param); v != "" {
				if id, err := strconv.Atoi(v); err == nil && id > 0 {
					return id
				}
			}
		}
	}

	for _, pattern := range bodyIDPatterns {
		if m := pattern.FindStringSubmatch(body); m != nil {
			if id, err := strconv.Atoi(m[1]); err == nil && id > 0 {
				return id
			}
		}
	}

	return 0
}
