// Package welldata is a client for the WellData telemetry REST API.
package welldata

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"rae-agent/shared/config"
	"rae-agent/shared/retry"
)

var (
	// ErrRequestFailed marks a call that still failed after its inline retry.
	// Callers degrade the affected job instead of aborting the run.
	ErrRequestFailed = errors.New("welldata request failed")
	// ErrAuthentication is returned when the token endpoint answers with anything but 200
	ErrAuthentication = errors.New("welldata authentication failed")
)

// APIError carries the status of a non-2xx response
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s returned status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s returned status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

type transportError struct {
	err error
}

func (e *transportError) Error() string { return e.err.Error() }
func (e *transportError) Unwrap() error { return e.err }

// IsTransient reports whether err is worth the inline retry: a transport
// failure, a 5xx below 599, or a 4xx below 410.
func IsTransient(err error) bool {
	var te *transportError
	if errors.As(err, &te) {
		return true
	}
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		code := apiErr.StatusCode
		return (code >= 500 && code < 599) || (code >= 400 && code < 410)
	}
	return false
}

// Client talks to one WellData API root with a single set of credentials
type Client struct {
	baseURL  string
	appID    string
	username string
	password string

	client        *http.Client
	logger        *zap.Logger
	inline        retry.Policy
	outer         retry.Policy
	tokenLifetime time.Duration

	tokens oauth2.TokenSource
	now    func() time.Time
}

func NewClient(cfg config.WellDataConfig, logger *zap.Logger) *Client {
	c := &Client{
		baseURL:  strings.TrimRight(cfg.APIURL, "/"),
		appID:    cfg.AppID,
		username: cfg.Username,
		password: cfg.Password,
		client: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger:        logger.With(zap.String("component", "welldata")),
		inline:        retry.Once(cfg.RetryDelay, IsTransient),
		tokenLifetime: cfg.TokenLifetime,
		now:           time.Now,
	}
	c.outer = retry.Bounded()
	if cfg.OuterAttempts > 0 {
		c.outer.Attempts = cfg.OuterAttempts
	}
	if cfg.OuterDelay > 0 {
		c.outer.Delay = cfg.OuterDelay
	}
	c.outer.Retryable = func(err error) bool {
		return !errors.Is(err, ErrAuthentication) && !errors.Is(err, context.Canceled)
	}
	c.outer.OnRetry = func(attempt int, err error) {
		c.logger.Warn("Retrying WellData call", zap.Int("attempt", attempt), zap.Error(err))
	}
	return c
}

// Authenticate fetches a token for this run. Later calls reuse it until the
// configured lifetime runs out, then fetch a new one with ctx.
func (c *Client) Authenticate(ctx context.Context) error {
	src := &tokenSource{ctx: ctx, client: c}
	tok, err := src.Token()
	if err != nil {
		return err
	}
	c.tokens = oauth2.ReuseTokenSource(tok, src)
	return nil
}

type tokenSource struct {
	ctx    context.Context
	client *Client
}

func (s *tokenSource) Token() (*oauth2.Token, error) {
	return retry.Value(s.ctx, s.client.outer, func() (*oauth2.Token, error) {
		return s.client.fetchToken(s.ctx)
	})
}

func (c *Client) fetchToken(ctx context.Context) (*oauth2.Token, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/tokens/token", nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("ApplicationID", c.appID)
	req.Header.Set("accept", "application/json")
	req.SetBasicAuth(c.username, c.password)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch token: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: token endpoint returned status %d", ErrAuthentication, resp.StatusCode)
	}

	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode token response: %w", err)
	}
	if body.Token == "" {
		return nil, fmt.Errorf("%w: empty token", ErrAuthentication)
	}

	c.logger.Debug("Fetched WellData token")
	return &oauth2.Token{
		AccessToken: body.Token,
		TokenType:   "Token",
		Expiry:      c.now().Add(c.tokenLifetime),
	}, nil
}

func (c *Client) token() (string, error) {
	if c.tokens == nil {
		return "", errors.New("welldata client is not authenticated")
	}
	tok, err := c.tokens.Token()
	if err != nil {
		return "", fmt.Errorf("failed to refresh token: %w", err)
	}
	return tok.AccessToken, nil
}

// do sends one request with the inline retry and returns the raw response body.
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body any) ([]byte, error) {
	token, err := c.token()
	if err != nil {
		return nil, err
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var payload []byte
	if body != nil {
		if payload, err = json.Marshal(body); err != nil {
			return nil, fmt.Errorf("failed to encode %s body: %w", path, err)
		}
	}

	policy := c.inline
	policy.OnRetry = func(attempt int, err error) {
		c.logger.Warn("WellData request failed, retrying",
			zap.String("method", method),
			zap.String("path", path),
			zap.Duration("delay", policy.Delay),
			zap.Error(err),
		)
	}

	var data []byte
	err = policy.Do(ctx, func() error {
		var sendErr error
		data, sendErr = c.send(ctx, method, path, target, token, payload)
		return sendErr
	})
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	return data, nil
}

func (c *Client) send(ctx context.Context, method, path, target, token string, payload []byte) ([]byte, error) {
	var reader io.Reader
	if payload != nil {
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Token", token)
	req.Header.Set("accept", "application/json")
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &transportError{err: err}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &transportError{err: err}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := strings.TrimSpace(string(data))
		if len(snippet) > 256 {
			snippet = snippet[:256]
		}
		return nil, &APIError{Method: method, Path: path, StatusCode: resp.StatusCode, Body: snippet}
	}
	return data, nil
}

// getJSON issues a GET and decodes the response into out.
func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	data, err := c.do(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%w: decode %s: %w", ErrRequestFailed, path, err)
	}
	return nil
}

func jobPath(jobID string, parts ...string) string {
	return "/jobs/" + url.PathEscape(jobID) + strings.Join(parts, "")
}
