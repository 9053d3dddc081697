package welldata

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"rae-agent/shared/config"
	"rae-agent/shared/retry"
)

const testToken = "tok-123"

// fakeAPI is a WellData stand-in with a token endpoint already wired.
type fakeAPI struct {
	mux         *http.ServeMux
	server      *httptest.Server
	tokenCalls  atomic.Int32
	tokenStatus int
	// tokenDrops is the number of token requests answered by closing the connection
	tokenDrops atomic.Int32
	lastAuth   atomic.Value
	lastAppID  atomic.Value
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	f := &fakeAPI{mux: http.NewServeMux(), tokenStatus: http.StatusOK}
	f.mux.HandleFunc("/tokens/token", func(w http.ResponseWriter, r *http.Request) {
		f.tokenCalls.Add(1)
		if f.tokenDrops.Add(-1) >= 0 {
			conn, _, err := w.(http.Hijacker).Hijack()
			if err == nil {
				conn.Close()
			}
			return
		}
		user, pass, _ := r.BasicAuth()
		f.lastAuth.Store(user + ":" + pass)
		f.lastAppID.Store(r.Header.Get("ApplicationID"))
		if f.tokenStatus != http.StatusOK {
			w.WriteHeader(f.tokenStatus)
			return
		}
		fmt.Fprintf(w, `{"token": %q}`, testToken)
	})
	f.server = httptest.NewServer(f.mux)
	t.Cleanup(f.server.Close)
	return f
}

func (f *fakeAPI) handle(pattern string, h http.HandlerFunc) {
	f.mux.HandleFunc(pattern, h)
}

func (f *fakeAPI) config() config.WellDataConfig {
	return config.WellDataConfig{
		APIURL:        f.server.URL,
		AppID:         "app-1",
		Username:      "rae",
		Password:      "secret",
		RetryDelay:    time.Millisecond,
		OuterAttempts: 4,
		OuterDelay:    time.Millisecond,
		Timeout:       5 * time.Second,
		TokenLifetime: time.Hour,
	}
}

func (f *fakeAPI) client(t *testing.T) *Client {
	t.Helper()
	c := NewClient(f.config(), zap.NewNop())
	require.NoError(t, c.Authenticate(context.Background()))
	return c
}

func TestAuthenticateSendsCredentials(t *testing.T) {
	f := newFakeAPI(t)

	c := NewClient(f.config(), zap.NewNop())
	require.NoError(t, c.Authenticate(context.Background()))

	assert.Equal(t, "rae:secret", f.lastAuth.Load())
	assert.Equal(t, "app-1", f.lastAppID.Load())

	token, err := c.token()
	require.NoError(t, err)
	assert.Equal(t, testToken, token)
}

func TestAuthenticateFailureIsFatal(t *testing.T) {
	f := newFakeAPI(t)
	f.tokenStatus = http.StatusUnauthorized

	c := NewClient(f.config(), zap.NewNop())
	err := c.Authenticate(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(1), f.tokenCalls.Load(), "auth failures are not retried")
}

func TestAuthenticateRetriesTransportError(t *testing.T) {
	f := newFakeAPI(t)
	f.tokenDrops.Store(2)

	c := NewClient(f.config(), zap.NewNop())
	require.NoError(t, c.Authenticate(context.Background()))

	assert.Equal(t, int32(3), f.tokenCalls.Load())
	token, err := c.token()
	require.NoError(t, err)
	assert.Equal(t, testToken, token)
}

func TestAuthenticateTransportErrorExhausted(t *testing.T) {
	f := newFakeAPI(t)
	f.tokenDrops.Store(10)

	c := NewClient(f.config(), zap.NewNop())
	err := c.Authenticate(context.Background())

	require.Error(t, err)
	assert.ErrorIs(t, err, retry.ErrMaxAttemptsExceeded)
	assert.NotErrorIs(t, err, ErrAuthentication)
	assert.Equal(t, int32(4), f.tokenCalls.Load())
}

func TestNewClientDefaultsOuterPolicy(t *testing.T) {
	cfg := newFakeAPI(t).config()
	cfg.OuterAttempts = 0
	cfg.OuterDelay = 0

	c := NewClient(cfg, zap.NewNop())
	assert.Equal(t, retry.Bounded().Attempts, c.outer.Attempts)
	assert.Equal(t, 2*time.Second, c.outer.Delay)
	assert.False(t, c.outer.Retryable(ErrAuthentication))
	assert.False(t, c.outer.Retryable(context.Canceled))
	assert.True(t, c.outer.Retryable(ErrRequestFailed))
}

func TestTokenReusedAcrossCalls(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/jobs/J1/attributes", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, testToken, r.Header.Get("Token"))
		assert.Equal(t, "application/json", r.Header.Get("accept"))
		fmt.Fprint(w, `{"attributes": []}`)
	})

	c := f.client(t)
	for i := 0; i < 3; i++ {
		_, err := c.Attributes(context.Background(), "J1")
		require.NoError(t, err)
	}
	assert.Equal(t, int32(1), f.tokenCalls.Load())
}

func TestTokenRefreshedAfterLifetime(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/jobs/J1/attributes", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"attributes": []}`)
	})

	c := f.client(t)
	c.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	require.NoError(t, c.Authenticate(context.Background()))

	_, err := c.Attributes(context.Background(), "J1")
	require.NoError(t, err)
	assert.Equal(t, int32(3), f.tokenCalls.Load())
}

func TestDoRetriesTransientOnce(t *testing.T) {
	f := newFakeAPI(t)
	var calls atomic.Int32
	f.handle("/jobs/J1/attributes", func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		fmt.Fprint(w, `{"attributes": [{"id": "a1", "hasData": true, "alias": {"witsml_mnemonic": "WOB"}}]}`)
	})

	attrs, err := f.client(t).Attributes(context.Background(), "J1")
	require.NoError(t, err)
	assert.Len(t, attrs, 1)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoGivesUpAfterInlineRetry(t *testing.T) {
	f := newFakeAPI(t)
	var calls atomic.Int32
	f.handle("/jobs/J1/attributes", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	_, err := f.client(t).Attributes(context.Background(), "J1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrRequestFailed)

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusInternalServerError, apiErr.StatusCode)
	assert.Equal(t, int32(2), calls.Load())
}

func TestDoNonTransientFailsFast(t *testing.T) {
	f := newFakeAPI(t)
	var calls atomic.Int32
	f.handle("/jobs/J1/attributes", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	})

	_, err := f.client(t).Attributes(context.Background(), "J1")
	assert.ErrorIs(t, err, ErrRequestFailed)
	assert.Equal(t, int32(1), calls.Load())
}

func TestDoCancelledContextIsNotDegradable(t *testing.T) {
	f := newFakeAPI(t)
	f.handle("/jobs/J1/attributes", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	c := f.client(t)
	c.inline.Delay = time.Hour

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, err := c.Attributes(ctx, "J1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRequestFailed)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestUnauthenticatedClient(t *testing.T) {
	f := newFakeAPI(t)
	c := NewClient(f.config(), zap.NewNop())

	_, err := c.Attributes(context.Background(), "J1")
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrRequestFailed)
}

func TestIsTransient(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"transport", &transportError{err: errors.New("connection reset")}, true},
		{"500", &APIError{StatusCode: 500}, true},
		{"598", &APIError{StatusCode: 598}, true},
		{"599", &APIError{StatusCode: 599}, false},
		{"400", &APIError{StatusCode: 400}, true},
		{"404", &APIError{StatusCode: 404}, true},
		{"409", &APIError{StatusCode: 409}, true},
		{"410", &APIError{StatusCode: 410}, false},
		{"429", &APIError{StatusCode: 429}, false},
		{"wrapped", fmt.Errorf("call: %w", &APIError{StatusCode: 503}), true},
		{"plain", errors.New("decode"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsTransient(tt.err))
		})
	}
}
