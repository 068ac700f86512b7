package bilibili

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"opusdl/pkg/config"
	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
	"opusdl/pkg/retry"
)

func TestClientSendsCookiesOnlyToAPIRequests(t *testing.T) {
	var cookies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookies = append(cookies, r.Header.Get("Cookie"))
		assert.Equal(t, "test-agent", r.Header.Get("User-Agent"))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	client := NewClient(Options{
		UserAgent: "test-agent",
		Cookies:   map[string]string{"SESSDATA": "abc", "DedeUserID": "7"},
	}, logger.NewNopLogger())

	var out map[string]interface{}
	require.NoError(t, client.GetJSON(context.Background(), server.URL, nil, &out))
	assert.Equal(t, true, out["ok"])

	_, err := client.GetText(context.Background(), server.URL)
	require.NoError(t, err)

	var buf bytes.Buffer
	n, err := client.Download(context.Background(), server.URL+"/pic.jpg", &buf)
	require.NoError(t, err)
	assert.Equal(t, int64(buf.Len()), n)

	require.Len(t, cookies, 3)
	assert.Equal(t, "DedeUserID=7; SESSDATA=abc", cookies[0])
	assert.Equal(t, cookies[0], cookies[1])
	assert.Empty(t, cookies[2])
}

func TestClientHasCookies(t *testing.T) {
	client := NewClient(Options{Cookies: map[string]string{"SESSDATA": "abc", "bili_jct": ""}}, logger.NewNopLogger())

	assert.True(t, client.HasCookies("SESSDATA"))
	assert.False(t, client.HasCookies("SESSDATA", "bili_jct"))
	assert.True(t, client.HasCookies())
}

func TestClientStatusClassification(t *testing.T) {
	tests := []struct {
		status int
		want   errs.ErrorType
	}{
		{http.StatusForbidden, errs.ErrorTypeAuth},
		{http.StatusNotFound, errs.ErrorTypeNotFound},
		{http.StatusTooManyRequests, errs.ErrorTypeRateLimit},
		{http.StatusBadGateway, errs.ErrorTypeServerError},
		{http.StatusPreconditionFailed, errs.ErrorTypeUnknown},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			client := NewClient(Options{}, logger.NewNopLogger())
			_, err := client.GetText(context.Background(), server.URL)
			require.Error(t, err)
			assert.Equal(t, tt.want, errs.TypeOf(err))
		})
	}
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&hits, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte("page"))
	}))
	defer server.Close()

	client := NewClient(Options{
		Retry: &retry.Policy{
			MaxAttempts: 3,
			Backoff:     retry.Constant(time.Millisecond),
			Logger:      logger.NewNopLogger(),
		},
	}, logger.NewNopLogger())

	body, err := client.GetText(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "page", body)
	assert.Equal(t, int32(3), atomic.LoadInt32(&hits))
}

func TestClientDoesNotRetryNotFound(t *testing.T) {
	var hits int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer server.Close()

	client := NewClient(Options{
		Retry: &retry.Policy{
			MaxAttempts: 4,
			Backoff:     retry.Constant(time.Millisecond),
			Logger:      logger.NewNopLogger(),
		},
	}, logger.NewNopLogger())

	_, err := client.GetText(context.Background(), server.URL)
	assert.Equal(t, errs.ErrorTypeNotFound, errs.TypeOf(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&hits))
}

func TestClientParseErrorIsTyped(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html>not json</html>"))
	}))
	defer server.Close()

	client := NewClient(Options{}, logger.NewNopLogger())
	var out map[string]interface{}
	err := client.GetJSON(context.Background(), server.URL, nil, &out)
	assert.Equal(t, errs.ErrorTypeParsing, errs.TypeOf(err))
}

func TestClientHonoursCancelledContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not be sent")
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	client := NewClient(Options{}, logger.NewNopLogger())
	_, err := client.GetText(ctx, server.URL)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestNewClientFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Bilibili.SessData = "abc"

	client := NewClientFromConfig(cfg, logger.NewNopLogger())
	assert.True(t, client.HasCookies("SESSDATA"))
	assert.Equal(t, cfg.Bilibili.UserAgent, client.headers["User-Agent"])
	assert.Equal(t, 4, client.retry.MaxAttempts)
}
