package bilibili

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
)

// feedServer serves canned responses for the listing endpoints in order and
// records every query it receives.
type feedServer struct {
	mu       sync.Mutex
	pages    []string
	requests []url.Values
	paths    []string
}

func (f *feedServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, r.URL.Query())
	f.paths = append(f.paths, r.URL.Path)
	n := len(f.requests) - 1
	if n >= len(f.pages) {
		http.Error(w, "no more pages", http.StatusGone)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	fmt.Fprint(w, f.pages[n])
}

func (f *feedServer) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.requests)
}

func newTestAPI(t *testing.T, handler http.Handler, opts ...Option) (*API, *logger.TestLogger) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	log := logger.NewTestLogger()
	client := NewClient(Options{}, logger.NewNopLogger())
	opts = append([]Option{
		WithBaseURLs(server.URL+"/x/polymer/web-dynamic/v1", server.URL, server.URL+"/x/space/v2/myinfo"),
		WithLogger(log),
	}, opts...)
	return NewAPI(client, opts...), log
}

func TestUserArticlesPagination(t *testing.T) {
	fs := &feedServer{pages: []string{
		`{"code":0,"data":{"has_more":true,"items":[{"opus_id":"101","content":"a"},{"opus_id":"102"}]}}`,
		`{"code":0,"data":{"has_more":false,"items":[{"opus_id":"103"}]}}`,
	}}
	api, _ := newTestAPI(t, fs)

	var ids []string
	for ref, err := range api.UserArticles(context.Background(), "777") {
		require.NoError(t, err)
		ids = append(ids, ref.OpusID)
	}

	assert.Equal(t, []string{"101", "102", "103"}, ids)
	require.Equal(t, 2, fs.count())
	assert.Equal(t, "/x/polymer/web-dynamic/v1/opus/feed/space", fs.paths[0])
	assert.Equal(t, "777", fs.requests[0].Get("host_mid"))
	assert.Empty(t, fs.requests[0].Get("offset"))
	assert.Equal(t, "102", fs.requests[1].Get("offset"))
}

func TestUserArticlesIsLazy(t *testing.T) {
	fs := &feedServer{pages: []string{
		`{"code":0,"data":{"has_more":true,"items":[{"opus_id":"1"},{"opus_id":"2"}]}}`,
		`{"code":0,"data":{"has_more":false,"items":[{"opus_id":"3"}]}}`,
	}}
	api, _ := newTestAPI(t, fs)

	var counts []int
	for _, err := range api.UserArticles(context.Background(), "1") {
		require.NoError(t, err)
		counts = append(counts, fs.count())
		if len(counts) == 3 {
			break
		}
	}

	// the second page is requested only when the third item is pulled
	assert.Equal(t, []int{1, 1, 2}, counts)
	assert.Equal(t, 2, fs.count())
}

func TestUserFavoritesIsLazy(t *testing.T) {
	fs := &feedServer{pages: []string{
		`{"code":0,"data":{"has_more":true,"items":[{"opus_id":"1"},{"opus_id":"2"}]}}`,
		`{"code":0,"data":{"has_more":true,"items":[{"opus_id":"3"}]}}`,
		`{"code":0,"data":{"has_more":false,"items":[{"opus_id":"4"}]}}`,
	}}
	api, _ := newTestAPI(t, fs)

	var counts []int
	for _, err := range api.UserFavorites(context.Background()) {
		require.NoError(t, err)
		counts = append(counts, fs.count())
		if len(counts) == 3 {
			break
		}
	}

	assert.Equal(t, []int{1, 1, 2}, counts)
	assert.Equal(t, 2, fs.count(), "third page fetched after the consumer stopped")
}

func TestUserArticlesKeepsReferenceFields(t *testing.T) {
	fs := &feedServer{pages: []string{
		`{"code":0,"data":{"has_more":false,"items":[{"opus_id":1234567890123456789,"cover":"c.jpg"}]}}`,
	}}
	api, _ := newTestAPI(t, fs)

	for ref, err := range api.UserArticles(context.Background(), "1") {
		require.NoError(t, err)
		assert.Equal(t, "1234567890123456789", ref.OpusID)
		assert.Equal(t, "c.jpg", ref.Fields["cover"])
	}
}

func TestHasMoreAsymmetry(t *testing.T) {
	page := `{"code":0,"data":{"items":[{"opus_id":"9"}]}}`

	t.Run("user articles require has_more", func(t *testing.T) {
		api, _ := newTestAPI(t, &feedServer{pages: []string{page}})

		var ids []string
		var gotErr error
		for ref, err := range api.UserArticles(context.Background(), "5") {
			if err != nil {
				gotErr = err
				continue
			}
			ids = append(ids, ref.OpusID)
		}
		assert.Equal(t, []string{"9"}, ids)
		require.Error(t, gotErr)
		assert.True(t, errs.IsAbort(gotErr))
	})

	t.Run("favorites treat missing has_more as done", func(t *testing.T) {
		fs := &feedServer{pages: []string{page}}
		api, _ := newTestAPI(t, fs)

		var ids []string
		for ref, err := range api.UserFavorites(context.Background()) {
			require.NoError(t, err)
			ids = append(ids, ref.OpusID)
		}
		assert.Equal(t, []string{"9"}, ids)
		assert.Equal(t, 1, fs.count())
	})

	t.Run("favorites treat null has_more as done", func(t *testing.T) {
		fs := &feedServer{pages: []string{`{"code":0,"data":{"has_more":null,"items":[]}}`}}
		api, _ := newTestAPI(t, fs)

		for _, err := range api.UserFavorites(context.Background()) {
			require.NoError(t, err)
		}
		assert.Equal(t, 1, fs.count())
	})
}

func TestUserArticlesEmptyPageWithMore(t *testing.T) {
	fs := &feedServer{pages: []string{`{"code":0,"data":{"has_more":true,"items":[]}}`}}
	api, _ := newTestAPI(t, fs)

	var gotErr error
	for _, err := range api.UserArticles(context.Background(), "5") {
		gotErr = err
	}
	assert.True(t, errs.IsAbort(gotErr))
	assert.Equal(t, 1, fs.count())
}

func TestUserFavoritesPaging(t *testing.T) {
	fs := &feedServer{pages: []string{
		`{"code":0,"data":{"has_more":1,"items":[{"opus_id":"1"}]}}`,
		`{"code":0,"data":{"has_more":true,"items":[{"opus_id":"2"}]}}`,
		`{"code":0,"data":{"has_more":false,"items":[{"opus_id":"3"}]}}`,
	}}
	api, _ := newTestAPI(t, fs)

	var ids []string
	for ref, err := range api.UserFavorites(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, ref.OpusID)
	}

	assert.Equal(t, []string{"1", "2", "3"}, ids)
	require.Equal(t, 3, fs.count())
	for i, q := range fs.requests {
		assert.Equal(t, fmt.Sprint(i+1), q.Get("page"))
		assert.Equal(t, "20", q.Get("page_size"))
	}
	assert.Equal(t, "/x/polymer/web-dynamic/v1/opus/feed/fav", fs.paths[0])
}

func TestEnvelopeFailure(t *testing.T) {
	body := `{"code":1,"data":null}`

	listings := map[string]func(api *API) func(func(ArticleReference, error) bool){
		"user articles": func(api *API) func(func(ArticleReference, error) bool) {
			return api.UserArticles(context.Background(), "1")
		},
		"favorites": func(api *API) func(func(ArticleReference, error) bool) {
			return api.UserFavorites(context.Background())
		},
	}

	for name, listing := range listings {
		t.Run(name, func(t *testing.T) {
			fs := &feedServer{pages: []string{body, body}}
			api, log := newTestAPI(t, fs)

			items := 0
			var gotErr error
			for _, err := range listing(api) {
				if err != nil {
					gotErr = err
					continue
				}
				items++
			}

			assert.Zero(t, items)
			require.Error(t, gotErr)
			assert.True(t, errs.IsAbort(gotErr))
			assert.Equal(t, "API request failed", gotErr.Error())
			assert.Equal(t, 1, fs.count(), "envelope errors must not be retried")

			debug := log.GetMessagesByLevel("DEBUG")
			require.Len(t, debug, 1)
			assert.Equal(t, body, debug[0].Fields["response"])
		})
	}
}

func TestListingStopsOnCancelledContext(t *testing.T) {
	fs := &feedServer{pages: []string{
		`{"code":0,"data":{"has_more":true,"items":[{"opus_id":"1"}]}}`,
		`{"code":0,"data":{"has_more":false,"items":[{"opus_id":"2"}]}}`,
	}}
	api, _ := newTestAPI(t, fs)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var gotErr error
	for _, err := range api.UserArticles(ctx, "1") {
		if err != nil {
			gotErr = err
			break
		}
		cancel()
	}

	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Equal(t, 1, fs.count())
}

func TestLoginUserID(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		want    string
		wantErr string
	}{
		{
			name: "logged in",
			body: `{"code":0,"data":{"profile":{"mid":12345,"name":"someone"}}}`,
			want: "12345",
		},
		{
			name:    "not logged in",
			body:    `{"code":-101,"message":"not logged in"}`,
			wantErr: "API request failed. Are you logged in?",
		},
		{
			name:    "missing code",
			body:    `{"data":{"profile":{"mid":1}}}`,
			wantErr: "API request failed. Are you logged in?",
		},
		{
			name:    "missing mid",
			body:    `{"code":0,"data":{"profile":{}}}`,
			wantErr: "API request failed",
		},
		{
			name:    "missing data",
			body:    `{"code":0}`,
			wantErr: "API request failed",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := &feedServer{pages: []string{tt.body}}
			api, _ := newTestAPI(t, fs)

			mid, err := api.LoginUserID(context.Background())
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.True(t, errs.IsAbort(err))
				assert.Equal(t, tt.wantErr, err.Error())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, mid)
			assert.Equal(t, "/x/space/v2/myinfo", fs.paths[0])
		})
	}
}

func TestTruthy(t *testing.T) {
	tests := []struct {
		value interface{}
		want  bool
	}{
		{nil, false},
		{false, false},
		{true, true},
		{float64(0), false},
		{float64(2), true},
		{"", false},
		{"0", true},
		{[]interface{}{}, false},
		{map[string]interface{}{"a": 1}, true},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, truthy(tt.value), "truthy(%#v)", tt.value)
	}
}
