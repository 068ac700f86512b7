package bilibili

import (
	"context"
	"encoding/json"
	"iter"
	"net/url"
	"strconv"
	"time"

	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
	"opusdl/pkg/ratelimit"
)

// Transport is the HTTP surface the API needs. *Client implements it.
type Transport interface {
	GetJSON(ctx context.Context, rawURL string, params url.Values, target interface{}) error
	GetText(ctx context.Context, rawURL string) (string, error)
}

// DefaultChallengeCooldown is the wait after a risk-control interstitial
const DefaultChallengeCooldown = 300 * time.Second

// API wraps the bilibili endpoints used for article extraction. It keeps no
// per-call state: cursors live inside each returned sequence.
type API struct {
	transport  Transport
	apiBase    string
	webBase    string
	profileURL string
	cooldown   time.Duration
	sleep      ratelimit.SleepFunc
	logger     logger.Logger
}

// Option customizes an API
type Option func(*API)

// WithBaseURLs points the API at different hosts, mostly for tests.
func WithBaseURLs(apiBase, webBase, profileURL string) Option {
	return func(a *API) {
		a.apiBase = apiBase
		a.webBase = webBase
		a.profileURL = profileURL
	}
}

// WithCooldown sets the wait applied after a risk-control interstitial.
// Non-positive values keep DefaultChallengeCooldown.
func WithCooldown(d time.Duration) Option {
	return func(a *API) {
		if d <= 0 {
			d = DefaultChallengeCooldown
		}
		a.cooldown = d
	}
}

// WithSleep replaces the function used to wait out a cooldown
func WithSleep(sleep ratelimit.SleepFunc) Option {
	return func(a *API) { a.sleep = sleep }
}

// WithLogger sets the logger
func WithLogger(log logger.Logger) Option {
	return func(a *API) { a.logger = log }
}

// NewAPI creates an API on top of the given transport
func NewAPI(transport Transport, opts ...Option) *API {
	a := &API{
		transport:  transport,
		apiBase:    APIBaseURL,
		webBase:    WebBaseURL,
		profileURL: ProfileURL,
		cooldown:   DefaultChallengeCooldown,
		sleep:      ratelimit.Sleep,
	}
	for _, opt := range opts {
		opt(a)
	}
	a.logger = logger.OrDefault(a.logger).WithField("component", "bilibili")
	return a
}

// call requests a feed endpoint and unwraps the envelope. Any truthy code is
// a failure and is never retried here.
func (a *API) call(ctx context.Context, endpoint string, params url.Values) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := a.transport.GetJSON(ctx, GetEndpointURL(a.apiBase, endpoint), params, &raw); err != nil {
		return nil, err
	}

	var env envelope
	if err := decode(raw, &env); err != nil {
		return nil, errs.Abortf("API request failed: %v", err)
	}
	if truthy(env.Code) {
		a.logger.DebugWithFields("server response", map[string]interface{}{
			"endpoint": endpoint,
			"response": string(raw),
		})
		return nil, errs.Abort("API request failed")
	}
	return env.Data, nil
}

// UserArticles lists a user's articles. The offset cursor is the opus_id of
// the last item handed to the caller, and the walk ends on the first page
// whose has_more is false. A page without has_more is an error.
func (a *API) UserArticles(ctx context.Context, userID string) iter.Seq2[ArticleReference, error] {
	return func(yield func(ArticleReference, error) bool) {
		params := url.Values{}
		params.Set("host_mid", userID)

		for {
			if err := ctx.Err(); err != nil {
				yield(ArticleReference{}, err)
				return
			}

			data, err := a.call(ctx, UserArticlesEndpoint, params)
			if err != nil {
				yield(ArticleReference{}, err)
				return
			}
			page, err := parseFeedPage(data)
			if err != nil {
				yield(ArticleReference{}, err)
				return
			}

			for _, item := range page.Items {
				params.Set("offset", item.OpusID)
				if !yield(item, nil) {
					return
				}
			}

			if !page.hasMoreSet {
				yield(ArticleReference{}, errs.Abortf("%s: response without has_more", userID))
				return
			}
			if !truthy(page.HasMore) {
				return
			}
			if len(page.Items) == 0 {
				// The cursor cannot advance; asking again would return the same page.
				yield(ArticleReference{}, errs.Abortf("%s: empty page reports more articles", userID))
				return
			}
		}
	}
}

// UserFavorites lists the logged-in account's favorite articles page by
// page. A missing or null has_more ends the walk.
func (a *API) UserFavorites(ctx context.Context) iter.Seq2[ArticleReference, error] {
	return func(yield func(ArticleReference, error) bool) {
		params := url.Values{}
		params.Set("page_size", strconv.Itoa(FavoritesPageSize))

		for pageNum := 1; ; pageNum++ {
			if err := ctx.Err(); err != nil {
				yield(ArticleReference{}, err)
				return
			}
			params.Set("page", strconv.Itoa(pageNum))

			data, err := a.call(ctx, FavoritesEndpoint, params)
			if err != nil {
				yield(ArticleReference{}, err)
				return
			}
			page, err := parseFeedPage(data)
			if err != nil {
				yield(ArticleReference{}, err)
				return
			}

			for _, item := range page.Items {
				if !yield(item, nil) {
					return
				}
			}

			if !truthy(page.HasMore) {
				return
			}
		}
	}
}

// LoginUserID returns the account id of the session the cookies belong to.
// Unlike the feed endpoints, only a code of exactly zero counts as success.
func (a *API) LoginUserID(ctx context.Context) (string, error) {
	var raw json.RawMessage
	if err := a.transport.GetJSON(ctx, a.profileURL, nil, &raw); err != nil {
		return "", err
	}

	var env envelope
	if err := decode(raw, &env); err != nil || !isZero(env.Code) {
		a.logger.DebugWithFields("server response", map[string]interface{}{
			"endpoint": a.profileURL,
			"response": string(raw),
		})
		return "", errs.Abort("API request failed. Are you logged in?")
	}

	var data struct {
		Profile struct {
			Mid interface{} `json:"mid"`
		} `json:"profile"`
	}
	if err := decode(env.Data, &data); err != nil {
		return "", errs.Abort("API request failed")
	}
	mid, ok := scalarString(data.Profile.Mid)
	if !ok {
		return "", errs.Abort("API request failed")
	}
	return mid, nil
}
