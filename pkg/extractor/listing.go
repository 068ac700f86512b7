package extractor

import (
	"context"
	"iter"
	"sync"

	"opusdl/pkg/bilibili"
)

// sessdataWarning makes the missing-cookie error appear once per process.
var sessdataWarning sync.Once

// UserArticles queues every article of a user
type UserArticles struct {
	base
	userID string
}

func newUserArticles(deps Deps, url, userID string) *UserArticles {
	return &UserArticles{base: newBase(deps, url, SubcategoryUser), userID: userID}
}

// UserID is the account id taken from the URL
func (e *UserArticles) UserID() string {
	return e.userID
}

// Items queues one article message per entry of the user's opus feed
func (e *UserArticles) Items(ctx context.Context) iter.Seq2[Message, error] {
	return queue(e.deps.API.UserArticles(ctx, e.userID))
}

// Favorites queues the favorite articles of the logged-in account. The user
// id in the URL is informational; the session cookies decide whose
// favorites are listed.
type Favorites struct {
	base
	userID string
}

func newFavorites(deps Deps, url, userID string) *Favorites {
	return &Favorites{base: newBase(deps, url, SubcategoryFavorites), userID: userID}
}

// Items queues one article message per favorited opus, warning once when
// no SESSDATA cookie is configured
func (e *Favorites) Items(ctx context.Context) iter.Seq2[Message, error] {
	if e.deps.Cookies == nil || !e.deps.Cookies.HasCookies("SESSDATA") {
		sessdataWarning.Do(func() {
			e.log.Error("'SESSDATA' cookie required")
		})
	}
	return queue(e.deps.API.UserFavorites(ctx))
}

// queue turns a listing into queue messages that point at article pages
func queue(refs iter.Seq2[bilibili.ArticleReference, error]) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		for ref, err := range refs {
			if err != nil {
				yield(Message{}, err)
				return
			}
			fields := make(map[string]interface{}, len(ref.Fields))
			for k, v := range ref.Fields {
				fields[k] = v
			}
			msg := Message{
				Kind:   KindQueue,
				URL:    bilibili.ArticleURL(ref.OpusID),
				Fields: fields,
			}
			if !yield(msg, nil) {
				return
			}
		}
	}
}
