package extractor

import (
	"context"
	"iter"

	"opusdl/pkg/article"
)

// Article extracts the pictures of a single article
type Article struct {
	base
	id string
}

func newArticle(deps Deps, url, id string) *Article {
	return &Article{base: newBase(deps, url, SubcategoryArticle), id: id}
}

// ID is the article id taken from the URL
func (e *Article) ID() string {
	return e.id
}

// Items yields one directory message followed by one url message per
// picture. Nothing is yielded when the article cannot be assembled.
func (e *Article) Items(ctx context.Context) iter.Seq2[Message, error] {
	return func(yield func(Message, error) bool) {
		state, err := e.deps.API.Article(ctx, e.id)
		if err != nil {
			yield(Message{}, err)
			return
		}

		a, err := article.Assemble(e.id, state, e.log)
		if err != nil {
			yield(Message{}, err)
			return
		}

		record := a.Record(e.fields())
		files, err := a.Files(record)
		if err != nil {
			yield(Message{}, err)
			return
		}

		e.log.DebugWithFields("article assembled", map[string]interface{}{
			"id":       e.id,
			"username": a.Username,
			"count":    a.Count(),
		})

		if !yield(Message{Kind: KindDirectory, Fields: record}, nil) {
			return
		}
		for _, f := range files {
			if !yield(Message{Kind: KindURL, URL: f.URL, Fields: f.Fields}, nil) {
				return
			}
		}
	}
}
