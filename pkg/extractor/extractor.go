package extractor

import (
	"context"
	"fmt"
	"iter"
	"regexp"

	"opusdl/pkg/bilibili"
	"opusdl/pkg/logger"
)

const (
	Category = "bilibili"

	SubcategoryArticle   = "article"
	SubcategoryUser      = "user-articles"
	SubcategoryFavorites = "user-articles-favorite"
)

// Kind tells the consumer what a Message carries
type Kind int

const (
	// KindDirectory announces the record of an article before its files
	KindDirectory Kind = iota + 1
	// KindURL is a single file to download
	KindURL
	// KindQueue is another URL to run through the extractors
	KindQueue
)

func (k Kind) String() string {
	switch k {
	case KindDirectory:
		return "directory"
	case KindURL:
		return "url"
	case KindQueue:
		return "queue"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Message is one item of an extractor's output stream. URL is empty for
// directory messages.
type Message struct {
	Kind   Kind
	URL    string
	Fields map[string]interface{}
}

// Extractor produces the message stream for one input URL
type Extractor interface {
	Category() string
	Subcategory() string
	URL() string
	Items(ctx context.Context) iter.Seq2[Message, error]
}

// CookieChecker reports whether session cookies are present
type CookieChecker interface {
	HasCookies(names ...string) bool
}

// Deps are the collaborators shared by all extractors
type Deps struct {
	API     *bilibili.API
	Cookies CookieChecker
	Logger  logger.Logger
}

type pattern struct {
	re  *regexp.Regexp
	new func(deps Deps, url string, groups []string) Extractor
}

var patterns = []pattern{
	{
		re: regexp.MustCompile(`^(?:https?://)?(?:t\.bilibili\.com|(?:www\.)?bilibili\.com/opus)/(\d+)`),
		new: func(deps Deps, url string, groups []string) Extractor {
			return newArticle(deps, url, groups[1])
		},
	},
	{
		re: regexp.MustCompile(`^(?:https?://)?space\.bilibili\.com/(\d+)/(?:article|upload/opus)`),
		new: func(deps Deps, url string, groups []string) Extractor {
			return newUserArticles(deps, url, groups[1])
		},
	},
	{
		re: regexp.MustCompile(`^(?:https?://)?space\.bilibili\.com/(\d+)/favlist\?fid=opus`),
		new: func(deps Deps, url string, groups []string) Extractor {
			return newFavorites(deps, url, groups[1])
		},
	},
}

// Find returns the extractor for url, or an error when no extractor
// supports it.
func Find(url string, deps Deps) (Extractor, error) {
	if deps.API == nil {
		return nil, fmt.Errorf("extractor: API is required")
	}
	deps.Logger = logger.OrDefault(deps.Logger)

	for _, p := range patterns {
		if groups := p.re.FindStringSubmatch(url); groups != nil {
			return p.new(deps, url, groups), nil
		}
	}
	return nil, fmt.Errorf("unsupported URL: %s", url)
}

// Supported reports whether any extractor handles url
func Supported(url string) bool {
	for _, p := range patterns {
		if p.re.MatchString(url) {
			return true
		}
	}
	return false
}

type base struct {
	deps        Deps
	url         string
	subcategory string
	log         logger.Logger
}

func newBase(deps Deps, url, subcategory string) base {
	return base{
		deps:        deps,
		url:         url,
		subcategory: subcategory,
		log: deps.Logger.WithFields(map[string]interface{}{
			"extractor": subcategory,
		}),
	}
}

func (b *base) Category() string    { return Category }
func (b *base) Subcategory() string { return b.subcategory }
func (b *base) URL() string         { return b.url }

func (b *base) fields() map[string]interface{} {
	return map[string]interface{}{
		"category":    Category,
		"subcategory": b.subcategory,
	}
}
