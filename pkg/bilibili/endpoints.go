package bilibili

import (
	"fmt"
	"strings"
)

const (
	// WebBaseURL is the site root that serves article pages
	WebBaseURL = "https://www.bilibili.com"

	// APIBaseURL is the base for the dynamic feed API
	APIBaseURL = "https://api.bilibili.com/x/polymer/web-dynamic/v1"

	// ProfileURL returns the profile of the logged-in account
	ProfileURL = "https://api.bilibili.com/x/space/v2/myinfo"

	// UserArticlesEndpoint lists a user's articles, cursor is the last opus_id
	UserArticlesEndpoint = "/opus/feed/space"

	// FavoritesEndpoint lists the logged-in account's favorite articles, cursor is a page number
	FavoritesEndpoint = "/opus/feed/fav"

	// FavoritesPageSize is the number of favorites requested per page
	FavoritesPageSize = 20
)

// ArticleURL returns the web page URL of an article
func ArticleURL(opusID string) string {
	return GetArticleURL(WebBaseURL, opusID)
}

// GetArticleURL builds an article page URL against an arbitrary site root
func GetArticleURL(base, opusID string) string {
	return fmt.Sprintf("%s/opus/%s", strings.TrimRight(base, "/"), opusID)
}

// GetEndpointURL joins the API base with an endpoint path
func GetEndpointURL(base, endpoint string) string {
	return strings.TrimRight(base, "/") + endpoint
}
