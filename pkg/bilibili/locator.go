package bilibili

import (
	"context"
	"strings"

	errs "opusdl/pkg/errors"
)

const (
	initialStateMarker = "window.__INITIAL_STATE__="
	initialStateEnd    = "};"
	riskControlMarker  = "window._riskdata_"
)

// ExtractInitialState pulls the JSON state object assigned to
// window.__INITIAL_STATE__ out of an article page.
//
// This is best effort: the object is cut at the first "};" after the marker
// and the brace is put back, so a state whose string values contain "};" will
// not parse. Numbers are kept as json.Number.
func ExtractInitialState(page string) (map[string]interface{}, error) {
	var state map[string]interface{}
	if err := decode([]byte(between(page, initialStateMarker, initialStateEnd)+"}"), &state); err != nil {
		return nil, err
	}
	if state == nil {
		return nil, errs.Abort("empty INITIAL_STATE")
	}
	return state, nil
}

// between returns the text between the first begin and the first end after
// it, or "" when either is missing.
func between(s, begin, end string) string {
	i := strings.Index(s, begin)
	if i < 0 {
		return ""
	}
	s = s[i+len(begin):]
	j := strings.Index(s, end)
	if j < 0 {
		return ""
	}
	return s[:j]
}

// IsChallengePage reports whether page is a risk-control interstitial
func IsChallengePage(page string) bool {
	return strings.Contains(page, riskControlMarker)
}

// Article fetches an article page and returns its embedded state.
//
// A page that cannot be parsed and carries the risk-control marker is a
// transient challenge: the call waits out the cooldown and fetches again, for
// as long as the challenge persists or until ctx is done. Any other parse
// failure is an abort error naming the article.
func (a *API) Article(ctx context.Context, articleID string) (map[string]interface{}, error) {
	pageURL := GetArticleURL(a.webBase, articleID)

	for challenges := 0; ; challenges++ {
		page, err := a.transport.GetText(ctx, pageURL)
		if err != nil {
			return nil, err
		}

		state, err := ExtractInitialState(page)
		if err == nil {
			return state, nil
		}
		if !IsChallengePage(page) {
			return nil, errs.Abortf("%s: Unable to extract INITIAL_STATE data", articleID)
		}

		a.logger.WarnWithFields("risk control challenge, waiting before retry", map[string]interface{}{
			"id":         articleID,
			"cooldown":   a.cooldown,
			"challenges": challenges + 1,
		})
		if err := a.sleep(ctx, a.cooldown); err != nil {
			return nil, err
		}
	}
}
