package bilibili

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	errs "opusdl/pkg/errors"
)

// envelope is the outer shape shared by every API response. Code is left
// untyped because endpoints disagree on what counts as success.
type envelope struct {
	Code    interface{}     `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// feedPage is one page of a listing endpoint. has_more is kept raw so a
// missing field can be told apart from a false one.
type feedPage struct {
	Items      []ArticleReference
	HasMore    interface{}
	hasMoreSet bool
}

// ArticleReference is one listing entry: the opus id plus whatever else the
// endpoint returned for it.
type ArticleReference struct {
	OpusID string
	Fields map[string]interface{}
}

func parseFeedPage(data json.RawMessage) (*feedPage, error) {
	page := &feedPage{}
	if len(bytes.TrimSpace(data)) == 0 {
		return page, nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errs.Abortf("unexpected listing payload: %v", err)
	}

	if hm, ok := raw["has_more"]; ok {
		page.hasMoreSet = true
		if err := decode(hm, &page.HasMore); err != nil {
			return nil, errs.Abortf("unexpected has_more value: %v", err)
		}
	}

	var items []map[string]interface{}
	if len(raw["items"]) > 0 {
		if err := decode(raw["items"], &items); err != nil {
			return nil, errs.Abortf("unexpected listing items: %v", err)
		}
	}
	for _, item := range items {
		ref, err := newArticleReference(item)
		if err != nil {
			return nil, err
		}
		page.Items = append(page.Items, ref)
	}
	return page, nil
}

func newArticleReference(fields map[string]interface{}) (ArticleReference, error) {
	id, ok := scalarString(fields["opus_id"])
	if !ok || id == "" {
		return ArticleReference{}, errs.Abort("listing item without opus_id")
	}
	return ArticleReference{OpusID: id, Fields: fields}, nil
}

// decode unmarshals preserving integers as json.Number so that 64-bit ids
// survive unchanged. Trailing data is an error, as with json.Unmarshal.
func decode(data []byte, v interface{}) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); err != io.EOF {
		return errors.New("unexpected data after JSON value")
	}
	return nil
}

// scalarString renders a JSON string or number as a string.
func scalarString(v interface{}) (string, bool) {
	switch t := v.(type) {
	case string:
		return t, true
	case json.Number:
		return t.String(), true
	case float64:
		return fmt.Sprintf("%.0f", t), true
	default:
		return "", false
	}
}

// truthy follows the usual dynamic-language notion of truth for decoded JSON:
// null, false, zero, "" and empty containers are false.
func truthy(v interface{}) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case json.Number:
		f, err := t.Float64()
		return err != nil || f != 0
	case float64:
		return t != 0
	case string:
		return t != ""
	case []interface{}:
		return len(t) > 0
	case map[string]interface{}:
		return len(t) > 0
	default:
		return true
	}
}

// isZero reports whether v is the number zero. Anything else, including a
// missing value, is not.
func isZero(v interface{}) bool {
	switch t := v.(type) {
	case json.Number:
		f, err := t.Float64()
		return err == nil && f == 0
	case float64:
		return t == 0
	default:
		return false
	}
}
