package article

import (
	"fmt"
	"net/url"
	"path"
	"strings"
	"unicode"

	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
)

// Article is one assembled article: its state with modules flattened, the
// author name and the ordered picture list.
type Article struct {
	ID       string
	State    map[string]interface{}
	Modules  Modules
	Username string
	Pictures []Picture
}

// File is a single downloadable picture with its metadata.
type File struct {
	URL    string
	Num    int
	Fields map[string]interface{}
}

// Assemble turns an article page state into an Article. It flattens
// detail.modules, resolves the author and collects pictures, in that order.
// The given state is not modified.
func Assemble(articleID string, state map[string]interface{}, log logger.Logger) (*Article, error) {
	log = logger.OrDefault(log)

	detail, ok := state["detail"].(map[string]interface{})
	if !ok {
		return nil, errs.Abortf("%s: article state has no detail", articleID)
	}
	list, ok := detail["modules"].([]interface{})
	if !ok {
		return nil, errs.Abortf("%s: article detail has no module list", articleID)
	}

	modules, err := Flatten(articleID, list, log)
	if err != nil {
		return nil, err
	}

	author, _ := modules.object(ModuleAuthor)
	username, ok := author["name"].(string)
	if !ok {
		return nil, errs.Abortf("%s: article has no author name", articleID)
	}

	pics, err := CollectPictures(articleID, modules)
	if err != nil {
		return nil, err
	}

	// Shallow copies so the caller's state keeps its module list.
	flatState := copyMap(state)
	flatDetail := copyMap(detail)
	flatDetail["modules"] = map[string]interface{}(modules)
	flatState["detail"] = flatDetail

	return &Article{
		ID:       articleID,
		State:    flatState,
		Modules:  modules,
		Username: username,
		Pictures: pics,
	}, nil
}

// Count is the number of pictures.
func (a *Article) Count() int {
	return len(a.Pictures)
}

// Record builds the directory record: the flattened state plus username,
// count and id. Entries of extra are merged last.
func (a *Article) Record(extra map[string]interface{}) map[string]interface{} {
	record := copyMap(a.State)
	record["username"] = a.Username
	record["count"] = a.Count()
	if _, ok := record["id"]; !ok {
		record["id"] = a.ID
	}
	for k, v := range extra {
		record[k] = v
	}
	return record
}

// Files returns one File per picture, numbered from 1 in picture order. Each
// file's fields are a fresh copy of record merged with the picture's own
// fields, num, and the filename and extension taken from the picture URL.
func (a *Article) Files(record map[string]interface{}) ([]File, error) {
	files := make([]File, 0, len(a.Pictures))
	for i, pic := range a.Pictures {
		num := i + 1
		rawURL, ok := pic.URL()
		if !ok {
			return nil, errs.Abortf("%s: picture %d has no url", a.ID, num)
		}

		fields := copyMap(record)
		for k, v := range pic {
			fields[k] = v
		}
		fields["num"] = num
		fields["filename"], fields["extension"] = NameExt(rawURL)

		files = append(files, File{URL: rawURL, Num: num, Fields: fields})
	}
	return files, nil
}

// NameExt splits the last path segment of rawURL into a file name and a
// lowercase extension. Extensions longer than 16 characters or containing
// anything but letters and digits are not treated as extensions.
func NameExt(rawURL string) (string, string) {
	p := rawURL
	if u, err := url.Parse(rawURL); err == nil {
		p = u.Path
	}
	name := path.Base(p)
	if name == "/" || name == "." {
		name = ""
	}
	if unescaped, err := url.PathUnescape(name); err == nil {
		name = unescaped
	}

	dot := strings.LastIndexByte(name, '.')
	if dot < 0 {
		return name, ""
	}
	ext := name[dot+1:]
	if ext == "" || len(ext) > 16 || strings.IndexFunc(ext, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	}) >= 0 {
		return name, ""
	}
	return name[:dot], strings.ToLower(ext)
}

// String is used in log lines.
func (a *Article) String() string {
	return fmt.Sprintf("%s by %s (%d pictures)", a.ID, a.Username, a.Count())
}

func copyMap(m map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(m)+4)
	for k, v := range m {
		out[k] = v
	}
	return out
}
