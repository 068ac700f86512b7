package article

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	errs "opusdl/pkg/errors"
	"opusdl/pkg/logger"
)

// parseState decodes a JSON fixture the way page states are decoded.
func parseState(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(strings.NewReader(s))
	dec.UseNumber()
	var state map[string]interface{}
	require.NoError(t, dec.Decode(&state))
	return state
}

func pic(name string) string {
	return fmt.Sprintf(`{"url":"https://i0.hdslb.com/bfs/new_dyn/%s.JPG","width":100,"height":50,"size":12.5}`, name)
}

func buildState(top []string, paragraphs [][]string) string {
	var modules []string
	modules = append(modules, `{"module_type":"MODULE_TYPE_AUTHOR","module_author":{"name":"painter","mid":1}}`)
	if top != nil {
		var pics []string
		for _, p := range top {
			pics = append(pics, pic(p))
		}
		modules = append(modules, fmt.Sprintf(
			`{"module_type":"MODULE_TYPE_TOP","module_top":{"display":{"album":{"pics":[%s]}}}}`,
			strings.Join(pics, ",")))
	}
	var paras []string
	for _, p := range paragraphs {
		var pics []string
		for _, name := range p {
			pics = append(pics, pic(name))
		}
		paras = append(paras, fmt.Sprintf(`{"para_type":2,"pic":{"pics":[%s]}}`, strings.Join(pics, ",")))
	}
	paras = append(paras, `{"para_type":1,"text":{"nodes":[]}}`)
	modules = append(modules, fmt.Sprintf(
		`{"module_type":"MODULE_TYPE_CONTENT","module_content":{"paragraphs":[%s]}}`,
		strings.Join(paras, ",")))

	return fmt.Sprintf(`{"id":"900","detail":{"id_str":"900","modules":[%s]}}`, strings.Join(modules, ","))
}

func TestAssemblePictureOrder(t *testing.T) {
	tests := []struct {
		name       string
		top        []string
		paragraphs [][]string
		want       []string
	}{
		{
			name: "album only",
			top:  []string{"t1", "t2"},
			want: []string{"t1", "t2"},
		},
		{
			name:       "paragraphs only",
			paragraphs: [][]string{{"p1"}, {"p2", "p3"}},
			want:       []string{"p1", "p2", "p3"},
		},
		{
			name:       "album before paragraphs",
			top:        []string{"t1"},
			paragraphs: [][]string{{"p1", "p2"}, {}, {"p3"}},
			want:       []string{"t1", "p1", "p2", "p3"},
		},
		{
			name: "no pictures",
			want: []string{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			state := parseState(t, buildState(tt.top, tt.paragraphs))
			a, err := Assemble("900", state, logger.NewNopLogger())
			require.NoError(t, err)

			got := []string{}
			for _, p := range a.Pictures {
				u, ok := p.URL()
				require.True(t, ok)
				name, _ := NameExt(u)
				got = append(got, name)
			}
			assert.Equal(t, tt.want, got)
			assert.Equal(t, len(tt.want), a.Count())
			assert.Equal(t, "painter", a.Username)
		})
	}
}

func TestAssembleNumbering(t *testing.T) {
	state := parseState(t, buildState([]string{"t1"}, [][]string{{"p1", "p2"}}))
	a, err := Assemble("900", state, logger.NewNopLogger())
	require.NoError(t, err)

	record := a.Record(map[string]interface{}{"category": "bilibili"})
	assert.Equal(t, 3, record["count"])
	assert.Equal(t, "painter", record["username"])
	assert.Equal(t, "900", record["id"])
	assert.Equal(t, "bilibili", record["category"])

	files, err := a.Files(record)
	require.NoError(t, err)
	require.Len(t, files, 3)

	for i, f := range files {
		wantURL, _ := a.Pictures[i].URL()
		assert.Equal(t, i+1, f.Num)
		assert.Equal(t, i+1, f.Fields["num"])
		assert.Equal(t, wantURL, f.URL)
		assert.Equal(t, wantURL, f.Fields["url"])
		assert.Equal(t, "jpg", f.Fields["extension"])
		assert.Equal(t, json.Number("100"), f.Fields["width"])
		assert.Equal(t, "painter", f.Fields["username"])
	}
	assert.Equal(t, "t1", files[0].Fields["filename"])
	assert.Equal(t, "p2", files[2].Fields["filename"])

	// Files must not share or leak into the record.
	files[0].Fields["extra"] = true
	assert.NotContains(t, files[1].Fields, "extra")
	assert.NotContains(t, record, "num")
}

func TestAssembleFlattensStateWithoutMutatingInput(t *testing.T) {
	state := parseState(t, buildState(nil, [][]string{{"p1"}}))
	a, err := Assemble("900", state, logger.NewNopLogger())
	require.NoError(t, err)

	modules := a.State["detail"].(map[string]interface{})["modules"]
	flat, ok := modules.(map[string]interface{})
	require.True(t, ok)
	assert.Contains(t, flat, ModuleAuthor)
	assert.Contains(t, flat, ModuleContent)
	assert.NotContains(t, flat, "module_type")

	_, stillList := state["detail"].(map[string]interface{})["modules"].([]interface{})
	assert.True(t, stillList)
}

func TestAssembleBlockedModule(t *testing.T) {
	state := parseState(t, `{"detail":{"modules":[
		{"module_type":"MODULE_TYPE_BLOCKED","module_blocked":{"hint_message":"visible to fans only"}},
		{"module_type":"MODULE_TYPE_AUTHOR","module_author":{"name":"painter"}},
		{"module_type":"MODULE_TYPE_CONTENT","module_content":{"paragraphs":[{"pic":{"pics":[`+pic("a")+`]}}]}}
	]}}`)
	log := logger.NewTestLogger()

	a, err := Assemble("321", state, log)
	require.NoError(t, err)

	files, err := a.Files(a.Record(nil))
	require.NoError(t, err)
	assert.NotEmpty(t, files)

	warnings := log.GetMessagesByLevel("WARN")
	require.Len(t, warnings, 1)
	assert.Equal(t, "321", warnings[0].Fields["id"])
	assert.Equal(t, "visible to fans only", warnings[0].Fields["hint"])
	assert.Contains(t, a.Modules, ModuleBlocked)
}

func TestAssembleToleratesMalformedPictureSources(t *testing.T) {
	state := parseState(t, `{"detail":{"modules":[
		{"module_type":"MODULE_TYPE_AUTHOR","module_author":{"name":"painter"}},
		{"module_type":"MODULE_TYPE_TOP","module_top":{"display":{"album":"broken"}}},
		{"module_type":"MODULE_TYPE_CONTENT","module_content":{"paragraphs":[
			{"pic":null},
			{"pic":{"pics":"nope"}},
			{"pic":{}},
			"stray text",
			{"pic":{"pics":[`+pic("ok")+`]}},
			{"pic":{"pics":[1,2]}}
		]}}
	]}}`)

	a, err := Assemble("1", state, logger.NewNopLogger())
	require.NoError(t, err)
	require.Len(t, a.Pictures, 1)
	u, _ := a.Pictures[0].URL()
	assert.Contains(t, u, "ok.JPG")
}

func TestAssembleFailures(t *testing.T) {
	tests := []struct {
		name    string
		state   string
		wantMsg string
	}{
		{
			name:    "missing author",
			state:   `{"detail":{"modules":[{"module_type":"MODULE_TYPE_CONTENT","module_content":{"paragraphs":[]}}]}}`,
			wantMsg: "7: article has no author name",
		},
		{
			name:    "missing module list",
			state:   `{"detail":{}}`,
			wantMsg: "7: article detail has no module list",
		},
		{
			name:    "missing detail",
			state:   `{"code":0}`,
			wantMsg: "7: article state has no detail",
		},
		{
			name:    "content without paragraphs",
			state:   `{"detail":{"modules":[{"module_author":{"name":"a"}},{"module_content":{}}]}}`,
			wantMsg: "7: module_content has no paragraphs",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Assemble("7", parseState(t, tt.state), logger.NewNopLogger())
			require.Error(t, err)
			assert.True(t, errs.IsAbort(err))
			assert.Equal(t, tt.wantMsg, err.Error())
		})
	}
}

func TestFilesRequireURL(t *testing.T) {
	a := &Article{ID: "5", Pictures: []Picture{{"width": 1}}}
	_, err := a.Files(a.Record(nil))
	assert.True(t, errs.IsAbort(err))
}

func TestNameExt(t *testing.T) {
	tests := []struct {
		url, name, ext string
	}{
		{"https://i0.hdslb.com/bfs/new_dyn/abc123.JPG", "abc123", "jpg"},
		{"https://i0.hdslb.com/bfs/a/b.c.png?x=1#frag", "b.c", "png"},
		{"https://example.org/file%20name.webp", "file name", "webp"},
		{"https://example.org/noext", "noext", ""},
		{"https://example.org/dir/", "dir", ""},
		{"https://example.org/weird.ext-with-dash", "weird.ext-with-dash", ""},
		{"https://example.org/", "", ""},
	}

	for _, tt := range tests {
		name, ext := NameExt(tt.url)
		assert.Equal(t, tt.name, name, tt.url)
		assert.Equal(t, tt.ext, ext, tt.url)
	}
}
