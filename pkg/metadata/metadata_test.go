package metadata

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleRecord() map[string]interface{} {
	return map[string]interface{}{
		"id":       "900",
		"username": "painter",
		"count":    3,
		"category": "bilibili",
		"detail": map[string]interface{}{
			"modules": map[string]interface{}{
				"module_title":  map[string]interface{}{"text": "Sketches"},
				"module_author": map[string]interface{}{"name": "painter", "pub_time": "2024-05-01"},
			},
		},
	}
}

func TestSaveAndLoad(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "bilibili", "painter")

	assert.False(t, Exists(dir, "900"))

	path, err := Save(dir, "900", sampleRecord())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "900.json"), path)
	assert.True(t, Exists(dir, "900"))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "painter", loaded["username"])
	assert.Equal(t, json.Number("3"), loaded["count"])
}

func TestSummarize(t *testing.T) {
	s := Summarize(sampleRecord())

	assert.Equal(t, "900", s.ID)
	assert.Equal(t, "painter", s.Username)
	assert.Equal(t, "Sketches", s.Title)
	assert.Equal(t, "2024-05-01", s.PublishedAt)
	assert.Equal(t, 3, s.Count)
	assert.False(t, s.SavedAt.IsZero())
}

func TestSummarizeSparseRecord(t *testing.T) {
	s := Summarize(map[string]interface{}{"id": json.Number("5")})

	assert.Equal(t, "5", s.ID)
	assert.Empty(t, s.Title)
	assert.Zero(t, s.Count)
}

func TestLoadMissing(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
