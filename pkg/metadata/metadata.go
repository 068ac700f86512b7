package metadata

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Summary is the part of an article record shown to the user
type Summary struct {
	ID          string    `json:"id"`
	Username    string    `json:"username"`
	Title       string    `json:"title,omitempty"`
	PublishedAt string    `json:"published_at,omitempty"`
	Count       int       `json:"count"`
	SavedAt     time.Time `json:"saved_at"`
}

// Summarize picks the display fields out of a directory record
func Summarize(record map[string]interface{}) Summary {
	s := Summary{
		ID:       fmt.Sprint(record["id"]),
		SavedAt:  time.Now(),
		Username: stringAt(record, "username"),
	}
	if n, ok := record["count"].(int); ok {
		s.Count = n
	}
	s.Title = stringAt(record, "detail", "modules", "module_title", "text")
	s.PublishedAt = stringAt(record, "detail", "modules", "module_author", "pub_time")
	return s
}

// Path returns the sidecar path for an article stored in dir
func Path(dir, articleID string) string {
	return filepath.Join(dir, articleID+".json")
}

// Save writes record as indented JSON next to the article's files and
// returns the path written
func Save(dir, articleID string, record map[string]interface{}) (string, error) {
	data, err := json.MarshalIndent(record, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal metadata: %w", err)
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create metadata directory: %w", err)
	}

	path := Path(dir, articleID)
	tmp := path + ".part"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write metadata file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return "", fmt.Errorf("failed to rename metadata file: %w", err)
	}

	return path, nil
}

// Load reads a sidecar back. Numbers are kept as json.Number.
func Load(path string) (map[string]interface{}, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read metadata file: %w", err)
	}
	defer f.Close()

	dec := json.NewDecoder(f)
	dec.UseNumber()
	var record map[string]interface{}
	if err := dec.Decode(&record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return record, nil
}

// Exists checks if a sidecar exists for the article
func Exists(dir, articleID string) bool {
	_, err := os.Stat(Path(dir, articleID))
	return err == nil
}

func stringAt(root map[string]interface{}, path ...string) string {
	var node interface{} = root
	for _, key := range path {
		obj, ok := node.(map[string]interface{})
		if !ok {
			return ""
		}
		node = obj[key]
	}
	s, _ := node.(string)
	return s
}
