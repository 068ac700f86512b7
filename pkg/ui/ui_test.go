package ui

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func captureOutput(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetOutput(&buf)
	t.Cleanup(func() {
		SetOutput(nil)
		SetQuietMode(false)
	})
	return &buf
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		in    string
		width int
		want  string
	}{
		{"short", 10, "short"},
		{"a long english title", 10, "a long ..."},
		{"插画合集第二弹", 8, "插画..."},
		{"anything", 0, ""},
	}
	for _, tt := range tests {
		got := Truncate(tt.in, tt.width)
		assert.Equal(t, tt.want, got, tt.in)
		assert.LessOrEqual(t, Width(got), tt.width)
	}
}

func TestPadRight(t *testing.T) {
	assert.Equal(t, "ab   ", PadRight("ab", 5))
	assert.Equal(t, 6, Width(PadRight("插画", 6)))
	assert.Equal(t, 6, Width(PadRight("插画合集第二弹", 6)))
}

func TestFormatBytes(t *testing.T) {
	assert.Equal(t, "512 B", FormatBytes(512))
	assert.Equal(t, "1.5 KB", FormatBytes(1536))
	assert.Equal(t, "2.0 MB", FormatBytes(2*1024*1024))
}

func TestFormatDuration(t *testing.T) {
	assert.Equal(t, "42s", FormatDuration(42*time.Second))
	assert.Equal(t, "3m5s", FormatDuration(185*time.Second))
	assert.Equal(t, "2h10m", FormatDuration(130*time.Minute))
}

func TestQuietModeKeepsErrors(t *testing.T) {
	buf := captureOutput(t)
	SetQuietMode(true)

	PrintInfo("Target", "space")
	PrintSuccess("done")
	PrintError("failed", errors.New("boom"))

	out := buf.String()
	assert.NotContains(t, out, "Target")
	assert.NotContains(t, out, "done")
	assert.Contains(t, out, "failed: boom")
}

func TestProgressDisplay(t *testing.T) {
	buf := captureOutput(t)

	p := NewProgressDisplay("https://space.bilibili.com/1/article", false)
	p.StartArticle("900", "painter", "", 2)
	p.CompleteDownload("900_1.jpg", 2048)
	p.SkipDownload("900_2.jpg")
	p.FailDownload("901_1.jpg", errors.New("timeout"))
	p.Complete()

	downloaded, skipped, failed := p.Counts()
	assert.Equal(t, 1, downloaded)
	assert.Equal(t, 1, skipped)
	assert.Equal(t, 1, failed)

	out := buf.String()
	assert.Contains(t, out, "900")
	assert.Contains(t, out, "painter")
	assert.Contains(t, out, "901_1.jpg - timeout")
	assert.Contains(t, out, "Downloaded 1 files from 1 articles")
	assert.True(t, strings.Contains(out, "1 skipped"))
}

type recordingSender struct {
	titles []string
}

func (r *recordingSender) Send(title, message string) error {
	r.titles = append(r.titles, title)
	return errors.New("no notification daemon")
}

func TestNotifier(t *testing.T) {
	buf := captureOutput(t)
	sender := &recordingSender{}

	n := NewNotifierWithSender(sender)
	n.SendNotification("New pictures", "3 files")
	n.SendSuccess("Done", "ok")
	n.SendError("Failed", "bad")

	assert.Equal(t, []string{"New pictures", "Done", "Failed"}, sender.titles)
	assert.Contains(t, buf.String(), "3 files")
}
