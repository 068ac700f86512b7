package ui

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

const titleWidth = 40

// ProgressDisplay prints one line per article and per finished file, and a
// summary at the end
type ProgressDisplay struct {
	mu              sync.Mutex
	target          string
	articles        int
	downloadedCount int
	skipped         int
	bytesDownloaded int64
	errors          int
	startTime       time.Time
	isDebug         bool
}

// NewProgressDisplay creates a new progress display for one input URL
func NewProgressDisplay(target string, debug bool) *ProgressDisplay {
	return &ProgressDisplay{
		target:    target,
		startTime: time.Now(),
		isDebug:   debug,
	}
}

// StartArticle announces an article and how many pictures it has
func (p *ProgressDisplay) StartArticle(id, username, title string, count int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.articles++
	if title == "" {
		title = id
	}
	printf(false, "%s %s %s %s\n",
		Magenta("→"),
		PadRight(title, titleWidth),
		Cyan(Truncate(username, 20)),
		Dim(fmt.Sprintf("%d pictures", count)),
	)
}

// CompleteDownload marks a download as complete
func (p *ProgressDisplay) CompleteDownload(name string, size int64) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.downloadedCount++
	p.bytesDownloaded += size
	if p.isDebug {
		printf(false, "  %s %s • %s\n", Green("✓"), name, FormatBytes(size))
	}
}

// SkipDownload marks a file that was archived or already on disk
func (p *ProgressDisplay) SkipDownload(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.skipped++
	if p.isDebug {
		printf(false, "  %s %s\n", Dim("•"), Dim(name))
	}
}

// FailDownload marks a download as failed
func (p *ProgressDisplay) FailDownload(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.errors++
	printf(true, "  %s %s - %v\n", Red("✗"), name, err)
}

// Complete prints the summary
func (p *ProgressDisplay) Complete() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime)

	printf(false, "\n%s Downloaded %d files from %d articles (%s)\n",
		Green("✓"),
		p.downloadedCount,
		p.articles,
		p.target,
	)

	parts := []string{
		FormatBytes(p.bytesDownloaded),
		"in " + FormatDuration(elapsed),
	}
	if p.skipped > 0 {
		parts = append(parts, fmt.Sprintf("%d skipped", p.skipped))
	}
	printf(false, "  %s %s\n", Dim("•"), strings.Join(parts, ", "))

	if p.errors > 0 {
		printf(true, "  %s %d downloads failed\n", Dim("•"), p.errors)
	}
}

// Counts returns downloaded, skipped and failed file counts
func (p *ProgressDisplay) Counts() (downloaded, skipped, failed int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.downloadedCount, p.skipped, p.errors
}
