package scraper

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"opusdl/internal/downloader"
	"opusdl/pkg/config"
	errs "opusdl/pkg/errors"
	"opusdl/pkg/extractor"
	"opusdl/pkg/logger"
	"opusdl/pkg/metadata"
	"opusdl/pkg/ratelimit"
	"opusdl/pkg/storage"
)

// Archive is the download archive the runner consults before queueing a
// file and the pool updates after saving one
type Archive interface {
	Check(ctx context.Context, key string) (bool, error)
	Add(ctx context.Context, key string) error
}

// Progress receives per-article and per-file events for display
type Progress interface {
	StartArticle(id, username, title string, count int)
	CompleteDownload(name string, size int64)
	SkipDownload(name string)
	FailDownload(name string, err error)
}

// Options tune a Runner
type Options struct {
	Concurrency     int
	WriteMetadata   bool
	DownloadLimiter ratelimit.Limiter
	Progress        Progress
}

// OptionsFromConfig builds Options from the download, rate limit and
// output sections
func OptionsFromConfig(cfg *config.Config) Options {
	opts := Options{
		Concurrency:   cfg.Download.ConcurrentDownloads,
		WriteMetadata: cfg.Output.WriteMetadata,
	}
	if cfg.RateLimit.DownloadsPerMinute > 0 {
		opts.DownloadLimiter = ratelimit.PerMinute(cfg.RateLimit.DownloadsPerMinute)
	}
	return opts
}

// Stats counts what one run did
type Stats struct {
	Articles   int
	Queued     int
	Downloaded int
	Skipped    int
	Failed     int
	Aborted    int
	Bytes      int64
	Duration   time.Duration
}

// Runner drives extractors for input URLs and hands their files to the
// download pool
type Runner struct {
	deps    extractor.Deps
	client  downloader.Fetcher
	storage *storage.Manager
	archive Archive
	opts    Options
	logger  logger.Logger

	mu    sync.Mutex
	stats Stats
}

// New creates a Runner. archive may be nil.
func New(
	deps extractor.Deps,
	client downloader.Fetcher,
	store *storage.Manager,
	archive Archive,
	opts Options,
	log logger.Logger,
) *Runner {
	log = logger.OrDefault(log)
	if deps.Logger == nil {
		deps.Logger = log
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}

	return &Runner{
		deps:    deps,
		client:  client,
		storage: store,
		archive: archive,
		opts:    opts,
		logger:  log.WithField("component", "scraper"),
	}
}

// Run extracts url and everything it queues, downloads the files and
// returns the counts. Failures inside queued articles are logged and
// counted; only cancellation, an unsupported URL or a failure of url's own
// extractor is returned as an error.
func (r *Runner) Run(ctx context.Context, url string) (Stats, error) {
	start := time.Now()
	r.mu.Lock()
	r.stats = Stats{}
	r.mu.Unlock()

	var recorder downloader.Recorder
	if r.archive != nil {
		recorder = r.archive
	}
	pool := downloader.NewWorkerPool(
		r.opts.Concurrency,
		r.client,
		r.storage,
		recorder,
		r.opts.DownloadLimiter,
		r.logger,
	)
	pool.Start(ctx)

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.processDownloadResults(pool.Results())
	}()

	r.logger.InfoWithFields("extraction started", map[string]interface{}{
		"url": url,
	})
	runErr := r.dispatch(ctx, pool, url, 0)

	pool.Stop()
	wg.Wait()

	r.mu.Lock()
	r.stats.Duration = time.Since(start)
	stats := r.stats
	r.mu.Unlock()

	r.logger.InfoWithFields("extraction finished", map[string]interface{}{
		"url":        url,
		"articles":   stats.Articles,
		"downloaded": stats.Downloaded,
		"skipped":    stats.Skipped,
		"failed":     stats.Failed,
		"aborted":    stats.Aborted,
		"duration":   stats.Duration,
	})

	if runErr == nil {
		runErr = ctx.Err()
	}
	return stats, runErr
}

func (r *Runner) dispatch(ctx context.Context, pool *downloader.WorkerPool, url string, depth int) error {
	ex, err := extractor.Find(url, r.deps)
	if err != nil {
		return err
	}

	log := r.logger.WithFields(map[string]interface{}{
		"url":         url,
		"subcategory": ex.Subcategory(),
	})
	for msg, err := range ex.Items(ctx) {
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			r.countFailure(err)
			if depth == 0 {
				return fmt.Errorf("%s: %w", url, err)
			}
			log.WithError(err).Error("extraction failed")
			return nil
		}

		switch msg.Kind {
		case extractor.KindDirectory:
			r.handleDirectory(msg, log)

		case extractor.KindURL:
			if err := r.handleFile(ctx, pool, msg, log); err != nil {
				return err
			}

		case extractor.KindQueue:
			if err := r.dispatch(ctx, pool, msg.URL, depth+1); err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				log.WithError(err).WarnWithFields("queued URL failed", map[string]interface{}{
					"queued": msg.URL,
				})
			}
		}
	}

	return nil
}

func (r *Runner) handleDirectory(msg extractor.Message, log logger.Logger) {
	summary := metadata.Summarize(msg.Fields)

	r.mu.Lock()
	r.stats.Articles++
	r.mu.Unlock()
	if r.opts.Progress != nil {
		r.opts.Progress.StartArticle(summary.ID, summary.Username, summary.Title, summary.Count)
	}

	dir, err := r.storage.Directory(msg.Fields)
	if err != nil {
		log.WithError(err).Warn("cannot resolve article directory")
		return
	}

	if r.opts.WriteMetadata {
		path, err := metadata.Save(dir, summary.ID, msg.Fields)
		if err != nil {
			log.WithError(err).Warn("failed to write metadata")
		} else {
			log.DebugWithFields("metadata written", map[string]interface{}{
				"path": path,
			})
		}
	}
}

func (r *Runner) handleFile(ctx context.Context, pool *downloader.WorkerPool, msg extractor.Message, log logger.Logger) error {
	key := ArchiveKey(msg.Fields)

	path, err := r.storage.Path(msg.Fields)
	if err != nil {
		log.WithError(err).ErrorWithFields("cannot resolve file path", map[string]interface{}{
			"key": key,
		})
		r.mu.Lock()
		r.stats.Failed++
		r.mu.Unlock()
		return nil
	}

	if r.archive != nil {
		archived, err := r.archive.Check(ctx, key)
		if err != nil {
			log.WithError(err).Warn("archive lookup failed")
		}
		if archived {
			r.mu.Lock()
			r.stats.Skipped++
			r.mu.Unlock()
			if r.opts.Progress != nil {
				r.opts.Progress.SkipDownload(filepath.Base(path))
			}
			return nil
		}
	}

	num, _ := msg.Fields["num"].(int)
	job := downloader.DownloadJob{
		URL:        msg.URL,
		Path:       path,
		ArchiveKey: key,
		ArticleID:  fmt.Sprint(msg.Fields["id"]),
		Num:        num,
	}
	if err := pool.Submit(job); err != nil {
		return err
	}
	log.DebugWithFields("file queued", map[string]interface{}{
		"key":     key,
		"pending": pool.GetQueueSize(),
		"workers": pool.GetActiveWorkers(),
	})

	r.mu.Lock()
	r.stats.Queued++
	r.mu.Unlock()
	return nil
}

func (r *Runner) processDownloadResults(results <-chan downloader.DownloadResult) {
	for result := range results {
		name := filepath.Base(result.Job.Path)

		r.mu.Lock()
		switch {
		case result.Skipped:
			r.stats.Skipped++
		case result.Success:
			r.stats.Downloaded++
			r.stats.Bytes += result.Size
		default:
			r.stats.Failed++
		}
		r.mu.Unlock()

		if r.opts.Progress == nil {
			continue
		}
		switch {
		case result.Skipped:
			r.opts.Progress.SkipDownload(name)
		case result.Success:
			r.opts.Progress.CompleteDownload(name, result.Size)
		case !errors.Is(result.Error, context.Canceled):
			r.opts.Progress.FailDownload(name, result.Error)
		}
	}
}

func (r *Runner) countFailure(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if errs.IsAbort(err) {
		r.stats.Aborted++
	} else {
		r.stats.Failed++
	}
}

// ArchiveKey is the archive entry of a file: "{id}_{num}"
func ArchiveKey(fields map[string]interface{}) string {
	return fmt.Sprintf("%v_%v", fields["id"], fields["num"])
}
