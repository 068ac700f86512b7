package downloader

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"opusdl/pkg/logger"
	"opusdl/pkg/ratelimit"
)

// DownloadJob represents a single download task
type DownloadJob struct {
	URL        string
	Path       string
	ArchiveKey string
	ArticleID  string
	Num        int
}

// DownloadResult represents the result of a download job
type DownloadResult struct {
	Job      DownloadJob
	Success  bool
	Skipped  bool
	Error    error
	Duration time.Duration
	Size     int64
}

// Fetcher downloads a URL into w
type Fetcher interface {
	Download(ctx context.Context, url string, w io.Writer) (int64, error)
}

// FileStorage writes downloaded files
type FileStorage interface {
	Exists(path string) bool
	Save(r io.Reader, path string) (int64, error)
}

// Recorder remembers finished jobs by archive key
type Recorder interface {
	Add(ctx context.Context, key string) error
}

// WorkerPool manages concurrent download workers
type WorkerPool struct {
	numWorkers  int
	jobQueue    chan DownloadJob
	resultQueue chan DownloadResult
	wg          sync.WaitGroup
	ctx         context.Context
	cancel      context.CancelFunc
	client      Fetcher
	storage     FileStorage
	recorder    Recorder
	rateLimiter ratelimit.Limiter
	logger      logger.Logger
}

// NewWorkerPool creates a new download worker pool. recorder and
// rateLimiter may be nil.
func NewWorkerPool(
	numWorkers int,
	client Fetcher,
	storage FileStorage,
	recorder Recorder,
	rateLimiter ratelimit.Limiter,
	log logger.Logger,
) *WorkerPool {
	if numWorkers < 1 {
		numWorkers = 1
	}
	if rateLimiter == nil {
		rateLimiter = ratelimit.Unlimited{}
	}

	return &WorkerPool{
		numWorkers:  numWorkers,
		jobQueue:    make(chan DownloadJob, numWorkers*2),
		resultQueue: make(chan DownloadResult, numWorkers),
		client:      client,
		storage:     storage,
		recorder:    recorder,
		rateLimiter: rateLimiter,
		logger:      logger.OrDefault(log).WithField("component", "downloader"),
	}
}

// Start starts all workers. Cancelling ctx stops them after their current job.
func (wp *WorkerPool) Start(ctx context.Context) {
	wp.ctx, wp.cancel = context.WithCancel(ctx)

	wp.logger.DebugWithFields("starting worker pool", map[string]interface{}{
		"num_workers": wp.numWorkers,
	})

	for i := 0; i < wp.numWorkers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop closes the queue, waits for the workers to drain it and closes the
// result channel
func (wp *WorkerPool) Stop() {
	close(wp.jobQueue)
	wp.wg.Wait()
	close(wp.resultQueue)
	wp.cancel()

	wp.logger.Debug("worker pool stopped")
}

// Submit adds a new download job to the queue
func (wp *WorkerPool) Submit(job DownloadJob) error {
	select {
	case wp.jobQueue <- job:
		wp.logger.DebugWithFields("job submitted to queue", map[string]interface{}{
			"id":  job.ArticleID,
			"num": job.Num,
		})
		return nil
	case <-wp.ctx.Done():
		return fmt.Errorf("worker pool is shutting down: %w", wp.ctx.Err())
	}
}

// Results returns the result channel for consuming download results
func (wp *WorkerPool) Results() <-chan DownloadResult {
	return wp.resultQueue
}

func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	for job := range wp.jobQueue {
		var result DownloadResult
		if err := wp.ctx.Err(); err != nil {
			// Drain without work so Stop never blocks on a full queue.
			result = DownloadResult{Job: job, Error: err}
		} else {
			result = wp.processJob(job, id)
		}

		wp.resultQueue <- result
	}
}

func (wp *WorkerPool) processJob(job DownloadJob, workerID int) DownloadResult {
	start := time.Now()
	result := DownloadResult{Job: job}
	fields := map[string]interface{}{
		"worker_id": workerID,
		"id":        job.ArticleID,
		"num":       job.Num,
	}

	if wp.storage.Exists(job.Path) {
		wp.logger.DebugWithFields("file already exists", fields)
		wp.record(job)
		result.Success = true
		result.Skipped = true
		result.Duration = time.Since(start)
		return result
	}

	if err := wp.rateLimiter.Wait(wp.ctx); err != nil {
		result.Error = err
		result.Duration = time.Since(start)
		return result
	}

	var buf bytes.Buffer
	if _, err := wp.client.Download(wp.ctx, job.URL, &buf); err != nil {
		result.Error = fmt.Errorf("download failed: %w", err)
		result.Duration = time.Since(start)
		wp.logger.WithError(err).ErrorWithFields("failed to download file", fields)
		return result
	}

	size, err := wp.storage.Save(&buf, job.Path)
	if err != nil {
		result.Error = fmt.Errorf("save failed: %w", err)
		result.Duration = time.Since(start)
		wp.logger.WithError(err).ErrorWithFields("failed to save file", fields)
		return result
	}

	wp.record(job)
	result.Success = true
	result.Size = size
	result.Duration = time.Since(start)

	fields["size"] = size
	fields["duration"] = result.Duration
	wp.logger.DebugWithFields("download complete", fields)

	return result
}

func (wp *WorkerPool) record(job DownloadJob) {
	if wp.recorder == nil || job.ArchiveKey == "" {
		return
	}
	if err := wp.recorder.Add(wp.ctx, job.ArchiveKey); err != nil {
		wp.logger.WithError(err).WarnWithFields("failed to archive download", map[string]interface{}{
			"key": job.ArchiveKey,
		})
	}
}

// GetQueueSize returns the current number of jobs in the queue
func (wp *WorkerPool) GetQueueSize() int {
	return len(wp.jobQueue)
}

// GetActiveWorkers returns the number of workers
func (wp *WorkerPool) GetActiveWorkers() int {
	return wp.numWorkers
}
