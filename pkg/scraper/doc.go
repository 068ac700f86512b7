// Package scraper runs extractors and downloads what they find.
//
// A Runner takes one input URL, finds the matching extractor and consumes
// its message stream:
//
//   - directory messages announce an article; the optional metadata sidecar
//     is written here
//   - url messages become download jobs unless their "{id}_{num}" key is
//     already in the archive
//   - queue messages are dispatched recursively through the extractors
//
// Downloads run on the worker pool from internal/downloader while
// extraction continues. An article that fails to extract is logged and
// counted, and the runner moves on to the next queued article. Cancelling
// the context stops both extraction and the pool.
//
// Run must not be called concurrently on the same Runner.
package scraper
