// Package ratelimit paces outgoing requests.
//
// Interval spaces API and page requests by a random delay, mirroring how a
// person would browse. TokenBucket caps image downloads per minute on top of
// golang.org/x/time/rate. Both honour context cancellation while waiting.
package ratelimit
