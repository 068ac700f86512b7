// Package logger wraps zerolog behind a small structured logging interface.
//
// Console output is colourised and written to stderr. When a log file is
// configured, every event is also appended to it as a JSON line. Each process
// tags its events with a run_id so that lines from one invocation can be
// grouped.
//
//	if err := logger.Initialize(&cfg.Logging); err != nil {
//	    return err
//	}
//	log := logger.Component("downloader")
//	log.InfoWithFields("download completed", map[string]interface{}{
//	    "path": path,
//	    "size": n,
//	})
//
// Tests can capture events with NewTestLogger or drop them with NewNopLogger.
package logger
