package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"opusdl/pkg/extractor"
	"opusdl/pkg/scraper"
	"opusdl/pkg/ui"
)

var getCmd = &cobra.Command{
	Use:   "get <url>...",
	Short: "Download the pictures behind one or more URLs",
	Long: `Download every picture of the given articles, user article lists or
favorites. Files already recorded in the download archive are skipped.

Favorites need a logged-in session: store one with 'opusdl auth login' or
pass --sessdata.`,
	Example: `  # One article
  opusdl get https://www.bilibili.com/opus/913451240839266339

  # Everything a user published, with metadata sidecars
  opusdl get https://space.bilibili.com/12345/article --write-metadata

  # Your favorites, using a stored account
  opusdl get "https://space.bilibili.com/12345/favlist?fid=opus" --account 12345`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

func init() {
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	urls, err := checkURLs(args)
	if err != nil {
		return err
	}

	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log, err := newLogger(cfg)
	if err != nil {
		return err
	}

	sess, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	total, err := syncURLs(ctx, sess, urls, cfg.Logging.Level == "debug" && !ui.IsQuietMode())
	if errors.Is(err, context.Canceled) {
		ui.PrintWarning("Interrupted")
		return err
	}
	if err != nil {
		return err
	}
	if total.Failed > 0 || total.Aborted > 0 {
		return fmt.Errorf("%d downloads failed, %d articles could not be extracted", total.Failed, total.Aborted)
	}
	return nil
}

// checkURLs trims the arguments and rejects any URL no extractor handles
func checkURLs(args []string) ([]string, error) {
	urls := make([]string, 0, len(args))
	for _, arg := range args {
		url := strings.TrimSpace(arg)
		if !extractor.Supported(url) {
			return nil, fmt.Errorf("unsupported URL: %s", url)
		}
		urls = append(urls, url)
	}
	return urls, nil
}

// syncURLs runs every URL in turn and sums the counts. A failing URL is
// reported and the next one still runs; cancellation stops the loop.
func syncURLs(ctx context.Context, sess *session, urls []string, debug bool) (scraper.Stats, error) {
	var total scraper.Stats
	var failures []error

	for _, url := range urls {
		ui.PrintInfo("Target", url)
		progress := ui.NewProgressDisplay(url, debug)

		stats, err := sess.runner(progress).Run(ctx, url)
		progress.Complete()
		addStats(&total, stats)

		if ctx.Err() != nil {
			return total, ctx.Err()
		}
		if err != nil {
			sess.log.WithError(err).ErrorWithFields("extraction failed", map[string]interface{}{
				"url": url,
			})
			ui.PrintError("Extraction failed", err)
			failures = append(failures, err)
		}
	}

	if len(urls) > 1 {
		ui.PrintHighlight(fmt.Sprintf("Saved %d files (%s) to %s",
			sess.store.GetSavedCount(), ui.FormatBytes(sess.store.GetSavedBytes()), sess.store.GetOutputDir()))
	}

	sess.log.InfoWithFields("sync finished", map[string]interface{}{
		"urls":       len(urls),
		"downloaded": total.Downloaded,
		"skipped":    total.Skipped,
		"failed":     total.Failed,
		"aborted":    total.Aborted,
		"bytes":      total.Bytes,
	})
	return total, errors.Join(failures...)
}

func addStats(total *scraper.Stats, s scraper.Stats) {
	total.Articles += s.Articles
	total.Queued += s.Queued
	total.Downloaded += s.Downloaded
	total.Skipped += s.Skipped
	total.Failed += s.Failed
	total.Aborted += s.Aborted
	total.Bytes += s.Bytes
	total.Duration += s.Duration
}
