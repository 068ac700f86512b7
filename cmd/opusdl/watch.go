package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"opusdl/pkg/logger"
	"opusdl/pkg/ui"
)

var (
	schedule    string
	skipInitial bool
)

var watchCmd = &cobra.Command{
	Use:   "watch <url>...",
	Short: "Re-sync URLs on a schedule",
	Long: `Run 'get' for the given URLs on a cron schedule until interrupted.

The download archive makes every run after the first incremental: only
articles and pictures that were not seen before are fetched. The schedule
takes standard five-field cron expressions or descriptors such as
"@hourly" and "@every 6h".`,
	Example: `  opusdl watch --schedule "@every 6h" https://space.bilibili.com/12345/article
  opusdl watch --schedule "0 3 * * *" --notifications "https://space.bilibili.com/12345/favlist?fid=opus"`,
	Args: cobra.MinimumNArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&schedule, "schedule", "@every 6h", "cron schedule")
	watchCmd.Flags().BoolVar(&skipInitial, "skip-initial", false, "wait for the first scheduled time instead of syncing right away")
	watchCmd.Flags().BoolVar(&notifications, "notifications", false, "desktop notification when new files arrive")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	sched, err := cron.ParseStandard(schedule)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}
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
	if cfg.Archive.Path == "" {
		ui.PrintWarning("No download archive configured, every run downloads everything again")
	}

	sess, err := openSession(cfg, log)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var notifier *ui.Notifier
	if notifications {
		notifier = ui.NewNotifier()
	}
	debug := cfg.Logging.Level == "debug" && !ui.IsQuietMode()

	var mu sync.Mutex
	runOnce := func() {
		mu.Lock()
		defer mu.Unlock()

		total, err := syncURLs(ctx, sess, urls, debug)
		if ctx.Err() != nil {
			return
		}
		if notifier == nil {
			return
		}
		if err != nil {
			notifier.SendError("opusdl sync failed", err.Error())
		} else if total.Downloaded > 0 {
			notifier.SendSuccess("opusdl", fmt.Sprintf("%d new files (%s)", total.Downloaded, ui.FormatBytes(total.Bytes)))
		}
	}

	cronLog := cronLogger{log: logger.Component("watch")}
	c := cron.New(
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)
	if _, err := c.AddFunc(schedule, runOnce); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", schedule, err)
	}

	if !skipInitial {
		runOnce()
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}

	c.Start()
	next := sched.Next(time.Now())
	ui.PrintInfo("Watching", fmt.Sprintf("%d URLs, next run %s", len(urls), next.Format("2006-01-02 15:04")))

	<-ctx.Done()
	ui.PrintWarning("Stopping")
	<-c.Stop().Done()
	return nil
}

// cronLogger routes scheduler events into the structured logger
type cronLogger struct {
	log logger.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.DebugWithFields("cron: "+msg, kvFields(keysAndValues))
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.WithError(err).ErrorWithFields("cron: "+msg, kvFields(keysAndValues))
}

func kvFields(keysAndValues []interface{}) map[string]interface{} {
	fields := make(map[string]interface{}, len(keysAndValues)/2)
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		fields[fmt.Sprint(keysAndValues[i])] = keysAndValues[i+1]
	}
	return fields
}
