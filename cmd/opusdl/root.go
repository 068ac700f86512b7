package main

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/spf13/cobra"

	"opusdl/pkg/auth"
	"opusdl/pkg/config"
	"opusdl/pkg/logger"
	"opusdl/pkg/ui"
)

var (
	version   = "0.1.0"
	gitCommit = "unknown"
	buildDate = "unknown"

	// Global flags
	configFile    string
	logLevel      string
	logFile       string
	quiet         bool
	notifications bool
	accountName   string
	sessData      string
	outputDir     string
	archivePath   string
	concurrent    int
	writeMetadata bool
	cooldown      time.Duration
)

var rootCmd = &cobra.Command{
	Use:   "opusdl",
	Short: "Download pictures from bilibili opus articles",
	Long: `opusdl downloads the pictures of bilibili opus articles.

It accepts three kinds of URLs:
  https://www.bilibili.com/opus/<id>                 a single article
  https://space.bilibili.com/<uid>/article           every article of a user
  https://space.bilibili.com/<uid>/favlist?fid=opus  your favorited articles

Files are named {id}_{num}.{extension} under {category}/{username} and
recorded in a download archive, so repeated runs only fetch what is new.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, gitCommit, buildDate),
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if quiet {
			ui.SetQuietMode(true)
		}
		switch cmd.Name() {
		case "get", "watch", "login":
			ui.PrintLogo()
		}
	},
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		ui.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVarP(&configFile, "config", "c", "", "config file (default .opusdl.yaml or ~/.config/opusdl/config.yaml)")
	flags.StringVar(&logLevel, "log-level", "", "log level (debug, info, warn, error, disabled)")
	flags.StringVar(&logFile, "log-file", "", "also write JSON logs to this file")
	flags.BoolVarP(&quiet, "quiet", "q", false, "suppress all output except errors")
	flags.StringVarP(&accountName, "account", "a", "", "use a specific stored account")
	flags.StringVar(&sessData, "sessdata", "", "SESSDATA cookie value")
	flags.StringVarP(&outputDir, "output", "o", "", "output directory")
	flags.StringVar(&archivePath, "archive", "", "download archive path (empty string disables it)")
	flags.IntVar(&concurrent, "concurrent", 0, "number of concurrent downloads")
	flags.BoolVar(&writeMetadata, "write-metadata", false, "write a JSON sidecar per article")
	flags.DurationVar(&cooldown, "cooldown", 0, "wait before retrying a page blocked by risk control")

	rootCmd.SetVersionTemplate(`opusdl {{.Version}}
Go Version: ` + runtime.Version() + `
OS/Arch: ` + runtime.GOOS + `/` + runtime.GOARCH + `
`)

	rootCmd.CompletionOptions.DisableDefaultCmd = true
}

// commandFlags collects the global flags the user actually set
func commandFlags(cmd *cobra.Command) map[string]interface{} {
	flags := make(map[string]interface{})
	changed := cmd.Flags().Changed

	if changed("sessdata") {
		flags["sessdata"] = sessData
	}
	if changed("output") {
		flags["output"] = outputDir
	}
	if changed("archive") {
		flags["archive"] = archivePath
	}
	if changed("concurrent") {
		flags["concurrent"] = concurrent
	}
	if changed("log-level") {
		flags["log-level"] = logLevel
	}
	if changed("write-metadata") {
		flags["write-metadata"] = writeMetadata
	}
	if changed("cooldown") {
		flags["cooldown"] = cooldown
	}
	return flags
}

// loadConfig resolves the configuration and fills missing cookies from the
// credential store
func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-file") {
		cfg.Logging.File = logFile
	}

	if err := applyStoredAccount(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func applyStoredAccount(cfg *config.Config) error {
	if cfg.Bilibili.SessData != "" && accountName == "" {
		return nil
	}

	manager, err := auth.NewManager()
	if err != nil {
		if accountName != "" {
			return fmt.Errorf("credential store: %w", err)
		}
		return nil
	}

	var account *auth.Account
	if accountName != "" {
		account, err = manager.Retrieve(accountName)
		if err != nil {
			return fmt.Errorf("account %q: %w (see 'opusdl auth list')", accountName, err)
		}
		cfg.Bilibili.SessData = ""
		cfg.Bilibili.BiliJct = ""
		cfg.Bilibili.UserID = ""
	} else {
		account, err = manager.RetrieveDefault()
		if errors.Is(err, auth.ErrCredentialsNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
	}

	account.Apply(&cfg.Bilibili)
	return nil
}

// newLogger sets up the process logger from the resolved configuration
func newLogger(cfg *config.Config) (logger.Logger, error) {
	if err := logger.Initialize(&cfg.Logging); err != nil {
		return nil, err
	}
	return logger.GetLogger().WithField("version", version), nil
}
