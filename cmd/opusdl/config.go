package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"opusdl/pkg/config"
	"opusdl/pkg/ui"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration files",
	Long: `Manage opusdl configuration.

Configuration is loaded from, highest priority first:
  - command line flags
  - OPUSDL_* environment variables
  - .env and ~/.opusdl.env files
  - the configuration file
  - default values`,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a configuration file with the default values",
	Long: `Write the default configuration to --config, or .opusdl.yaml in the
current directory. An existing file is never overwritten.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective configuration with cookies masked",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the configuration file in use",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		path := configFile
		if path == "" {
			path = config.FindConfigFile()
		}
		if path == "" {
			ui.PrintInfo("No configuration file", "defaults, environment and flags only")
			return
		}
		fmt.Fprintln(cmd.OutOrStdout(), path)
	},
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd, configShowCmd, configPathCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configFile
	if path == "" {
		path = ".opusdl.yaml"
	}

	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration file already exists: %s", path)
	} else if !errors.Is(err, os.ErrNotExist) {
		return err
	}

	if err := config.DefaultConfig().Save(path); err != nil {
		return err
	}

	ui.PrintSuccess("Configuration file created: " + path)
	fmt.Fprintln(cmd.OutOrStdout(), "\nNext steps:")
	fmt.Fprintln(cmd.OutOrStdout(), "1. Store your cookies with 'opusdl auth login' (needed for favorites)")
	fmt.Fprintln(cmd.OutOrStdout(), "2. Download with 'opusdl get <url>'")
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configFile, commandFlags(cmd))
	if err != nil {
		return err
	}

	data, err := maskedYAML(cfg)
	if err != nil {
		return fmt.Errorf("failed to format configuration: %w", err)
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// maskedYAML renders cfg with the cookie values masked
func maskedYAML(cfg *config.Config) ([]byte, error) {
	display := *cfg
	display.Bilibili.SessData = mask(display.Bilibili.SessData)
	display.Bilibili.BiliJct = mask(display.Bilibili.BiliJct)
	return yaml.Marshal(&display)
}

func mask(s string) string {
	switch {
	case s == "":
		return ""
	case len(s) > 8:
		return s[:4] + "..." + s[len(s)-4:]
	default:
		return "***"
	}
}
