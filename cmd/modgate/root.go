// SPDX-License-Identifier: MPL-2.0

// Command modgate acquires add-on content for a game instance from
// third-party content platforms, pulling in required dependencies, and
// reconciles manually-downloaded blocked files against their expected
// identity before admitting them into the instance.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/fang"
	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/modgate/modgate/internal/config"
	"github.com/modgate/modgate/internal/issue"
)

var (
	// Version is the semantic version (set via -ldflags).
	Version = "dev"
	// Commit is the git commit hash (set via -ldflags).
	Commit = "unknown"

	// verbose enables debug logging and full error chains.
	verbose bool

	logger = log.New(os.Stderr)

	rootCmd = &cobra.Command{
		Use:   "modgate",
		Short: "Acquire game content and gate manually-downloaded files",
		Long: TitleStyle.Render("modgate") + SubtitleStyle.Render(" - content acquisition for game instances") + `

modgate installs mods, modpacks, resource packs, and shader packs into a
game instance, resolving required dependencies and installing everything
in dependency order. Content a platform refuses to serve programmatically
is routed through a watch session that matches manually-downloaded files
against their expected identity before copying them into the instance.

` + SubtitleStyle.Render("Examples:") + `
  modgate get --instance ~/instances/main sodium lithium
  modgate blocked --manifest blocked.toml --instance ~/instances/main
  modgate config init`,
	}
)

func init() {
	cobra.OnInitialize(initLogging)

	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable verbose output")

	rootCmd.AddCommand(newGetCommand())
	rootCmd.AddCommand(newBlockedCommand())
	rootCmd.AddCommand(newConfigCommand())
}

// initLogging applies the configured log level, letting --verbose win.
func initLogging() {
	if verbose {
		logger.SetLevel(log.DebugLevel)
		return
	}
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+formatErrorForDisplay(err))
		return
	}
	if lvl, err := log.ParseLevel(cfg.LogLevel); err == nil {
		logger.SetLevel(lvl)
	}
}

func getVersionString() string {
	if Version == "dev" {
		return "dev (built from source)"
	}
	return fmt.Sprintf("%s (commit: %s)", Version, Commit)
}

// Execute runs the root command through fang for styled help and errors.
func Execute() {
	if err := fang.Execute(
		context.Background(),
		rootCmd,
		fang.WithVersion(getVersionString()),
		fang.WithNotifySignal(os.Interrupt),
	); err != nil {
		os.Exit(1)
	}
}

// formatErrorForDisplay renders ActionableErrors with their suggestions and
// everything else verbatim.
func formatErrorForDisplay(err error) string {
	var ae *issue.ActionableError
	if errors.As(err, &ae) {
		return ae.Format(verbose)
	}
	return err.Error()
}
