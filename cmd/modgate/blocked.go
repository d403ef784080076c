// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/modgate/modgate/internal/blocked"
	"github.com/modgate/modgate/internal/config"
	"github.com/modgate/modgate/internal/issue"
	"github.com/modgate/modgate/pkg/content"
)

type blockedOptions struct {
	manifestPath string
	instanceDir  string
	downloadsDir string
	extraDirs    []string
	skipMissing  bool
}

func newBlockedCommand() *cobra.Command {
	opts := blockedOptions{}

	cmd := &cobra.Command{
		Use:   "blocked",
		Short: "Reconcile manually-downloaded blocked content",
		Long: `Watch the downloads directory for files matching a blocked-content
manifest. Files are matched by hash (or exact filename when the platform
published no hash) and copied into the instance once every item is
matched. Press Ctrl-C to abort without copying.

With --skip-missing, the matched subset is copied after the initial scan
and the unresolved items are discarded for this run.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBlocked(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&opts.manifestPath, "manifest", "blocked.toml", "blocked-content manifest")
	cmd.Flags().StringVar(&opts.instanceDir, "instance", "", "instance directory (default from config)")
	cmd.Flags().StringVar(&opts.downloadsDir, "downloads", "", "directory watched for manual downloads (default from config)")
	cmd.Flags().StringArrayVar(&opts.extraDirs, "dir", nil, "additional directory to watch (repeatable)")
	cmd.Flags().BoolVar(&opts.skipMissing, "skip-missing", false, "copy matched files and discard the rest after one scan")

	return cmd
}

func runBlocked(ctx context.Context, opts blockedOptions) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if opts.instanceDir == "" {
		opts.instanceDir = cfg.InstanceDir
	}
	if opts.instanceDir == "" {
		return issue.NewContext().
			WithOperation("select instance").
			WithSuggestion("Pass --instance or set instance_dir in the config").
			BuildError()
	}
	if opts.downloadsDir == "" {
		opts.downloadsDir = cfg.DownloadsDir
	}

	manifest, err := blocked.LoadManifest(opts.manifestPath)
	if err != nil {
		return issue.NewContext().
			WithOperation("load blocked-content manifest").
			WithResource(opts.manifestPath).
			WithSuggestion("Run 'modgate get' first to generate the manifest").
			Wrap(err).
			BuildError()
	}

	return runBlockedSession(ctx, blockedRunConfig{
		items:        manifest.Items,
		instanceDir:  opts.instanceDir,
		downloadsDir: opts.downloadsDir,
		extraDirs:    opts.extraDirs,
		skipMissing:  opts.skipMissing,
	})
}

type blockedRunConfig struct {
	items        []content.BlockedItem
	instanceDir  string
	downloadsDir string
	extraDirs    []string
	skipMissing  bool
}

// runBlockedSession drives one watch session to completion: it consumes
// update events (fenced by session id), prints match progress, and confirms
// once every item is matched.
func runBlockedSession(ctx context.Context, cfg blockedRunConfig) error {
	if cfg.downloadsDir == "" {
		return issue.NewContext().
			WithOperation("start watch session").
			WithSuggestion("Pass --downloads or set downloads_dir in the config").
			BuildError()
	}

	session, err := blocked.StartSession(blocked.SessionConfig{
		Items:      cfg.items,
		WatchDir:   cfg.downloadsDir,
		ExtraPaths: cfg.extraDirs,
		Logger:     logger,
	})
	if err != nil {
		return err
	}
	defer session.Close()

	tracker := blocked.NewTracker(session.ID())

	fmt.Println(SubtitleStyle.Render("watching ") + cfg.downloadsDir +
		SubtitleStyle.Render(fmt.Sprintf(" for %d file(s); press Ctrl-C to abort", len(cfg.items))))

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	for {
		select {
		case <-ctx.Done():
			fmt.Println(WarningStyle.Render("aborted; nothing was copied"))
			return nil

		case err := <-session.Errs():
			fmt.Fprintln(os.Stderr, WarningStyle.Render("Warning: ")+err.Error())

		case update := <-session.Updates():
			if !tracker.Apply(update) {
				continue
			}
			printMatchState(tracker.Items())

			if cfg.skipMissing && !tracker.AllMatched() {
				if err := session.SkipMissing(cfg.instanceDir); err != nil {
					return copyFailure(err, cfg.instanceDir)
				}
				fmt.Println(WarningStyle.Render("skipped missing items; ") +
					SuccessStyle.Render("matched files copied into instance"))
				return nil
			}

			if tracker.AllMatched() {
				if err := session.Confirm(cfg.instanceDir); err != nil {
					return copyFailure(err, cfg.instanceDir)
				}
				fmt.Println(SuccessStyle.Render("✓ all files matched and copied into instance"))
				return nil
			}
		}
	}
}

func printMatchState(items []content.BlockedItem) {
	for _, item := range items {
		if item.Matched {
			fmt.Println("  " + SuccessStyle.Render("✓ ") + item.Name +
				SubtitleStyle.Render("  "+item.LocalPath))
		} else {
			fmt.Println("  " + ErrorStyle.Render("✗ ") + item.Name)
		}
	}
	fmt.Println()
}

// copyFailure wraps a Confirm/SkipMissing error. The session remains usable,
// but the CLI ends the run and lets the user invoke the command again.
func copyFailure(err error, instanceDir string) error {
	return issue.NewContext().
		WithOperation("copy matched files").
		WithResource(instanceDir).
		WithSuggestion("Check the instance directory is writable, then re-run 'modgate blocked'").
		Wrap(err).
		BuildError()
}
