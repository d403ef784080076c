// SPDX-License-Identifier: MPL-2.0

package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/modgate/modgate/internal/acquire"
	"github.com/modgate/modgate/internal/blocked"
	"github.com/modgate/modgate/internal/config"
	"github.com/modgate/modgate/internal/gqlapi"
	"github.com/modgate/modgate/internal/issue"
	"github.com/modgate/modgate/pkg/content"
	"github.com/modgate/modgate/pkg/platform"
)

type getOptions struct {
	instanceDir  string
	platformName string
	gameVersion  string
	loader       string
	manifestPath string
	watch        bool
	downloadsDir string
}

func newGetCommand() *cobra.Command {
	opts := getOptions{}

	cmd := &cobra.Command{
		Use:   "get <package-id>...",
		Short: "Queue packages with their dependencies and install them",
		Long: `Queue one or more packages, resolve their required dependencies, and
install everything into the instance in dependency order.

Files the platform refuses to serve programmatically are written to a
blocked-content manifest; run 'modgate blocked' (or pass --watch) to
reconcile them after downloading manually.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGet(cmd.Context(), opts, args)
		},
	}

	cmd.Flags().StringVar(&opts.instanceDir, "instance", "", "instance directory (default from config)")
	cmd.Flags().StringVar(&opts.platformName, "platform", "modrinth", "content platform")
	cmd.Flags().StringVar(&opts.gameVersion, "game-version", "", "game version to select against")
	cmd.Flags().StringVar(&opts.loader, "loader", "", "mod loader to select against")
	cmd.Flags().StringVar(&opts.manifestPath, "manifest", "blocked.toml", "where to write the blocked-content manifest")
	cmd.Flags().BoolVar(&opts.watch, "watch", false, "watch for manual downloads of blocked files after installing")
	cmd.Flags().StringVar(&opts.downloadsDir, "downloads", "", "directory watched for manual downloads (default from config)")

	return cmd
}

func runGet(ctx context.Context, opts getOptions, args []string) error {
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

	registry, err := buildRegistry(cfg)
	if err != nil {
		return err
	}

	workflow, err := acquire.NewWorkflow(acquire.WorkflowConfig{
		InstanceDir: opts.instanceDir,
		Platform:    content.Platform(opts.platformName),
		GameVersion: content.GameVersion(opts.gameVersion),
		Loader:      content.LoaderID(opts.loader),
		Registry:    registry,
		Progress:    os.Stderr,
		Logger:      logger,
	})
	if err != nil {
		return err
	}
	defer workflow.Close()

	for _, arg := range args {
		entry, err := workflow.Add(ctx, content.PackageID(arg))
		if err != nil {
			return issue.NewContext().
				WithOperation("queue package").
				WithResource(arg).
				WithSuggestion("Check the package id and platform").
				WithSuggestion("Try a different --game-version or --loader").
				Wrap(err).
				BuildError()
		}
		if entry == nil {
			fmt.Println(SubtitleStyle.Render("already queued: ") + arg)
			continue
		}
		fmt.Println(SuccessStyle.Render("queued: ") + entry.String())
	}

	plan := workflow.Plan()
	fmt.Printf("\n%s %d to install, %d blocked\n",
		SubtitleStyle.Render("plan:"), len(plan.Steps), len(plan.Blocked))

	if err := workflow.Install(ctx); err != nil {
		return issue.NewContext().
			WithOperation("install content").
			WithResource(opts.instanceDir).
			WithSuggestion("Re-run the same command to retry; completed steps are kept").
			Wrap(err).
			BuildError()
	}

	if len(plan.Blocked) == 0 {
		fmt.Println(SuccessStyle.Render("✓ all content installed"))
		return nil
	}

	manifest := &blocked.Manifest{Items: plan.Blocked}
	if err := manifest.Save(opts.manifestPath); err != nil {
		return err
	}
	fmt.Println(WarningStyle.Render(fmt.Sprintf("%d file(s) must be downloaded manually:", len(plan.Blocked))))
	for _, item := range plan.Blocked {
		line := "  " + item.Name
		if item.WebsiteURL != "" {
			line += "  " + HighlightStyle.Render(item.WebsiteURL)
		}
		fmt.Println(line)
	}
	fmt.Println(SubtitleStyle.Render("manifest written to ") + opts.manifestPath)

	if !opts.watch {
		fmt.Println(SubtitleStyle.Render("run ") +
			HighlightStyle.Render(fmt.Sprintf("modgate blocked --manifest %s --instance %s", opts.manifestPath, opts.instanceDir)) +
			SubtitleStyle.Render(" after downloading"))
		return nil
	}

	return runBlockedSession(ctx, blockedRunConfig{
		items:        plan.Blocked,
		instanceDir:  opts.instanceDir,
		downloadsDir: opts.downloadsDir,
	})
}

// buildRegistry constructs platform adapters from the configuration.
func buildRegistry(cfg *config.Config) (*platform.Registry, error) {
	registry := platform.NewRegistry()
	for name, pc := range cfg.Platforms {
		client, err := gqlapi.NewClient(gqlapi.Config{
			Platform: content.Platform(name),
			Endpoint: pc.Endpoint,
			APIKey:   pc.APIKey,
			Logger:   logger,
		})
		if err != nil {
			return nil, fmt.Errorf("configure platform %q: %w", name, err)
		}
		registry.Register(content.Platform(name), client)
	}
	if len(cfg.Platforms) == 0 {
		return nil, issue.NewContext().
			WithOperation("configure platforms").
			WithSuggestion("Run 'modgate config init' and add a [platforms.<name>] section").
			BuildError()
	}
	return registry, nil
}
