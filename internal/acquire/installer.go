// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"
	"github.com/schollz/progressbar/v3"

	"github.com/modgate/modgate/pkg/content"
	"github.com/modgate/modgate/pkg/platform"
)

type (
	// Step is one flattened install unit: a concrete package version on a
	// concrete platform.
	Step struct {
		Package content.PackageRef
		Version content.VersionRef
	}

	// Installer executes flattened install steps strictly one at a time.
	// Ordering correctness comes purely from Flatten plus sequential
	// execution; there is no parallelism, no retry, and no rollback.
	Installer struct {
		registry *platform.Registry
		logger   *log.Logger

		// progress receives the bar output; nil disables the bar entirely
		// (tests, non-TTY callers).
		progress io.Writer

		// OnStep, when set, is invoked with the 1-based index and total
		// before each download begins.
		OnStep func(i, total int, step Step)
	}
)

// NewInstaller creates an installer that resolves adapters from registry.
// progress may be nil to disable the progress bar; a nil logger disables
// logging.
func NewInstaller(registry *platform.Registry, progress io.Writer, logger *log.Logger) *Installer {
	if logger == nil {
		logger = log.New(nil)
	}
	return &Installer{registry: registry, progress: progress, logger: logger}
}

// Flatten produces the unique, dependency-before-dependent install sequence
// for the queue entries: top-level entries in queue order, each preceded by
// any of its dependencies not yet emitted. Every package id appears exactly
// once even when several queued packages require it.
func Flatten(entries []content.QueueEntry) []Step {
	seen := make(map[content.PackageID]struct{})
	var steps []Step

	emit := func(pkg content.PackageRef, ver content.VersionRef) {
		if _, ok := seen[pkg.ID]; ok {
			return
		}
		seen[pkg.ID] = struct{}{}
		steps = append(steps, Step{Package: pkg, Version: ver})
	}

	for _, e := range entries {
		for _, dep := range e.Dependencies {
			emit(dep.Package, dep.Version)
		}
		emit(e.Package, e.Version)
	}

	return steps
}

// Install downloads every step into instanceDir in order, updating the
// progress display before each download. The first failure aborts the
// remaining steps and is surfaced verbatim; completed steps are not rolled
// back. The caller decides what to do with the queue on failure (it is kept
// for retry).
func (in *Installer) Install(ctx context.Context, instanceDir string, steps []Step) error {
	total := len(steps)
	if total == 0 {
		return nil
	}

	var bar *progressbar.ProgressBar
	if in.progress != nil {
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetWriter(in.progress),
			progressbar.OptionSetDescription("installing"),
			progressbar.OptionSetWidth(40),
			progressbar.OptionShowCount(),
			progressbar.OptionThrottle(100*time.Millisecond),
		)
	}

	for i, step := range steps {
		if bar != nil {
			bar.Describe(fmt.Sprintf("installing %s (%d/%d)", step.Package.Name, i+1, total))
		}
		if in.OnStep != nil {
			in.OnStep(i+1, total, step)
		}

		adapter, err := in.registry.Lookup(step.Package.Platform)
		if err != nil {
			return err
		}

		in.logger.Info("downloading",
			"package", step.Package.ID,
			"version", step.Version.VersionNumber,
			"platform", step.Package.Platform)

		if err := adapter.Download(ctx, instanceDir, step.Package.ID, step.Version.ID); err != nil {
			return err
		}

		if bar != nil {
			bar.Add(1) //nolint:errcheck // display only
		}
	}

	if bar != nil {
		bar.Finish() //nolint:errcheck // display only
	}
	return nil
}
