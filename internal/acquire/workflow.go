// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/charmbracelet/log"

	"github.com/modgate/modgate/pkg/content"
	"github.com/modgate/modgate/pkg/platform"
)

// ErrWorkflowClosed is returned by operations on a workflow after Close.
var ErrWorkflowClosed = errors.New("acquisition workflow is closed")

type (
	// WorkflowConfig holds the parameters for one acquisition workflow.
	WorkflowConfig struct {
		// InstanceDir is the root directory of the game instance content
		// is installed into.
		InstanceDir string

		// Platform selects the adapter used for package selection and
		// dependency resolution.
		Platform content.Platform

		// GameVersion and Loader are the compatibility target used when
		// selecting versions.
		GameVersion content.GameVersion
		Loader      content.LoaderID

		// Registry supplies platform adapters.
		Registry *platform.Registry

		// Progress receives installer progress output; nil disables it.
		Progress io.Writer

		// Logger may be nil to disable logging.
		Logger *log.Logger
	}

	// Workflow is the single owner of one acquisition queue. Exactly one
	// workflow is alive per acquisition run by construction: it is created
	// when the run opens and closed when it completes or is abandoned. The
	// queue is never shared and never persisted.
	Workflow struct {
		mu        sync.Mutex
		cfg       WorkflowConfig
		adapter   platform.Adapter
		queue     *Queue
		installer *Installer
		logger    *log.Logger
		closed    bool
	}

	// Plan is the partition of the flattened queue into steps the adapter
	// can download and files the platform refuses to serve.
	Plan struct {
		Steps   []Step
		Blocked []content.BlockedItem
	}
)

// NewWorkflow creates an acquisition workflow and its queue.
func NewWorkflow(cfg WorkflowConfig) (*Workflow, error) {
	if cfg.InstanceDir == "" {
		return nil, fmt.Errorf("instance directory is required")
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("adapter registry is required")
	}
	adapter, err := cfg.Registry.Lookup(cfg.Platform)
	if err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(nil)
	}

	resolver := NewResolver(adapter, cfg.GameVersion, cfg.Loader, logger)
	return &Workflow{
		cfg:       cfg,
		adapter:   adapter,
		queue:     NewQueue(resolver),
		installer: NewInstaller(cfg.Registry, cfg.Progress, logger),
		logger:    logger,
	}, nil
}

// Add fetches the package's details and compatible versions, selects the
// adapter's most-compatible version, and queues it along with its resolved
// required dependencies. Adding an already-queued package is a no-op.
func (w *Workflow) Add(ctx context.Context, id content.PackageID) (*content.QueueEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkflowClosed
	}

	if w.queue.Contains(id) {
		return nil, nil
	}

	pkg, err := w.adapter.GetDetails(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("fetch details for %s: %w", id, err)
	}

	versions, err := w.adapter.GetVersions(ctx, id, w.cfg.GameVersion, w.cfg.Loader)
	if err != nil {
		return nil, fmt.Errorf("fetch versions for %s: %w", id, err)
	}
	if len(versions) == 0 {
		return nil, fmt.Errorf("%w: %s (game %s, loader %s)",
			platform.ErrNoCompatibleVersion, id, w.cfg.GameVersion, w.cfg.Loader)
	}

	return w.addVersionLocked(ctx, *pkg, versions[0]), nil
}

// AddVersion queues an explicitly chosen version of a package.
func (w *Workflow) AddVersion(ctx context.Context, pkg content.PackageRef, version content.VersionRef) (*content.QueueEntry, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil, ErrWorkflowClosed
	}
	return w.addVersionLocked(ctx, pkg, version), nil
}

// addVersionLocked appends pkg@version to the queue. Callers must hold w.mu.
// It returns nil when the package was already queued.
func (w *Workflow) addVersionLocked(ctx context.Context, pkg content.PackageRef, version content.VersionRef) *content.QueueEntry {
	if !w.queue.Add(ctx, pkg, version) {
		return nil
	}
	entries := w.queue.Entries()
	entry := entries[len(entries)-1]
	return &entry
}

// Remove drops the top-level queue entry with the given id.
func (w *Workflow) Remove(id content.PackageID) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue.Remove(id)
}

// Entries returns a snapshot of the queued top-level entries.
func (w *Workflow) Entries() []content.QueueEntry {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.queue.Entries()
}

// Plan flattens the queue and partitions the result into downloadable steps
// and blocked items. Steps whose primary file the platform refuses to serve
// become BlockedItems routed through the manual-download workflow.
func (w *Workflow) Plan() Plan {
	w.mu.Lock()
	defer w.mu.Unlock()

	return w.planLocked()
}

// Install executes the downloadable steps of the current plan strictly in
// order. On full success the queue is cleared; on failure it is left intact
// so the user can retry.
func (w *Workflow) Install(ctx context.Context) error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return ErrWorkflowClosed
	}
	steps := w.planLocked().Steps
	w.mu.Unlock()

	if err := w.installer.Install(ctx, w.cfg.InstanceDir, steps); err != nil {
		return err
	}

	w.mu.Lock()
	w.queue.Clear()
	w.mu.Unlock()
	w.logger.Info("install complete", "steps", len(steps))
	return nil
}

func (w *Workflow) planLocked() Plan {
	var plan Plan
	for _, step := range Flatten(w.queue.Entries()) {
		if f, ok := step.Version.PrimaryFile(); ok && !f.Downloadable {
			plan.Blocked = append(plan.Blocked, content.BlockedItemFor(step.Package, f))
			continue
		}
		plan.Steps = append(plan.Steps, step)
	}
	return plan
}

// Abort clears the queue. It is only meaningful before installation starts;
// there is no mid-install cancellation beyond the context passed to Install.
func (w *Workflow) Abort() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.queue.Clear()
}

// Close marks the workflow as finished. The queue is discarded with it.
func (w *Workflow) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	w.queue.Clear()
}
