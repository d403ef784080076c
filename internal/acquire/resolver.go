// SPDX-License-Identifier: MPL-2.0

// Package acquire implements the content acquisition core: one-level
// dependency resolution, the deduplicated queue of selected packages, and
// the dependency-ordered sequential installer.
package acquire

import (
	"context"

	"github.com/charmbracelet/log"

	"github.com/modgate/modgate/pkg/content"
	"github.com/modgate/modgate/pkg/platform"
)

type (
	// Resolver computes the required-dependency set for a chosen version by
	// querying the platform adapter once per dependency edge. Resolution is
	// one level deep: dependencies of dependencies are not expanded (see
	// DESIGN.md for the rationale).
	Resolver struct {
		adapter     platform.Adapter
		gameVersion content.GameVersion
		loader      content.LoaderID
		logger      *log.Logger
	}
)

// NewResolver creates a resolver bound to one adapter and one compatibility
// target. A nil logger disables resolution logging.
func NewResolver(adapter platform.Adapter, gv content.GameVersion, loader content.LoaderID, logger *log.Logger) *Resolver {
	if logger == nil {
		logger = log.New(nil)
	}
	return &Resolver{
		adapter:     adapter,
		gameVersion: gv,
		loader:      loader,
		logger:      logger,
	}
}

// ResolveRequired resolves every required dependency edge of version whose
// target is not already queued at the top level, selecting each dependency's
// most-compatible version.
//
// Resolution is best-effort and non-fatal: a dependency whose details or
// version list cannot be fetched, or that has no compatible version, is
// skipped so that one bad edge never blocks the others or the parent
// package. Optional and incompatible edges are never auto-resolved.
func (r *Resolver) ResolveRequired(ctx context.Context, version content.VersionRef, alreadyQueued map[content.PackageID]struct{}) []content.QueueEntry {
	var resolved []content.QueueEntry

	for _, edge := range version.RequiredDependencies() {
		if _, ok := alreadyQueued[edge.TargetPackageID]; ok {
			continue
		}

		pkg, err := r.adapter.GetDetails(ctx, edge.TargetPackageID)
		if err != nil {
			r.logger.Debug("skipping dependency: details fetch failed",
				"package", edge.TargetPackageID, "err", err)
			continue
		}

		versions, err := r.adapter.GetVersions(ctx, edge.TargetPackageID, r.gameVersion, r.loader)
		if err != nil {
			r.logger.Debug("skipping dependency: version fetch failed",
				"package", edge.TargetPackageID, "err", err)
			continue
		}
		if len(versions) == 0 {
			r.logger.Debug("skipping dependency: no compatible version",
				"package", edge.TargetPackageID,
				"game_version", r.gameVersion, "loader", r.loader)
			continue
		}

		// The adapter orders versions most-compatible-first; take its pick.
		resolved = append(resolved, content.QueueEntry{
			Package: *pkg,
			Version: versions[0],
		})
	}

	return resolved
}
