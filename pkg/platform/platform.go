// SPDX-License-Identifier: MPL-2.0

// Package platform defines the adapter boundary to third-party content
// platforms. The acquisition core only ever talks to a platform through the
// Adapter interface; concrete clients (see internal/gqlapi) are registered
// in a Registry keyed by platform name.
package platform

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/modgate/modgate/pkg/content"
)

var (
	// ErrUnknownPlatform is returned when no adapter is registered for a
	// platform name.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrNoCompatibleVersion is returned when a package has no version
	// compatible with the requested game version and loader.
	ErrNoCompatibleVersion = errors.New("no compatible version")

	// ErrNotDownloadable is returned by Download when the platform refuses
	// to serve the file programmatically; the caller must route the file
	// through the blocked-content workflow instead.
	ErrNotDownloadable = errors.New("file is not downloadable")
)

type (
	// Adapter is the uniform operation surface of one content platform.
	//
	// GetVersions returns releases ordered most-compatible-first; callers
	// select the first entry when they need the platform's best pick.
	// Download writes the version's artifact into the instance content
	// folder and returns an error on any failure, including
	// ErrNotDownloadable for platform-restricted files.
	Adapter interface {
		GetDetails(ctx context.Context, id content.PackageID) (*content.PackageRef, error)
		GetVersions(ctx context.Context, id content.PackageID, gv content.GameVersion, loader content.LoaderID) ([]content.VersionRef, error)
		Download(ctx context.Context, instanceDir string, pkg content.PackageID, ver content.VersionID) error
	}

	// Registry maps platform names to registered adapters. The zero value
	// is not usable; construct with NewRegistry.
	Registry struct {
		mu       sync.RWMutex
		adapters map[content.Platform]Adapter
	}
)

// NewRegistry creates an empty adapter registry.
func NewRegistry() *Registry {
	return &Registry{adapters: make(map[content.Platform]Adapter)}
}

// Register binds an adapter to a platform name, replacing any previous
// binding for the same name.
func (r *Registry) Register(name content.Platform, a Adapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.adapters[name] = a
}

// Lookup returns the adapter registered for the platform name.
func (r *Registry) Lookup(name content.Platform) (Adapter, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.adapters[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPlatform, name)
	}
	return a, nil
}

// Platforms returns the registered platform names in sorted order.
func (r *Registry) Platforms() []content.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]content.Platform, 0, len(r.adapters))
	for name := range r.adapters {
		out = append(out, name)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
