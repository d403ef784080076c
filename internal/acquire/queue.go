// SPDX-License-Identifier: MPL-2.0

package acquire

import (
	"context"
	"sync"

	"github.com/modgate/modgate/pkg/content"
)

// Queue is the ordered, deduplicated collection of top-level packages
// selected for acquisition, each carrying its own one-level resolved
// dependency list.
//
// A Queue belongs to exactly one Workflow and is created and discarded with
// it; it is never persisted. Membership checks cover top-level entries
// only — a package present solely as a nested dependency can still be added
// at the top level, and Flatten's global dedup absorbs the overlap.
type Queue struct {
	mu       sync.Mutex
	resolver *Resolver
	entries  []content.QueueEntry
}

// NewQueue creates an empty queue that resolves dependencies through the
// given resolver.
func NewQueue(resolver *Resolver) *Queue {
	return &Queue{resolver: resolver}
}

// Add resolves the required dependencies of version and appends a new
// top-level entry. Adding a package whose id is already present at the top
// level is a no-op, which makes Add idempotent. It reports whether an entry
// was appended.
func (q *Queue) Add(ctx context.Context, pkg content.PackageRef, version content.VersionRef) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.containsLocked(pkg.ID) {
		return false
	}

	already := make(map[content.PackageID]struct{}, len(q.entries)+1)
	for _, e := range q.entries {
		already[e.Package.ID] = struct{}{}
	}
	already[pkg.ID] = struct{}{}

	q.entries = append(q.entries, content.QueueEntry{
		Package:      pkg,
		Version:      version,
		Dependencies: q.resolver.ResolveRequired(ctx, version, already),
	})
	return true
}

// Remove deletes the top-level entry with the given package id. It does not
// cascade into other entries' nested dependency lists. It reports whether an
// entry was removed.
func (q *Queue) Remove(id content.PackageID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	for i, e := range q.entries {
		if e.Package.ID == id {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether a top-level entry with the given package id
// exists. Nested dependencies are not consulted.
func (q *Queue) Contains(id content.PackageID) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.containsLocked(id)
}

func (q *Queue) containsLocked(id content.PackageID) bool {
	for _, e := range q.entries {
		if e.Package.ID == id {
			return true
		}
	}
	return false
}

// Entries returns a snapshot of the top-level entries in queue order.
func (q *Queue) Entries() []content.QueueEntry {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]content.QueueEntry, len(q.entries))
	copy(out, q.entries)
	return out
}

// Len returns the number of top-level entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.entries)
}

// Clear discards all entries.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.entries = nil
}
