// SPDX-License-Identifier: MPL-2.0

package blocked

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/modgate/modgate/pkg/content"
)

var (
	// ErrEmptyManifest is returned when a session is started with no items
	// to match; a session only exists because blocked content exists.
	ErrEmptyManifest = errors.New("blocked-content manifest is empty")

	// ErrNotAllMatched is returned by Confirm while at least one item is
	// still unmatched. Callers that want to proceed anyway must explicitly
	// call SkipMissing.
	ErrNotAllMatched = errors.New("not every blocked item is matched")

	// ErrSessionClosed is returned by operations on a closed session.
	ErrSessionClosed = errors.New("watch session is closed")
)

type (
	// SessionID is the generation token fencing update events: consumers
	// compare it against their own session's id and discard events carrying
	// any other id (stale sessions from an already-closed workflow).
	SessionID uuid.UUID

	// Update is one authoritative scan result pushed to the consumer.
	Update struct {
		SessionID  SessionID
		Items      []content.BlockedItem
		AllMatched bool
	}

	// SessionConfig holds the parameters for StartSession.
	SessionConfig struct {
		// Items is the manifest of platform-restricted files to reconcile.
		// Must be non-empty.
		Items []content.BlockedItem

		// WatchDir is the default directory watched for manual downloads,
		// typically the user's downloads folder.
		WatchDir string

		// ExtraPaths are additional directories included from the start.
		ExtraPaths []string

		// Debounce overrides the event-coalescing window (0 = default).
		Debounce time.Duration

		// Scanner overrides the default scanner (nil = defaults).
		Scanner *Scanner

		// Logger may be nil to disable logging.
		Logger *log.Logger
	}

	// Session is one blocked-content watch session: a fresh id, the item
	// list being reconciled, and a background directory watch driving
	// event-driven rescans. A session is owned by exactly one workflow run
	// and is discarded with it; it is never persisted.
	Session struct {
		id      SessionID
		scanner *Scanner
		logger  *log.Logger

		mu    sync.Mutex
		items []content.BlockedItem
		paths []string
		state State

		watcher *dirWatcher
		cancel  context.CancelFunc
		done    chan struct{}

		updates chan Update
		errs    chan error
	}

	// State is the matcher's lifecycle state.
	State string
)

// Matcher states. Scanning is transient and never observed between method
// calls; the steady states are what callers branch on.
const (
	StateWatching         State = "watching"
	StateAllMatched       State = "all-matched"
	StatePartiallyMatched State = "partially-matched"
	StateConfirmed        State = "confirmed"
	StateAborted          State = "aborted"
)

// String renders the id in canonical uuid form.
func (id SessionID) String() string { return uuid.UUID(id).String() }

// StartSession begins a watch session: it generates a fresh session id,
// registers a background watch over the default directory plus any extra
// paths, forces every item unmatched, and runs one synchronous initial scan
// to catch files already present before the watch existed.
func StartSession(cfg SessionConfig) (*Session, error) {
	if len(cfg.Items) == 0 {
		return nil, ErrEmptyManifest
	}
	if cfg.WatchDir == "" {
		return nil, fmt.Errorf("watch directory is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.New(nil)
	}
	scanner := cfg.Scanner
	if scanner == nil {
		scanner = &Scanner{Logger: logger}
	}

	items := make([]content.BlockedItem, len(cfg.Items))
	copy(items, cfg.Items)
	for i := range items {
		items[i].Matched = false
		items[i].LocalPath = ""
	}

	s := &Session{
		id:      SessionID(uuid.New()),
		scanner: scanner,
		logger:  logger,
		items:   items,
		paths:   append([]string{cfg.WatchDir}, cfg.ExtraPaths...),
		state:   StateWatching,
		done:    make(chan struct{}),
		updates: make(chan Update, 1),
		errs:    make(chan error, 4),
	}

	watcher, err := newDirWatcher(cfg.Debounce, s.Rescan, s.reportError, logger)
	if err != nil {
		return nil, err
	}
	s.watcher = watcher

	for _, dir := range s.paths {
		if err := watcher.add(dir); err != nil {
			// A missing directory is not fatal: the scan simply finds
			// nothing there, and the user can add another path later.
			s.reportError(err)
		}
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	go func() {
		defer close(s.done)
		watcher.run(ctx)
	}()

	s.Rescan()
	logger.Debug("watch session started", "session", s.id, "items", len(items), "paths", len(s.paths))
	return s, nil
}

// ID returns the session's immutable identifier.
func (s *Session) ID() SessionID { return s.id }

// Updates returns the channel carrying scan results. The channel holds only
// the most recent update: each new scan supersedes an unconsumed one
// (last-writer-wins per session).
func (s *Session) Updates() <-chan Update { return s.updates }

// Errs returns the channel carrying non-fatal scan/watch errors. These are
// dismissible; the watcher is still alive after reporting one.
func (s *Session) Errs() <-chan error { return s.errs }

// Items returns a snapshot of the current item list.
func (s *Session) Items() []content.BlockedItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]content.BlockedItem, len(s.items))
	copy(out, s.items)
	return out
}

// AllMatched reports whether every item is currently matched.
func (s *Session) AllMatched() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return content.AllMatched(s.items)
}

// CurrentState returns the matcher's lifecycle state.
func (s *Session) CurrentState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Rescan runs the scan routine over all watched paths and replaces the item
// list wholesale with the result. It is invoked for the initial scan, by the
// background watcher after events settle, and directly by the user. The
// result is authoritative: an item matched by a previous scan flips back to
// unmatched when its file is gone.
func (s *Session) Rescan() {
	s.mu.Lock()
	if s.state == StateConfirmed || s.state == StateAborted {
		s.mu.Unlock()
		return
	}
	items := make([]content.BlockedItem, len(s.items))
	copy(items, s.items)
	paths := make([]string, len(s.paths))
	copy(paths, s.paths)
	s.mu.Unlock()

	scanned := s.scanner.Scan(items, paths)

	s.mu.Lock()
	s.items = scanned
	all := content.AllMatched(scanned)
	if all {
		s.state = StateAllMatched
	} else {
		s.state = StatePartiallyMatched
	}
	update := Update{
		SessionID:  s.id,
		Items:      append([]content.BlockedItem(nil), scanned...),
		AllMatched: all,
	}
	s.mu.Unlock()

	s.publish(update)
}

// AddPath appends one directory to the watched set and rescans so files
// already inside it are picked up. Duplicate paths are not filtered; scans
// are idempotent so a duplicate only costs redundant work.
func (s *Session) AddPath(dir string) error {
	if _, err := os.Stat(dir); err != nil {
		return fmt.Errorf("add watch path: %w", err)
	}

	s.mu.Lock()
	if s.state == StateConfirmed || s.state == StateAborted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	s.paths = append(s.paths, dir)
	s.mu.Unlock()

	if err := s.watcher.add(dir); err != nil {
		s.reportError(err)
	}
	s.Rescan()
	return nil
}

// Confirm is the gated "continue" action: it succeeds only when every item
// is matched, and then copies the matched files into their target folders
// under instanceDir. On copy failure the session stays open for retry.
func (s *Session) Confirm(instanceDir string) error {
	s.mu.Lock()
	if s.state == StateConfirmed || s.state == StateAborted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	if !content.AllMatched(s.items) {
		s.mu.Unlock()
		return ErrNotAllMatched
	}
	items := append([]content.BlockedItem(nil), s.items...)
	s.mu.Unlock()

	if err := CopyMatched(instanceDir, items); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateConfirmed
	s.mu.Unlock()
	return nil
}

// SkipMissing copies only the matched subset into the instance and
// explicitly discards the unresolved items for this run. There is no
// partial carry-forward: the skipped items are simply not installed.
func (s *Session) SkipMissing(instanceDir string) error {
	s.mu.Lock()
	if s.state == StateConfirmed || s.state == StateAborted {
		s.mu.Unlock()
		return ErrSessionClosed
	}
	matched := content.MatchedSubset(s.items)
	s.mu.Unlock()

	if err := CopyMatched(instanceDir, matched); err != nil {
		return err
	}

	s.mu.Lock()
	s.state = StateConfirmed
	s.mu.Unlock()
	return nil
}

// Close aborts the session and stops the background watcher, releasing its
// inotify resources. Closing an already-closed session is a no-op.
func (s *Session) Close() {
	s.mu.Lock()
	if s.state != StateConfirmed {
		s.state = StateAborted
	}
	s.mu.Unlock()

	s.cancel()
	<-s.done
}

// publish delivers an update with last-writer-wins semantics: a pending
// undelivered update is dropped in favour of the new one.
func (s *Session) publish(u Update) {
	for {
		select {
		case s.updates <- u:
			return
		default:
			select {
			case <-s.updates:
			default:
			}
		}
	}
}

// reportError surfaces a non-fatal scan/watch error without blocking; when
// nobody is listening the error is only logged.
func (s *Session) reportError(err error) {
	select {
	case s.errs <- err:
	default:
		s.logger.Warn("watch error dropped", "err", err)
	}
}
