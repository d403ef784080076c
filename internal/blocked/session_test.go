// SPDX-License-Identifier: MPL-2.0

package blocked

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/modgate/modgate/pkg/content"
)

// waitForUpdate receives updates until pred is satisfied or the deadline
// passes. Events from filesystem watches arrive asynchronously, so tests
// must tolerate intermediate updates.
func waitForUpdate(t *testing.T, s *Session, pred func(Update) bool) Update {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case u := <-s.Updates():
			if pred(u) {
				return u
			}
		case <-deadline:
			t.Fatal("timed out waiting for update")
		}
	}
}

func TestStartSessionRequiresItems(t *testing.T) {
	t.Parallel()

	_, err := StartSession(SessionConfig{WatchDir: t.TempDir()})
	if !errors.Is(err, ErrEmptyManifest) {
		t.Errorf("expected ErrEmptyManifest, got %v", err)
	}
}

func TestStartSessionInitialScanFindsExistingFiles(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	// The file was downloaded before the session began.
	writeFile(t, downloads, "already-there.jar", "payload")

	s, err := StartSession(SessionConfig{
		Items:    []content.BlockedItem{{Name: "Mod", Filename: "already-there.jar"}},
		WatchDir: downloads,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer s.Close()

	u := waitForUpdate(t, s, func(u Update) bool { return u.AllMatched })
	if u.SessionID != s.ID() {
		t.Errorf("update carries foreign session id %s", u.SessionID)
	}
	if s.CurrentState() != StateAllMatched {
		t.Errorf("state = %s, want %s", s.CurrentState(), StateAllMatched)
	}
}

func TestSessionDetectsNewDownload(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	s, err := StartSession(SessionConfig{
		Items:    []content.BlockedItem{{Name: "Mod", Filename: "late-arrival.jar"}},
		WatchDir: downloads,
		Debounce: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer s.Close()

	// Initial scan: nothing matched yet.
	waitForUpdate(t, s, func(u Update) bool { return !u.AllMatched })
	if s.CurrentState() != StatePartiallyMatched {
		t.Errorf("state = %s, want %s", s.CurrentState(), StatePartiallyMatched)
	}

	// Simulate the manual download landing in the watched directory.
	writeFile(t, downloads, "late-arrival.jar", "payload")

	u := waitForUpdate(t, s, func(u Update) bool { return u.AllMatched })
	if !u.Items[0].Matched {
		t.Error("item should be matched after the download appears")
	}
}

func TestSessionUnmatchesDeletedFile(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	path := writeFile(t, downloads, "mod.jar", "payload")

	s, err := StartSession(SessionConfig{
		Items:    []content.BlockedItem{{Name: "Mod", Filename: "mod.jar"}},
		WatchDir: downloads,
		Debounce: 50 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer s.Close()

	waitForUpdate(t, s, func(u Update) bool { return u.AllMatched })

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}

	waitForUpdate(t, s, func(u Update) bool { return !u.AllMatched })
	if s.AllMatched() {
		t.Error("deleting the matched file must flip the item back to unmatched")
	}
}

func TestAddPathPicksUpExistingFiles(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	other := t.TempDir()
	writeFile(t, other, "elsewhere.jar", "payload")

	s, err := StartSession(SessionConfig{
		Items:    []content.BlockedItem{{Name: "Mod", Filename: "elsewhere.jar"}},
		WatchDir: downloads,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer s.Close()

	waitForUpdate(t, s, func(u Update) bool { return !u.AllMatched })

	if err := s.AddPath(other); err != nil {
		t.Fatalf("AddPath: %v", err)
	}

	waitForUpdate(t, s, func(u Update) bool { return u.AllMatched })
}

func TestAddPathRejectsMissingDirectory(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	s, err := StartSession(SessionConfig{
		Items:    []content.BlockedItem{{Name: "Mod", Filename: "mod.jar"}},
		WatchDir: downloads,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer s.Close()

	if err := s.AddPath(filepath.Join(downloads, "nope")); err == nil {
		t.Error("AddPath must reject a nonexistent directory")
	}
}

func TestConfirmGatedOnFullMatch(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	instance := t.TempDir()
	writeFile(t, downloads, "present.jar", "payload")

	s, err := StartSession(SessionConfig{
		Items: []content.BlockedItem{
			{Name: "Present", Filename: "present.jar", TargetFolder: "mods"},
			{Name: "Missing", Filename: "missing.jar", TargetFolder: "mods"},
		},
		WatchDir: downloads,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer s.Close()

	waitForUpdate(t, s, func(u Update) bool { return len(u.Items) == 2 })

	if err := s.Confirm(instance); !errors.Is(err, ErrNotAllMatched) {
		t.Fatalf("Confirm with an unmatched item = %v, want ErrNotAllMatched", err)
	}

	// The session must still be usable after the rejected confirm.
	writeFile(t, downloads, "missing.jar", "payload 2")
	s.Rescan()
	waitForUpdate(t, s, func(u Update) bool { return u.AllMatched })

	if err := s.Confirm(instance); err != nil {
		t.Fatalf("Confirm after full match: %v", err)
	}
	if s.CurrentState() != StateConfirmed {
		t.Errorf("state = %s, want %s", s.CurrentState(), StateConfirmed)
	}

	for _, name := range []string{"present.jar", "missing.jar"} {
		if _, err := os.Stat(filepath.Join(instance, "mods", name)); err != nil {
			t.Errorf("%s not copied into instance: %v", name, err)
		}
	}
}

func TestSkipMissingCopiesMatchedSubset(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	instance := t.TempDir()
	writeFile(t, downloads, "present.jar", "payload")

	s, err := StartSession(SessionConfig{
		Items: []content.BlockedItem{
			{Name: "Present", Filename: "present.jar", TargetFolder: "mods"},
			{Name: "Missing", Filename: "missing.jar", TargetFolder: "mods"},
		},
		WatchDir: downloads,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	defer s.Close()

	waitForUpdate(t, s, func(u Update) bool { return len(u.Items) == 2 })

	if err := s.SkipMissing(instance); err != nil {
		t.Fatalf("SkipMissing: %v", err)
	}

	if _, err := os.Stat(filepath.Join(instance, "mods", "present.jar")); err != nil {
		t.Errorf("matched file not copied: %v", err)
	}
	if _, err := os.Stat(filepath.Join(instance, "mods", "missing.jar")); !errors.Is(err, os.ErrNotExist) {
		t.Error("unmatched file must not appear in the instance")
	}
}

func TestRescanAfterCloseIsNoOp(t *testing.T) {
	t.Parallel()

	downloads := t.TempDir()
	s, err := StartSession(SessionConfig{
		Items:    []content.BlockedItem{{Name: "Mod", Filename: "mod.jar"}},
		WatchDir: downloads,
	})
	if err != nil {
		t.Fatalf("StartSession: %v", err)
	}
	s.Close()

	if s.CurrentState() != StateAborted {
		t.Fatalf("state after Close = %s, want %s", s.CurrentState(), StateAborted)
	}

	s.Rescan()
	if s.CurrentState() != StateAborted {
		t.Error("Rescan after Close must not resurrect the session")
	}

	if err := s.AddPath(downloads); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("AddPath after Close = %v, want ErrSessionClosed", err)
	}
	if err := s.Confirm(t.TempDir()); !errors.Is(err, ErrSessionClosed) {
		t.Errorf("Confirm after Close = %v, want ErrSessionClosed", err)
	}
}

func TestTrackerFencesForeignSessions(t *testing.T) {
	t.Parallel()

	current := SessionID(uuid.New())
	stale := SessionID(uuid.New())

	tr := NewTracker(current)

	accepted := tr.Apply(Update{
		SessionID:  current,
		Items:      []content.BlockedItem{{Name: "Mod", Matched: true}},
		AllMatched: true,
	})
	if !accepted || !tr.AllMatched() {
		t.Fatal("update from the tracked session must be applied")
	}

	// A late event from an older, already-closed session arrives. It must
	// not overwrite the current state.
	accepted = tr.Apply(Update{
		SessionID:  stale,
		Items:      []content.BlockedItem{{Name: "Mod", Matched: false}},
		AllMatched: false,
	})
	if accepted {
		t.Error("foreign-session update must be rejected")
	}
	if !tr.AllMatched() {
		t.Error("rejected update must leave tracker state unchanged")
	}
	if len(tr.Items()) != 1 || !tr.Items()[0].Matched {
		t.Errorf("tracker items clobbered: %v", tr.Items())
	}
}

func TestManifestRoundTrip(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "blocked.toml")

	m := &Manifest{Items: []content.BlockedItem{{
		Name:          "Fancy Shaders",
		WebsiteURL:    "https://example.com/fancy-shaders",
		Hash:          "abc123",
		HashAlgorithm: content.HashSHA1,
		Filename:      "fancy-shaders-1.0.zip",
		PackageID:     "pkg-1",
		FileID:        "file-1",
		TargetFolder:  "shaderpacks",
		Matched:       true,
		LocalPath:     "/tmp/should-not-persist",
	}}}

	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadManifest(path)
	if err != nil {
		t.Fatalf("LoadManifest: %v", err)
	}
	if len(loaded.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(loaded.Items))
	}

	got := loaded.Items[0]
	if got.Name != "Fancy Shaders" || got.Hash != "abc123" || got.TargetFolder != "shaderpacks" {
		t.Errorf("loaded item = %+v", got)
	}
	// Match state is session-scoped and must never survive persistence.
	if got.Matched || got.LocalPath != "" {
		t.Error("match state must not be serialized")
	}
}

func TestLoadManifestEmpty(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	path := filepath.Join(dir, "blocked.toml")
	if err := os.WriteFile(path, []byte("items = []\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	if _, err := LoadManifest(path); !errors.Is(err, ErrEmptyManifest) {
		t.Errorf("expected ErrEmptyManifest, got %v", err)
	}
}

func TestCopyMatchedUsesLocalBasenameFallback(t *testing.T) {
	t.Parallel()

	src := t.TempDir()
	instance := t.TempDir()
	path := writeFile(t, src, "renamed.jar", "payload")

	items := []content.BlockedItem{{
		Name:         "Mod",
		TargetFolder: "mods",
		Matched:      true,
		LocalPath:    path,
	}}

	if err := CopyMatched(instance, items); err != nil {
		t.Fatalf("CopyMatched: %v", err)
	}
	if _, err := os.Stat(filepath.Join(instance, "mods", "renamed.jar")); err != nil {
		t.Errorf("fallback name not used: %v", err)
	}
}
