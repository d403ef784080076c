// SPDX-License-Identifier: MPL-2.0

// Package blocked implements the blocked-content matcher: a session-scoped,
// event-driven watcher that scans directories for files matching a
// restricted-content manifest and gates the user's "continue" action on a
// full match.
package blocked

import (
	"io/fs"
	"path/filepath"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charmbracelet/log"

	"github.com/modgate/modgate/pkg/content"
)

// defaultPatterns are the file globs considered candidates for matching.
// Platforms distribute mods and packs as jar or zip archives.
var defaultPatterns = []string{"*.jar", "*.zip", "*.litemod", "*.mrpack"}

// defaultIgnores excludes files that are never manual downloads: partial
// downloads and OS metadata.
var defaultIgnores = []string{"*.part", "*.crdownload", "*.tmp", ".DS_Store"}

// Scanner performs one synchronous matching pass over a set of directories.
// A Scanner carries no per-session state and may be shared across scans.
type Scanner struct {
	// Patterns are glob patterns (matched against the bare filename) that
	// select candidate files. Empty means the built-in defaults.
	Patterns []string

	// Ignore are glob patterns for filenames that are never considered.
	// Merged with the built-in defaults.
	Ignore []string

	// Logger may be nil to disable scan logging.
	Logger *log.Logger
}

// Scan recomputes the match state of every item from scratch against the
// files currently present under paths. The result is authoritative: an item
// previously matched comes back unmatched when its file is no longer found.
//
// A file matches an item when its digest (computed with the item's
// algorithm) equals the item's recorded hash, or — when the item records no
// hash — when the bare filename matches exactly. Unreadable files and
// directories are skipped; a scan never fails as a whole.
func (s *Scanner) Scan(items []content.BlockedItem, paths []string) []content.BlockedItem {
	logger := s.Logger
	if logger == nil {
		logger = log.New(nil)
	}

	out := make([]content.BlockedItem, len(items))
	copy(out, items)
	for i := range out {
		out[i].Matched = false
		out[i].LocalPath = ""
	}

	// Digests are cached per file so several items sharing an algorithm
	// hash each candidate at most once.
	digests := make(map[string]map[content.HashAlgorithm]string)

	for _, dir := range paths {
		walkErr := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				logger.Warn("scan: skipping inaccessible path", "path", path, "err", err)
				return nil //nolint:nilerr // best-effort scan
			}
			if d.IsDir() {
				return nil
			}
			name := d.Name()
			if s.ignored(name) || !s.candidate(name) {
				return nil
			}

			for i := range out {
				if out[i].Matched {
					continue
				}
				ok, matchErr := s.matches(&out[i], path, name, digests)
				if matchErr != nil {
					logger.Warn("scan: cannot hash file", "path", path, "err", matchErr)
					continue
				}
				if ok {
					out[i].Matched = true
					out[i].LocalPath = path
				}
			}
			return nil
		})
		if walkErr != nil {
			logger.Warn("scan: walk failed", "dir", dir, "err", walkErr)
		}
	}

	return out
}

// matches applies the matching rule for a single item against a single file.
func (s *Scanner) matches(item *content.BlockedItem, path, name string, digests map[string]map[content.HashAlgorithm]string) (bool, error) {
	if item.Hash == "" {
		return item.Filename != "" && item.Filename == name, nil
	}

	algo := item.HashAlgorithm
	if algo == "" {
		algo = content.HashSHA1
	}

	cached, ok := digests[path]
	if !ok {
		cached = make(map[content.HashAlgorithm]string)
		digests[path] = cached
	}
	digest, ok := cached[algo]
	if !ok {
		var err error
		digest, err = algo.SumFile(path)
		if err != nil {
			return false, err
		}
		cached[algo] = digest
	}

	return content.HashEqual(digest, item.Hash), nil
}

func (s *Scanner) candidate(name string) bool {
	patterns := s.Patterns
	if len(patterns) == 0 {
		patterns = defaultPatterns
	}
	for _, pat := range patterns {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}

func (s *Scanner) ignored(name string) bool {
	for _, pat := range append(defaultIgnores, s.Ignore...) {
		if ok, err := doublestar.Match(pat, name); err == nil && ok {
			return true
		}
	}
	return false
}
