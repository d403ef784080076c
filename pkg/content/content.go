// SPDX-License-Identifier: MPL-2.0

// Package content defines the shared records for acquirable game content:
// package and version identities, dependency edges, queue entries, and the
// blocked-item records used by the manual-download reconciliation workflow.
package content

import "fmt"

type (
	// PackageID identifies a searchable content item on its platform.
	PackageID string

	// VersionID identifies one downloadable release of a package.
	VersionID string

	// FileID identifies a single file within a version.
	FileID string

	// Platform names the content platform a package belongs to
	// (e.g., "modrinth", "curseforge").
	Platform string

	// GameVersion is a game release string a version is compatible with.
	GameVersion string

	// LoaderID names a mod loader a version is compatible with
	// (e.g., "fabric", "forge").
	LoaderID string

	// DependencyKind classifies a dependency edge.
	DependencyKind string

	// ContentClass classifies what kind of content a package is and
	// determines the folder inside the instance the content installs into.
	ContentClass string
)

// Dependency kinds. Only required edges are ever auto-resolved.
const (
	DependencyRequired     DependencyKind = "required"
	DependencyOptional     DependencyKind = "optional"
	DependencyIncompatible DependencyKind = "incompatible"
	DependencyEmbedded     DependencyKind = "embedded"
)

// Content classes.
const (
	ClassMod          ContentClass = "mod"
	ClassModpack      ContentClass = "modpack"
	ClassResourcePack ContentClass = "resourcepack"
	ClassShaderPack   ContentClass = "shaderpack"
)

type (
	// PackageRef is the identity of a searchable content item.
	PackageRef struct {
		ID         PackageID
		Platform   Platform
		Name       string
		IconURL    string
		WebsiteURL string
		Class      ContentClass
	}

	// FileRef is a single downloadable file belonging to a version.
	// Downloadable is false when the platform refuses to serve the file
	// programmatically and the user must fetch it manually.
	FileRef struct {
		ID            FileID
		Name          string
		URL           string
		Hash          string
		HashAlgorithm HashAlgorithm
		Downloadable  bool
		Size          int64
	}

	// VersionRef is one downloadable release of a package, carrying
	// compatibility metadata and dependency edges.
	VersionRef struct {
		ID            VersionID
		VersionNumber string
		GameVersions  []GameVersion
		Loaders       []LoaderID
		Files         []FileRef
		Dependencies  []DependencyEdge
	}

	// DependencyEdge links a version to another package it relates to.
	DependencyEdge struct {
		TargetPackageID PackageID
		Kind            DependencyKind
	}

	// QueueEntry is a top-level acquisition with its one-level resolved
	// dependency list. Nested entries always carry an empty Dependencies
	// slice; dependencies of dependencies are deliberately not expanded.
	QueueEntry struct {
		Package      PackageRef
		Version      VersionRef
		Dependencies []QueueEntry
	}

	// BlockedItem is a file the platform will not serve programmatically.
	// It is matched against manually-downloaded files by hash, or by exact
	// filename when no hash is recorded.
	BlockedItem struct {
		Name          string        `toml:"name"`
		WebsiteURL    string        `toml:"website_url,omitempty"`
		Hash          string        `toml:"hash,omitempty"`
		HashAlgorithm HashAlgorithm `toml:"hash_algorithm,omitempty"`
		Filename      string        `toml:"filename,omitempty"`
		PackageID     PackageID     `toml:"package_id"`
		FileID        FileID        `toml:"file_id,omitempty"`
		TargetFolder  string        `toml:"target_folder"`
		Matched       bool          `toml:"-"`
		LocalPath     string        `toml:"-"`
	}
)

// String returns the string form of the package id.
func (id PackageID) String() string { return string(id) }

// String returns the string form of the version id.
func (id VersionID) String() string { return string(id) }

// String returns the string form of the platform name.
func (p Platform) String() string { return string(p) }

// Folder returns the instance subfolder this content class installs into.
func (c ContentClass) Folder() string {
	switch c {
	case ClassResourcePack:
		return "resourcepacks"
	case ClassShaderPack:
		return "shaderpacks"
	case ClassModpack:
		return "."
	default:
		return "mods"
	}
}

// RequiredDependencies returns the dependency edges that must be satisfied
// before this version can be used.
func (v VersionRef) RequiredDependencies() []DependencyEdge {
	var out []DependencyEdge
	for _, d := range v.Dependencies {
		if d.Kind == DependencyRequired {
			out = append(out, d)
		}
	}
	return out
}

// PrimaryFile returns the first file of the version, which platforms use as
// the canonical artifact. ok is false when the version has no files.
func (v VersionRef) PrimaryFile() (FileRef, bool) {
	if len(v.Files) == 0 {
		return FileRef{}, false
	}
	return v.Files[0], true
}

// BlockedItemFor builds the blocked-item record for a file the platform
// refuses to serve, attributing it to the given package.
func BlockedItemFor(pkg PackageRef, f FileRef) BlockedItem {
	return BlockedItem{
		Name:          pkg.Name,
		WebsiteURL:    pkg.WebsiteURL,
		Hash:          f.Hash,
		HashAlgorithm: f.HashAlgorithm,
		Filename:      f.Name,
		PackageID:     pkg.ID,
		FileID:        f.ID,
		TargetFolder:  pkg.Class.Folder(),
	}
}

// AllMatched reports whether every item in the list has been matched.
// An empty list is trivially all-matched.
func AllMatched(items []BlockedItem) bool {
	for _, it := range items {
		if !it.Matched {
			return false
		}
	}
	return true
}

// MatchedSubset returns only the matched items, preserving order.
func MatchedSubset(items []BlockedItem) []BlockedItem {
	out := make([]BlockedItem, 0, len(items))
	for _, it := range items {
		if it.Matched {
			out = append(out, it)
		}
	}
	return out
}

// String returns a short human-readable representation of the entry.
func (e QueueEntry) String() string {
	return fmt.Sprintf("%s@%s (%d deps)", e.Package.Name, e.Version.VersionNumber, len(e.Dependencies))
}
