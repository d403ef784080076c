// SPDX-License-Identifier: MPL-2.0

// Package gqlapi is the reference platform adapter: a thin client for a
// GraphQL content-platform API. It implements platform.Adapter with no
// search ranking, pagination, or rate limiting of its own — version ordering
// and compatibility filtering are the server's job, with a semver fallback
// applied only when the server returns versions unordered.
package gqlapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/charmbracelet/log"
	"github.com/machinebox/graphql"
	"golang.org/x/mod/semver"

	"github.com/modgate/modgate/pkg/content"
	"github.com/modgate/modgate/pkg/platform"
)

// downloadTimeout bounds a single artifact download. The queue/matcher core
// defines no timeouts of its own; this is a property of the network call.
const downloadTimeout = 10 * time.Minute

type (
	// Config holds the parameters for one platform client.
	Config struct {
		// Platform is the name the client registers under; it is stamped
		// onto every PackageRef the client returns.
		Platform content.Platform

		// Endpoint is the GraphQL API endpoint URL.
		Endpoint string

		// APIKey, when set, is sent as a bearer token.
		APIKey string

		// HTTPClient overrides the client used for both API calls and file
		// downloads (nil = http.DefaultClient).
		HTTPClient *http.Client

		// Logger may be nil to disable logging.
		Logger *log.Logger
	}

	// Client talks to one GraphQL content platform.
	Client struct {
		platform content.Platform
		gql      *graphql.Client
		http     *http.Client
		apiKey   string
		logger   *log.Logger
	}
)

var _ platform.Adapter = (*Client)(nil)

// NewClient creates a client for the platform API at cfg.Endpoint.
func NewClient(cfg Config) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("platform endpoint is required")
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.New(nil)
	}
	return &Client{
		platform: cfg.Platform,
		gql:      graphql.NewClient(cfg.Endpoint, graphql.WithHTTPClient(httpClient)),
		http:     httpClient,
		apiKey:   cfg.APIKey,
		logger:   logger,
	}, nil
}

// wire types mirror the API schema.
type (
	wireFile struct {
		ID            string `json:"id"`
		Name          string `json:"name"`
		URL           string `json:"url"`
		Hash          string `json:"hash"`
		HashAlgorithm string `json:"hashAlgorithm"`
		Downloadable  bool   `json:"downloadable"`
		Size          int64  `json:"size"`
	}

	wireDependency struct {
		PackageID string `json:"packageId"`
		Kind      string `json:"kind"`
	}

	wireVersion struct {
		ID            string           `json:"id"`
		VersionNumber string           `json:"versionNumber"`
		GameVersions  []string         `json:"gameVersions"`
		Loaders       []string         `json:"loaders"`
		Files         []wireFile       `json:"files"`
		Dependencies  []wireDependency `json:"dependencies"`
	}

	wirePackage struct {
		ID         string `json:"id"`
		Name       string `json:"name"`
		IconURL    string `json:"iconUrl"`
		WebsiteURL string `json:"websiteUrl"`
		Class      string `json:"class"`
	}
)

const detailsQuery = `
	query ($id: ID!) {
		package(id: $id) {
			id
			name
			iconUrl
			websiteUrl
			class
		}
	}`

const versionsQuery = `
	query ($id: ID!, $gameVersion: String, $loader: String) {
		versions(packageId: $id, gameVersion: $gameVersion, loader: $loader) {
			id
			versionNumber
			gameVersions
			loaders
			files {
				id
				name
				url
				hash
				hashAlgorithm
				downloadable
				size
			}
			dependencies {
				packageId
				kind
			}
		}
	}`

const fileQuery = `
	query ($id: ID!, $versionId: ID!) {
		package(id: $id) {
			class
		}
		version(id: $versionId) {
			files {
				id
				name
				url
				hash
				hashAlgorithm
				downloadable
				size
			}
		}
	}`

// GetDetails fetches a package's identity.
func (c *Client) GetDetails(ctx context.Context, id content.PackageID) (*content.PackageRef, error) {
	req := c.newRequest(detailsQuery)
	req.Var("id", string(id))

	var resp struct {
		Package *wirePackage `json:"package"`
	}
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("query package %s: %w", id, err)
	}
	if resp.Package == nil {
		return nil, fmt.Errorf("package %s not found", id)
	}

	pkg := resp.Package.toRef(c.platform)
	return &pkg, nil
}

// GetVersions fetches the releases of a package compatible with the game
// version and loader, most-compatible-first.
func (c *Client) GetVersions(ctx context.Context, id content.PackageID, gv content.GameVersion, loader content.LoaderID) ([]content.VersionRef, error) {
	req := c.newRequest(versionsQuery)
	req.Var("id", string(id))
	req.Var("gameVersion", string(gv))
	req.Var("loader", string(loader))

	var resp struct {
		Versions []wireVersion `json:"versions"`
	}
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return nil, fmt.Errorf("query versions for %s: %w", id, err)
	}

	versions := make([]content.VersionRef, 0, len(resp.Versions))
	for _, v := range resp.Versions {
		versions = append(versions, v.toRef())
	}
	sortVersions(versions)
	return versions, nil
}

// Download fetches the version's primary file into the package's content
// folder under instanceDir. Files the platform refuses to serve yield
// platform.ErrNotDownloadable.
func (c *Client) Download(ctx context.Context, instanceDir string, pkg content.PackageID, ver content.VersionID) error {
	req := c.newRequest(fileQuery)
	req.Var("id", string(pkg))
	req.Var("versionId", string(ver))

	var resp struct {
		Package *wirePackage `json:"package"`
		Version *wireVersion `json:"version"`
	}
	if err := c.gql.Run(ctx, req, &resp); err != nil {
		return fmt.Errorf("query file for %s@%s: %w", pkg, ver, err)
	}
	if resp.Version == nil || len(resp.Version.Files) == 0 {
		return fmt.Errorf("version %s of %s has no files", ver, pkg)
	}

	file := resp.Version.Files[0]
	if !file.Downloadable {
		return fmt.Errorf("%s: %w", file.Name, platform.ErrNotDownloadable)
	}

	folder := content.ContentClass("").Folder()
	if resp.Package != nil {
		folder = content.ContentClass(resp.Package.Class).Folder()
	}

	return c.fetchFile(ctx, file, filepath.Join(instanceDir, folder))
}

// fetchFile downloads one artifact into destDir and verifies its identity
// hash when the platform published one.
func (c *Client) fetchFile(ctx context.Context, file wireFile, destDir string) error {
	ctx, cancel := context.WithTimeout(ctx, downloadTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, file.URL, nil)
	if err != nil {
		return fmt.Errorf("build download request: %w", err)
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", file.Name, err)
	}
	defer resp.Body.Close() //nolint:errcheck // response body

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: unexpected status %s", file.Name, resp.Status)
	}

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return fmt.Errorf("create content folder: %w", err)
	}

	destPath := filepath.Join(destDir, file.Name)
	out, err := os.Create(destPath)
	if err != nil {
		return fmt.Errorf("create %s: %w", destPath, err)
	}

	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()         //nolint:errcheck // the copy error wins
		os.Remove(destPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("write %s: %w", destPath, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close %s: %w", destPath, err)
	}

	if file.Hash != "" {
		algo := content.HashAlgorithm(file.HashAlgorithm)
		if algo == "" {
			algo = content.HashSHA1
		}
		digest, err := algo.SumFile(destPath)
		if err != nil {
			return fmt.Errorf("verify %s: %w", destPath, err)
		}
		if !content.HashEqual(digest, file.Hash) {
			os.Remove(destPath) //nolint:errcheck // reject corrupt artifact
			return fmt.Errorf("download %s: hash mismatch (got %s, want %s)", file.Name, digest, file.Hash)
		}
	}

	c.logger.Debug("downloaded", "file", file.Name, "dest", destDir)
	return nil
}

func (c *Client) newRequest(query string) *graphql.Request {
	req := graphql.NewRequest(query)
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	return req
}

func (p wirePackage) toRef(plat content.Platform) content.PackageRef {
	return content.PackageRef{
		ID:         content.PackageID(p.ID),
		Platform:   plat,
		Name:       p.Name,
		IconURL:    p.IconURL,
		WebsiteURL: p.WebsiteURL,
		Class:      content.ContentClass(p.Class),
	}
}

func (v wireVersion) toRef() content.VersionRef {
	ref := content.VersionRef{
		ID:            content.VersionID(v.ID),
		VersionNumber: v.VersionNumber,
	}
	for _, gv := range v.GameVersions {
		ref.GameVersions = append(ref.GameVersions, content.GameVersion(gv))
	}
	for _, l := range v.Loaders {
		ref.Loaders = append(ref.Loaders, content.LoaderID(l))
	}
	for _, f := range v.Files {
		ref.Files = append(ref.Files, content.FileRef{
			ID:            content.FileID(f.ID),
			Name:          f.Name,
			URL:           f.URL,
			Hash:          f.Hash,
			HashAlgorithm: content.HashAlgorithm(f.HashAlgorithm),
			Downloadable:  f.Downloadable,
			Size:          f.Size,
		})
	}
	for _, d := range v.Dependencies {
		ref.Dependencies = append(ref.Dependencies, content.DependencyEdge{
			TargetPackageID: content.PackageID(d.PackageID),
			Kind:            content.DependencyKind(d.Kind),
		})
	}
	return ref
}

// sortVersions orders versions newest-first by semver when every version
// number parses as one; otherwise the API order is preserved.
func sortVersions(versions []content.VersionRef) {
	for _, v := range versions {
		if !semver.IsValid(canonical(v.VersionNumber)) {
			return
		}
	}
	sort.SliceStable(versions, func(i, j int) bool {
		return semver.Compare(canonical(versions[i].VersionNumber), canonical(versions[j].VersionNumber)) > 0
	})
}

func canonical(v string) string {
	if len(v) > 0 && v[0] != 'v' {
		return "v" + v
	}
	return v
}
