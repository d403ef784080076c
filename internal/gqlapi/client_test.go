// SPDX-License-Identifier: MPL-2.0

package gqlapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modgate/modgate/pkg/content"
	"github.com/modgate/modgate/pkg/platform"
)

// gqlHandler routes GraphQL queries by shape: the query string identifies
// which of the three client operations is being run.
func gqlHandler(t *testing.T, data func(query string, vars map[string]any) any) http.HandlerFunc {
	t.Helper()
	return func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Query     string         `json:"query"`
			Variables map[string]any `json:"variables"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		resp := map[string]any{"data": data(body.Query, body.Variables)}
		if err := json.NewEncoder(w).Encode(resp); err != nil {
			t.Errorf("encode response: %v", err)
		}
	}
}

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := NewClient(Config{Platform: "test", Endpoint: srv.URL + "/graphql"})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

func TestGetDetails(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, gqlHandler(t, func(query string, vars map[string]any) any {
		if vars["id"] != "pkg-1" {
			t.Errorf("id variable = %v", vars["id"])
		}
		return map[string]any{"package": map[string]any{
			"id":         "pkg-1",
			"name":       "Fancy Shaders",
			"websiteUrl": "https://example.com/fancy-shaders",
			"class":      "shaderpack",
		}}
	}))

	pkg, err := c.GetDetails(context.Background(), "pkg-1")
	if err != nil {
		t.Fatalf("GetDetails: %v", err)
	}
	if pkg.Name != "Fancy Shaders" || pkg.Class != content.ClassShaderPack {
		t.Errorf("package = %+v", pkg)
	}
	if pkg.Platform != "test" {
		t.Errorf("Platform = %q, want test", pkg.Platform)
	}
}

func TestGetDetailsNotFound(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, gqlHandler(t, func(string, map[string]any) any {
		return map[string]any{"package": nil}
	}))

	if _, err := c.GetDetails(context.Background(), "missing"); err == nil {
		t.Error("expected error for unknown package")
	}
}

func TestGetVersionsSortsBySemver(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, gqlHandler(t, func(string, map[string]any) any {
		return map[string]any{"versions": []map[string]any{
			{"id": "v-old", "versionNumber": "1.2.0"},
			{"id": "v-new", "versionNumber": "1.10.0"},
			{"id": "v-mid", "versionNumber": "1.9.3"},
		}}
	}))

	versions, err := c.GetVersions(context.Background(), "pkg-1", "1.21", "fabric")
	if err != nil {
		t.Fatalf("GetVersions: %v", err)
	}

	var order []content.VersionID
	for _, v := range versions {
		order = append(order, v.ID)
	}
	want := []content.VersionID{"v-new", "v-mid", "v-old"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("version order = %v, want %v", order, want)
		}
	}
}

func TestGetVersionsKeepsAPIOrderForNonSemver(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, gqlHandler(t, func(string, map[string]any) any {
		return map[string]any{"versions": []map[string]any{
			{"id": "v-1", "versionNumber": "beta-build-42"},
			{"id": "v-2", "versionNumber": "1.2.0"},
		}}
	}))

	versions, err := c.GetVersions(context.Background(), "pkg-1", "1.21", "fabric")
	if err != nil {
		t.Fatalf("GetVersions: %v", err)
	}
	if versions[0].ID != "v-1" || versions[1].ID != "v-2" {
		t.Errorf("non-semver version list must keep API order, got %v", versions)
	}
}

func TestDownloadWritesAndVerifiesFile(t *testing.T) {
	t.Parallel()

	const payload = "jar bytes"
	digest, err := content.HashSHA1.Sum(strings.NewReader(payload))
	if err != nil {
		t.Fatal(err)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/files/mod.jar", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, payload)
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.Handle("/graphql", gqlHandler(t, func(string, map[string]any) any {
		return map[string]any{
			"package": map[string]any{"class": "mod"},
			"version": map[string]any{"files": []map[string]any{{
				"id":            "f1",
				"name":          "mod.jar",
				"url":           srv.URL + "/files/mod.jar",
				"hash":          digest,
				"hashAlgorithm": "sha1",
				"downloadable":  true,
			}}},
		}
	}))

	c, err := NewClient(Config{Platform: "test", Endpoint: srv.URL + "/graphql"})
	if err != nil {
		t.Fatal(err)
	}

	instance := t.TempDir()
	if err := c.Download(context.Background(), instance, "pkg-1", "v-1"); err != nil {
		t.Fatalf("Download: %v", err)
	}

	got, err := os.ReadFile(filepath.Join(instance, "mods", "mod.jar"))
	if err != nil {
		t.Fatalf("downloaded file missing: %v", err)
	}
	if string(got) != payload {
		t.Errorf("downloaded contents = %q", got)
	}
}

func TestDownloadRejectsHashMismatch(t *testing.T) {
	t.Parallel()

	mux := http.NewServeMux()
	mux.HandleFunc("/files/mod.jar", func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, "corrupted bytes")
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	mux.Handle("/graphql", gqlHandler(t, func(string, map[string]any) any {
		return map[string]any{
			"package": map[string]any{"class": "mod"},
			"version": map[string]any{"files": []map[string]any{{
				"id":            "f1",
				"name":          "mod.jar",
				"url":           srv.URL + "/files/mod.jar",
				"hash":          "0000000000000000000000000000000000000000",
				"hashAlgorithm": "sha1",
				"downloadable":  true,
			}}},
		}
	}))

	c, err := NewClient(Config{Platform: "test", Endpoint: srv.URL + "/graphql"})
	if err != nil {
		t.Fatal(err)
	}

	instance := t.TempDir()
	err = c.Download(context.Background(), instance, "pkg-1", "v-1")
	if err == nil || !strings.Contains(err.Error(), "hash mismatch") {
		t.Fatalf("expected hash mismatch error, got %v", err)
	}
	// The corrupt artifact must not be left behind.
	if _, statErr := os.Stat(filepath.Join(instance, "mods", "mod.jar")); !errors.Is(statErr, os.ErrNotExist) {
		t.Error("corrupt download must be removed")
	}
}

func TestDownloadBlockedFile(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, gqlHandler(t, func(string, map[string]any) any {
		return map[string]any{
			"package": map[string]any{"class": "mod"},
			"version": map[string]any{"files": []map[string]any{{
				"id":           "f1",
				"name":         "restricted.jar",
				"downloadable": false,
			}}},
		}
	}))

	err := c.Download(context.Background(), t.TempDir(), "pkg-1", "v-1")
	if !errors.Is(err, platform.ErrNotDownloadable) {
		t.Errorf("expected ErrNotDownloadable, got %v", err)
	}
}

func TestNewClientRequiresEndpoint(t *testing.T) {
	t.Parallel()

	if _, err := NewClient(Config{Platform: "test"}); err == nil {
		t.Error("expected error for missing endpoint")
	}
}
