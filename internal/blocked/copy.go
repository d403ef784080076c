// SPDX-License-Identifier: MPL-2.0

package blocked

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/modgate/modgate/pkg/content"
)

// CopyMatched copies every matched item's local file into its target folder
// under instanceDir. The first failure aborts the operation; files already
// copied are left in place and the caller may retry.
func CopyMatched(instanceDir string, items []content.BlockedItem) error {
	for _, item := range items {
		if !item.Matched || item.LocalPath == "" {
			continue
		}

		name := item.Filename
		if name == "" {
			name = filepath.Base(item.LocalPath)
		}

		destDir := filepath.Join(instanceDir, item.TargetFolder)
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", destDir, err)
		}

		if err := copyFile(item.LocalPath, filepath.Join(destDir, name)); err != nil {
			return fmt.Errorf("copy %s into instance: %w", item.Name, err)
		}
	}
	return nil
}

// copyFile copies src to dst, truncating any existing file.
func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close() //nolint:errcheck // read-only handle

	out, err := os.Create(dst)
	if err != nil {
		return err
	}

	if _, err := io.Copy(out, in); err != nil {
		out.Close() //nolint:errcheck // the copy error wins
		return err
	}
	return out.Close()
}
