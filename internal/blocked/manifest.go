// SPDX-License-Identifier: MPL-2.0

package blocked

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"

	"github.com/modgate/modgate/pkg/content"
)

// Manifest is the on-disk form of a blocked-content manifest: the list of
// platform-restricted files the user must download manually. Match state is
// deliberately not serialized; it is recomputed by every scan.
type Manifest struct {
	Items []content.BlockedItem `toml:"items"`
}

// LoadManifest reads a TOML manifest from path.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	var m Manifest
	if err := toml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	if len(m.Items) == 0 {
		return nil, fmt.Errorf("manifest %s: %w", path, ErrEmptyManifest)
	}
	return &m, nil
}

// Save writes the manifest as TOML to path.
func (m *Manifest) Save(path string) error {
	data, err := toml.Marshal(m)
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}
