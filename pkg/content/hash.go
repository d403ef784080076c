// SPDX-License-Identifier: MPL-2.0

package content

import (
	"crypto/md5"  //nolint:gosec // platform-supplied identity hash, not a security boundary
	"crypto/sha1" //nolint:gosec // same as above
	"crypto/sha256"
	"crypto/sha512"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"strings"

	"github.com/zeebo/xxh3"
)

// HashAlgorithm names the digest used to establish a file's identity.
type HashAlgorithm string

// Supported hash algorithms. Platforms publish sha1/sha512 (Modrinth) or
// md5 (CurseForge); xxh3 is used for locally-generated manifests.
const (
	HashSHA1   HashAlgorithm = "sha1"
	HashSHA256 HashAlgorithm = "sha256"
	HashSHA512 HashAlgorithm = "sha512"
	HashMD5    HashAlgorithm = "md5"
	HashXXH3   HashAlgorithm = "xxh3"
)

// ErrUnknownHashAlgorithm is returned when an algorithm name is not one of
// the supported constants.
var ErrUnknownHashAlgorithm = fmt.Errorf("unknown hash algorithm")

// newHasher returns a fresh hash.Hash for the algorithm.
func (a HashAlgorithm) newHasher() (hash.Hash, error) {
	switch a {
	case HashSHA1:
		return sha1.New(), nil //nolint:gosec // identity matching only
	case HashSHA256:
		return sha256.New(), nil
	case HashSHA512:
		return sha512.New(), nil
	case HashMD5:
		return md5.New(), nil //nolint:gosec // identity matching only
	case HashXXH3:
		return xxh3.New(), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownHashAlgorithm, a)
	}
}

// Sum computes the hex-encoded digest of r.
func (a HashAlgorithm) Sum(r io.Reader) (string, error) {
	h, err := a.newHasher()
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(h, r); err != nil {
		return "", fmt.Errorf("hash content: %w", err)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SumFile computes the hex-encoded digest of the file at path.
func (a HashAlgorithm) SumFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close() //nolint:errcheck // read-only handle

	return a.Sum(f)
}

// HashEqual compares two hex digests case-insensitively. Empty digests never
// compare equal.
func HashEqual(a, b string) bool {
	if a == "" || b == "" {
		return false
	}
	return strings.EqualFold(a, b)
}
