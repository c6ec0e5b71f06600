package artifact

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// parseChecksums reads a sha256sum-style manifest: "<hex>  <name>" per line.
// Malformed lines are skipped.
func parseChecksums(data []byte) map[string]string {
	result := make(map[string]string)
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) != 2 {
			continue
		}
		result[strings.TrimPrefix(parts[1], "*")] = strings.ToLower(parts[0])
	}
	return result
}

func sha256Hex(data []byte) string {
	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}

func verifyChecksum(name string, data []byte, expectedHex string) error {
	actual := sha256Hex(data)
	if actual != expectedHex {
		return fmt.Errorf("%w: %s: expected %s, got %s", ErrChecksum, name, expectedHex, actual)
	}
	return nil
}

// verifyDir checks files against dir/checksums.txt. A directory without a
// manifest is accepted unverified; a manifest that omits a file is not.
func verifyDir(dir string, files ...string) (bool, error) {
	manifest, err := os.ReadFile(filepath.Join(dir, ChecksumsFilename))
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read checksums: %w", err)
	}

	sums := parseChecksums(manifest)
	for _, name := range files {
		expected, ok := sums[name]
		if !ok {
			return false, fmt.Errorf("%w: no checksum for %s in %s", ErrChecksum, name, ChecksumsFilename)
		}
		data, err := os.ReadFile(filepath.Join(dir, name))
		if err != nil {
			return false, fmt.Errorf("read %s: %w", name, err)
		}
		if err := verifyChecksum(name, data, expected); err != nil {
			return false, err
		}
	}
	return true, nil
}

// formatChecksums renders a manifest in stable name order.
func formatChecksums(sums map[string]string) []byte {
	names := make([]string, 0, len(sums))
	for n := range sums {
		names = append(names, n)
	}
	sort.Strings(names)

	var b strings.Builder
	for _, n := range names {
		fmt.Fprintf(&b, "%s  %s\n", sums[n], n)
	}
	return []byte(b.String())
}
