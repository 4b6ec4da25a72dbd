// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package archive

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ChecksumFileName is the standard name for checksum files.
const ChecksumFileName = "checksums.txt"

// WriteChecksums creates a checksums.txt file inside dir containing the
// SHA256 checksum of every regular file already present in dir, in
// sha256sum format with paths relative to dir.
func WriteChecksums(ctx context.Context, dir string) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("context cancelled: %w", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	checksums := make([]string, 0, len(entries))
	for _, entry := range entries {
		if !entry.Type().IsRegular() || entry.Name() == ChecksumFileName {
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, entry.Name()))
		if err != nil {
			return fmt.Errorf("failed to read %s for checksum: %w", entry.Name(), err)
		}

		hash := sha256.Sum256(data)
		checksums = append(checksums, fmt.Sprintf("%s  %s", hex.EncodeToString(hash[:]), entry.Name()))
	}
	sort.Strings(checksums)

	checksumPath := filepath.Join(dir, ChecksumFileName)
	content := strings.Join(checksums, "\n") + "\n"

	if err := os.WriteFile(checksumPath, []byte(content), 0600); err != nil {
		return fmt.Errorf("failed to write checksums: %w", err)
	}

	return nil
}
