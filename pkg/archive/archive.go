// SPDX-License-Identifier: Apache-2.0
// Copyright Authors of Cilium

package archive

import (
	"archive/zip"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/flate"
)

// ZipDirectory compresses the contents of dir into a sibling file named
// <dir>.zip and returns the archive path. Entries are stored relative to
// dir, so unpacking reproduces the directory contents. The directory itself
// is left in place; removal is the caller's decision.
func ZipDirectory(dir string) (string, error) {
	zipPath := dir + ".zip"

	f, err := os.Create(zipPath)
	if err != nil {
		return "", fmt.Errorf("failed to create archive %s: %w", zipPath, err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestSpeed)
	})

	err = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}

		w, err := zw.Create(filepath.ToSlash(rel))
		if err != nil {
			return err
		}

		src, err := os.Open(path)
		if err != nil {
			return err
		}
		defer src.Close()

		_, err = io.Copy(w, src)
		return err
	})
	if err != nil {
		zw.Close()
		return "", fmt.Errorf("failed to archive %s: %w", dir, err)
	}

	if err := zw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize archive %s: %w", zipPath, err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to close archive %s: %w", zipPath, err)
	}

	slog.Debug("archived directory", "dir", dir, "archive", zipPath)
	return zipPath, nil
}
