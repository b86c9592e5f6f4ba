// Package archive packages function source files into the zip format the
// Lambda control plane accepts as a deployable unit.
package archive

import (
	"archive/zip"
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// ZipFiles packages the given files into an in-memory zip archive. Each file
// is stored under its base name. Entries are written in sorted order so the
// same inputs produce the same archive.
func ZipFiles(paths ...string) ([]byte, error) {
	if len(paths) == 0 {
		return nil, fmt.Errorf("no files to package")
	}

	sorted := make([]string, len(paths))
	copy(sorted, paths)
	sort.Strings(sorted)

	var buf bytes.Buffer
	w := zip.NewWriter(&buf)

	for _, path := range sorted {
		content, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}

		header := &zip.FileHeader{
			Name:   filepath.Base(path),
			Method: zip.Deflate,
		}
		// Lambda requires the entry to be readable by the runtime user.
		header.SetMode(0o755)

		entry, err := w.CreateHeader(header)
		if err != nil {
			return nil, fmt.Errorf("failed to create zip entry %s: %w", header.Name, err)
		}
		if _, err := entry.Write(content); err != nil {
			return nil, fmt.Errorf("failed to write zip entry %s: %w", header.Name, err)
		}
	}

	if err := w.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	return buf.Bytes(), nil
}
