// Package datafile reads and writes the JSON array data files the pipeline
// produces and the seeder consumes.
package datafile

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/seedforge/seedforge/pkg/models"
)

// Exists reports whether a data file is present at path.
func Exists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

// Load reads a JSON array of records from path. A missing file yields an
// empty slice and no error; callers that require the file check Exists
// first. A file holding a single object is normalized to a one-element
// slice. A UTF-8 BOM is tolerated.
func Load(path string) ([]models.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	data = bytes.TrimPrefix(data, []byte("\xef\xbb\xbf"))
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var records []models.Record
	if err := json.Unmarshal(data, &records); err == nil {
		return records, nil
	}

	var single models.Record
	if err := json.Unmarshal(data, &single); err == nil {
		return []models.Record{single}, nil
	}

	return nil, fmt.Errorf("parse %s: not a JSON array of objects", path)
}

// Save writes records to path as an indented JSON array, creating parent
// directories as needed. The write goes through a temp file and rename so
// a crash never leaves a half-written data file.
func Save(path string, records []models.Record) error {
	if records == nil {
		records = []models.Record{}
	}

	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal records: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", tmpName, err)
	}

	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename to %s: %w", path, err)
	}

	return nil
}
