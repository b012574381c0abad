// Package checkpoint persists translation progress as immutable JSON
// files, one directory per (fold, source language) pair.
//
// File layout: <root>/<fold>/from_<lang>/upto_<offset>.json, each file a
// JSON array of fully translated records. A file named upto_N.json is
// authoritative proof that records [0, N) of the group have been
// processed; the file with the highest N determines where a restarted
// run resumes. Files are written once and never mutated, so the tree is
// safe to read concurrently by external tooling.
package checkpoint

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"

	"github.com/minios-linux/transkit/dataset"
)

// filePattern matches checkpoint file names and captures the offset.
var filePattern = regexp.MustCompile(`^upto_(\d+)\.json$`)

// FileName returns the checkpoint file name for a cumulative offset.
func FileName(offset int) string {
	return fmt.Sprintf("upto_%d.json", offset)
}

// Dir returns the checkpoint directory for one (fold, source language)
// pair under the given checkpoint root.
func Dir(root, fold, sourceLang string) string {
	return filepath.Join(root, fold, "from_"+sourceLang)
}

// ---------------------------------------------------------------------------
// Resume
// ---------------------------------------------------------------------------

// ResumeOffset returns the highest offset recorded by any checkpoint in
// dir, or 0 when the directory is missing, empty, or holds no matching
// files. Non-matching file names are ignored silently.
func ResumeOffset(dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return 0, nil
		}
		return 0, fmt.Errorf("listing checkpoints: %w", err)
	}

	max := 0
	for _, e := range entries {
		m := filePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		if n > max {
			max = n
		}
	}
	return max, nil
}

// Offsets returns all checkpoint offsets present in dir, ascending.
func Offsets(dir string) ([]int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}

	var offsets []int
	for _, e := range entries {
		m := filePattern.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if n, err := strconv.Atoi(m[1]); err == nil {
			offsets = append(offsets, n)
		}
	}
	sort.Ints(offsets)
	return offsets, nil
}

// ---------------------------------------------------------------------------
// Commit
// ---------------------------------------------------------------------------

// Commit writes records as upto_<offset>.json in dir, creating the
// directory if needed. The file is staged under a temporary name and
// renamed into place, so a reader can never observe a partially written
// checkpoint. Offsets are monotonically increasing within a run;
// committing an offset twice is outside the contract.
//
// records may be empty: a group whose language pair is unsupported still
// commits its final offset so the next run does not retry it forever.
func Commit(dir string, offset int, records []dataset.Record) error {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating checkpoint directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".upto_*.tmp")
	if err != nil {
		return fmt.Errorf("staging checkpoint: %w", err)
	}
	tmpName := tmp.Name()

	enc := json.NewEncoder(tmp)
	enc.SetEscapeHTML(false)
	if records == nil {
		records = []dataset.Record{}
	}
	if err := enc.Encode(records); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("encoding checkpoint: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("syncing checkpoint: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing checkpoint: %w", err)
	}

	final := filepath.Join(dir, FileName(offset))
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("publishing checkpoint: %w", err)
	}
	return nil
}

// ---------------------------------------------------------------------------
// Read-back
// ---------------------------------------------------------------------------

// Load reads a single checkpoint file.
func Load(dir string, offset int) ([]dataset.Record, error) {
	data, err := os.ReadFile(filepath.Join(dir, FileName(offset)))
	if err != nil {
		return nil, err
	}
	var records []dataset.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", FileName(offset), err)
	}
	return records, nil
}

// Merged concatenates all checkpoints in dir in ascending offset order,
// reproducing the group's translated output as one list.
func Merged(dir string) ([]dataset.Record, error) {
	offsets, err := Offsets(dir)
	if err != nil {
		return nil, err
	}

	var merged []dataset.Record
	for _, off := range offsets {
		records, err := Load(dir, off)
		if err != nil {
			return nil, err
		}
		merged = append(merged, records...)
	}
	return merged, nil
}
