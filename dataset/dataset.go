// Package dataset defines the record model for translation runs and
// implements language grouping and local fold loading.
//
// A dataset is a set of named folds (splits). Each fold is an ordered
// list of records. Records are free-form JSON objects; the pipeline only
// cares about two configurable fields — the text to translate and the
// language tag — and carries every other field through untouched.
package dataset

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ---------------------------------------------------------------------------
// Records and folds
// ---------------------------------------------------------------------------

// Record is a single dataset row. Arbitrary fields are preserved; the
// text and language fields are addressed by name at run time.
type Record map[string]any

// Field returns the named field as a string. The second return value
// reports whether the field exists and holds a string.
func (r Record) Field(name string) (string, bool) {
	v, ok := r[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// Fold is a named partition of the dataset (e.g. "train", "validation").
type Fold struct {
	Name    string
	Records []Record
}

// ---------------------------------------------------------------------------
// Language grouping
// ---------------------------------------------------------------------------

// LanguageGroup is the ordered subsequence of one fold's records sharing
// a single source-language tag. Offsets into Records are the unit of
// checkpoint resumability, so order matters.
type LanguageGroup struct {
	Lang    string
	Records []Record
}

// GroupByLanguage partitions records by the value of langField, keeping
// the input's relative order within each group. Groups appear in
// first-seen order, which keeps checkpoint numbering reproducible across
// runs over the same data.
//
// A record without langField, or with a non-string value in it, is a
// caller bug and fails the whole grouping.
func GroupByLanguage(records []Record, langField string) ([]LanguageGroup, error) {
	index := make(map[string]int)
	var groups []LanguageGroup

	for i, rec := range records {
		lang, ok := rec.Field(langField)
		if !ok {
			return nil, fmt.Errorf("record %d: missing or non-string language field %q", i, langField)
		}
		gi, seen := index[lang]
		if !seen {
			gi = len(groups)
			index[lang] = gi
			groups = append(groups, LanguageGroup{Lang: lang})
		}
		groups[gi].Records = append(groups[gi].Records, rec)
	}

	return groups, nil
}

// ---------------------------------------------------------------------------
// Local fold loading
// ---------------------------------------------------------------------------

// LoadDir reads a dataset from a directory of fold files. Each *.json
// file must contain a JSON array of records; each *.jsonl file one
// record per line. The fold name is the file name without extension.
// Folds are returned in lexical name order so a run always walks them
// in the same sequence.
func LoadDir(dir string) ([]Fold, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading dataset directory: %w", err)
	}

	var folds []Fold
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		ext := filepath.Ext(name)
		if ext != ".json" && ext != ".jsonl" {
			continue
		}
		path := filepath.Join(dir, name)

		var records []Record
		switch ext {
		case ".json":
			records, err = loadJSONFold(path)
		case ".jsonl":
			records, err = loadJSONLFold(path)
		}
		if err != nil {
			return nil, fmt.Errorf("fold %s: %w", name, err)
		}

		folds = append(folds, Fold{
			Name:    strings.TrimSuffix(name, ext),
			Records: records,
		})
	}

	if len(folds) == 0 {
		return nil, fmt.Errorf("no fold files (*.json, *.jsonl) found in %s", dir)
	}

	sort.Slice(folds, func(i, j int) bool { return folds[i].Name < folds[j].Name })
	return folds, nil
}

func loadJSONFold(path string) ([]Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var records []Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parsing JSON array: %w", err)
	}
	return records, nil
}

func loadJSONLFold(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var records []Record
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var rec Record
		if err := json.Unmarshal([]byte(text), &rec); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return records, nil
}
