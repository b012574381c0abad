package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadNonExistent(t *testing.T) {
	f, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f != nil {
		t.Errorf("got %+v, want nil for missing file", f)
	}
}

func TestLoadAndMerge(t *testing.T) {
	dir := t.TempDir()
	content := `endpoint: http://gpu-box:8090
target_lang: nl
dataset: OpenAssistant/oasst1
batch_size: 20
checkpoint_n: 400
`
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	f, err := Load(dir)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if f.Endpoint != "http://gpu-box:8090" || f.BatchSize != 20 {
		t.Errorf("parsed = %+v", f)
	}

	// Flags win; file fills the gaps.
	flags := &File{BatchSize: 5}
	flags.Merge(f)
	if flags.BatchSize != 5 {
		t.Errorf("flag value overridden: %d", flags.BatchSize)
	}
	if flags.Endpoint != "http://gpu-box:8090" {
		t.Errorf("file value not merged: %q", flags.Endpoint)
	}
	if flags.CheckpointEvery != 400 {
		t.Errorf("checkpoint_n not merged: %d", flags.CheckpointEvery)
	}
}

func TestLoadRejectsNegativeValues(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("batch_size: -1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for negative batch_size")
	}
}

func TestLoadBadYAML(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, FileName), []byte("::: not yaml"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(dir); err == nil {
		t.Fatal("expected error for malformed YAML")
	}
}

func TestMergeNilSource(t *testing.T) {
	flags := &File{TargetLang: "nl"}
	flags.Merge(nil)
	if flags.TargetLang != "nl" {
		t.Errorf("Merge(nil) mutated receiver: %+v", flags)
	}
}
