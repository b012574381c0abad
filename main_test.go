package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minios-linux/transkit/checkpoint"
	"github.com/minios-linux/transkit/config"
	"github.com/minios-linux/transkit/dataset"
)

// execCommand runs the CLI with args, capturing nothing but the error.
func execCommand(t *testing.T, args ...string) error {
	t.Helper()
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(io.Discard)
	root.SetErr(io.Discard)
	return root.Execute()
}

// emptyDataset writes a dataset directory with one record-free fold, so
// a translate command exercises the full setup path without needing an
// inference server.
func emptyDataset(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "train.json"), []byte("[]"), 0644); err != nil {
		t.Fatal(err)
	}
	return dir
}

func TestTranslateDefaultModelSizes(t *testing.T) {
	data := emptyDataset(t)

	// Every backend must be runnable without --model-size; each
	// subcommand binds its own flag variable so one backend's default
	// cannot leak into another's.
	for _, backend := range []string{"opus", "madlad", "m2m"} {
		err := execCommand(t,
			"translate", backend, "nl", t.TempDir(),
			"--endpoint", "http://localhost:1",
			"--dataset", data,
		)
		if err != nil {
			t.Errorf("%s without --model-size: %v", backend, err)
		}
	}
}

func TestTranslateDefaultsFromConfigFile(t *testing.T) {
	data := emptyDataset(t)
	work := t.TempDir()

	content := fmt.Sprintf("target_lang: nl\ncheckpoint_dir: %s\ndataset: %s\nendpoint: http://localhost:1\n",
		t.TempDir(), data)
	if err := os.WriteFile(filepath.Join(work, config.FileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	old, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	if err := os.Chdir(work); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Chdir(old) })

	// Both positionals come from transkit.yaml.
	if err := execCommand(t, "translate", "m2m"); err != nil {
		t.Fatalf("translate with file defaults: %v", err)
	}
}

func TestTranslateRequiresTargetAndCheckpointDir(t *testing.T) {
	err := execCommand(t, "translate", "m2m", "--endpoint", "http://localhost:1")
	if err == nil || !strings.Contains(err.Error(), "target language required") {
		t.Fatalf("err = %v, want missing target language error", err)
	}

	err = execCommand(t, "translate", "m2m", "nl", "--endpoint", "http://localhost:1")
	if err == nil || !strings.Contains(err.Error(), "checkpoint directory required") {
		t.Fatalf("err = %v, want missing checkpoint directory error", err)
	}
}

func TestWalkCheckpointsOrderAndFiltering(t *testing.T) {
	root := t.TempDir()
	for _, dir := range []string{
		"validation/from_ru",
		"train/from_en",
		"train/from_de",
		"train/not_a_lang_dir",
	} {
		if err := os.MkdirAll(filepath.Join(root, dir), 0755); err != nil {
			t.Fatal(err)
		}
	}
	// Stray file at the root is skipped.
	if err := os.WriteFile(filepath.Join(root, "README"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	groups, err := walkCheckpoints(root)
	if err != nil {
		t.Fatalf("walkCheckpoints: %v", err)
	}

	var got []string
	for _, g := range groups {
		got = append(got, g.fold+"/"+g.lang)
	}
	want := []string{"train/de", "train/en", "validation/ru"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("groups = %v, want %v", got, want)
	}
}

func TestWalkCheckpointsMissingRoot(t *testing.T) {
	groups, err := walkCheckpoints(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("walkCheckpoints: %v", err)
	}
	if len(groups) != 0 {
		t.Errorf("groups = %v, want none", groups)
	}
}

func TestRunCombine(t *testing.T) {
	root := t.TempDir()
	dir := checkpoint.Dir(root, "train", "en")
	if err := checkpoint.Commit(dir, 2, []dataset.Record{
		{"text": "A", "lang": "nl"},
		{"text": "B", "lang": "nl"},
	}); err != nil {
		t.Fatal(err)
	}
	if err := checkpoint.Commit(dir, 3, []dataset.Record{
		{"text": "C", "lang": "nl"},
	}); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "combined.json")
	if err := runCombine(root, out); err != nil {
		t.Fatalf("runCombine: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	var records []dataset.Record
	if err := json.Unmarshal(raw, &records); err != nil {
		t.Fatalf("parsing combined output: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("got %d records, want 3", len(records))
	}
	text, _ := records[2].Field("text")
	if text != "C" {
		t.Errorf("records[2] = %q, want C", text)
	}
}

func TestRunCombineJSONL(t *testing.T) {
	root := t.TempDir()
	dir := checkpoint.Dir(root, "train", "en")
	if err := checkpoint.Commit(dir, 2, []dataset.Record{
		{"text": "A"}, {"text": "B"},
	}); err != nil {
		t.Fatal(err)
	}

	out := filepath.Join(t.TempDir(), "combined.jsonl")
	if err := runCombine(root, out); err != nil {
		t.Fatalf("runCombine: %v", err)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines, want 2", len(lines))
	}
	var rec dataset.Record
	if err := json.Unmarshal([]byte(lines[1]), &rec); err != nil {
		t.Fatalf("line 2 not valid JSON: %v", err)
	}
}

func TestRunCombineEmptyTree(t *testing.T) {
	if err := runCombine(t.TempDir(), "out.json"); err == nil {
		t.Fatal("expected error for checkpoint-free tree")
	}
}
