package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/minios-linux/transkit/dataset"
)

func TestResumeOffsetMissingDir(t *testing.T) {
	got, err := ResumeOffset(filepath.Join(t.TempDir(), "nope"))
	if err != nil {
		t.Fatalf("ResumeOffset: %v", err)
	}
	if got != 0 {
		t.Errorf("got %d, want 0 for missing directory", got)
	}
}

func TestResumeOffsetIgnoresStrayFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{
		"upto_400.json",
		"upto_800.json",
		"upto_1200.json",
		"notes.txt",
		"upto_.json",
		"upto_900.json.bak",
		".upto_123.tmp",
	} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	got, err := ResumeOffset(dir)
	if err != nil {
		t.Fatalf("ResumeOffset: %v", err)
	}
	if got != 1200 {
		t.Errorf("got %d, want 1200", got)
	}
}

func TestOffsetsSorted(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"upto_1000.json", "upto_200.json", "upto_600.json"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("[]"), 0644); err != nil {
			t.Fatal(err)
		}
	}

	offsets, err := Offsets(dir)
	if err != nil {
		t.Fatalf("Offsets: %v", err)
	}
	want := []int{200, 600, 1000}
	if len(offsets) != len(want) {
		t.Fatalf("got %v, want %v", offsets, want)
	}
	for i := range want {
		if offsets[i] != want[i] {
			t.Errorf("offsets[%d] = %d, want %d", i, offsets[i], want[i])
		}
	}
}

func TestCommitAndLoadRoundTrip(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "train", "from_ru")
	records := []dataset.Record{
		{"lang": "nl", "text": "hallo wereld", "id": "a"},
		{"lang": "nl", "text": "日本語のテキスト — ünïcödé <&>", "id": "b"},
	}

	if err := Commit(dir, 10, records); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	got, err := Load(dir, 10)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("got %d records, want 2", len(got))
	}
	// Unicode and HTML-sensitive characters must survive verbatim.
	text, _ := got[1].Field("text")
	if text != "日本語のテキスト — ünïcödé <&>" {
		t.Errorf("text = %q, unicode not preserved", text)
	}
}

func TestCommitDoesNotEscapeHTML(t *testing.T) {
	dir := t.TempDir()
	if err := Commit(dir, 5, []dataset.Record{{"text": "<b>&amp;</b>"}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	raw, err := os.ReadFile(filepath.Join(dir, "upto_5.json"))
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), `\u003c`) {
		t.Errorf("checkpoint contains escaped HTML: %s", raw)
	}
	if !strings.Contains(string(raw), "<b>&amp;</b>") {
		t.Errorf("checkpoint does not contain verbatim markup: %s", raw)
	}
}

func TestCommitEmptyRecords(t *testing.T) {
	dir := t.TempDir()
	if err := Commit(dir, 7, nil); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	// Must be a valid empty JSON array, not null.
	raw, err := os.ReadFile(filepath.Join(dir, "upto_7.json"))
	if err != nil {
		t.Fatal(err)
	}
	var arr []dataset.Record
	if err := json.Unmarshal(raw, &arr); err != nil {
		t.Fatalf("parsing empty checkpoint: %v", err)
	}
	if arr == nil || len(arr) != 0 {
		t.Errorf("got %v, want empty array", arr)
	}

	resume, err := ResumeOffset(dir)
	if err != nil {
		t.Fatal(err)
	}
	if resume != 7 {
		t.Errorf("resume = %d, want 7", resume)
	}
}

func TestCommitLeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	if err := Commit(dir, 100, []dataset.Record{{"text": "x"}}); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 || entries[0].Name() != "upto_100.json" {
		names := make([]string, len(entries))
		for i, e := range entries {
			names[i] = e.Name()
		}
		t.Errorf("directory contents = %v, want only upto_100.json", names)
	}
}

func TestMergedConcatenatesInOffsetOrder(t *testing.T) {
	dir := t.TempDir()
	if err := Commit(dir, 2, []dataset.Record{{"text": "a"}, {"text": "b"}}); err != nil {
		t.Fatal(err)
	}
	if err := Commit(dir, 4, []dataset.Record{{"text": "c"}, {"text": "d"}}); err != nil {
		t.Fatal(err)
	}
	if err := Commit(dir, 5, []dataset.Record{{"text": "e"}}); err != nil {
		t.Fatal(err)
	}

	merged, err := Merged(dir)
	if err != nil {
		t.Fatalf("Merged: %v", err)
	}
	want := []string{"a", "b", "c", "d", "e"}
	if len(merged) != len(want) {
		t.Fatalf("got %d records, want %d", len(merged), len(want))
	}
	for i, w := range want {
		got, _ := merged[i].Field("text")
		if got != w {
			t.Errorf("merged[%d] = %q, want %q", i, got, w)
		}
	}
}

func TestDirLayout(t *testing.T) {
	got := Dir("/ckpt", "train", "ru")
	want := filepath.Join("/ckpt", "train", "from_ru")
	if got != want {
		t.Errorf("Dir = %q, want %q", got, want)
	}
}
