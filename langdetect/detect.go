// Package langdetect fills in missing language tags by statistical
// detection, for datasets whose language column exists but is not
// populated on every row.
package langdetect

import (
	wlg "github.com/abadojack/whatlanggo"

	"github.com/minios-linux/transkit/dataset"
)

// Undetermined is the tag used when detection is not reliable.
const Undetermined = "und"

// Code returns the ISO-639-1 code for text and a confidence in [0,1].
// Unreliable detections return Undetermined with confidence 0.
func Code(text string) (string, float64) {
	if len(text) == 0 {
		return Undetermined, 0
	}
	info := wlg.Detect(text)
	if !info.IsReliable() {
		return Undetermined, 0
	}
	iso := info.Lang.Iso6391()
	if iso == "" {
		return Undetermined, info.Confidence
	}
	return iso, info.Confidence
}

// FillEmpty detects and writes the language tag for every record whose
// langField is present but empty, reading the text from textField.
// Records with a populated tag are untouched; records missing either
// field are left for the pipeline's own validation to reject. Returns
// the number of records updated.
func FillEmpty(records []dataset.Record, textField, langField string) int {
	filled := 0
	for _, rec := range records {
		lang, ok := rec.Field(langField)
		if !ok || lang != "" {
			continue
		}
		text, ok := rec.Field(textField)
		if !ok {
			continue
		}
		code, _ := Code(text)
		rec[langField] = code
		filled++
	}
	return filled
}
