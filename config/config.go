// Package config — transkit.yaml run configuration file support.
//
// When a transkit.yaml file exists in the working directory, it supplies
// defaults for a translation run: the inference endpoint, dataset,
// field names, batching and checkpointing parameters. Command-line
// flags always win over file values.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// FileName is the default config file name.
const FileName = "transkit.yaml"

// File is the transkit.yaml structure. Zero values mean "not set".
type File struct {
	// Endpoint is the inference server base URL.
	Endpoint string `yaml:"endpoint,omitempty"`
	// TargetLang is the default target language code.
	TargetLang string `yaml:"target_lang,omitempty"`
	// CheckpointDir is the default checkpoint root directory.
	CheckpointDir string `yaml:"checkpoint_dir,omitempty"`
	// Dataset is the default dataset: a hub ID (org/name) or a local
	// directory of fold files.
	Dataset string `yaml:"dataset,omitempty"`
	// TextField is the record field holding the text to translate.
	TextField string `yaml:"text_field,omitempty"`
	// LangField is the record field holding the source language tag.
	LangField string `yaml:"lang_field,omitempty"`
	// BatchSize is the per-call batch size.
	BatchSize int `yaml:"batch_size,omitempty"`
	// CheckpointEvery is the checkpoint interval in records.
	CheckpointEvery int `yaml:"checkpoint_n,omitempty"`
	// MaxLength caps generated tokens per text.
	MaxLength int `yaml:"max_length,omitempty"`
	// HubToken is a Hugging Face access token for gated datasets.
	HubToken string `yaml:"hub_token,omitempty"`
}

// Load reads transkit.yaml from dir. Returns nil without error when the
// file does not exist.
func Load(dir string) (*File, error) {
	path := filepath.Join(dir, FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	if f.BatchSize < 0 {
		return nil, fmt.Errorf("%s: batch_size must not be negative", path)
	}
	if f.CheckpointEvery < 0 {
		return nil, fmt.Errorf("%s: checkpoint_n must not be negative", path)
	}
	return &f, nil
}

// Merge fills unset fields of f from other. Flag-derived values are
// merged as the receiver, so explicit flags keep priority over the file.
func (f *File) Merge(other *File) {
	if other == nil {
		return
	}
	if f.Endpoint == "" {
		f.Endpoint = other.Endpoint
	}
	if f.TargetLang == "" {
		f.TargetLang = other.TargetLang
	}
	if f.CheckpointDir == "" {
		f.CheckpointDir = other.CheckpointDir
	}
	if f.Dataset == "" {
		f.Dataset = other.Dataset
	}
	if f.TextField == "" {
		f.TextField = other.TextField
	}
	if f.LangField == "" {
		f.LangField = other.LangField
	}
	if f.HubToken == "" {
		f.HubToken = other.HubToken
	}
	if f.BatchSize == 0 {
		f.BatchSize = other.BatchSize
	}
	if f.CheckpointEvery == 0 {
		f.CheckpointEvery = other.CheckpointEvery
	}
	if f.MaxLength == 0 {
		f.MaxLength = other.MaxLength
	}
}
