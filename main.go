// transkit — resumable dataset translation with pluggable model backends.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/minios-linux/transkit/checkpoint"
	"github.com/minios-linux/transkit/config"
	"github.com/minios-linux/transkit/dataset"
	"github.com/minios-linux/transkit/hub"
	"github.com/minios-linux/transkit/i18n"
	"github.com/minios-linux/transkit/langdetect"
	"github.com/minios-linux/transkit/pipeline"
	"github.com/minios-linux/transkit/translator"
)

// Version information (set via -ldflags during build)
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// ANSI colors
const (
	colorReset  = "\033[0m"
	colorRed    = "\033[0;31m"
	colorGreen  = "\033[0;32m"
	colorYellow = "\033[1;33m"
	colorBlue   = "\033[0;34m"
)

func logInfo(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorBlue+"[INFO]"+colorReset+" "+format+"\n", args...)
}

func logSuccess(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorGreen+"[OK]"+colorReset+" "+format+"\n", args...)
}

func logWarning(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorYellow+"[WARN]"+colorReset+" "+format+"\n", args...)
}

func logError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, colorRed+"[ERROR]"+colorReset+" "+format+"\n", args...)
}

// ---------------------------------------------------------------------------
// Root command
// ---------------------------------------------------------------------------

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "transkit",
		Short: "Translate instruct/RLHF datasets with resumable checkpoints",
		Long: `transkit — translate a text dataset record by record into a target
language, surviving crashes and restarts without redoing finished work.

Records are grouped by source language and translated in fixed-size
batches against an inference server. Progress is committed to immutable
JSON checkpoint files; a restarted run resumes exactly after the last
committed checkpoint.

Commands:
  translate   Translate a dataset (backends: opus, madlad, m2m)
  status      Show checkpoint progress per fold and source language
  combine     Merge checkpoint files into a single dataset file

Backends:
  opus    HelsinkiNLP OPUS-MT, one model per language pair
  madlad  Google MADLAD-400, one model for all pairs
  m2m     Facebook M2M-100, any of 100 languages to any other`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(
		newTranslateCmd(),
		newStatusCmd(),
		newCombineCmd(),
		newVersionCmd(),
	)

	return root
}

func main() {
	i18n.Init("")
	if err := newRootCmd().Execute(); err != nil {
		logError("%v", err)
		os.Exit(1)
	}
}

// ---------------------------------------------------------------------------
// version
// ---------------------------------------------------------------------------

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("transkit version %s\n", version)
			fmt.Printf("  commit:    %s\n", commit)
			fmt.Printf("  built:     %s\n", date)
		},
	}
}

// ---------------------------------------------------------------------------
// translate (opus | madlad | m2m)
// ---------------------------------------------------------------------------

// translateArgs carries the flags shared by all backend subcommands.
type translateArgs struct {
	dataset    string
	textField  string
	langField  string
	endpoint   string
	hubToken   string
	batchSize  int
	checkpoint int
	maxLength  int
	quant4     bool
	quant8     bool
	cpu        bool
	detectLang bool
	timeout    time.Duration
	maxRetries int
	modelSize  string
}

func newTranslateCmd() *cobra.Command {
	var a translateArgs

	cmd := &cobra.Command{
		Use:   "translate",
		Short: "Translate a dataset using a translation model backend",
		Long: `Translate a dataset into a target language.

The dataset is either a Hugging Face hub ID (downloaded via the
datasets-server API) or a local directory of fold files (*.json arrays
or *.jsonl). Checkpoints are written per fold and source language as
<dir>/<fold>/from_<lang>/upto_<offset>.json; re-running the same command
resumes after the highest existing checkpoint.

TARGET_LANG and CHECKPOINT_DIR may be omitted when target_lang and
checkpoint_dir are set in transkit.yaml.

Examples:
  # Translate oasst1 to Dutch with the default M2M model
  transkit translate m2m nl ./checkpoints --endpoint http://localhost:8090

  # OPUS with 4-bit quantization, larger batches
  transkit translate opus de ./checkpoints --quant4 --batch-size 20 --checkpoint-n 400

  # MADLAD 7b on a local dataset directory
  transkit translate madlad fr ./checkpoints --model-size 7b --dataset ./folds`,
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&a.dataset, "dataset", "", "Dataset: hub ID (default OpenAssistant/oasst1) or local directory")
	pf.StringVar(&a.textField, "text-field", "", "Record field with the text to translate (default text)")
	pf.StringVar(&a.langField, "lang-field", "", "Record field with the source language tag (default lang)")
	pf.StringVar(&a.endpoint, "endpoint", "", "Inference server base URL")
	pf.StringVar(&a.hubToken, "hub-token", "", "Hugging Face token for gated datasets")
	pf.IntVar(&a.batchSize, "batch-size", 0, "Records per translation call (default 10)")
	pf.IntVar(&a.checkpoint, "checkpoint-n", 0, "Records per checkpoint write, multiple of batch size (default 400)")
	pf.IntVar(&a.maxLength, "max-length", 0, "Maximum tokens to generate per text (0 = unlimited)")
	pf.BoolVar(&a.quant4, "quant4", false, "Load the model in 4-bit precision")
	pf.BoolVar(&a.quant8, "quant8", false, "Load the model in 8-bit precision")
	pf.BoolVar(&a.cpu, "cpu", false, "Force CPU even when a GPU is available")
	pf.BoolVar(&a.detectLang, "detect-missing-lang", false, "Detect the language of records with an empty language tag")
	pf.DurationVar(&a.timeout, "timeout", 0, "Per-request timeout (0 = default)")
	pf.IntVar(&a.maxRetries, "max-retries", 0, "Retries on rate limit or server error (default 3)")

	opus := &cobra.Command{
		Use:   "opus [TARGET_LANG [CHECKPOINT_DIR]]",
		Short: "Translate using HelsinkiNLP OPUS-MT models",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runTranslate(cmd.Context(), translator.BackendOPUS, args, a)
		},
	}

	// Each backend carries its own size variable: registering a flag
	// writes its default into the bound variable immediately, so sharing
	// one variable would let the last registration clobber the others.
	var madladSize string
	madlad := &cobra.Command{
		Use:   "madlad [TARGET_LANG [CHECKPOINT_DIR]]",
		Short: "Translate using Google's MADLAD-400 models",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.modelSize = madladSize
			return runTranslate(cmd.Context(), translator.BackendMADLAD, args, a)
		},
	}
	madlad.Flags().StringVar(&madladSize, "model-size", "3b", "MADLAD size: 3b, 7b or 7b-bt (backtrained)")

	var m2mSize string
	m2m := &cobra.Command{
		Use:   "m2m [TARGET_LANG [CHECKPOINT_DIR]]",
		Short: "Translate using Facebook's M2M-100 models",
		Args:  cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a.modelSize = m2mSize
			return runTranslate(cmd.Context(), translator.BackendM2M, args, a)
		},
	}
	m2m.Flags().StringVar(&m2mSize, "model-size", "418M", "M2M size: 418M or 1.2B")

	cmd.AddCommand(opus, madlad, m2m)
	return cmd
}

// defaultDataset matches the original tooling this replaces.
const defaultDataset = "OpenAssistant/oasst1"

func runTranslate(ctx context.Context, backend string, args []string, a translateArgs) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// File config fills in whatever the flags and positionals left unset.
	fileCfg, err := config.Load(".")
	if err != nil {
		return err
	}
	flags := &config.File{
		Endpoint:        a.endpoint,
		Dataset:         a.dataset,
		TextField:       a.textField,
		LangField:       a.langField,
		HubToken:        a.hubToken,
		BatchSize:       a.batchSize,
		CheckpointEvery: a.checkpoint,
		MaxLength:       a.maxLength,
	}
	if len(args) >= 1 {
		flags.TargetLang = args[0]
	}
	if len(args) == 2 {
		flags.CheckpointDir = args[1]
	}
	flags.Merge(fileCfg)
	if flags.TargetLang == "" {
		return fmt.Errorf("target language required: pass it as an argument or set target_lang in %s", config.FileName)
	}
	if flags.CheckpointDir == "" {
		return fmt.Errorf("checkpoint directory required: pass it as an argument or set checkpoint_dir in %s", config.FileName)
	}
	flags.Merge(&config.File{
		Dataset:         defaultDataset,
		TextField:       "text",
		LangField:       "lang",
		BatchSize:       10,
		CheckpointEvery: 400,
	})

	device := "cuda"
	if a.cpu {
		device = "cpu"
	}

	// All configuration errors (bad quant combination, checkpoint
	// interval not a multiple of batch size, ...) surface here, before
	// any dataset or model is touched.
	tr, err := translator.New(backend, translator.Config{
		Endpoint:   flags.Endpoint,
		Device:     device,
		Quant4:     a.quant4,
		Quant8:     a.quant8,
		MaxLength:  flags.MaxLength,
		ModelSize:  a.modelSize,
		Timeout:    a.timeout,
		MaxRetries: a.maxRetries,
	})
	if err != nil {
		return err
	}

	// The bar is created once the dataset size is known; progress
	// reported before that is simply dropped.
	var bar *progressbar.ProgressBar

	opts := pipeline.Options{
		TargetLang:      flags.TargetLang,
		CheckpointRoot:  flags.CheckpointDir,
		TextField:       flags.TextField,
		LangField:       flags.LangField,
		BatchSize:       flags.BatchSize,
		CheckpointEvery: flags.CheckpointEvery,
		OnLog:           logInfo,
		OnProgress: func(n int) {
			if bar != nil {
				_ = bar.Add(n)
			}
		},
	}
	pipe, err := pipeline.New(tr, opts)
	if err != nil {
		return err
	}

	folds, err := loadDataset(ctx, flags)
	if err != nil {
		return err
	}

	if a.detectLang {
		filled := 0
		for _, fold := range folds {
			filled += langdetect.FillEmpty(fold.Records, flags.TextField, flags.LangField)
		}
		if filled > 0 {
			logInfo(i18n.T("Detected language for %d records"), filled)
		}
	}

	logInfo(i18n.T("Starting translation of %s using %s"), flags.Dataset, backend)

	bar = progressbar.NewOptions(pipeline.Total(folds),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("translating"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("rec"),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	if err := pipe.Run(ctx, folds); err != nil {
		return err
	}

	logSuccess(i18n.T("Translation complete, checkpoints written to %s"), flags.CheckpointDir)
	return nil
}

// loadDataset resolves the dataset reference: an existing directory is
// loaded locally, anything else is treated as a hub dataset ID.
func loadDataset(ctx context.Context, cfg *config.File) ([]dataset.Fold, error) {
	logInfo(i18n.T("Loading dataset %s"), cfg.Dataset)

	if info, err := os.Stat(cfg.Dataset); err == nil && info.IsDir() {
		return dataset.LoadDir(cfg.Dataset)
	}

	client := &hub.Client{Token: cfg.HubToken, OnLog: logInfo}
	return client.Load(ctx, cfg.Dataset)
}

// ---------------------------------------------------------------------------
// status
// ---------------------------------------------------------------------------

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status CHECKPOINT_DIR",
		Short: "Show checkpoint progress per fold and source language",
		Long: `Walk a checkpoint tree and report, per fold and source language, the
number of checkpoint files, the resume offset, and how many translated
records the checkpoints hold. Read-only.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus(args[0])
		},
	}
}

func runStatus(root string) error {
	groups, err := walkCheckpoints(root)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		logInfo(i18n.T("No checkpoints found under %s"), root)
		return nil
	}

	fmt.Fprintf(os.Stderr, "\n%sCheckpoint Status%s\n", colorBlue, colorReset)
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "%-14s %-10s %-8s %-10s %-10s\n", "Fold", "From", "Files", "Resume", "Records")
	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))

	totalRecords := 0
	for _, g := range groups {
		offsets, err := checkpoint.Offsets(g.dir)
		if err != nil {
			return err
		}
		resume, err := checkpoint.ResumeOffset(g.dir)
		if err != nil {
			return err
		}
		records, err := checkpoint.Merged(g.dir)
		if err != nil {
			logWarning("%s/from_%s: %v", g.fold, g.lang, err)
			continue
		}
		fmt.Fprintf(os.Stderr, "%-14s %-10s %-8d %-10d %-10d\n",
			g.fold, g.lang, len(offsets), resume, len(records))
		totalRecords += len(records)
	}

	fmt.Fprintln(os.Stderr, strings.Repeat("─", 60))
	fmt.Fprintf(os.Stderr, "Total translated records: %d\n\n", totalRecords)
	return nil
}

// ---------------------------------------------------------------------------
// combine
// ---------------------------------------------------------------------------

func newCombineCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "combine CHECKPOINT_DIR",
		Short: "Merge checkpoint files into a single dataset file",
		Long: `Concatenate every checkpoint under CHECKPOINT_DIR, in fold order and
ascending offset order within each (fold, language) group, into one
output dataset. The output format follows the file extension: .json for
a single JSON array, .jsonl for one record per line.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runCombine(args[0], output)
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "combined.json", "Output file (.json or .jsonl)")
	return cmd
}

func runCombine(root, output string) error {
	groups, err := walkCheckpoints(root)
	if err != nil {
		return err
	}
	if len(groups) == 0 {
		return fmt.Errorf("no checkpoints found under %s", root)
	}

	var all []dataset.Record
	for _, g := range groups {
		records, err := checkpoint.Merged(g.dir)
		if err != nil {
			return fmt.Errorf("%s/from_%s: %w", g.fold, g.lang, err)
		}
		all = append(all, records...)
	}

	if err := writeCombined(output, all); err != nil {
		return err
	}
	logSuccess(i18n.T("Combined %d records into %s"), len(all), output)
	return nil
}

// writeCombined writes the merged records in the format implied by the
// output extension.
func writeCombined(output string, records []dataset.Record) error {
	f, err := os.Create(output)
	if err != nil {
		return fmt.Errorf("creating %s: %w", output, err)
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)

	switch filepath.Ext(output) {
	case ".jsonl":
		for _, rec := range records {
			if err := enc.Encode(rec); err != nil {
				return fmt.Errorf("writing %s: %w", output, err)
			}
		}
	default:
		if err := enc.Encode(records); err != nil {
			return fmt.Errorf("writing %s: %w", output, err)
		}
	}
	return f.Sync()
}

// ---------------------------------------------------------------------------
// Checkpoint tree walking
// ---------------------------------------------------------------------------

type checkpointGroup struct {
	fold string
	lang string
	dir  string
}

// walkCheckpoints lists the <root>/<fold>/from_<lang> directories in
// deterministic order. Stray files and directories are skipped.
func walkCheckpoints(root string) ([]checkpointGroup, error) {
	folds, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading checkpoint root: %w", err)
	}

	var groups []checkpointGroup
	for _, fold := range folds {
		if !fold.IsDir() {
			continue
		}
		foldDir := filepath.Join(root, fold.Name())
		langs, err := os.ReadDir(foldDir)
		if err != nil {
			return nil, fmt.Errorf("reading fold %s: %w", fold.Name(), err)
		}
		for _, lang := range langs {
			if !lang.IsDir() || !strings.HasPrefix(lang.Name(), "from_") {
				continue
			}
			groups = append(groups, checkpointGroup{
				fold: fold.Name(),
				lang: strings.TrimPrefix(lang.Name(), "from_"),
				dir:  filepath.Join(foldDir, lang.Name()),
			})
		}
	}

	sort.Slice(groups, func(i, j int) bool {
		if groups[i].fold != groups[j].fold {
			return groups[i].fold < groups[j].fold
		}
		return groups[i].lang < groups[j].lang
	})
	return groups, nil
}
