// Package pipeline drives the resumable batch translation of a dataset:
// fold by fold, language group by language group, batch by batch,
// committing progress to checkpoint files at a fixed interval so an
// interrupted run picks up where the last checkpoint left off.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"runtime/debug"

	"github.com/minios-linux/transkit/checkpoint"
	"github.com/minios-linux/transkit/dataset"
	"github.com/minios-linux/transkit/translator"
)

// ---------------------------------------------------------------------------
// Options
// ---------------------------------------------------------------------------

// Options controls a translation run. BatchSize and CheckpointEvery are
// fixed for the whole run; CheckpointEvery must be an exact multiple of
// BatchSize so checkpoint offsets land on batch boundaries.
type Options struct {
	// TargetLang is the language every record is translated into.
	TargetLang string
	// CheckpointRoot is the directory the checkpoint tree is written under.
	CheckpointRoot string
	// TextField is the record field holding the text to translate.
	TextField string
	// LangField is the record field holding the source language tag.
	LangField string
	// BatchSize is how many records are sent to the translator per call.
	BatchSize int
	// CheckpointEvery is how many records are accumulated between
	// checkpoint writes. Must be a multiple of BatchSize.
	CheckpointEvery int
	// OnProgress is called with the number of records newly accounted
	// for: the resume offset when a group is picked up, then each
	// batch's length as it completes.
	OnProgress func(n int)
	// OnLog emits log messages during the run.
	OnLog func(format string, args ...any)
	// ReclaimMemory is the advisory memory release hook called after
	// every checkpoint write and between folds. Nil selects the default
	// (garbage collection plus returning freed memory to the OS);
	// correctness never depends on it.
	ReclaimMemory func()
}

func (o *Options) validate() error {
	if o.TargetLang == "" {
		return fmt.Errorf("target language is required")
	}
	if o.CheckpointRoot == "" {
		return fmt.Errorf("checkpoint root is required")
	}
	if o.TextField == "" || o.LangField == "" {
		return fmt.Errorf("text and language field names are required")
	}
	if o.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", o.BatchSize)
	}
	if o.CheckpointEvery <= 0 {
		return fmt.Errorf("checkpoint interval must be positive, got %d", o.CheckpointEvery)
	}
	if o.CheckpointEvery%o.BatchSize != 0 {
		return fmt.Errorf("checkpoint interval %d must be a multiple of batch size %d",
			o.CheckpointEvery, o.BatchSize)
	}
	return nil
}

func (o *Options) log(format string, args ...any) {
	if o.OnLog != nil {
		o.OnLog(format, args...)
	}
}

func (o *Options) progress(n int) {
	if o.OnProgress != nil && n > 0 {
		o.OnProgress(n)
	}
}

func (o *Options) reclaim() {
	if o.ReclaimMemory != nil {
		o.ReclaimMemory()
		return
	}
	runtime.GC()
	debug.FreeOSMemory()
}

// ---------------------------------------------------------------------------
// Pipeline
// ---------------------------------------------------------------------------

// Pipeline owns one translator instance and one run configuration.
type Pipeline struct {
	tr   translator.Translator
	opts Options
}

// New validates the configuration and builds a pipeline. Configuration
// errors surface here, before any dataset or checkpoint I/O happens.
func New(tr translator.Translator, opts Options) (*Pipeline, error) {
	if tr == nil {
		return nil, fmt.Errorf("translator is required")
	}
	if err := opts.validate(); err != nil {
		return nil, err
	}
	return &Pipeline{tr: tr, opts: opts}, nil
}

// Total returns the record count across folds, for progress totals.
func Total(folds []dataset.Fold) int {
	n := 0
	for _, f := range folds {
		n += len(f.Records)
	}
	return n
}

// Run translates every fold sequentially: group by source language,
// then run each group through the resumable batch loop. Languages and
// folds are never processed concurrently; the one shared resource is
// the translator and its model.
func (p *Pipeline) Run(ctx context.Context, folds []dataset.Fold) error {
	for _, fold := range folds {
		groups, err := dataset.GroupByLanguage(fold.Records, p.opts.LangField)
		if err != nil {
			return fmt.Errorf("fold %s: %w", fold.Name, err)
		}

		for _, group := range groups {
			if err := p.runGroup(ctx, fold.Name, group); err != nil {
				return fmt.Errorf("fold %s, source language %s: %w", fold.Name, group.Lang, err)
			}
		}

		// One fold down, release what we can before the next.
		p.opts.reclaim()
	}
	return nil
}

// runGroup processes a single (fold, source language) group from its
// resume offset to the end, checkpointing every CheckpointEvery records
// and draining the remainder at the group's true final offset.
func (p *Pipeline) runGroup(ctx context.Context, foldName string, group dataset.LanguageGroup) error {
	dir := checkpoint.Dir(p.opts.CheckpointRoot, foldName, group.Lang)

	resume, err := checkpoint.ResumeOffset(dir)
	if err != nil {
		return err
	}
	total := len(group.Records)
	if resume >= total {
		// Fully translated in a prior run.
		p.opts.log("%d records for source language %s already done", total, group.Lang)
		p.opts.progress(total)
		return nil
	}

	p.opts.log("Got %d records for source language %s, skipping %d", total, group.Lang, resume)
	p.opts.progress(resume)

	var (
		buffer      []dataset.Record
		lastCommit  = resume
		unsupported = false
	)

	for cnt := resume; cnt < total; cnt += p.opts.BatchSize {
		if err := ctx.Err(); err != nil {
			return err
		}

		end := cnt + p.opts.BatchSize
		if end > total {
			end = total
		}
		batch := group.Records[cnt:end]

		texts := make([]string, len(batch))
		for i, rec := range batch {
			text, ok := rec.Field(p.opts.TextField)
			if !ok {
				return fmt.Errorf("record %d: missing or non-string text field %q", cnt+i, p.opts.TextField)
			}
			texts[i] = text
		}

		translated, err := p.tr.Translate(ctx, texts, group.Lang, p.opts.TargetLang)
		switch {
		case errors.Is(err, translator.ErrUnsupportedPair):
			// Not translatable: emit nothing for this batch, but keep
			// advancing the offset so the pair is never retried forever.
			if !unsupported {
				p.opts.log("Pair %s→%s not supported, skipping group output", group.Lang, p.opts.TargetLang)
				unsupported = true
			}
		case err != nil:
			return err
		case len(translated) != len(batch):
			return fmt.Errorf("translator returned %d texts for a batch of %d", len(translated), len(batch))
		default:
			for i, rec := range batch {
				rec[p.opts.TextField] = translated[i]
				rec[p.opts.LangField] = p.opts.TargetLang
				buffer = append(buffer, rec)
			}
		}

		p.opts.progress(len(batch))

		if end%p.opts.CheckpointEvery == 0 {
			p.opts.log("Writing checkpoint at offset %d for source language %s", end, group.Lang)
			if err := checkpoint.Commit(dir, end, buffer); err != nil {
				return err
			}
			buffer = nil
			lastCommit = end
			p.opts.reclaim()
		}
	}

	// Drain: the final batch may fall short of a checkpoint boundary.
	// Committed even when the buffer is empty, so a skipped group still
	// records that it was fully processed.
	if total > lastCommit {
		p.opts.log("Writing final checkpoint at offset %d for source language %s", total, group.Lang)
		if err := checkpoint.Commit(dir, total, buffer); err != nil {
			return err
		}
	}
	return nil
}
