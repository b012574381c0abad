package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// OPUS translates with Helsinki-NLP OPUS-MT models. There is one model
// per language pair, so support is discovered rather than declared: the
// backend asks the server for opus-mt-<src>-<tgt> and treats a missing
// model as a pair the family cannot serve. When the direct model does
// not exist it falls back to pivoting through English (src→en, en→tgt)
// before giving up on the pair.
type OPUS struct {
	cfg    Config
	client *client

	// routes caches the resolved route per "src→tgt" pair so later
	// batches of the same group skip the discovery round-trips.
	routes map[string]opusRoute
}

type opusRoute int

const (
	opusRouteUnknown opusRoute = iota
	opusRouteDirect
	opusRoutePivot
	opusRouteUnsupported
)

// NewOPUS constructs the OPUS backend. ModelSize is ignored: OPUS-MT
// models come in a single size per pair.
func NewOPUS(cfg Config) *OPUS {
	return &OPUS{
		cfg:    cfg,
		client: newClient(cfg),
		routes: make(map[string]opusRoute),
	}
}

// opusModel builds the per-pair model identifier. OPUS-MT uses bare
// language codes, so region subtags are stripped ("pt-BR" → "pt").
func opusModel(src, tgt string) string {
	return fmt.Sprintf("Helsinki-NLP/opus-mt-%s-%s", baseLang(src), baseLang(tgt))
}

func baseLang(code string) string {
	if i := strings.IndexAny(code, "-_"); i > 0 {
		return strings.ToLower(code[:i])
	}
	return strings.ToLower(code)
}

// Translate implements Translator.
func (o *OPUS) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	key := sourceLang + "→" + targetLang
	if o.routes[key] == opusRouteUnsupported {
		return nil, fmt.Errorf("opus %s: %w", key, ErrUnsupportedPair)
	}

	if o.routes[key] != opusRoutePivot {
		out, err := o.call(ctx, texts, sourceLang, targetLang)
		if err == nil {
			o.routes[key] = opusRouteDirect
			return out, nil
		}
		if !errors.Is(err, errModelNotFound) {
			return nil, err
		}
	}

	// Direct model missing: pivot through English unless English is
	// already one of the legs.
	if baseLang(sourceLang) == "en" || baseLang(targetLang) == "en" {
		o.routes[key] = opusRouteUnsupported
		return nil, fmt.Errorf("opus %s: %w", key, ErrUnsupportedPair)
	}

	mid, err := o.call(ctx, texts, sourceLang, "en")
	if err != nil {
		if errors.Is(err, errModelNotFound) {
			o.routes[key] = opusRouteUnsupported
			return nil, fmt.Errorf("opus %s: %w", key, ErrUnsupportedPair)
		}
		return nil, err
	}
	out, err := o.call(ctx, mid, "en", targetLang)
	if err != nil {
		if errors.Is(err, errModelNotFound) {
			o.routes[key] = opusRouteUnsupported
			return nil, fmt.Errorf("opus %s: %w", key, ErrUnsupportedPair)
		}
		return nil, err
	}

	o.routes[key] = opusRoutePivot
	return out, nil
}

func (o *OPUS) call(ctx context.Context, texts []string, src, tgt string) ([]string, error) {
	translations, err := o.client.translate(ctx, translateRequest{
		Model:        opusModel(src, tgt),
		Texts:        texts,
		MaxLength:    o.cfg.MaxLength,
		Device:       o.cfg.Device,
		Quantization: o.cfg.quantization(),
	})
	if err != nil {
		return nil, err
	}
	return shape(texts, translations)
}
