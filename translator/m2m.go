package translator

import (
	"context"
	"fmt"
)

// m2mSizes are the published M2M-100 parameter-count variants.
var m2mSizes = map[string]bool{
	"418M": true,
	"1.2B": true,
}

// m2mLangs is the fixed 100-language set of M2M-100. Both the source
// and the target language must be members for a pair to be supported.
var m2mLangs = map[string]bool{
	"af": true, "am": true, "ar": true, "ast": true, "az": true,
	"ba": true, "be": true, "bg": true, "bn": true, "br": true,
	"bs": true, "ca": true, "ceb": true, "cs": true, "cy": true,
	"da": true, "de": true, "el": true, "en": true, "es": true,
	"et": true, "fa": true, "ff": true, "fi": true, "fr": true,
	"fy": true, "ga": true, "gd": true, "gl": true, "gu": true,
	"ha": true, "he": true, "hi": true, "hr": true, "ht": true,
	"hu": true, "hy": true, "id": true, "ig": true, "ilo": true,
	"is": true, "it": true, "ja": true, "jv": true, "ka": true,
	"kk": true, "km": true, "kn": true, "ko": true, "lb": true,
	"lg": true, "ln": true, "lo": true, "lt": true, "lv": true,
	"mg": true, "mk": true, "ml": true, "mn": true, "mr": true,
	"ms": true, "my": true, "ne": true, "nl": true, "no": true,
	"ns": true, "oc": true, "or": true, "pa": true, "pl": true,
	"ps": true, "pt": true, "ro": true, "ru": true, "sd": true,
	"si": true, "sk": true, "sl": true, "so": true, "sq": true,
	"sr": true, "ss": true, "su": true, "sv": true, "sw": true,
	"ta": true, "th": true, "tl": true, "tn": true, "tr": true,
	"uk": true, "ur": true, "uz": true, "vi": true, "wo": true,
	"xh": true, "yi": true, "yo": true, "zh": true, "zu": true,
}

// M2M translates with Facebook's M2M-100 models. One model covers all
// 100×100 directions; source and target are request parameters rather
// than part of the text.
type M2M struct {
	cfg    Config
	client *client
	model  string
}

// NewM2M constructs the M2M backend for the configured size variant
// (default 418M).
func NewM2M(cfg Config) (*M2M, error) {
	size := cfg.ModelSize
	if size == "" {
		size = "418M"
	}
	if !m2mSizes[size] {
		return nil, fmt.Errorf("unknown m2m model size %q (want 418M or 1.2B)", size)
	}
	return &M2M{
		cfg:    cfg,
		client: newClient(cfg),
		model:  "facebook/m2m100_" + size,
	}, nil
}

// Translate implements Translator.
func (m *M2M) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	src, tgt := baseLang(sourceLang), baseLang(targetLang)
	if !m2mLangs[src] || !m2mLangs[tgt] {
		return nil, fmt.Errorf("m2m %s→%s: %w", sourceLang, targetLang, ErrUnsupportedPair)
	}

	translations, err := m.client.translate(ctx, translateRequest{
		Model:        m.model,
		Texts:        texts,
		SourceLang:   src,
		TargetLang:   tgt,
		MaxLength:    m.cfg.MaxLength,
		Device:       m.cfg.Device,
		Quantization: m.cfg.quantization(),
	})
	if err != nil {
		return nil, err
	}
	return shape(texts, translations)
}
