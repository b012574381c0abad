package translator

import (
	"context"
	"fmt"
)

// madladSizes are the published MADLAD-400 machine translation variants.
// 7b-bt is the backtrained version.
var madladSizes = map[string]bool{
	"3b":    true,
	"7b":    true,
	"7b-bt": true,
}

// madladTargets is the subset of MADLAD-400 target languages this
// backend accepts. The models cover over 400 languages; the list below
// carries the ones with solid translation quality. Source languages are
// not checked — MADLAD detects the source from the text itself.
var madladTargets = map[string]bool{
	"af": true, "am": true, "ar": true, "az": true, "be": true,
	"bg": true, "bn": true, "bs": true, "ca": true, "cs": true,
	"cy": true, "da": true, "de": true, "el": true, "en": true,
	"eo": true, "es": true, "et": true, "eu": true, "fa": true,
	"fi": true, "fr": true, "ga": true, "gl": true, "gu": true,
	"ha": true, "he": true, "hi": true, "hr": true, "hu": true,
	"hy": true, "id": true, "ig": true, "is": true, "it": true,
	"ja": true, "ka": true, "kk": true, "km": true, "kn": true,
	"ko": true, "ku": true, "ky": true, "lo": true, "lt": true,
	"lv": true, "mk": true, "ml": true, "mn": true, "mr": true,
	"ms": true, "mt": true, "my": true, "ne": true, "nl": true,
	"no": true, "pa": true, "pl": true, "ps": true, "pt": true,
	"ro": true, "ru": true, "sd": true, "si": true, "sk": true,
	"sl": true, "so": true, "sq": true, "sr": true, "sv": true,
	"sw": true, "ta": true, "te": true, "tg": true, "th": true,
	"tl": true, "tr": true, "uk": true, "ur": true, "uz": true,
	"vi": true, "xh": true, "yi": true, "yo": true, "zh": true,
	"zu": true,
}

// MADLAD translates with Google's MADLAD-400 models. One model covers
// all pairs; the target language is selected with a <2xx> token
// prefixed to every input text.
type MADLAD struct {
	cfg    Config
	client *client
	model  string
}

// NewMADLAD constructs the MADLAD backend for the configured size
// variant (default 3b).
func NewMADLAD(cfg Config) (*MADLAD, error) {
	size := cfg.ModelSize
	if size == "" {
		size = "3b"
	}
	if !madladSizes[size] {
		return nil, fmt.Errorf("unknown madlad model size %q (want 3b, 7b or 7b-bt)", size)
	}
	return &MADLAD{
		cfg:    cfg,
		client: newClient(cfg),
		model:  "google/madlad400-" + size + "-mt",
	}, nil
}

// Translate implements Translator.
func (m *MADLAD) Translate(ctx context.Context, texts []string, sourceLang, targetLang string) ([]string, error) {
	tgt := baseLang(targetLang)
	if !madladTargets[tgt] {
		return nil, fmt.Errorf("madlad %s→%s: %w", sourceLang, targetLang, ErrUnsupportedPair)
	}

	prompted := make([]string, len(texts))
	for i, t := range texts {
		prompted[i] = fmt.Sprintf("<2%s> %s", tgt, t)
	}

	translations, err := m.client.translate(ctx, translateRequest{
		Model:        m.model,
		Texts:        prompted,
		MaxLength:    m.cfg.MaxLength,
		Device:       m.cfg.Device,
		Quantization: m.cfg.quantization(),
	})
	if err != nil {
		return nil, err
	}
	return shape(texts, translations)
}
