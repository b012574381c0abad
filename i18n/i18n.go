// Package i18n localizes transkit's own CLI messages.
//
// It wraps gotext around a set of PO catalogs embedded in the binary.
// Call Init once at startup; T and N degrade to passthrough when no
// catalog matches the user's locale.
package i18n

import (
	"embed"
	"os"
	"strings"

	"github.com/leonelquinteros/gotext"
)

// locales embeds the PO catalogs, one per language:
// locales/{lang}/LC_MESSAGES/transkit.po
//
//go:embed all:locales
var locales embed.FS

// domain is the gettext domain name.
const domain = "transkit"

var locale *gotext.Locale

// Init loads the catalog for lang, auto-detecting from the environment
// (LANGUAGE, LC_ALL, LC_MESSAGES, LANG — GNU gettext order) when lang
// is empty. Must be called before T or N.
func Init(lang string) {
	if lang == "" {
		lang = detectLanguage()
	}
	locale = gotext.NewLocaleFSWithPath(lang, locales, "locales")
	locale.AddDomain(domain)
	locale.SetDomain(domain)
}

// T translates a message, returning msgid unchanged when no translation
// exists.
func T(msgid string) string {
	if locale == nil {
		return msgid
	}
	return locale.Get(msgid)
}

// N translates a message with plural forms selected by n.
func N(singular, plural string, n int) string {
	if locale == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return locale.GetN(singular, plural, n)
}

// detectLanguage picks the user's locale from the environment. LANGUAGE
// may be a colon-separated preference list; encoding suffixes are
// stripped and the C/POSIX locales mean "no translation".
func detectLanguage() string {
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			val, _, _ = strings.Cut(val, ":")
		}
		if idx := strings.IndexByte(val, '.'); idx >= 0 {
			val = val[:idx]
		}
		if val == "" || val == "C" || val == "POSIX" {
			continue
		}
		return val
	}
	return "en"
}
