package icons

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// GenericGlyph is shown when nothing better is known.
const GenericGlyph = "◌"

var glyphs = map[string]string{
	"github.com":           "◆",
	"gitlab.com":           "◇",
	"stackoverflow.com":    "≣",
	"google.com":           "G",
	"youtube.com":          "▶",
	"reddit.com":           "◉",
	"twitter.com":          "✕",
	"x.com":                "✕",
	"facebook.com":         "f",
	"instagram.com":        "◎",
	"linkedin.com":         "in",
	"wikipedia.org":        "W",
	"netflix.com":          "N",
	"twitch.tv":            "♫",
	"news.ycombinator.com": "Y",
	"mail.google.com":      "✉",
	"docs.google.com":      "≡",
	"slack.com":            "#",
	"discord.com":          "☺",
}

// Fallback resolves domain from the static table, or the generic glyph.
// Subdomains match their parent entry.
func Fallback(domain string) Ref {
	for d := domain; d != ""; {
		if glyph, ok := glyphs[d]; ok {
			return Ref{Domain: domain, Glyph: glyph, Source: SourceTable}
		}
		i := strings.IndexByte(d, '.')
		if i < 0 {
			break
		}
		d = d[i+1:]
	}
	return Ref{Domain: domain, Glyph: GenericGlyph, Source: SourceGeneric}
}

func monogram(domain string) string {
	r, _ := utf8.DecodeRuneInString(domain)
	if r == utf8.RuneError {
		return GenericGlyph
	}
	return string(unicode.ToUpper(r))
}
