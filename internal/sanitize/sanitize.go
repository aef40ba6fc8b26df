// Package sanitize strips markup and executable content from user text.
package sanitize

import (
	"bytes"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// dropped elements lose their text content as well as their tags.
var dropped = map[atom.Atom]bool{
	atom.Script:   true,
	atom.Style:    true,
	atom.Iframe:   true,
	atom.Object:   true,
	atom.Embed:    true,
	atom.Noscript: true,
	atom.Template: true,
}

// maxPasses bounds how many layers of entity encoding are unwrapped.
const maxPasses = 8

// Text returns s with every tag removed, the bodies of script-like elements
// discarded, entities decoded and surrounding whitespace trimmed. Decoding
// can surface new markup, so passes repeat until the text stops changing.
func Text(s string) string {
	out := strip(s)
	for i := 1; i < maxPasses && strings.ContainsAny(out, "<&"); i++ {
		next := strip(out)
		if next == out {
			return out
		}
		out = next
	}
	if strings.ContainsAny(out, "<>") && strip(out) != out {
		out = strings.NewReplacer("<", "", ">", "").Replace(out)
	}
	return out
}

func strip(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return strings.TrimSpace(stripControl(s))
	}

	var out bytes.Buffer
	z := html.NewTokenizer(strings.NewReader(s))
	skipDepth := 0
	for {
		switch z.Next() {
		case html.ErrorToken:
			return strings.TrimSpace(stripControl(out.String()))
		case html.StartTagToken:
			name, _ := z.TagName()
			if dropped[atom.Lookup(name)] {
				skipDepth++
			}
		case html.EndTagToken:
			name, _ := z.TagName()
			if dropped[atom.Lookup(name)] && skipDepth > 0 {
				skipDepth--
			}
		case html.TextToken:
			if skipDepth == 0 {
				out.Write(z.Text())
			}
		}
	}
}

// stripControl removes non-printing control characters except newlines and tabs.
func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
}
