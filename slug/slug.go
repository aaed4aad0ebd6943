// Package slug turns batch file names and tool names into storage key prefixes.
package slug

import (
	"path/filepath"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// MaxLength caps a key prefix so timestamped report names stay readable
const MaxLength = 80

// German spellings are common in vendor names and lose meaning when the marks are dropped.
var german = strings.NewReplacer("ä", "ae", "ö", "oe", "ü", "ue", "ß", "ss")

var stripMarks = transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// FromFilename slugs a batch CSV path, without directory or extension
func FromFilename(path string) string {
	base := filepath.Base(path)
	return normalize(strings.TrimSuffix(base, filepath.Ext(base)))
}

// FromToolName slugs a tool name for per-tool artifacts.
// Tools without a usable name fall back to their batch line.
func FromToolName(name string, line int) string {
	if s := normalize(name); s != "" {
		return s
	}
	return "tool-" + strconv.Itoa(line)
}

// normalize lowercases s, folds it to ASCII and joins the alphanumeric runs with single hyphens
func normalize(s string) string {
	s = german.Replace(strings.ToLower(s))
	if folded, _, err := transform.String(stripMarks, s); err == nil {
		s = folded
	}

	var b strings.Builder
	pendingHyphen := false
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			if pendingHyphen && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingHyphen = false
			b.WriteRune(r)
			continue
		}
		// Apostrophes join rather than split: "McDonald's" is one word.
		if r != '\'' && r != '’' {
			pendingHyphen = true
		}
	}

	out := b.String()
	if len(out) > MaxLength {
		out = strings.TrimRight(out[:MaxLength], "-")
	}
	return out
}
