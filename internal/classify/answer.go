package classify

import (
	"strings"
)

// Models occasionally answer in the language of the page content they just
// read, so the yes/no vocabulary covers the languages that show up in
// practice.
var (
	yesWords = []string{"yes", "sim", "sí", "si", "oui", "ja", "да"}
	noWords  = []string{"no", "não", "nao", "non", "nein", "нет"}
)

// ParseAnswer normalizes a model response to a verdict. It returns nil when
// the answer is ambiguous: neither a recognized yes nor no leads the reply.
func ParseAnswer(raw string) *bool {
	cleaned := cleanAnswer(raw)
	if cleaned == "" {
		return nil
	}

	first := cleaned
	if idx := strings.IndexByte(cleaned, ' '); idx > 0 {
		first = cleaned[:idx]
	}

	for _, w := range yesWords {
		if first == w {
			v := true
			return &v
		}
	}
	for _, w := range noWords {
		if first == w {
			v := false
			return &v
		}
	}
	return nil
}

// cleanAnswer lowercases and strips the punctuation models wrap verdicts
// in ("Yes.", "**No**", "Yes, because...").
func cleanAnswer(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.Map(func(r rune) rune {
		switch r {
		case '.', ',', '!', '?', ':', ';', '*', '"', '\'', '(', ')', '[', ']', '-', '—':
			return ' '
		}
		return r
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

// insuranceKeywords are strong lexical signals used only for logging
// disagreement between the model verdict and the page's own vocabulary.
var insuranceKeywords = []string{
	"insurance", "insurer", "reinsurance", "underwrit",
	"assurance", "seguros", "assicurazioni", "versicherung",
}

// KeywordHit reports whether content carries obvious insurance vocabulary.
func KeywordHit(content string) bool {
	lower := strings.ToLower(content)
	for _, k := range insuranceKeywords {
		if strings.Contains(lower, k) {
			return true
		}
	}
	return false
}
