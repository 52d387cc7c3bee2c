// Package textpipeline implements the per-language preprocessing chain:
// normalize -> detect language -> tokenize -> drop stopwords
// -> length/numeric filter -> stem. It is pure and deterministic, applied
// identically at index time and query time so token sequences stay
// symmetric. The tokenizer/stopword/stemmer/detector pieces are swappable
// interfaces; the core depends only on this contract, not on any
// particular language library's internals.
package textpipeline

import (
	"strings"
	"unicode"

	"github.com/standardbeagle/spimidx/internal/config"
)

// Detector classifies a normalized string into one label of a fixed,
// closed set, or "unknown". It is an external collaborator; the
// default here is a small deterministic stopword-overlap heuristic so the
// pipeline is runnable standalone.
type Detector interface {
	Detect(normalized string) string
}

// Stemmer reduces a token to its stem for a given resolved language.
// Languages with no stemmer must return the token unchanged.
type Stemmer interface {
	Stem(language, token string) string
}

// Stopwords reports whether a token is a stopword for a resolved language.
type Stopwords interface {
	IsStopword(language, token string) bool
}

// Pipeline is the total function (text, resolvedLanguage) -> tokens.
type Pipeline struct {
	Detector    Detector
	Stemmer     Stemmer
	Stopwords   Stopwords
	MinTokenLen int
}

// New builds a Pipeline from config and the three swappable collaborators.
func New(cfg *config.Config, det Detector, stem Stemmer, stop Stopwords) *Pipeline {
	return &Pipeline{
		Detector:    det,
		Stemmer:     stem,
		Stopwords:   stop,
		MinTokenLen: cfg.Search.MinTokenLen,
	}
}

// Run executes the full pipeline over text. fallbackLanguage is used for
// the stopword/stem resolution step when language detection returns
// "unknown" (the query-language default at query time, the preprocessing
// default at index/debug time). It returns the ordered token
// sequence and the detected language label (which may itself be
// "unknown"; that is what gets recorded on a document).
func (p *Pipeline) Run(text string, fallbackLanguage string) (tokens []string, language string) {
	normalized := normalize(text)

	language = "unknown"
	if p.Detector != nil {
		if lbl := p.Detector.Detect(normalized); lbl != "" {
			language = lbl
		}
	}

	resolved := language
	if resolved == "unknown" {
		resolved = fallbackLanguage
	}

	raw := tokenize(normalized)

	kept := make([]string, 0, len(raw))
	for _, tok := range raw {
		if p.Stopwords != nil && p.Stopwords.IsStopword(resolved, tok) {
			continue
		}
		if len(tok) < p.MinTokenLen || isAllDigits(tok) {
			continue
		}
		if p.Stemmer != nil {
			tok = p.Stemmer.Stem(resolved, tok)
		}
		kept = append(kept, tok)
	}

	return kept, language
}

// normalize lowercases (no Unicode normalization form such as NFC is
// applied), collapses whitespace, and strips
// punctuation that is not linguistically part of a word while preserving
// intra-word apostrophes and hyphens for the stemmer.
func normalize(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	lastWasSpace := true
	for _, r := range text {
		r = unicode.ToLower(r)
		switch {
		case unicode.IsSpace(r):
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
			lastWasSpace = false
		case r == '\'' || r == '-':
			// Preserve intra-word characters; a leading/trailing one is
			// trimmed away by tokenize's Fields split boundaries anyway.
			b.WriteRune(r)
			lastWasSpace = false
		default:
			if !lastWasSpace {
				b.WriteRune(' ')
				lastWasSpace = true
			}
		}
	}
	return strings.TrimSpace(b.String())
}

// tokenize splits the normalized string into candidate tokens, preserving
// order, and trims stray leading/trailing apostrophes/hyphens left over
// from normalize's punctuation handling.
func tokenize(normalized string) []string {
	fields := strings.Fields(normalized)
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.Trim(f, "'-")
		if f != "" {
			out = append(out, f)
		}
	}
	return out
}

func isAllDigits(s string) bool {
	for _, r := range s {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return len(s) > 0
}
