package textpipeline

import (
	"github.com/kljensen/snowball"
	"github.com/surgebase/porter2"
)

// snowballLanguage maps this pipeline's closed language-label set to the
// language names github.com/kljensen/snowball expects. Languages with no
// entry here have no stemmer and pass their tokens through unchanged.
var snowballLanguage = map[string]string{
	"es": "spanish",
}

// Porter2Stemmer is the default Stemmer. English uses the dedicated
// Porter2 implementation; Spanish routes through kljensen/snowball's
// Spanish algorithm. Every other resolved language passes its tokens
// through unchanged.
type Porter2Stemmer struct {
	// MinLength guards against over-aggressively stemming very short
	// words.
	MinLength int
}

// NewPorter2Stemmer returns a Stemmer with a sensible default minimum
// length.
func NewPorter2Stemmer() *Porter2Stemmer {
	return &Porter2Stemmer{MinLength: 3}
}

func (s *Porter2Stemmer) Stem(language, token string) string {
	if len(token) < s.MinLength {
		return token
	}
	if language == "en" {
		return porter2.Stem(token)
	}
	if name, ok := snowballLanguage[language]; ok {
		if stemmed, err := snowball.Stem(token, name, false); err == nil {
			return stemmed
		}
	}
	return token
}
