package textpipeline

// defaultStopwords is a small built-in table covering the languages this
// pipeline ships a detector for. The real stopword lists are an external
// dependency; this default exists only so the pipeline is runnable
// standalone.
type defaultStopwords struct {
	sets map[string]map[string]struct{}
}

// NewDefaultStopwords returns a Stopwords backed by small built-in
// English/Spanish lists.
func NewDefaultStopwords() Stopwords {
	return &defaultStopwords{
		sets: map[string]map[string]struct{}{
			"en": toSet([]string{
				"a", "an", "the", "and", "or", "but", "of", "to", "in", "on",
				"for", "with", "is", "are", "was", "were", "be", "been",
				"it", "this", "that", "as", "at", "by", "from",
			}),
			"es": toSet([]string{
				"el", "la", "los", "las", "un", "una", "unos", "unas", "y",
				"o", "pero", "de", "a", "en", "por", "para", "es", "son",
				"que", "se", "su",
			}),
		},
	}
}

func toSet(words []string) map[string]struct{} {
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}

func (d *defaultStopwords) IsStopword(language, token string) bool {
	set, ok := d.sets[language]
	if !ok {
		return false
	}
	_, stop := set[token]
	return stop
}
