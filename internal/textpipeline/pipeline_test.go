package textpipeline

import (
	"testing"

	"github.com/standardbeagle/spimidx/internal/config"
	"github.com/stretchr/testify/assert"
)

func newTestPipeline() *Pipeline {
	cfg := config.Default()
	cfg.Search.MinTokenLen = 2
	return New(cfg, NewOverlapDetector(), NewPorter2Stemmer(), NewDefaultStopwords())
}

func TestRunDropsStopwordsAndDetectsSpanish(t *testing.T) {
	p := newTestPipeline()
	tokens, language := p.Run("El gato y el perro", "en")
	assert.Equal(t, "es", language)
	assert.Equal(t, []string{"gat", "perr"}, tokens)
}

func TestRunStemsEnglish(t *testing.T) {
	p := newTestPipeline()
	// No stopwords present, so the default overlap detector reports
	// "unknown" and the pipeline falls back to the caller-provided
	// language ("en") for the stemming step.
	tokens, language := p.Run("Running runners run", "en")
	assert.Equal(t, "unknown", language)
	assert.Equal(t, []string{"run", "runner", "run"}, tokens)
}

func TestRunDropsNumericAndShortTokens(t *testing.T) {
	p := newTestPipeline()
	tokens, _ := p.Run("123 ok a 4567 dog", "en")
	assert.Equal(t, []string{"ok", "dog"}, tokens)
}

func TestRunIsPureAndDeterministic(t *testing.T) {
	p := newTestPipeline()
	t1, l1 := p.Run("The quick brown fox", "en")
	t2, l2 := p.Run("The quick brown fox", "en")
	assert.Equal(t, t1, t2)
	assert.Equal(t, l1, l2)
}

func TestQuerySymmetryAcrossIdenticalResolvedLanguage(t *testing.T) {
	p := newTestPipeline()
	docTokens, lang := p.Run("perro", "en")
	queryTokens, qlang := p.Run("perro", "en")
	assert.Equal(t, lang, qlang)
	assert.Equal(t, docTokens, queryTokens)
}

func TestEmptyTextYieldsNoTokens(t *testing.T) {
	p := newTestPipeline()
	tokens, language := p.Run("   \t\n  ", "en")
	assert.Empty(t, tokens)
	assert.Equal(t, "unknown", language)
}
