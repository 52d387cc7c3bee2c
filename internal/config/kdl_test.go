package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadKDLMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := LoadKDL(filepath.Join(t.TempDir(), "missing.kdl"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestParseKDLOverridesDefaults(t *testing.T) {
	content := `
language {
    default "es"
    default_query "es"
}
search {
    top_k 5
    min_token_len 3
    min_df 2
    max_df_ratio 0.5
}
index {
    block_docs 500
    corpus "data/corpus.jsonl"
}
scheduler {
    workers 8
    max_in_flight 16
    max_tasks_per_child 100
    keep_blocks true
}
`
	cfg, err := parseKDL(content)
	require.NoError(t, err)

	assert.Equal(t, "es", cfg.Language.DefaultLanguage)
	assert.Equal(t, "es", cfg.Language.DefaultQueryLanguage)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 3, cfg.Search.MinTokenLen)
	assert.Equal(t, 2, cfg.Search.MinDF)
	assert.InDelta(t, 0.5, cfg.Search.MaxDFRatio, 1e-9)
	assert.Equal(t, 500, cfg.Index.BlockDocs)
	assert.Equal(t, "data/corpus.jsonl", cfg.Index.CorpusPath)
	assert.Equal(t, 8, cfg.Scheduler.Workers)
	assert.Equal(t, 16, cfg.Scheduler.MaxInFlight)
	assert.Equal(t, 100, cfg.Scheduler.MaxTasksPerChild)
	assert.True(t, cfg.Scheduler.KeepBlocks)
}

func TestResolvedMaxInFlightDefaultsToTwiceWorkers(t *testing.T) {
	cfg := Default()
	cfg.Scheduler.Workers = 6
	cfg.Scheduler.MaxInFlight = 0
	assert.Equal(t, 12, cfg.ResolvedMaxInFlight())

	cfg.Scheduler.MaxInFlight = 3
	assert.Equal(t, 3, cfg.ResolvedMaxInFlight())
}
