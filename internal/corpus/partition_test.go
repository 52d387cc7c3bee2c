package corpus

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeCorpus(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	var content string
	for _, l := range lines {
		content += l + "\n"
	}
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func collect(t *testing.T, ranges <-chan BlockRange, errCh <-chan error) ([]BlockRange, error) {
	t.Helper()
	var got []BlockRange
	for r := range ranges {
		got = append(got, r)
	}
	return got, <-errCh
}

func TestPartitionEvenBlocks(t *testing.T) {
	lines := make([]string, 25)
	for i := range lines {
		lines[i] = `{"doc_id":"d","text":"x"}`
	}
	path := writeCorpus(t, lines)

	ranges, errCh := Partition(context.Background(), path, 10)
	got, err := collect(t, ranges, errCh)
	require.NoError(t, err)
	require.Len(t, got, 3)
	require.Equal(t, 0, got[0].BlockID)
	require.Equal(t, 1, got[1].BlockID)
	require.Equal(t, 2, got[2].BlockID)

	// Contiguous, non-overlapping byte ranges covering the whole file.
	info, err := os.Stat(path)
	require.NoError(t, err)
	require.Equal(t, int64(0), got[0].Start)
	require.Equal(t, got[0].End, got[1].Start)
	require.Equal(t, got[1].End, got[2].Start)
	require.Equal(t, info.Size(), got[2].End)
}

func TestPartitionShortFinalBlock(t *testing.T) {
	lines := make([]string, 3)
	for i := range lines {
		lines[i] = `{"doc_id":"d","text":"x"}`
	}
	path := writeCorpus(t, lines)

	ranges, errCh := Partition(context.Background(), path, 10)
	got, err := collect(t, ranges, errCh)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestPartitionMissingFile(t *testing.T) {
	ranges, errCh := Partition(context.Background(), filepath.Join(t.TempDir(), "nope.jsonl"), 10)
	_, err := collect(t, ranges, errCh)
	require.Error(t, err)
}
