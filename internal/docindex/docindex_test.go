package docindex

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	offsets := []int64{0, 42, 100, 250}
	path := filepath.Join(t.TempDir(), "doc_index.bin")
	require.NoError(t, Save(path, offsets))

	idx, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, len(offsets), idx.Len())

	for i, want := range offsets {
		got, err := idx.Offset(uint64(i))
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
}

func TestOffsetOutOfRange(t *testing.T) {
	idx := New([]int64{1, 2, 3})
	_, err := idx.Offset(5)
	require.Error(t, err)
	var lookupErr *LookupError
	require.ErrorAs(t, err, &lookupErr)
	assert.Equal(t, ReasonNotFound, lookupErr.Reason)
}
