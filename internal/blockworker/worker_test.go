package blockworker

import (
	"bufio"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/standardbeagle/spimidx/internal/config"
	"github.com/standardbeagle/spimidx/internal/textpipeline"
	"github.com/stretchr/testify/require"
)

func testPipeline() *textpipeline.Pipeline {
	cfg := config.Default()
	cfg.Search.MinTokenLen = 2
	return textpipeline.New(cfg, textpipeline.NewOverlapDetector(), textpipeline.NewPorter2Stemmer(), textpipeline.NewDefaultStopwords())
}

func writeCorpus(t *testing.T, lines []string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "corpus.jsonl")
	require.NoError(t, os.WriteFile(path, []byte(strings.Join(lines, "\n")+"\n"), 0o644))
	return path
}

func TestProcessBlockWritesSortedPostingsAndShard(t *testing.T) {
	lines := []string{
		`{"doc_id":"a","text":"el gato y el perro"}`,
		`{"doc_id":"b","text":"el perro ladra"}`,
	}
	corpusPath := writeCorpus(t, lines)

	blocksDir := t.TempDir()
	shardsDir := t.TempDir()

	info, err := os.Stat(corpusPath)
	require.NoError(t, err)

	res := Process(context.Background(), Task{
		BlockID:          0,
		Start:            0,
		End:              info.Size(),
		CorpusPath:       corpusPath,
		BaseDocUID:       0,
		BlocksDir:        blocksDir,
		DocStorePartsDir: shardsDir,
		DefaultLanguage:  "en",
	}, testPipeline())

	require.NoError(t, res.Err)
	require.Equal(t, 2, res.Accepted)
	require.Equal(t, 0, res.Rejected)

	// Postings file lines are sorted ascending by term.
	f, err := os.Open(res.PostingsPath)
	require.NoError(t, err)
	defer f.Close()
	sc := bufio.NewScanner(f)
	var terms []string
	for sc.Scan() {
		line := sc.Text()
		terms = append(terms, strings.SplitN(line, "\t", 2)[0])
	}
	require.NoError(t, sc.Err())
	require.True(t, sortedAscending(terms), "expected ascending term order, got %v", terms)

	ok, err := VerifyChecksum(res.PostingsPath)
	require.NoError(t, err)
	require.True(t, ok)

	// Doc store shard has one line per accepted doc, densely numbered from
	// BaseDocUID.
	shard, err := os.ReadFile(res.DocStorePath)
	require.NoError(t, err)
	shardLines := strings.Split(strings.TrimRight(string(shard), "\n"), "\n")
	require.Len(t, shardLines, 2)
	var d0, d1 docStoreLine
	require.NoError(t, json.Unmarshal([]byte(shardLines[0]), &d0))
	require.NoError(t, json.Unmarshal([]byte(shardLines[1]), &d1))
	require.Equal(t, uint64(0), d0.DocUID)
	require.Equal(t, uint64(1), d1.DocUID)
}

func TestProcessBlockRejectsMalformedLines(t *testing.T) {
	lines := []string{
		`{"doc_id":"a","text":"hello world"}`,
		`not json`,
		`{"text":"missing doc id"}`,
		``,
	}
	corpusPath := writeCorpus(t, lines)
	info, err := os.Stat(corpusPath)
	require.NoError(t, err)

	res := Process(context.Background(), Task{
		BlockID:          0,
		Start:            0,
		End:              info.Size(),
		CorpusPath:       corpusPath,
		BlocksDir:        t.TempDir(),
		DocStorePartsDir: t.TempDir(),
		DefaultLanguage:  "en",
	}, testPipeline())

	require.NoError(t, res.Err)
	require.Equal(t, 1, res.Accepted)
	require.Equal(t, 3, res.Rejected)
}

func sortedAscending(ss []string) bool {
	for i := 1; i < len(ss); i++ {
		if ss[i-1] > ss[i] {
			return false
		}
	}
	return true
}
