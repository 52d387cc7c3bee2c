package merge

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/standardbeagle/spimidx/internal/blockworker"
	"github.com/standardbeagle/spimidx/internal/builderrors"
	"github.com/standardbeagle/spimidx/internal/docindex"
)

// Options configures one merge run.
type Options struct {
	// IndexDir is the final published index directory.
	IndexDir string
	// BlocksDir and DocStorePartsDir are the scratch directories produced
	// by the scheduler's workers.
	BlocksDir        string
	DocStorePartsDir string
	MinDF            int
	MaxDFRatio       float64
	KeepBlocks       bool
}

// Run assembles the doc store, merges block postings, and atomically
// publishes the index artifacts. results need not be sorted;
// Run sorts internally by BlockID.
func Run(results []blockworker.Result, opts Options) (*Meta, error) {
	for _, res := range results {
		if res.Err != nil {
			return nil, &builderrors.BuildAborted{BlockID: res.BlockID, Cause: res.Err}
		}
	}

	if err := verifyShardChecksums(results); err != nil {
		return nil, err
	}

	staging := opts.IndexDir + ".building"
	if err := os.RemoveAll(staging); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "staging setup", Cause: err}
	}
	if err := os.MkdirAll(staging, 0o755); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "staging setup", Cause: err}
	}

	dsResult, err := assembleDocStore(staging, results)
	if err != nil {
		return nil, err
	}

	termMap, err := mergePostings(staging, results, dsResult.remap, dsResult.n, opts.MinDF, opts.MaxDFRatio)
	if err != nil {
		return nil, err
	}

	docIndexPath := filepath.Join(staging, "doc_index.bin")
	offsets := make([]int64, dsResult.n)
	for uid := 0; uid < dsResult.n; uid++ {
		off, err := dsResult.index.Offset(uint64(uid))
		if err != nil {
			return nil, &builderrors.MergeFailed{Stage: "doc index", Cause: err}
		}
		offsets[uid] = off
	}
	if err := docindex.Save(docIndexPath, offsets); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "doc index", Cause: err}
	}

	termsPath := filepath.Join(staging, "index.terms.json")
	if err := writeTermsIndex(termsPath, termMap); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "terms index", Cause: err}
	}

	meta := &Meta{
		Format:         "block",
		N:              dsResult.n,
		VocabSize:      len(termMap),
		PostingsPath:   "index.postings",
		TermsIndexPath: "index.terms.json",
		DocStorePath:   "doc_store.jsonl",
		DocIndexPath:   "doc_index.bin",
		DocIndexType:   "packed_array",
	}
	metaPath := filepath.Join(staging, "index.meta.json")
	if err := writeMeta(metaPath, meta); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "meta", Cause: err}
	}

	if err := publish(staging, opts.IndexDir); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "publish", Cause: err}
	}

	if !opts.KeepBlocks {
		if err := cleanupScratch(opts.BlocksDir, opts.DocStorePartsDir); err != nil {
			return nil, &builderrors.MergeFailed{Stage: "cleanup", Cause: err}
		}
	}

	return meta, nil
}

// verifyShardChecksums recomputes each block's postings/doc-store xxhash64
// checksum before the merger trusts the shard, so a worker that died
// mid-write is caught here rather than silently corrupting the merged
// index.
func verifyShardChecksums(results []blockworker.Result) error {
	for _, res := range results {
		ok, err := blockworker.VerifyChecksum(res.PostingsPath)
		if err != nil {
			return &builderrors.MergeFailed{Stage: "checksum", Cause: err}
		}
		if !ok {
			return &builderrors.MergeFailed{Stage: "checksum", Cause: fmt.Errorf("block %d postings shard %s failed checksum verification", res.BlockID, res.PostingsPath)}
		}

		ok, err = blockworker.VerifyChecksum(res.DocStorePath)
		if err != nil {
			return &builderrors.MergeFailed{Stage: "checksum", Cause: err}
		}
		if !ok {
			return &builderrors.MergeFailed{Stage: "checksum", Cause: fmt.Errorf("block %d doc-store shard %s failed checksum verification", res.BlockID, res.DocStorePath)}
		}
	}
	return nil
}

func writeTermsIndex(path string, termMap map[string]TermRange) error {
	type entry = [2]int64
	out := make(map[string]entry, len(termMap))
	for term, r := range termMap {
		out[term] = entry{r.Offset, r.Length}
	}
	payload, err := json.Marshal(out)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

func writeMeta(path string, meta *Meta) error {
	payload, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, payload, 0o644); err != nil {
		return err
	}
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}

// publish moves staging into place atomically relative to readers: the
// previous index is only ever replaced once every staged write has
// succeeded, and is restored if the final rename fails, so a prior index
// stays intact across a failed build.
func publish(staging, final string) error {
	backup := final + ".previous"
	_ = os.RemoveAll(backup)

	hadPrevious := false
	if _, err := os.Stat(final); err == nil {
		if err := os.Rename(final, backup); err != nil {
			return err
		}
		hadPrevious = true
	}

	if err := os.Rename(staging, final); err != nil {
		if hadPrevious {
			_ = os.Rename(backup, final)
		}
		return err
	}

	if hadPrevious {
		_ = os.RemoveAll(backup)
	}
	return nil
}
