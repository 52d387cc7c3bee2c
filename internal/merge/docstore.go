// Package merge assembles the doc-store shards into one dense doc_uid
// space, k-way merges the block postings files with document-frequency
// pruning, and publishes the index artifacts atomically.
package merge

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/spimidx/internal/builderrors"
	"github.com/standardbeagle/spimidx/internal/blockworker"
	"github.com/standardbeagle/spimidx/internal/docindex"
)

type docStoreLine struct {
	DocUID   uint64 `json:"doc_uid"`
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Language string `json:"language"`
}

// remapResult carries the outcome of doc-store assembly: the dense doc
// store path, the doc index built over it, and the old->new doc_uid
// remap to apply to postings (nil when identity).
type remapResult struct {
	docStorePath string
	index        *docindex.Index
	remap        map[uint64]uint64
	n            int
}

// assembleDocStore concatenates shards in ascending BlockID order into
// a dense doc_uid space, writing doc_store.jsonl and returning the built
// doc index plus any remap needed to rewrite postings.
func assembleDocStore(outDir string, results []blockworker.Result) (*remapResult, error) {
	sorted := append([]blockworker.Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BlockID < sorted[j].BlockID })

	outPath := filepath.Join(outDir, "doc_store.jsonl")
	out, err := os.Create(outPath)
	if err != nil {
		return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
	}
	defer out.Close()

	w := bufio.NewWriter(out)

	var (
		offsets    []int64
		remap      map[uint64]uint64
		newUID     uint64
		identity   = true
		byteOffset int64
	)

	for _, res := range sorted {
		if res.DocStorePath == "" {
			continue
		}
		lines, err := readLines(res.DocStorePath)
		if err != nil {
			return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
		}
		for _, raw := range lines {
			var line docStoreLine
			if err := json.Unmarshal(raw, &line); err != nil {
				return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
			}
			if line.DocUID != newUID {
				identity = false
			}
			if remap == nil && !identity {
				remap = make(map[uint64]uint64)
			}
			if remap != nil {
				remap[line.DocUID] = newUID
			}

			line.DocUID = newUID
			rewritten, err := json.Marshal(line)
			if err != nil {
				return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
			}

			offsets = append(offsets, byteOffset)
			n, err := w.Write(rewritten)
			if err != nil {
				return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
			}
			if err := w.WriteByte('\n'); err != nil {
				return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
			}
			byteOffset += int64(n) + 1
			newUID++
		}
	}

	if err := w.Flush(); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
	}
	if err := out.Sync(); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "doc_store assembly", Cause: err}
	}

	if len(offsets) == 0 {
		return nil, builderrors.ErrEmptyCorpus
	}

	return &remapResult{
		docStorePath: outPath,
		index:        docindex.New(offsets),
		remap:        remap,
		n:            len(offsets),
	}, nil
}

func readLines(path string) ([][]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var lines [][]byte
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		cp := make([]byte, len(line))
		copy(cp, line)
		lines = append(lines, cp)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return lines, nil
}
