// Package search implements the query side of the index: load the meta
// descriptor and term map once, then for each query run the text
// pipeline, read only the needed postings ranges, score by TF-IDF, and
// hydrate the surviving documents by random access into the doc store.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/standardbeagle/spimidx/internal/builderrors"
	"github.com/standardbeagle/spimidx/internal/config"
	"github.com/standardbeagle/spimidx/internal/docindex"
	"github.com/standardbeagle/spimidx/internal/ilog"
	"github.com/standardbeagle/spimidx/internal/textpipeline"
)

// TermEntry is a parsed index.terms.json value.
type TermEntry struct {
	Offset int64
	Length int64
}

// Meta mirrors merge.Meta without importing the builder package (the
// searcher only ever reads it back from disk).
type Meta struct {
	Format         string `json:"format"`
	N              int    `json:"N"`
	VocabSize      int    `json:"vocab_size"`
	PostingsPath   string `json:"postings_path"`
	TermsIndexPath string `json:"terms_index_path"`
	DocStorePath   string `json:"doc_store_path"`
	DocIndexPath   string `json:"doc_index_path"`
	DocIndexType   string `json:"doc_index_type"`
}

// Result is one ranked hit.
type Result struct {
	DocID   string  `json:"doc_id"`
	Score   float64 `json:"score"`
	Title   string  `json:"title"`
	Snippet string  `json:"snippet"`
	URL     string  `json:"url"`
}

// Response is the full search() return value.
type Response struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
}

type snapshot struct {
	meta         Meta
	terms        map[string]TermEntry
	docIndex     *docindex.Index
	postingsFile *os.File
	docStoreFile *os.File
}

// Engine is the loaded, shared-immutable query-time state. It is safe for
// concurrent use by multiple queries; Reload swaps the snapshot under a
// brief exclusive lock.
type Engine struct {
	indexDir string
	cfg      *config.Config
	pipeline *textpipeline.Pipeline

	mu   sync.RWMutex
	snap *snapshot
}

// Load builds an Engine over the index at indexDir. A missing or
// unreadable meta file is reported as builderrors.QueryError with
// ReasonIndexMissing.
func Load(indexDir string, cfg *config.Config, pipeline *textpipeline.Pipeline) (*Engine, error) {
	snap, err := loadSnapshot(indexDir)
	if err != nil {
		return nil, err
	}
	return &Engine{indexDir: indexDir, cfg: cfg, pipeline: pipeline, snap: snap}, nil
}

func loadSnapshot(indexDir string) (*snapshot, error) {
	metaRaw, err := os.ReadFile(filepath.Join(indexDir, "index.meta.json"))
	if err != nil {
		return nil, builderrors.NewIndexMissing(err.Error())
	}
	var meta Meta
	if err := json.Unmarshal(metaRaw, &meta); err != nil {
		return nil, builderrors.NewIndexMissing(fmt.Sprintf("corrupt meta: %v", err))
	}

	termsRaw, err := os.ReadFile(filepath.Join(indexDir, meta.TermsIndexPath))
	if err != nil {
		return nil, builderrors.NewIndexMissing(err.Error())
	}
	var rawTerms map[string][2]int64
	if err := json.Unmarshal(termsRaw, &rawTerms); err != nil {
		return nil, builderrors.NewIndexMissing(fmt.Sprintf("corrupt terms index: %v", err))
	}
	terms := make(map[string]TermEntry, len(rawTerms))
	for term, pair := range rawTerms {
		terms[term] = TermEntry{Offset: pair[0], Length: pair[1]}
	}

	docIdx, err := docindex.Load(filepath.Join(indexDir, meta.DocIndexPath))
	if err != nil {
		return nil, builderrors.NewIndexMissing(err.Error())
	}

	postingsFile, err := os.Open(filepath.Join(indexDir, meta.PostingsPath))
	if err != nil {
		return nil, builderrors.NewIndexMissing(err.Error())
	}
	docStoreFile, err := os.Open(filepath.Join(indexDir, meta.DocStorePath))
	if err != nil {
		postingsFile.Close()
		return nil, builderrors.NewIndexMissing(err.Error())
	}

	return &snapshot{
		meta:         meta,
		terms:        terms,
		docIndex:     docIdx,
		postingsFile: postingsFile,
		docStoreFile: docStoreFile,
	}, nil
}

// Reload re-reads the index at e.indexDir and swaps it in under a brief
// exclusive lock. The previous snapshot's file handles are closed once no
// longer referenced.
func (e *Engine) Reload() error {
	next, err := loadSnapshot(e.indexDir)
	if err != nil {
		return err
	}
	e.mu.Lock()
	prev := e.snap
	e.snap = next
	e.mu.Unlock()

	if prev != nil {
		prev.postingsFile.Close()
		prev.docStoreFile.Close()
	}
	return nil
}

// Close releases the engine's open file handles.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.snap == nil {
		return nil
	}
	err1 := e.snap.postingsFile.Close()
	err2 := e.snap.docStoreFile.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Search runs the query pipeline, scores matching documents by TF-IDF,
// and returns the top-K hydrated results.
func (e *Engine) Search(ctx context.Context, query string, defaultLanguage string) (Response, error) {
	trimmed := strings.TrimSpace(query)
	if trimmed == "" {
		return Response{}, builderrors.NewBadRequest("empty query")
	}

	e.mu.RLock()
	defer e.mu.RUnlock()
	snap := e.snap

	fallback := defaultLanguage
	if fallback == "" {
		fallback = e.cfg.Language.DefaultQueryLanguage
	}

	tokens, _ := e.pipeline.Run(trimmed, fallback)

	qtf := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		qtf[tok]++
	}

	scores := make(map[uint64]float64)
	for term, count := range qtf {
		select {
		case <-ctx.Done():
			return Response{}, ctx.Err()
		default:
		}

		entry, ok := snap.terms[term]
		if !ok {
			continue
		}
		postings, err := readPostings(snap.postingsFile, term, entry)
		if err != nil {
			ilog.Logf("search: skipping term %q: %v", term, err)
			continue
		}
		df := len(postings)
		if df == 0 {
			continue
		}
		idf := math.Log(float64(snap.meta.N) / float64(df))
		for _, p := range postings {
			scores[p.DocUID] += (1 + math.Log(float64(p.TF))) * idf * float64(count)
		}
	}

	topK := e.cfg.Search.TopK
	ranked := rankTopK(scores, topK)

	results := make([]Result, 0, len(ranked))
	for _, docUID := range ranked {
		rec, err := hydrate(snap, docUID)
		if err != nil {
			ilog.Logf("search: skipping doc_uid %d: %v", docUID, err)
			continue
		}
		results = append(results, Result{
			DocID:   rec.DocID,
			Score:   scores[docUID],
			Title:   rec.Title,
			Snippet: rec.Snippet,
			URL:     rec.URL,
		})
	}

	return Response{Query: trimmed, Results: results}, nil
}

type postingPair struct {
	DocUID uint64
	TF     int
}

// readPostings reads the exact (offset, length) slice for term and
// parses its postings list.
func readPostings(f *os.File, term string, entry TermEntry) ([]postingPair, error) {
	buf := make([]byte, entry.Length)
	if _, err := f.ReadAt(buf, entry.Offset); err != nil {
		return nil, err
	}
	idx := bytes.IndexByte(buf, '\t')
	if idx < 0 {
		return nil, fmt.Errorf("malformed postings line for %q", term)
	}
	var raw [][2]uint64
	if err := json.Unmarshal(buf[idx+1:], &raw); err != nil {
		return nil, err
	}
	out := make([]postingPair, len(raw))
	for i, p := range raw {
		out[i] = postingPair{DocUID: p[0], TF: int(p[1])}
	}
	return out, nil
}

// rankTopK selects the topK highest scores, breaking ties by ascending
// doc_uid.
func rankTopK(scores map[uint64]float64, topK int) []uint64 {
	docUIDs := make([]uint64, 0, len(scores))
	for d := range scores {
		docUIDs = append(docUIDs, d)
	}
	sort.Slice(docUIDs, func(i, j int) bool {
		si, sj := scores[docUIDs[i]], scores[docUIDs[j]]
		if si != sj {
			return si > sj
		}
		return docUIDs[i] < docUIDs[j]
	})
	if topK > 0 && len(docUIDs) > topK {
		docUIDs = docUIDs[:topK]
	}
	return docUIDs
}

type docRecord struct {
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Language string `json:"language"`
}

const docLineReadChunk = 4096

// hydrate resolves docUID to its doc-store line via the doc index,
// growing the read window until a full line is captured.
func hydrate(snap *snapshot, docUID uint64) (docRecord, error) {
	var rec docRecord

	offset, err := snap.docIndex.Offset(docUID)
	if err != nil {
		return rec, err
	}

	size := docLineReadChunk
	for {
		buf := make([]byte, size)
		n, err := snap.docStoreFile.ReadAt(buf, offset)
		if n == 0 && err != nil {
			return rec, err
		}
		buf = buf[:n]
		if nl := bytes.IndexByte(buf, '\n'); nl >= 0 {
			if jsonErr := json.Unmarshal(buf[:nl], &rec); jsonErr != nil {
				return rec, jsonErr
			}
			return rec, nil
		}
		if err != nil {
			// Hit EOF without a newline: treat the whole remainder as
			// the line.
			if jsonErr := json.Unmarshal(buf, &rec); jsonErr != nil {
				return rec, jsonErr
			}
			return rec, nil
		}
		size *= 2
	}
}
