// Package blockworker processes one corpus block: parse a byte range of
// the corpus, run the text pipeline over each record, and flush a block
// postings file plus a doc-store shard.
package blockworker

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/standardbeagle/spimidx/internal/corpus"
	"github.com/standardbeagle/spimidx/internal/ilog"
	"github.com/standardbeagle/spimidx/internal/textpipeline"
)

const snippetMaxRunes = 240

// Task describes one block assignment.
type Task struct {
	BlockID          int
	Start, End       int64
	CorpusPath       string
	BaseDocUID       uint64
	BlocksDir        string
	DocStorePartsDir string
	DefaultLanguage  string
}

// Result carries the two output file paths plus acceptance counts.
type Result struct {
	BlockID      int
	PostingsPath string
	DocStorePath string
	Accepted     int
	Rejected     int
	Err          error
}

type tfEntry struct {
	DocUID uint64
	TF     int
}

// Process runs one block end to end: parse, pipeline, accumulate, flush.
func Process(ctx context.Context, t Task, pipeline *textpipeline.Pipeline) Result {
	res := Result{BlockID: t.BlockID}

	f, err := os.Open(t.CorpusPath)
	if err != nil {
		res.Err = fmt.Errorf("block %d: opening corpus: %w", t.BlockID, err)
		return res
	}
	defer f.Close()

	if _, err := f.Seek(t.Start, io.SeekStart); err != nil {
		res.Err = fmt.Errorf("block %d: seeking: %w", t.BlockID, err)
		return res
	}

	limited := io.LimitReader(f, t.End-t.Start)
	scanner := bufio.NewScanner(limited)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)

	postings := make(map[string][]tfEntry)
	var docLines [][]byte

	accepted := 0
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			res.Err = ctx.Err()
			return res
		default:
		}

		line := scanner.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			res.Rejected++
			continue
		}

		doc, err := corpus.ParseLine(line)
		if err != nil {
			ilog.Logf("block %d: rejecting line: %v", t.BlockID, err)
			res.Rejected++
			continue
		}

		docUID := t.BaseDocUID + uint64(accepted)
		accepted++

		combined := doc.Title
		if combined != "" {
			combined += " "
		}
		combined += doc.Text

		tokens, language := pipeline.Run(combined, t.DefaultLanguage)

		counts := make(map[string]int, len(tokens))
		for _, tok := range tokens {
			counts[tok]++
		}
		for tok, tf := range counts {
			postings[tok] = append(postings[tok], tfEntry{DocUID: docUID, TF: tf})
		}

		shardLine, err := json.Marshal(docStoreLine{
			DocUID:   docUID,
			DocID:    doc.DocID,
			Title:    doc.Title,
			URL:      doc.URL,
			Snippet:  snippet(doc.Text),
			Language: language,
		})
		if err != nil {
			res.Err = fmt.Errorf("block %d: serializing doc store line: %w", t.BlockID, err)
			return res
		}
		docLines = append(docLines, shardLine)
	}
	if err := scanner.Err(); err != nil {
		res.Err = fmt.Errorf("block %d: scanning: %w", t.BlockID, err)
		return res
	}

	res.Accepted = accepted

	postingsPath := filepath.Join(t.BlocksDir, fmt.Sprintf("block_%d.jsonl", t.BlockID))
	if err := writePostings(postingsPath, postings); err != nil {
		res.Err = fmt.Errorf("block %d: writing postings: %w", t.BlockID, err)
		return res
	}
	res.PostingsPath = postingsPath

	docStorePath := filepath.Join(t.DocStorePartsDir, fmt.Sprintf("doc_store_%d.jsonl", t.BlockID))
	if err := writeDocStore(docStorePath, docLines); err != nil {
		res.Err = fmt.Errorf("block %d: writing doc store shard: %w", t.BlockID, err)
		return res
	}
	res.DocStorePath = docStorePath

	return res
}

type docStoreLine struct {
	DocUID   uint64 `json:"doc_uid"`
	DocID    string `json:"doc_id"`
	Title    string `json:"title"`
	URL      string `json:"url"`
	Snippet  string `json:"snippet"`
	Language string `json:"language"`
}

func snippet(text string) string {
	r := []rune(text)
	if len(r) <= snippetMaxRunes {
		return text
	}
	return string(r[:snippetMaxRunes])
}

// writePostings writes lines sorted ascending by term, with each term's
// postings sorted ascending by doc_uid.
func writePostings(path string, postings map[string][]tfEntry) error {
	terms := make([]string, 0, len(postings))
	for term := range postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, term := range terms {
		entries := postings[term]
		sort.Slice(entries, func(i, j int) bool { return entries[i].DocUID < entries[j].DocUID })

		pairs := make([][2]uint64, len(entries))
		for i, e := range entries {
			pairs[i] = [2]uint64{e.DocUID, uint64(e.TF)}
		}
		payload, err := json.Marshal(pairs)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(w, "%s\t%s\n", term, payload); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return writeChecksum(path)
}

func writeDocStore(path string, lines [][]byte) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, line := range lines {
		if _, err := w.Write(line); err != nil {
			return err
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}
	return writeChecksum(path)
}
