package merge

import (
	"bufio"
	"container/heap"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/standardbeagle/spimidx/internal/blockworker"
	"github.com/standardbeagle/spimidx/internal/builderrors"
)

type postingPair struct {
	DocUID uint64
	TF     int
}

// source is one open block postings file positioned at its current term.
type source struct {
	f        *os.File
	scanner  *bufio.Scanner
	term     string
	postings []postingPair
	done     bool
}

func openSource(path string) (*source, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 64*1024*1024)
	s := &source{f: f, scanner: sc}
	if err := s.advance(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

// advance loads the next term/postings pair from the file, or marks done.
func (s *source) advance() error {
	if !s.scanner.Scan() {
		if err := s.scanner.Err(); err != nil {
			return err
		}
		s.done = true
		return nil
	}
	line := s.scanner.Text()
	idx := strings.IndexByte(line, '\t')
	if idx < 0 {
		return fmt.Errorf("malformed postings line (no tab): %q", line)
	}
	term := line[:idx]
	var raw [][2]uint64
	if err := json.Unmarshal([]byte(line[idx+1:]), &raw); err != nil {
		return fmt.Errorf("malformed postings payload for term %q: %w", term, err)
	}
	postings := make([]postingPair, len(raw))
	for i, p := range raw {
		postings[i] = postingPair{DocUID: p[0], TF: int(p[1])}
	}
	s.term = term
	s.postings = postings
	return nil
}

func (s *source) close() { s.f.Close() }

// sourceHeap orders open sources by their current term, for the k-way
// merge.
type sourceHeap []*source

func (h sourceHeap) Len() int            { return len(h) }
func (h sourceHeap) Less(i, j int) bool  { return h[i].term < h[j].term }
func (h sourceHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *sourceHeap) Push(x interface{}) { *h = append(*h, x.(*source)) }
func (h *sourceHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// TermRange is a term map entry: the byte offset and length of its line in
// index.postings.
type TermRange struct {
	Offset int64
	Length int64
}

// mergePostings k-way merges every block's postings file into
// index.postings, applying the old->new doc_uid remap and
// MIN_DF/MAX_DF_RATIO pruning, and returns the term map.
func mergePostings(outDir string, results []blockworker.Result, remap map[uint64]uint64, n, minDF int, maxDFRatio float64) (map[string]TermRange, error) {
	sorted := append([]blockworker.Result(nil), results...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].BlockID < sorted[j].BlockID })

	var sources []*source
	defer func() {
		for _, s := range sources {
			s.close()
		}
	}()

	h := &sourceHeap{}
	for _, res := range sorted {
		if res.PostingsPath == "" {
			continue
		}
		s, err := openSource(res.PostingsPath)
		if err != nil {
			return nil, &builderrors.MergeFailed{Stage: "postings merge", Cause: err}
		}
		sources = append(sources, s)
		if !s.done {
			heap.Push(h, s)
		}
	}

	outPath := filepath.Join(outDir, "index.postings")
	out, err := os.Create(outPath)
	if err != nil {
		return nil, &builderrors.MergeFailed{Stage: "postings merge", Cause: err}
	}
	defer out.Close()
	w := bufio.NewWriter(out)

	termMap := make(map[string]TermRange)
	var byteOffset int64

	for h.Len() > 0 {
		term := (*h)[0].term

		var combined []postingPair
		var contributing []*source
		for h.Len() > 0 && (*h)[0].term == term {
			s := heap.Pop(h).(*source)
			combined = append(combined, s.postings...)
			contributing = append(contributing, s)
		}

		if remap != nil {
			for i := range combined {
				if nu, ok := remap[combined[i].DocUID]; ok {
					combined[i].DocUID = nu
				}
			}
		}
		sort.Slice(combined, func(i, j int) bool { return combined[i].DocUID < combined[j].DocUID })
		combined = coalesce(combined)

		df := len(combined)
		keep := df >= minDF && (n == 0 || float64(df)/float64(n) <= maxDFRatio)

		if keep {
			pairs := make([][2]uint64, len(combined))
			for i, p := range combined {
				pairs[i] = [2]uint64{p.DocUID, uint64(p.TF)}
			}
			payload, err := json.Marshal(pairs)
			if err != nil {
				return nil, &builderrors.MergeFailed{Stage: "postings merge", Cause: err}
			}
			line := fmt.Sprintf("%s\t%s\n", term, payload)
			written, err := w.WriteString(line)
			if err != nil {
				return nil, &builderrors.MergeFailed{Stage: "postings merge", Cause: err}
			}
			termMap[term] = TermRange{Offset: byteOffset, Length: int64(written) - 1}
			byteOffset += int64(written)
		}

		for _, s := range contributing {
			if err := s.advance(); err != nil {
				return nil, &builderrors.MergeFailed{Stage: "postings merge", Cause: err}
			}
			if !s.done {
				heap.Push(h, s)
			}
		}
	}

	if err := w.Flush(); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "postings merge", Cause: err}
	}
	if err := out.Sync(); err != nil {
		return nil, &builderrors.MergeFailed{Stage: "postings merge", Cause: err}
	}

	return termMap, nil
}

// coalesce sums tf for adjacent entries sharing a doc_uid. Under correct
// partitioning every doc_uid appears in exactly one block's postings for
// a given term, so this is a safety net, not a normal path.
func coalesce(postings []postingPair) []postingPair {
	if len(postings) == 0 {
		return postings
	}
	out := postings[:1]
	for _, p := range postings[1:] {
		last := &out[len(out)-1]
		if last.DocUID == p.DocUID {
			last.TF += p.TF
			continue
		}
		out = append(out, p)
	}
	return out
}
