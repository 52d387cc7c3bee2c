// Package docindex implements the doc_uid to byte-offset mapping. doc_uid
// is densely allocated, so a packed array of offsets indexed by doc_uid is
// sufficient and needs no embedded database.
package docindex

import (
	"encoding/binary"
	"fmt"
	"os"
)

// Reason classifies why a doc_uid lookup failed.
type Reason int

const (
	ReasonNotFound Reason = iota
	ReasonInvalidID
)

func (r Reason) String() string {
	switch r {
	case ReasonNotFound:
		return "not found"
	case ReasonInvalidID:
		return "invalid id"
	default:
		return "unknown"
	}
}

// LookupError reports a failed doc_uid -> offset lookup.
type LookupError struct {
	DocUID uint64
	Reason Reason
}

func (e *LookupError) Error() string {
	return fmt.Sprintf("docindex: lookup failed for doc_uid %d: %s", e.DocUID, e.Reason)
}

// Index is an in-memory packed array of offsets, one per doc_uid.
type Index struct {
	offsets []int64
}

// New builds an Index from offsets already in doc_uid order.
func New(offsets []int64) *Index {
	return &Index{offsets: offsets}
}

// Len returns N, the number of doc_uids covered.
func (idx *Index) Len() int { return len(idx.offsets) }

// Offset returns the byte offset of docUID's line in the doc store.
func (idx *Index) Offset(docUID uint64) (int64, error) {
	if docUID >= uint64(len(idx.offsets)) {
		return 0, &LookupError{DocUID: docUID, Reason: ReasonNotFound}
	}
	return idx.offsets[docUID], nil
}

// Save persists the index as a flat little-endian int64 array.
func Save(path string, offsets []int64) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	buf := make([]byte, 8*len(offsets))
	for i, off := range offsets {
		binary.LittleEndian.PutUint64(buf[i*8:], uint64(off))
	}
	if _, err := f.Write(buf); err != nil {
		return err
	}
	return f.Sync()
}

// Load reads a packed offset array written by Save.
func Load(path string) (*Index, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(raw)%8 != 0 {
		return nil, fmt.Errorf("docindex: corrupt index file %s: length %d not a multiple of 8", path, len(raw))
	}
	offsets := make([]int64, len(raw)/8)
	for i := range offsets {
		offsets[i] = int64(binary.LittleEndian.Uint64(raw[i*8:]))
	}
	return &Index{offsets: offsets}, nil
}
