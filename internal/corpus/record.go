// Package corpus decodes the line-delimited JSON corpus format and scans
// it into byte-range blocks without materializing the file.
package corpus

import (
	"encoding/json"
	"fmt"
)

// Document is one corpus record. DocID and Text are required;
// Title and URL are optional.
type Document struct {
	DocID string `json:"doc_id"`
	Title string `json:"title"`
	Text  string `json:"text"`
	URL   string `json:"url"`
}

// ParseLine decodes one corpus line. A blank line or one that fails to
// parse or is missing a required field returns an error; callers must
// treat that as a skip-and-count rejection, never fatal.
func ParseLine(line []byte) (Document, error) {
	var doc Document
	if len(line) == 0 {
		return doc, fmt.Errorf("empty line")
	}
	if err := json.Unmarshal(line, &doc); err != nil {
		return doc, fmt.Errorf("malformed json: %w", err)
	}
	if doc.DocID == "" {
		return doc, fmt.Errorf("missing doc_id")
	}
	if doc.Text == "" {
		return doc, fmt.Errorf("missing text")
	}
	return doc, nil
}
