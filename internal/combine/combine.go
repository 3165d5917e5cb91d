// Package combine merges the table and OCR outputs into the compact
// {tables, text} document.
package combine

import (
	"fmt"
	"os"

	"github.com/toricodesthings/document-processor/internal/jsonio"
	"github.com/toricodesthings/document-processor/internal/logging"
)

// Table is a minimized table. Values are carried over from the table output
// and re-encoded, so escapes in the input are not preserved.
type Table struct {
	Page    Value `json:"p"`
	Headers Value `json:"h"`
	Data    Value `json:"d"`
}

// TextEntry is one minimized text record. Page is nil for documents that
// carry a single flat text.
type TextEntry struct {
	Page *Value `json:"p,omitempty"`
	Text Value  `json:"t"`
}

type Combined struct {
	Tables []Table     `json:"tables"`
	Text   []TextEntry `json:"text"`
}

type Combiner struct {
	combined Combined
	log      *logging.Logger
}

func New(log *logging.Logger) *Combiner {
	if log == nil {
		log = logging.Discard()
	}
	return &Combiner{
		combined: Combined{Tables: []Table{}, Text: []TextEntry{}},
		log:      log,
	}
}

// LoadAndCombine reads both files and keeps the combined document for
// SaveCombined.
func (c *Combiner) LoadAndCombine(tableFile, ocrFile string) (Combined, error) {
	tableRaw, err := readJSON(tableFile)
	if err != nil {
		return Combined{}, err
	}
	ocrRaw, err := readJSON(ocrFile)
	if err != nil {
		return Combined{}, err
	}

	tables, err := MinimizeTables(tableRaw)
	if err != nil {
		return Combined{}, fmt.Errorf("%s: %w", tableFile, err)
	}
	src, err := ParseOCR(ocrRaw)
	if err != nil {
		return Combined{}, fmt.Errorf("%s: %w", ocrFile, err)
	}

	c.combined = Combined{Tables: tables, Text: src.Minimize()}
	return c.combined, nil
}

// SaveCombined writes compact JSON when minify is set, two-space indented
// JSON otherwise.
func (c *Combiner) SaveCombined(path string, minify bool) error {
	if err := jsonio.WriteFile(path, c.combined, !minify); err != nil {
		return err
	}
	c.log.Info("Combined file saved: "+path, "bytes", FileSize(path), "tables", len(c.combined.Tables), "text", len(c.combined.Text))
	return nil
}

// FileSize returns the size of path, or 0 when it cannot be read.
func FileSize(path string) int64 {
	st, err := os.Stat(path)
	if err != nil {
		return 0
	}
	return st.Size()
}

// MinimizeTables maps each entry of the "tables" array to {p, h, d}. A
// document without a "tables" key yields no tables.
func MinimizeTables(doc Value) ([]Table, error) {
	obj, ok := doc.Object()
	if !ok {
		return []Table{}, nil
	}
	list, ok := obj.vals["tables"]
	if !ok {
		return []Table{}, nil
	}

	entries, ok := list.Array()
	if !ok {
		return nil, fmt.Errorf("tables: expected an array of objects")
	}

	out := make([]Table, 0, len(entries))
	for i, e := range entries {
		t, ok := e.Object()
		if !ok {
			return nil, fmt.Errorf("tables[%d]: expected an object", i)
		}
		out = append(out, Table{
			Page:    t.Field("page"),
			Headers: t.Field("headers"),
			Data:    t.Field("data"),
		})
	}
	return out, nil
}

func readJSON(path string) (Value, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Value{}, fmt.Errorf("read %s: %w", path, err)
	}
	v, err := ParseValue(b)
	if err != nil {
		return Value{}, fmt.Errorf("parse %s: %w", path, err)
	}
	return v, nil
}
