package combine

import (
	"fmt"
	"strings"
)

// OCRSource is the OCR document after its shape has been resolved. It is one
// of PagedText, FlatText or EmptyText.
type OCRSource interface {
	Minimize() []TextEntry
	isOCRSource()
}

// PagedText is a document with a "pages" array of {page_number, text}.
type PagedText struct {
	Pages []OCRPage
}

type OCRPage struct {
	Number Value
	Text   string
}

// FlatText is a document with a single top-level "text" value.
type FlatText struct {
	Text Value
}

// EmptyText is any other document, including the OCR stage's own
// text_by_page output.
type EmptyText struct{}

func (PagedText) isOCRSource() {}
func (FlatText) isOCRSource()  {}
func (EmptyText) isOCRSource() {}

// Minimize keeps pages whose trimmed text is non-empty.
func (p PagedText) Minimize() []TextEntry {
	out := make([]TextEntry, 0, len(p.Pages))
	for _, pg := range p.Pages {
		t := strings.TrimSpace(pg.Text)
		if t == "" {
			continue
		}
		page := pg.Number
		out = append(out, TextEntry{Page: &page, Text: StringValue(t)})
	}
	return out
}

// Minimize passes the text through as-is, even when blank.
func (f FlatText) Minimize() []TextEntry {
	return []TextEntry{{Text: f.Text}}
}

func (EmptyText) Minimize() []TextEntry { return []TextEntry{} }

// ParseOCR resolves the shape of an OCR document. "pages" takes precedence
// over "text".
func ParseOCR(doc Value) (OCRSource, error) {
	obj, ok := doc.Object()
	if !ok {
		return EmptyText{}, nil
	}

	if pages, ok := obj.vals["pages"]; ok {
		entries, ok := pages.Array()
		if !ok {
			return nil, fmt.Errorf("pages: expected an array of objects")
		}
		out := PagedText{Pages: make([]OCRPage, 0, len(entries))}
		for i, e := range entries {
			pe, ok := e.Object()
			if !ok {
				return nil, fmt.Errorf("pages[%d]: expected an object", i)
			}
			pg := OCRPage{Number: pe.Field("page_number")}
			if t, ok := pe.vals["text"]; ok {
				if pg.Text, ok = t.Str(); !ok {
					return nil, fmt.Errorf("pages[%d].text: expected a string", i)
				}
			}
			out.Pages = append(out.Pages, pg)
		}
		return out, nil
	}

	if text, ok := obj.vals["text"]; ok {
		return FlatText{Text: text}, nil
	}
	return EmptyText{}, nil
}
