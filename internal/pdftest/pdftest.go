// Package pdftest assembles small uncompressed PDF documents for tests.
package pdftest

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Image is an image XObject. JPEG data is stored with DCTDecode; otherwise
// Gray holds raw 8-bit DeviceGray samples.
type Image struct {
	Width, Height int
	JPEG          []byte
	Gray          []byte
}

// Page is one US Letter page. Content is the raw content stream; the font
// resource /F1 is Helvetica and images are named /Im1, /Im2 and so on.
type Page struct {
	Content string
	Images  []Image
}

// Text returns content stream operators showing s at (x, y) in 10pt /F1.
func Text(x, y float64, s string) string {
	esc := strings.NewReplacer(`\`, `\\`, "(", `\(`, ")", `\)`).Replace(s)
	return fmt.Sprintf("BT /F1 10 Tf %g %g Td (%s) Tj ET\n", x, y, esc)
}

// Rule returns content stream operators stroking a line from (x0, y0) to
// (x1, y1).
func Rule(x0, y0, x1, y1 float64) string {
	return fmt.Sprintf("0.5 w %g %g m %g %g l S\n", x0, y0, x1, y1)
}

// Build lays out a catalog, page tree, shared font and pages, followed by a
// cross-reference table with exact offsets.
func Build(pages ...Page) []byte {
	pageNums := make([]int, len(pages))
	next := 4
	for i, p := range pages {
		pageNums[i] = next
		next += 2 + len(p.Images)
	}

	kids := make([]string, len(pages))
	for i, n := range pageNums {
		kids[i] = fmt.Sprintf("%d 0 R", n)
	}

	objs := [][]byte{
		[]byte("<< /Type /Catalog /Pages 2 0 R >>"),
		fmt.Appendf(nil, "<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(pages)),
		[]byte("<< /Type /Font /Subtype /Type1 /BaseFont /Helvetica >>"),
	}
	for i, p := range pages {
		n := pageNums[i]
		res := "/Font << /F1 3 0 R >>"
		if len(p.Images) > 0 {
			var xo strings.Builder
			for j := range p.Images {
				fmt.Fprintf(&xo, " /Im%d %d 0 R", j+1, n+2+j)
			}
			res += " /XObject <<" + xo.String() + " >>"
		}
		objs = append(objs,
			fmt.Appendf(nil, "<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Resources << %s >> /Contents %d 0 R >>", res, n+1),
			stream("", []byte(p.Content)),
		)
		for _, img := range p.Images {
			objs = append(objs, img.object())
		}
	}

	var buf bytes.Buffer
	buf.WriteString("%PDF-1.7\n")
	offsets := make([]int, len(objs))
	for i, o := range objs {
		offsets[i] = buf.Len()
		fmt.Fprintf(&buf, "%d 0 obj\n", i+1)
		buf.Write(o)
		buf.WriteString("\nendobj\n")
	}

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(objs)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(objs)+1, xref)
	return buf.Bytes()
}

// Write builds the document into a file under t.TempDir and returns its path.
func Write(t testing.TB, pages ...Page) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "fixture.pdf")
	if err := os.WriteFile(path, Build(pages...), 0o644); err != nil {
		t.Fatalf("write fixture pdf: %v", err)
	}
	return path
}

func (img Image) object() []byte {
	dict := fmt.Sprintf("/Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceGray /BitsPerComponent 8",
		img.Width, img.Height)
	if img.JPEG != nil {
		return stream(dict+" /Filter /DCTDecode", img.JPEG)
	}
	return stream(dict, img.Gray)
}

func stream(dict string, data []byte) []byte {
	var b bytes.Buffer
	fmt.Fprintf(&b, "<< %s /Length %d >>\nstream\n", strings.TrimSpace(dict), len(data))
	b.Write(data)
	b.WriteString("\nendstream")
	return b.Bytes()
}
