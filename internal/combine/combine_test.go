package combine

import (
	"encoding/json"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/toricodesthings/document-processor/internal/jsonio"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func combineStrings(t *testing.T, tableJSON, ocrJSON string) Combined {
	t.Helper()
	dir := t.TempDir()
	tf := writeFile(t, dir, "tables.json", tableJSON)
	of := writeFile(t, dir, "ocr.json", ocrJSON)
	got, err := New(nil).LoadAndCombine(tf, of)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	return got
}

func compact(t *testing.T, v any) string {
	t.Helper()
	b, err := jsonio.Marshal(v, false)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return string(b)
}

func TestCombinePagedText(t *testing.T) {
	t.Parallel()

	got := combineStrings(t,
		`{"source":"a.pdf","total_tables":1,"tables":[{"page":1,"table":1,"headers":["A"],"data":[{"A":1}]}]}`,
		`{"pages":[{"page_number":1,"text":" Hello "},{"page_number":2,"text":"   "}]}`,
	)

	want := `{"tables":[{"p":1,"h":["A"],"d":[{"A":1}]}],"text":[{"p":1,"t":"Hello"}]}`
	if s := compact(t, got); s != want {
		t.Fatalf("got  %s\nwant %s", s, want)
	}
}

func TestCombineFlatTextIsNotFiltered(t *testing.T) {
	t.Parallel()

	got := combineStrings(t, `{}`, `{"text":"  raw  "}`)
	if s := compact(t, got); s != `{"tables":[],"text":[{"t":"  raw  "}]}` {
		t.Fatalf("got %s", s)
	}

	got = combineStrings(t, `{}`, `{"text":""}`)
	if s := compact(t, got); s != `{"tables":[],"text":[{"t":""}]}` {
		t.Fatalf("blank flat text must survive, got %s", s)
	}
}

func TestCombinePagesWinOverText(t *testing.T) {
	t.Parallel()

	got := combineStrings(t, `{}`, `{"text":"flat","pages":[{"page_number":3,"text":"paged"}]}`)
	if s := compact(t, got); s != `{"tables":[],"text":[{"p":3,"t":"paged"}]}` {
		t.Fatalf("got %s", s)
	}
}

func TestCombineOwnOCROutputYieldsNoText(t *testing.T) {
	t.Parallel()

	got := combineStrings(t,
		`{"tables":[]}`,
		`{"text_by_page":[{"page":1,"text":"Hello"}],"images":[]}`,
	)
	if len(got.Text) != 0 {
		t.Fatalf("text_by_page is not a recognized shape, got %v", got.Text)
	}
}

func TestCombineMissingFieldsDegrade(t *testing.T) {
	t.Parallel()

	got := combineStrings(t,
		`{"tables":[{"page":2}]}`,
		`{"pages":[{"text":"x"},{"page_number":5}]}`,
	)
	want := `{"tables":[{"p":2,"h":null,"d":null}],"text":[{"p":null,"t":"x"}]}`
	if s := compact(t, got); s != want {
		t.Fatalf("got  %s\nwant %s", s, want)
	}
}

func TestCombineNonObjectDocuments(t *testing.T) {
	t.Parallel()

	got := combineStrings(t, `[1,2]`, `"just a string"`)
	if s := compact(t, got); s != `{"tables":[],"text":[]}` {
		t.Fatalf("got %s", s)
	}
}

func TestCombineMalformedJSONIsFatal(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tf := writeFile(t, dir, "tables.json", `{"tables": [`)
	of := writeFile(t, dir, "ocr.json", `{}`)
	_, err := New(nil).LoadAndCombine(tf, of)
	if err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}

	if _, err := New(nil).LoadAndCombine(filepath.Join(dir, "missing.json"), of); err == nil {
		t.Fatalf("expected read error")
	}
}

func TestCombineRejectsWrongShapes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	of := writeFile(t, dir, "ocr.json", `{}`)
	for _, body := range []string{`{"tables":null}`, `{"tables":["x"]}`, `{"tables":{"page":1}}`} {
		tf := writeFile(t, dir, "tables.json", body)
		if _, err := New(nil).LoadAndCombine(tf, of); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}

	tf := writeFile(t, dir, "tables.json", `{}`)
	for _, body := range []string{`{"pages":[{"text":7}]}`, `{"pages":[{"text":null}]}`, `{"pages":"x"}`} {
		bad := writeFile(t, dir, "ocr.json", body)
		if _, err := New(nil).LoadAndCombine(tf, bad); err == nil {
			t.Fatalf("expected error for %s", body)
		}
	}
}

func TestSaveCombinedMinifiedAndIndentedAgree(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tf := writeFile(t, dir, "tables.json", `{"tables":[{"page":1,"headers":["Città"],"data":[{"Città":"Zürich <1> & 2"}]}]}`)
	of := writeFile(t, dir, "ocr.json", `{"pages":[{"page_number":1,"text":"naïve"}]}`)

	c := New(nil)
	if _, err := c.LoadAndCombine(tf, of); err != nil {
		t.Fatalf("combine: %v", err)
	}

	minPath := filepath.Join(dir, "min.json")
	prettyPath := filepath.Join(dir, "pretty.json")
	if err := c.SaveCombined(minPath, true); err != nil {
		t.Fatalf("save min: %v", err)
	}
	if err := c.SaveCombined(prettyPath, false); err != nil {
		t.Fatalf("save pretty: %v", err)
	}

	minRaw, _ := os.ReadFile(minPath)
	prettyRaw, _ := os.ReadFile(prettyPath)

	if strings.Contains(string(minRaw), `": `) || strings.Contains(string(minRaw), `, "`) {
		t.Fatalf("minified output has whitespace between tokens:\n%s", minRaw)
	}
	if strings.Contains(string(minRaw), "\n") {
		t.Fatalf("minified output must be a single line:\n%s", minRaw)
	}
	if !strings.Contains(string(prettyRaw), "\n  \"tables\": [") {
		t.Fatalf("expected 2-space indent:\n%s", prettyRaw)
	}
	for _, raw := range [][]byte{minRaw, prettyRaw} {
		if strings.Contains(string(raw), `\u`) {
			t.Fatalf("output must not escape characters:\n%s", raw)
		}
		if !strings.Contains(string(raw), "Zürich <1> & 2") || !strings.Contains(string(raw), "naïve") {
			t.Fatalf("expected verbatim text:\n%s", raw)
		}
	}

	var a, b any
	if err := json.Unmarshal(minRaw, &a); err != nil {
		t.Fatalf("parse min: %v", err)
	}
	if err := json.Unmarshal(prettyRaw, &b); err != nil {
		t.Fatalf("parse pretty: %v", err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("minified and indented documents differ")
	}

	if FileSize(minPath) != int64(len(minRaw)) {
		t.Fatalf("FileSize %d should equal %d", FileSize(minPath), len(minRaw))
	}
	if FileSize(filepath.Join(dir, "nope.json")) != 0 {
		t.Fatalf("missing file size should be 0")
	}
}

func TestRoundTripReproducesStructure(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tf := writeFile(t, dir, "tables.json", `{"tables":[{"page":4,"table":2,"headers":["X","Y"],"data":[{"X":1.5,"Y":null}]}]}`)
	of := writeFile(t, dir, "ocr.json", `{"pages":[{"page_number":4,"text":"body"}]}`)

	c := New(nil)
	want, err := c.LoadAndCombine(tf, of)
	if err != nil {
		t.Fatalf("combine: %v", err)
	}
	out := filepath.Join(dir, "combined.json")
	if err := c.SaveCombined(out, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, _ := os.ReadFile(out)
	var back struct {
		Tables []struct {
			P int              `json:"p"`
			H []string         `json:"h"`
			D []map[string]any `json:"d"`
		} `json:"tables"`
		Text []struct {
			P int    `json:"p"`
			T string `json:"t"`
		} `json:"text"`
	}
	if err := json.Unmarshal(raw, &back); err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(back.Tables) != len(want.Tables) || back.Tables[0].P != 4 || back.Tables[0].H[1] != "Y" {
		t.Fatalf("tables not reproduced: %s", raw)
	}
	if back.Tables[0].D[0]["X"] != 1.5 || back.Tables[0].D[0]["Y"] != nil {
		t.Fatalf("data not reproduced: %s", raw)
	}
	if len(back.Text) != 1 || back.Text[0].P != 4 || back.Text[0].T != "body" {
		t.Fatalf("text not reproduced: %s", raw)
	}
}

func TestSaveCombinedDecodesInputEscapes(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tf := writeFile(t, dir, "tables.json",
		`{"tables":[{"page":1,"headers":["caf\u00e9"],"data":[{"caf\u00e9":"na\u00efve \u003cb\u003e"}]}]}`)
	of := writeFile(t, dir, "ocr.json", `{"text":"caf\u00e9"}`)

	c := New(nil)
	if _, err := c.LoadAndCombine(tf, of); err != nil {
		t.Fatalf("combine: %v", err)
	}
	out := filepath.Join(dir, "combined.json")
	if err := c.SaveCombined(out, true); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, _ := os.ReadFile(out)
	want := `{"tables":[{"p":1,"h":["café"],"d":[{"café":"naïve <b>"}]}],"text":[{"t":"café"}]}`
	if string(raw) != want {
		t.Fatalf("got  %s\nwant %s", raw, want)
	}
}

func TestSaveCombinedKeepsLineSeparatorsRaw(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	tf := writeFile(t, dir, "tables.json", `{}`)
	of := writeFile(t, dir, "ocr.json", `{"pages":[{"page_number":1,"text":"line\u2028sep"}]}`)

	c := New(nil)
	if _, err := c.LoadAndCombine(tf, of); err != nil {
		t.Fatalf("combine: %v", err)
	}
	out := filepath.Join(dir, "combined.json")
	if err := c.SaveCombined(out, false); err != nil {
		t.Fatalf("save: %v", err)
	}

	raw, _ := os.ReadFile(out)
	if strings.Contains(string(raw), `\u`) || !strings.Contains(string(raw), "line\u2028sep") {
		t.Fatalf("expected raw U+2028 in output:\n%q", raw)
	}
}

func TestCombineKeepsKeyOrderAndNumberText(t *testing.T) {
	t.Parallel()

	got := combineStrings(t,
		`{"tables":[{"data":[{"z":1.50,"a":2e3,"m":true,"z":-0}],"headers":["z","a","m"],"page":7}]}`,
		`{}`,
	)
	want := `{"tables":[{"p":7,"h":["z","a","m"],"d":[{"z":-0,"a":2e3,"m":true}]}],"text":[]}`
	if s := compact(t, got); s != want {
		t.Fatalf("got  %s\nwant %s", s, want)
	}
}
