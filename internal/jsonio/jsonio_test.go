package jsonio

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestMarshalKeepsNonASCIIAndHTML(t *testing.T) {
	t.Parallel()

	b, err := Marshal(map[string]string{"t": "Zürich <b>&</b> €"}, false)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := `{"t":"Zürich <b>&</b> €"}`
	if string(b) != want {
		t.Fatalf("got %s, want %s", b, want)
	}
}

func TestMarshalKeepsLineSeparatorsRaw(t *testing.T) {
	t.Parallel()

	b, err := Marshal([]string{"line\u2028sep\u2029end", `literal \u2028`}, false)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := "[\"line\u2028sep\u2029end\",\"literal \\\\u2028\"]"
	if string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
}

func TestMarshalIndentUsesTwoSpaces(t *testing.T) {
	t.Parallel()

	b, err := Marshal(map[string][]int{"a": {1}}, true)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	want := "{\n  \"a\": [\n    1\n  ]\n}"
	if string(b) != want {
		t.Fatalf("got %q, want %q", b, want)
	}
}

func TestWriteThenReadFile(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out.json")
	if err := WriteFile(path, map[string]int{"n": 3}, false); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got map[string]int
	if err := ReadFile(path, &got); err != nil {
		t.Fatalf("read: %v", err)
	}
	if got["n"] != 3 {
		t.Fatalf("unexpected content %v", got)
	}
}

func TestReadFileReportsParseErrors(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	var v any
	err := ReadFile(path, &v)
	if err == nil || !strings.Contains(err.Error(), "parse") {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestWriteFileFailsForMissingDir(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "missing", "out.json")
	if err := WriteFile(path, 1, false); err == nil {
		t.Fatalf("expected error for missing directory")
	}
}
