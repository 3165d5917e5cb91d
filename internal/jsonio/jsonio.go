// Package jsonio writes the pipeline's JSON artifacts.
//
// All artifacts keep non-ASCII and HTML characters verbatim, and are either
// compact or indented with two spaces.
package jsonio

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
)

// Marshal encodes v without HTML escaping and with U+2028/U+2029 left as raw
// characters. The trailing newline added by json.Encoder is dropped.
func Marshal(v any, indent bool) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if indent {
		enc.SetIndent("", "  ")
	}
	if err := enc.Encode(v); err != nil {
		return nil, err
	}
	return restoreLineSeparators(bytes.TrimSuffix(buf.Bytes(), []byte("\n"))), nil
}

// restoreLineSeparators undoes the \u2028 and \u2029 escapes encoding/json
// always applies. Escape sequences are consumed in pairs so an escaped
// backslash followed by "u2028" is left alone.
func restoreLineSeparators(b []byte) []byte {
	if !bytes.Contains(b, []byte(`\u202`)) {
		return b
	}
	out := make([]byte, 0, len(b))
	for i := 0; i < len(b); i++ {
		if b[i] != '\\' || i+1 >= len(b) {
			out = append(out, b[i])
			continue
		}
		if b[i+1] == 'u' && i+5 < len(b) && string(b[i+2:i+5]) == "202" {
			switch b[i+5] {
			case '8':
				out = append(out, "\u2028"...)
				i += 5
				continue
			case '9':
				out = append(out, "\u2029"...)
				i += 5
				continue
			}
		}
		out = append(out, b[i], b[i+1])
		i++
	}
	return out
}

// WriteFile encodes v and writes it to path, replacing any previous file.
func WriteFile(path string, v any, indent bool) error {
	b, err := Marshal(v, indent)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if _, err := f.Write(b); err != nil {
		_ = f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close %s: %w", path, err)
	}
	return nil
}

// ReadFile loads path into v.
func ReadFile(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
