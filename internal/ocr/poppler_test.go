package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"
)

func TestParsePages(t *testing.T) {
	t.Parallel()

	out := "Producer:       test\nPages:          12\nEncrypted:      no\n"
	n, err := parsePages(out)
	if err != nil || n != 12 {
		t.Fatalf("parsePages = %d, %v", n, err)
	}

	if _, err := parsePages("Producer: x\n"); err == nil {
		t.Fatalf("expected missing pages error")
	}
	if _, err := parsePages("Pages: 999999\n"); err == nil {
		t.Fatalf("expected unreasonable count error")
	}
}

func TestClassifyPopplerErrors(t *testing.T) {
	t.Parallel()

	p := NewPoppler(PopplerConfig{})
	ctx := context.Background()
	base := errors.New("exit status 1")

	cases := []struct {
		stderr string
		want   string
	}{
		{"Command Line Error: Incorrect password", "password protected"},
		{"Syntax Error: Couldn't find trailer dictionary", "damaged"},
		{"I/O Error: Couldn't open file 'x.pdf'", "unable to open"},
		{"pdftoppm version 22.02.0\nUsage: pdftoppm [options]", "bad invocation"},
		{"something odd", "pdftoppm page 2 failed: something odd"},
	}
	for _, c := range cases {
		err := p.classify("pdftoppm", base, ctx, c.stderr, 2)
		if err == nil || !strings.Contains(err.Error(), c.want) {
			t.Fatalf("stderr %q: got %v, want %q", c.stderr, err, c.want)
		}
	}

	if err := p.classify("pdfinfo", errOutputLimit, ctx, "", 0); !strings.Contains(err.Error(), "too large") {
		t.Fatalf("expected size error, got %v", err)
	}
}

func TestClassifyTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 0)
	defer cancel()
	<-ctx.Done()

	err := NewPoppler(PopplerConfig{}).classify("pdfinfo", errors.New("killed"), ctx, "", 0)
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline error, got %v", err)
	}
}
