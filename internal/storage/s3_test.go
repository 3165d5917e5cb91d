package storage

import "testing"

func TestResultKey(t *testing.T) {
	t.Parallel()

	cases := []struct {
		prefix, input, want string
	}{
		{"combined/", "/data/apple-sec-filing.pdf", "combined/apple-sec-filing.json"},
		{"", "report.PDF", "report.json"},
		{"/a/b/", `C:\docs\scan.pdf`, "a/b/scan.json"},
		{"out", "", "out/document.json"},
		{"out", "archive.tar.pdf", "out/archive.tar.json"},
	}
	for _, c := range cases {
		if got := ResultKey(c.prefix, c.input); got != c.want {
			t.Fatalf("ResultKey(%q, %q) = %q, want %q", c.prefix, c.input, got, c.want)
		}
	}
}
