package ocr

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"os/exec"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/toricodesthings/document-processor/internal/logging"
)

type PopplerConfig struct {
	PDFInfoTimeout  time.Duration
	PDFToPPMTimeout time.Duration
	// MaxPageBytes caps one rendered page read from pdftoppm's stdout.
	MaxPageBytes int64
	Logger       *logging.Logger
}

func (c PopplerConfig) withDefaults() PopplerConfig {
	out := c
	if out.PDFInfoTimeout <= 0 {
		out.PDFInfoTimeout = 5 * time.Second
	}
	if out.PDFToPPMTimeout <= 0 {
		out.PDFToPPMTimeout = 60 * time.Second
	}
	if out.MaxPageBytes <= 0 {
		out.MaxPageBytes = 256 << 20
	}
	if out.Logger == nil {
		out.Logger = logging.Discard()
	}
	return out
}

// Poppler renders pages by shelling out to pdfinfo and pdftoppm.
type Poppler struct {
	cfg PopplerConfig
}

func NewPoppler(cfg PopplerConfig) *Poppler {
	return &Poppler{cfg: cfg.withDefaults()}
}

func (p *Poppler) Name() string { return "poppler" }

func (p *Poppler) Open(ctx context.Context, pdfPath string) (RasterDoc, error) {
	info, err := p.info(ctx, pdfPath)
	if err != nil {
		return nil, err
	}
	if info.Encrypted {
		p.cfg.Logger.Warn("pdf is encrypted, rendering may fail", "path", pdfPath)
	}
	return &popplerDoc{p: p, path: pdfPath, pages: info.Pages}, nil
}

type pdfInfo struct {
	Pages     int
	Encrypted bool
}

var (
	pageCountRegex = regexp.MustCompile(`(?m)^Pages:\s+(\d+)\s*$`)
	encryptedRegex = regexp.MustCompile(`(?mi)^Encrypted:\s+yes`)
)

func (p *Poppler) info(ctx context.Context, pdfPath string) (pdfInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.PDFInfoTimeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, "pdfinfo", pdfPath)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return pdfInfo{}, p.classify("pdfinfo", err, ctx, stderr.String(), 0)
	}

	out := stdout.String()
	pages, err := parsePages(out)
	if err != nil {
		return pdfInfo{}, err
	}
	return pdfInfo{Pages: pages, Encrypted: encryptedRegex.MatchString(out)}, nil
}

type popplerDoc struct {
	p     *Poppler
	path  string
	pages int
}

func (d *popplerDoc) NumPages() int { return d.pages }

func (d *popplerDoc) Close() error { return nil }

func (d *popplerDoc) Render(ctx context.Context, page, dpi int) (image.Image, error) {
	if page < 1 || page > d.pages {
		return nil, fmt.Errorf("invalid page number: %d (document has %d)", page, d.pages)
	}

	ctx, cancel := context.WithTimeout(ctx, d.p.cfg.PDFToPPMTimeout)
	defer cancel()

	n := strconv.Itoa(page)
	cmd := exec.CommandContext(ctx,
		"pdftoppm",
		"-png",
		"-r", strconv.Itoa(dpi),
		"-f", n,
		"-l", n,
		"-singlefile",
		d.path,
	)

	out, stderr, err := runCommandCaptureLimited(cmd, d.p.cfg.MaxPageBytes)
	if err != nil {
		return nil, d.p.classify("pdftoppm", err, ctx, stderr, page)
	}

	img, err := png.Decode(bytes.NewReader(out))
	if err != nil {
		return nil, fmt.Errorf("pdftoppm page %d: decode: %w", page, err)
	}
	return img, nil
}

func parsePages(pdfinfoOut string) (int, error) {
	if m := pageCountRegex.FindStringSubmatch(pdfinfoOut); len(m) == 2 {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			return 0, fmt.Errorf("pdfinfo: invalid page count: %w", err)
		}
		return validatePages(n)
	}

	// Some poppler builds pad or reorder fields.
	sc := bufio.NewScanner(strings.NewReader(pdfinfoOut))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !strings.HasPrefix(strings.ToLower(line), "pages:") {
			continue
		}
		fields := strings.Fields(line[len("pages:"):])
		if len(fields) == 0 {
			break
		}
		n, err := strconv.Atoi(fields[0])
		if err != nil {
			return 0, fmt.Errorf("pdfinfo: invalid page count: %w", err)
		}
		return validatePages(n)
	}
	if err := sc.Err(); err != nil {
		return 0, fmt.Errorf("pdfinfo: scan failed: %w", err)
	}
	return 0, fmt.Errorf("pdfinfo: pages field not found in output")
}

func validatePages(count int) (int, error) {
	if count < 0 || count > 50000 {
		return 0, fmt.Errorf("pdfinfo: unreasonable page count: %d", count)
	}
	return count, nil
}

var errOutputLimit = errors.New("output exceeds limit")

// runCommandCaptureLimited runs cmd and reads at most maxBytes of stdout.
// stderr is captured fully for error reporting.
func runCommandCaptureLimited(cmd *exec.Cmd, maxBytes int64) ([]byte, string, error) {
	stdoutPipe, err := cmd.StdoutPipe()
	if err != nil {
		return nil, "", fmt.Errorf("stdout pipe: %w", err)
	}

	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, "", fmt.Errorf("start: %w", err)
	}

	out, readErr := io.ReadAll(io.LimitReader(stdoutPipe, maxBytes+1))
	if readErr != nil || int64(len(out)) > maxBytes {
		_ = cmd.Process.Kill()
	}
	waitErr := cmd.Wait()
	stderrStr := strings.TrimSpace(stderr.String())

	if readErr != nil {
		return nil, stderrStr, fmt.Errorf("read stdout: %w", readErr)
	}
	if int64(len(out)) > maxBytes {
		return nil, stderrStr, errOutputLimit
	}
	if waitErr != nil {
		return nil, stderrStr, waitErr
	}
	return out, stderrStr, nil
}

// isHelpOrUsageOutput reports whether stderr is a poppler usage dump rather
// than a processing error.
func isHelpOrUsageOutput(stderr string) bool {
	return strings.Contains(stderr, "version ") && strings.Contains(stderr, "Usage:")
}

func (p *Poppler) classify(tool string, err error, ctx context.Context, stderr string, page int) error {
	where := tool
	if page > 0 {
		where = fmt.Sprintf("%s page %d", tool, page)
	}

	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("%s timeout: %w", where, ctx.Err())
	}
	if errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s canceled: %w", where, ctx.Err())
	}
	if errors.Is(err, errOutputLimit) {
		return fmt.Errorf("%s: rendered image too large", where)
	}

	stderr = strings.TrimSpace(stderr)
	if stderr == "" {
		return fmt.Errorf("%s failed: %w", where, err)
	}

	p.logStderr(tool, stderr, page)
	switch {
	case isHelpOrUsageOutput(stderr):
		return fmt.Errorf("%s failed (bad invocation)", where)
	case containsAny(stderr, "Incorrect password", "Command Line Error: Incorrect password"):
		return fmt.Errorf("PDF is password protected")
	case containsAny(stderr, "PDF file is damaged", "Syntax Error", "Couldn't find trailer dictionary", "May not be a PDF file"):
		return fmt.Errorf("PDF appears to be damaged or invalid")
	case strings.Contains(stderr, "I/O Error") && strings.Contains(stderr, "Couldn't open file"):
		return fmt.Errorf("unable to open PDF")
	}
	return fmt.Errorf("%s failed: %s", where, truncate(stderr, 200))
}

func (p *Poppler) logStderr(tool, stderr string, page int) {
	args := []any{"tool", tool, "stderr", truncate(stderr, 500)}
	if page > 0 {
		args = append(args, "page", page)
	}
	p.cfg.Logger.Warn("poppler error", args...)
}

func containsAny(s string, needles ...string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}

func truncate(s string, max int) string {
	if len(s) > max {
		return s[:max] + "..."
	}
	return s
}
