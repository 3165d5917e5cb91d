// Package intake stages input documents in a private temp directory.
package intake

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/toricodesthings/document-processor/internal/storage"
)

const pdfMIME = "application/pdf"

var (
	ErrNotPDF   = errors.New("input is not a PDF")
	ErrTooLarge = errors.New("input exceeds size limit")
)

// File is a staged input. Cleanup removes its whole temp directory.
type File struct {
	TempDir  string
	Path     string
	MIMEType string
	Size     int64
}

func (f File) Cleanup() {
	if f.TempDir != "" {
		_ = os.RemoveAll(f.TempDir)
	}
}

func (f File) IsPDF() bool { return f.MIMEType == pdfMIME }

// RequirePDF returns ErrNotPDF unless the sniffed type is application/pdf.
func (f File) RequirePDF() error {
	if f.IsPDF() {
		return nil
	}
	return fmt.Errorf("%w (detected %s)", ErrNotPDF, f.MIMEType)
}

// SaveBody copies at most maxBytes of body into a new temp directory.
func SaveBody(body io.Reader, fileName string, maxBytes int64) (File, error) {
	return stage(fileName, maxBytes, func(w io.Writer, limit int64) (int64, error) {
		return io.Copy(w, &io.LimitedReader{R: body, N: limit + 1})
	})
}

// Download fetches url into a new temp directory. Only public https hosts are
// accepted unless ALLOW_PRIVATE_DOWNLOAD_URLS is set.
func Download(ctx context.Context, url, fileName string, maxBytes int64, timeout time.Duration) (File, error) {
	if err := validateDownloadURL(url); err != nil {
		return File{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return File{}, fmt.Errorf("download: %w", err)
	}
	req.Header.Set("User-Agent", "document-processor/1.0")

	client := &http.Client{Timeout: timeout}
	resp, err := client.Do(req)
	if err != nil {
		return File{}, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return File{}, fmt.Errorf("download failed: HTTP %d", resp.StatusCode)
	}
	if resp.ContentLength > maxBytes {
		return File{}, fmt.Errorf("%w: %d bytes", ErrTooLarge, resp.ContentLength)
	}

	if fileName == "" {
		fileName = filepath.Base(req.URL.Path)
	}
	return SaveBody(resp.Body, fileName, maxBytes)
}

// FromStorage copies bucket/key out of object storage.
func FromStorage(ctx context.Context, store storage.Storage, bucket, key string, maxBytes int64) (File, error) {
	return stage(filepath.Base(key), maxBytes, func(w io.Writer, limit int64) (int64, error) {
		return store.Download(ctx, bucket, key, w, limit)
	})
}

func stage(fileName string, maxBytes int64, copyFn func(w io.Writer, limit int64) (int64, error)) (File, error) {
	tmpDir, err := os.MkdirTemp("", "docproc-*")
	if err != nil {
		return File{}, fmt.Errorf("temp dir: %w", err)
	}

	safeName := filepath.Base(strings.TrimSpace(fileName))
	if safeName == "" || safeName == "." || safeName == string(filepath.Separator) {
		safeName = "input.pdf"
	}
	outPath := filepath.Join(tmpDir, safeName)

	fail := func(err error) (File, error) {
		_ = os.RemoveAll(tmpDir)
		return File{}, err
	}

	f, err := os.Create(outPath)
	if err != nil {
		return fail(fmt.Errorf("create: %w", err))
	}
	defer f.Close()

	n, err := copyFn(f, maxBytes)
	if err != nil {
		return fail(fmt.Errorf("write: %w", err))
	}
	if n > maxBytes {
		return fail(fmt.Errorf("%w: file exceeds %dMB limit", ErrTooLarge, maxBytes/(1<<20)))
	}
	if err := f.Sync(); err != nil {
		return fail(fmt.Errorf("sync: %w", err))
	}

	return File{
		TempDir:  tmpDir,
		Path:     outPath,
		MIMEType: sniffMIMEType(outPath),
		Size:     n,
	}, nil
}

func sniffMIMEType(path string) string {
	m, err := mimetype.DetectFile(path)
	if err != nil || m == nil {
		return ""
	}
	mt := strings.ToLower(strings.TrimSpace(m.String()))
	if i := strings.Index(mt, ";"); i > 0 {
		mt = strings.TrimSpace(mt[:i])
	}
	return mt
}
