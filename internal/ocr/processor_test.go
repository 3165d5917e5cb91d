package ocr

import (
	"context"
	"encoding/json"
	"errors"
	"image"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type fakeRaster struct {
	pages  int
	failAt int
	closed bool
}

func (f *fakeRaster) Name() string { return "fake" }

func (f *fakeRaster) Open(context.Context, string) (RasterDoc, error) { return f, nil }

func (f *fakeRaster) NumPages() int { return f.pages }

func (f *fakeRaster) Render(_ context.Context, page, _ int) (image.Image, error) {
	if page == f.failAt {
		return nil, errors.New("render failed")
	}
	return image.NewGray(image.Rect(0, 0, 4, 4)), nil
}

func (f *fakeRaster) Close() error {
	f.closed = true
	return nil
}

type fakeImages []EmbeddedImage

func (f fakeImages) Images(context.Context, string) ([]EmbeddedImage, error) { return f, nil }

func echoRecognizer(texts map[string]string) Recognizer {
	return RecognizerFunc(func(_ context.Context, path string) (string, error) {
		if _, err := os.Stat(path); err != nil {
			return "", err
		}
		return texts[filepath.Base(path)], nil
	})
}

func newTestProcessor(t *testing.T, raster *fakeRaster, rec Recognizer, imgs ImageSource, opts ...Option) (*Processor, string) {
	t.Helper()
	dir := t.TempDir()
	tmp := filepath.Join(dir, "pages")
	out := filepath.Join(dir, "ocr-output.json")
	opts = append([]Option{WithRasterizer(raster), WithRecognizer(rec), WithImageSource(imgs)}, opts...)
	p, err := New("in.pdf", out, tmp, opts...)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	return p, out
}

func TestNewCreatesTempDir(t *testing.T) {
	t.Parallel()

	p, _ := newTestProcessor(t, &fakeRaster{}, echoRecognizer(nil), fakeImages(nil))
	if st, err := os.Stat(p.TempDir()); err != nil || !st.IsDir() {
		t.Fatalf("temp dir missing: %v", err)
	}
}

func TestNewRejectsUnknownFormat(t *testing.T) {
	t.Parallel()

	_, err := New("in.pdf", "out.json", t.TempDir(), WithPageFormat("bmp"))
	if err == nil {
		t.Fatalf("expected format error")
	}
}

func TestExtractTextTrimsAndKeepsEmptyPages(t *testing.T) {
	t.Parallel()

	raster := &fakeRaster{pages: 3}
	rec := echoRecognizer(map[string]string{
		"page_1.png": "  Hello\n",
		"page_3.png": "World",
	})
	p, _ := newTestProcessor(t, raster, rec, fakeImages(nil))

	got, err := p.ExtractText(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	want := []PageText{{1, "Hello"}, {2, ""}, {3, "World"}}
	if len(got) != len(want) {
		t.Fatalf("got %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("page %d: got %+v, want %+v", i+1, got[i], want[i])
		}
	}
	if !raster.closed {
		t.Fatalf("raster doc must be closed")
	}
}

func TestExtractTextWritesTIFFPages(t *testing.T) {
	t.Parallel()

	rec := echoRecognizer(map[string]string{"page_1.tiff": "tiff text"})
	p, _ := newTestProcessor(t, &fakeRaster{pages: 1}, rec, fakeImages(nil), WithPageFormat("TIF"))

	got, err := p.ExtractText(context.Background())
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if got[0].Text != "tiff text" {
		t.Fatalf("expected recognizer to read page_1.tiff, got %+v", got)
	}
}

func TestExtractTextAbortsOnFailure(t *testing.T) {
	t.Parallel()

	p, _ := newTestProcessor(t, &fakeRaster{pages: 3, failAt: 2}, echoRecognizer(nil), fakeImages(nil))
	if _, err := p.ExtractText(context.Background()); err == nil {
		t.Fatalf("expected render failure")
	}

	boom := RecognizerFunc(func(context.Context, string) (string, error) { return "", ErrOCRNotEnabled })
	p, _ = newTestProcessor(t, &fakeRaster{pages: 1}, boom, fakeImages(nil))
	if _, err := p.ExtractText(context.Background()); !errors.Is(err, ErrOCRNotEnabled) {
		t.Fatalf("expected ErrOCRNotEnabled, got %v", err)
	}
}

func TestExtractImagesNamesFiles(t *testing.T) {
	t.Parallel()

	imgs := fakeImages{
		{Page: 1, Index: 1, Ext: "jpg", Data: []byte{0xff, 0xd8}},
		{Page: 1, Index: 2, Ext: "png", Data: []byte("png")},
		{Page: 3, Index: 1, Ext: "bin", Data: []byte("?")},
	}
	p, _ := newTestProcessor(t, &fakeRaster{}, echoRecognizer(nil), imgs)

	got, err := p.ExtractImages(context.Background())
	if err != nil {
		t.Fatalf("extract images: %v", err)
	}
	wantNames := []string{"page_1_img_1.jpg", "page_1_img_2.png", "page_3_img_1.bin"}
	for i, name := range wantNames {
		if filepath.Base(got[i].File) != name {
			t.Fatalf("image %d: got %s, want %s", i, got[i].File, name)
		}
		if _, err := os.Stat(got[i].File); err != nil {
			t.Fatalf("image file missing: %v", err)
		}
	}
	if got[2].Page != 3 {
		t.Fatalf("expected page 3, got %d", got[2].Page)
	}
}

func TestProcessWritesOutputFile(t *testing.T) {
	t.Parallel()

	rec := echoRecognizer(map[string]string{"page_1.png": "Grüße"})
	imgs := fakeImages{{Page: 1, Index: 1, Ext: "png", Data: []byte("x")}}
	p, out := newTestProcessor(t, &fakeRaster{pages: 1}, rec, imgs)

	res, err := p.Process(context.Background())
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(res.TextByPage) != 1 || len(res.Images) != 1 {
		t.Fatalf("unexpected result %+v", res)
	}

	raw, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("read output: %v", err)
	}
	if !strings.Contains(string(raw), "Grüße") {
		t.Fatalf("non-ASCII must be kept verbatim:\n%s", raw)
	}
	var decoded map[string]json.RawMessage
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("parse: %v", err)
	}
	for _, key := range []string{"text_by_page", "images"} {
		if _, ok := decoded[key]; !ok {
			t.Fatalf("missing %s in %s", key, raw)
		}
	}
}

func TestProcessEmptyDocumentWritesEmptyArrays(t *testing.T) {
	t.Parallel()

	p, out := newTestProcessor(t, &fakeRaster{}, echoRecognizer(nil), fakeImages(nil))
	if _, err := p.Process(context.Background()); err != nil {
		t.Fatalf("process: %v", err)
	}
	raw, _ := os.ReadFile(out)
	if string(raw) != "{\n  \"text_by_page\": [],\n  \"images\": []\n}" {
		t.Fatalf("unexpected output:\n%s", raw)
	}
}

func TestCleanupIsIdempotent(t *testing.T) {
	t.Parallel()

	p, _ := newTestProcessor(t, &fakeRaster{pages: 1}, echoRecognizer(nil), fakeImages(nil))
	if _, err := p.ExtractText(context.Background()); err != nil {
		t.Fatalf("extract: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := p.Cleanup(); err != nil {
			t.Fatalf("cleanup %d: %v", i, err)
		}
	}
	if _, err := os.Stat(p.TempDir()); !os.IsNotExist(err) {
		t.Fatalf("temp dir should be gone, stat err=%v", err)
	}
}
