package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/toricodesthings/document-processor/internal/config"
)

const DefaultOutput = "combined-output.json"

// Paths names every file a run reads or writes.
type Paths struct {
	Input       string
	TableOutput string
	OCROutput   string
	OCRWorkDir  string
	Output      string
	// XLSX is optional; empty skips the workbook export.
	XLSX string
}

// DefaultPaths takes the intermediate locations from cfg.
func DefaultPaths(cfg config.Config, input, output string) Paths {
	if strings.TrimSpace(output) == "" {
		output = DefaultOutput
	}
	return Paths{
		Input:       input,
		TableOutput: cfg.TableOutputPath,
		OCROutput:   cfg.OCROutputPath,
		OCRWorkDir:  cfg.OCRWorkDir,
		Output:      output,
		XLSX:        cfg.XLSXExportPath,
	}
}

// PathsIn keeps every intermediate artifact under dir.
func PathsIn(dir, input string) Paths {
	return Paths{
		Input:       input,
		TableOutput: filepath.Join(dir, "table-output.json"),
		OCROutput:   filepath.Join(dir, "ocr-output.json"),
		OCRWorkDir:  filepath.Join(dir, "pages"),
		Output:      filepath.Join(dir, DefaultOutput),
	}
}

func (p Paths) validate() error {
	if strings.TrimSpace(p.Input) == "" {
		return fmt.Errorf("input path is required")
	}
	if strings.TrimSpace(p.OCRWorkDir) == "" {
		return fmt.Errorf("ocr work dir is required")
	}
	clean := filepath.Clean(p.OCRWorkDir)
	for _, f := range []string{p.Input, p.TableOutput, p.OCROutput, p.Output} {
		if f != "" && isWithin(clean, f) {
			return fmt.Errorf("%s lives inside the ocr work dir %s, which is removed after each run", f, p.OCRWorkDir)
		}
	}
	return nil
}

// ensureDirs creates the parent directories of every output file.
func (p Paths) ensureDirs() error {
	for _, f := range []string{p.TableOutput, p.OCROutput, p.Output, p.XLSX} {
		if f == "" {
			continue
		}
		if err := os.MkdirAll(filepath.Dir(f), 0o755); err != nil {
			return fmt.Errorf("create dir for %s: %w", f, err)
		}
	}
	return nil
}

func isWithin(dir, path string) bool {
	rel, err := filepath.Rel(dir, filepath.Clean(path))
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator)) && rel != "."
}
