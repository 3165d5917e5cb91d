package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigFileEnv names the env var pointing at an optional YAML overlay.
const ConfigFileEnv = "DOCPROC_CONFIG"

type Config struct {
	// Logging
	LogLevel string `yaml:"log_level"`

	// Intermediate artifacts
	TableOutputPath string `yaml:"table_output"`
	OCROutputPath   string `yaml:"ocr_output"`
	OCRWorkDir      string `yaml:"ocr_work_dir"`

	// Rasterization
	DPI             int           `yaml:"dpi"`
	Rasterizer      string        `yaml:"rasterizer"`
	PageImageFormat string        `yaml:"page_image_format"`
	PDFInfoTimeout  time.Duration `yaml:"pdfinfo_timeout"`
	PDFToPPMTimeout time.Duration `yaml:"pdftoppm_timeout"`

	// OCR
	OCRLanguages     string `yaml:"ocr_languages"`
	OCRPageSegMode   int    `yaml:"ocr_psm"`
	MaxOCRConcurrent int64  `yaml:"max_ocr_concurrent"`

	// Table detection
	TableMinConfidence float64 `yaml:"table_min_confidence"`

	// Optional sidecars
	XLSXExportPath string `yaml:"xlsx_export"`

	// Optional publishing of the combined artifact
	S3Endpoint        string `yaml:"s3_endpoint"`
	S3AccessKeyID     string `yaml:"s3_access_key_id"`
	S3SecretAccessKey string `yaml:"s3_secret_access_key"`
	S3BucketName      string `yaml:"s3_bucket"`
	S3Prefix          string `yaml:"s3_prefix"`
	S3UseSSL          bool   `yaml:"s3_use_ssl"`

	// Server
	Port                 string `yaml:"port"`
	InternalSharedSecret string `yaml:"internal_shared_secret"`

	// Server limits
	MaxUploadBytes        int64 `yaml:"max_upload_bytes"`
	MaxConcurrentRequests int64 `yaml:"max_concurrent_requests"`
	MaxConnections        int   `yaml:"max_connections"`
	MaxHeaderBytes        int   `yaml:"max_header_bytes"`

	// Server timeouts
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ProcessTimeout    time.Duration `yaml:"process_timeout"`

	// rate limiting (per IP)
	RateLimitEvery time.Duration `yaml:"rate_limit_every"`
	RateLimitBurst int           `yaml:"rate_limit_burst"`

	// housekeeping
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
}

func Load() (Config, error) {
	cfg := FromEnv()

	path := envStr(ConfigFileEnv, "")
	if path == "" {
		return cfg, nil
	}
	if err := cfg.Overlay(path); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func FromEnv() Config {
	return Config{
		LogLevel: envStr("LOG_LEVEL", "info"),

		TableOutputPath: envStr("DOCPROC_TABLE_OUTPUT", "./tmp/table-output.json"),
		OCROutputPath:   envStr("DOCPROC_OCR_OUTPUT", "./tmp/ocr-output.json"),
		OCRWorkDir:      envStr("DOCPROC_OCR_WORK_DIR", "./tmp/pages/"),

		DPI:             envInt("DOCPROC_DPI", 300),
		Rasterizer:      envStr("DOCPROC_RASTERIZER", "fitz"),
		PageImageFormat: envStr("DOCPROC_PAGE_IMAGE_FORMAT", "png"),
		PDFInfoTimeout:  envDur("PDFINFO_TIMEOUT", 5*time.Second),
		PDFToPPMTimeout: envDur("PDFTOPPM_TIMEOUT", 60*time.Second),

		OCRLanguages:     envStr("DOCPROC_OCR_LANGUAGES", "eng"),
		OCRPageSegMode:   envInt("DOCPROC_OCR_PSM", 3),
		MaxOCRConcurrent: int64(envInt("MAX_OCR_CONCURRENT", 2)),

		TableMinConfidence: envFloat("DOCPROC_TABLE_MIN_CONFIDENCE", 0.25),

		XLSXExportPath: envStr("DOCPROC_XLSX_EXPORT", ""),

		S3Endpoint:        envStr("S3_ENDPOINT", ""),
		S3AccessKeyID:     envStr("S3_ACCESS_KEY_ID", ""),
		S3SecretAccessKey: envStr("S3_SECRET_ACCESS_KEY", ""),
		S3BucketName:      envStr("S3_BUCKET_NAME", ""),
		S3Prefix:          envStr("S3_PREFIX", "combined/"),
		S3UseSSL:          envBool("S3_USE_SSL", true),

		Port:                 envStr("PORT", "8080"),
		InternalSharedSecret: envStr("INTERNAL_SHARED_SECRET", ""),

		MaxUploadBytes:        int64(envInt("MAX_UPLOAD_BYTES", int(200<<20))),
		MaxConcurrentRequests: int64(envInt("MAX_CONCURRENT_REQUESTS", 4)),
		MaxConnections:        envInt("MAX_CONNECTIONS", 64),
		MaxHeaderBytes:        envInt("MAX_HEADER_BYTES", 1<<20),

		ReadHeaderTimeout: envDur("READ_HEADER_TIMEOUT", 10*time.Second),
		ReadTimeout:       envDur("READ_TIMEOUT", 60*time.Second),
		WriteTimeout:      envDur("WRITE_TIMEOUT", 600*time.Second),
		IdleTimeout:       envDur("IDLE_TIMEOUT", 60*time.Second),
		ProcessTimeout:    envDur("PROCESS_TIMEOUT", 540*time.Second),

		RateLimitEvery: envDur("RATE_LIMIT_EVERY", 6*time.Second),
		RateLimitBurst: envInt("RATE_LIMIT_BURST", 5),

		CleanupInterval: envDur("CLEANUP_INTERVAL", 5*time.Minute),
	}
}

// Overlay applies the keys present in a YAML file on top of c.
func (c *Config) Overlay(path string) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config file: %w", err)
	}
	if err := yaml.Unmarshal(b, c); err != nil {
		return fmt.Errorf("config file %s: %w", path, err)
	}
	return nil
}

func (c Config) Validate() error {
	if c.DPI < 36 || c.DPI > 1200 {
		return fmt.Errorf("dpi must be between 36 and 1200, got %d", c.DPI)
	}
	switch strings.ToLower(c.PageImageFormat) {
	case "png", "tiff":
	default:
		return fmt.Errorf("page_image_format must be png or tiff, got %q", c.PageImageFormat)
	}
	if strings.TrimSpace(c.Rasterizer) == "" {
		return fmt.Errorf("rasterizer is required")
	}
	if c.TableMinConfidence < 0 || c.TableMinConfidence > 1 {
		return fmt.Errorf("table_min_confidence must be within [0,1]")
	}
	if strings.TrimSpace(c.OCRWorkDir) == "" {
		return fmt.Errorf("ocr_work_dir is required")
	}
	if c.S3BucketName != "" && c.S3Endpoint == "" {
		return fmt.Errorf("s3_endpoint is required when s3_bucket is set")
	}
	return nil
}

// ValidateServer adds the checks that only matter for the HTTP service.
func (c Config) ValidateServer() error {
	if err := c.Validate(); err != nil {
		return err
	}
	if len(strings.TrimSpace(c.InternalSharedSecret)) < 32 {
		return fmt.Errorf("INTERNAL_SHARED_SECRET must be at least 32 characters")
	}
	if c.MaxConcurrentRequests <= 0 {
		return fmt.Errorf("max_concurrent_requests must be positive")
	}
	return nil
}

// Languages splits the tesseract "eng+deu" style list.
func (c Config) Languages() []string {
	var out []string
	for _, l := range strings.Split(c.OCRLanguages, "+") {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}

func (c Config) PublishEnabled() bool {
	return strings.TrimSpace(c.S3BucketName) != ""
}

func envStr(key, fallback string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func envFloat(key string, fallback float64) float64 {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f < 0 {
		return fallback
	}
	return f
}

func envDur(key string, fallback time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return fallback
	}
	return d
}

func envBool(key string, fallback bool) bool {
	v := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch v {
	case "1", "true", "yes":
		return true
	case "0", "false", "no":
		return false
	default:
		return fallback
	}
}
