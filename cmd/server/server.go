package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/toricodesthings/document-processor/internal/config"
	"github.com/toricodesthings/document-processor/internal/intake"
	"github.com/toricodesthings/document-processor/internal/logging"
	"github.com/toricodesthings/document-processor/internal/pipeline"
	"github.com/toricodesthings/document-processor/internal/storage"
	"golang.org/x/sync/semaphore"
)

const (
	version            = "1.0.0"
	healthDegradeRatio = 0.9
	maxJSONBodyBytes   = 64 << 10
	multipartMemory    = 32 << 20
)

type server struct {
	cfg    config.Config
	log    *logging.Logger
	runner *pipeline.Runner
	store  storage.Storage

	requestSem *semaphore.Weighted
	// per-IP limiters, swapped out wholesale by housekeeping
	limiters atomic.Pointer[sync.Map]
	metrics  *serverMetrics
}

func newServer(cfg config.Config, runner *pipeline.Runner, store storage.Storage, log *logging.Logger) *server {
	s := &server{
		cfg:        cfg,
		log:        log,
		runner:     runner,
		store:      store,
		requestSem: semaphore.NewWeighted(cfg.MaxConcurrentRequests),
		metrics:    newServerMetrics(),
	}
	s.limiters.Store(&sync.Map{})
	return s
}

func (s *server) routes() http.Handler {
	r := mux.NewRouter()
	r.Use(s.withLogging, s.withRecovery)
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusNotFound, "not_found", "Not found")
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		writeErr(w, http.StatusMethodNotAllowed, "method_not_allowed", "Method not allowed")
	})

	r.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", s.withInternalAuth(s.handleMetrics)).Methods(http.MethodGet)

	v1 := r.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/process",
		s.withInternalAuth(
			s.withRateLimit(
				s.withConcurrencyLimit(s.handleProcess)))).Methods(http.MethodPost)

	return r
}

func (s *server) housekeeping(ctx context.Context) {
	interval := s.cfg.CleanupInterval
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		snap := s.metrics.snapshot()
		s.log.Info("stats",
			"active", snap.Active,
			"total", snap.Total,
			"goroutines", runtime.NumGoroutine(),
			"mem_mb", m.Alloc/(1<<20),
		)
		s.limiters.Store(&sync.Map{})
	}
}

// ---------- Handlers ----------

func (s *server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	active := s.metrics.snapshot().Active
	status := "healthy"
	code := http.StatusOK
	if active >= int64(float64(s.cfg.MaxConcurrentRequests)*healthDegradeRatio) && active > 0 {
		status = "degraded"
		code = http.StatusServiceUnavailable
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"active":  active,
		"version": version,
	})
}

func (s *server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	snap := s.metrics.snapshot()

	writeJSON(w, http.StatusOK, map[string]any{
		"activeRequests":    snap.Active,
		"totalRequests":     snap.Total,
		"processed":         snap.Processed,
		"failedByStage":     snap.FailedByStage,
		"rejectedInputs":    snap.Rejected,
		"goroutines":        runtime.NumGoroutine(),
		"memAllocMB":        m.Alloc / (1 << 20),
		"memSysMB":          m.Sys / (1 << 20),
		"processTimeoutSec": s.cfg.ProcessTimeout.Seconds(),
	})
}

// processRequest is the JSON form of /v1/process: either a URL or an object
// in storage.
type processRequest struct {
	URL      string `json:"url"`
	Bucket   string `json:"bucket"`
	Key      string `json:"key"`
	FileName string `json:"fileName"`
}

func (s *server) handleProcess(w http.ResponseWriter, r *http.Request) {
	minify := true
	if v := strings.TrimSpace(r.URL.Query().Get("minify")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeErr(w, http.StatusBadRequest, "bad_request", "minify must be true or false")
			return
		}
		minify = b
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.ProcessTimeout)
	defer cancel()

	in, status, err := s.stageInput(ctx, w, r)
	if err != nil {
		s.metrics.reject()
		writeErr(w, status, "bad_input", sanitizeError(err))
		return
	}
	defer in.Cleanup()

	if err := in.RequirePDF(); err != nil {
		s.metrics.reject()
		writeErr(w, http.StatusUnsupportedMediaType, "unsupported_media_type", sanitizeError(err))
		return
	}

	paths := pipeline.PathsIn(filepath.Join(in.TempDir, "work"), in.Path)
	rep, err := s.runner.WithMinify(minify).Run(ctx, paths)
	if err != nil {
		stage, _ := pipeline.FailedStage(err)
		s.metrics.fail(stage)

		code := http.StatusUnprocessableEntity
		if errors.Is(err, context.DeadlineExceeded) {
			code = http.StatusGatewayTimeout
		}
		writeJSON(w, code, map[string]any{
			"success": false,
			"code":    "stage_failed",
			"stage":   stage,
			"error":   sanitizeError(err),
		})
		return
	}

	body, err := os.ReadFile(paths.Output)
	if err != nil {
		s.metrics.fail(pipeline.StageCombine)
		writeErr(w, http.StatusInternalServerError, "internal_error", "Combined output missing")
		return
	}
	s.metrics.success()

	s.log.Info("document processed",
		"file", sanitizeLogString(filepath.Base(in.Path)),
		"bytes_in", in.Size,
		"bytes_out", len(body),
		"summary", rep.Summary(),
	)

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	if rep.PublishedKey != "" {
		w.Header().Set("X-Published-Key", rep.PublishedKey)
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(body)
}

// stageInput copies the request's document to a temp dir. The returned
// status is meaningful only with a non-nil error.
func (s *server) stageInput(ctx context.Context, w http.ResponseWriter, r *http.Request) (intake.File, int, error) {
	limit := s.cfg.MaxUploadBytes
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	var (
		in  intake.File
		err error
	)
	switch mediaType {
	case "multipart/form-data":
		r.Body = http.MaxBytesReader(w, r.Body, limit+multipartMemory)
		if err := r.ParseMultipartForm(multipartMemory); err != nil {
			return intake.File{}, http.StatusBadRequest, fmt.Errorf("multipart: %w", err)
		}
		defer r.MultipartForm.RemoveAll()

		file, hdr, ferr := r.FormFile("file")
		if ferr != nil {
			return intake.File{}, http.StatusBadRequest, fmt.Errorf("form field \"file\" is required")
		}
		defer file.Close()
		in, err = intake.SaveBody(file, hdr.Filename, limit)

	case "application/json":
		req, perr := parseJSON[processRequest](r, maxJSONBodyBytes)
		if perr != nil {
			return intake.File{}, http.StatusBadRequest, perr
		}
		switch {
		case strings.TrimSpace(req.URL) != "":
			in, err = intake.Download(ctx, req.URL, req.FileName, limit, s.cfg.ProcessTimeout)
		case strings.TrimSpace(req.Key) != "":
			if s.store == nil {
				return intake.File{}, http.StatusBadRequest, fmt.Errorf("object storage is not configured")
			}
			in, err = intake.FromStorage(ctx, s.store, req.Bucket, req.Key, limit)
		default:
			return intake.File{}, http.StatusBadRequest, fmt.Errorf("url or key required")
		}

	default:
		in, err = intake.SaveBody(r.Body, r.URL.Query().Get("filename"), limit)
	}

	if err != nil {
		if errors.Is(err, intake.ErrTooLarge) {
			return intake.File{}, http.StatusRequestEntityTooLarge, err
		}
		return intake.File{}, http.StatusBadRequest, err
	}
	return in, 0, nil
}

// ---------- Helpers ----------

func parseJSON[T any](r *http.Request, limit int64) (T, error) {
	var out T
	dec := json.NewDecoder(io.LimitReader(r.Body, limit))
	dec.DisallowUnknownFields()

	if err := dec.Decode(&out); err != nil {
		return out, err
	}
	if err := dec.Decode(new(any)); err != io.EOF {
		if err == nil {
			return out, fmt.Errorf("unexpected trailing data")
		}
		return out, err
	}
	return out, nil
}

func sanitizeError(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()
	msg = strings.ReplaceAll(msg, os.TempDir(), "[tmp]")
	if len(msg) > 300 {
		msg = msg[:300] + "..."
	}
	return msg
}

func sanitizeLogString(s string) string {
	s = strings.ReplaceAll(s, "\n", "")
	s = strings.ReplaceAll(s, "\r", "")
	if len(s) > 200 {
		s = s[:200] + "..."
	}
	return s
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]any{
		"success": false,
		"error":   message,
		"code":    code,
	})
}
