package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/toricodesthings/document-processor/internal/config"
	"github.com/toricodesthings/document-processor/internal/logging"
	"github.com/toricodesthings/document-processor/internal/ocr"
	"github.com/toricodesthings/document-processor/internal/pipeline"
	"github.com/toricodesthings/document-processor/internal/storage"
	"golang.org/x/net/netutil"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logging.NewJSON("info").Fatal("failed to load config", "error", err)
	}
	log := logging.NewJSON(cfg.LogLevel)
	if err := cfg.ValidateServer(); err != nil {
		log.Fatal("invalid config", "error", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ocr.SetConcurrencyLimit(cfg.MaxOCRConcurrent)

	var store storage.Storage
	if cfg.PublishEnabled() {
		store, err = storage.NewS3(ctx, storage.Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3BucketName,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			log.Fatal("object storage unavailable", "error", err)
		}
	}

	runner, err := pipeline.FromConfig(cfg, store, log)
	if err != nil {
		log.Fatal("pipeline setup failed", "error", err)
	}

	s := newServer(cfg, runner, store, log)

	maxHeaderBytes := 1 << 20
	if cfg.MaxHeaderBytes > 0 {
		maxHeaderBytes = cfg.MaxHeaderBytes
	}

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           s.routes(),
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		ReadTimeout:       cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    maxHeaderBytes,
	}

	ln, err := net.Listen("tcp", srv.Addr)
	if err != nil {
		log.Fatal("listen failed", "addr", srv.Addr, "error", err)
	}
	if cfg.MaxConnections > 0 {
		ln = netutil.LimitListener(ln, cfg.MaxConnections)
	}

	go s.housekeeping(ctx)

	go func() {
		log.Info("document-processor listening",
			"addr", srv.Addr,
			"max_concurrent", cfg.MaxConcurrentRequests,
			"max_ocr", cfg.MaxOCRConcurrent,
			"rasterizer", cfg.Rasterizer,
			"publish", store != nil,
		)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("server failed", "error", err)
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("forced shutdown", "error", err)
	}
}
