// Command process-files extracts tables and OCR text from a PDF and writes a
// single combined JSON document.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/toricodesthings/document-processor/internal/config"
	"github.com/toricodesthings/document-processor/internal/logging"
	"github.com/toricodesthings/document-processor/internal/pipeline"
	"github.com/toricodesthings/document-processor/internal/storage"
)

const (
	exitOK    = 0
	exitError = 1
	exitUsage = 2
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stderr, buildRunner)
	stop()
	os.Exit(code)
}

type runnerFactory func(ctx context.Context, cfg config.Config, log *logging.Logger) (*pipeline.Runner, error)

func buildRunner(ctx context.Context, cfg config.Config, log *logging.Logger) (*pipeline.Runner, error) {
	var store storage.Storage
	if cfg.PublishEnabled() {
		var err error
		store, err = storage.NewS3(ctx, storage.Config{
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
			Bucket:          cfg.S3BucketName,
			UseSSL:          cfg.S3UseSSL,
		})
		if err != nil {
			return nil, fmt.Errorf("object storage: %w", err)
		}
	}
	return pipeline.FromConfig(cfg, store, log)
}

func run(ctx context.Context, args []string, stderr io.Writer, newRunner runnerFactory) int {
	fs := flag.NewFlagSet("process-files", flag.ContinueOnError)
	fs.SetOutput(stderr)
	input := fs.String("input", "", "path to the input PDF (required)")
	output := fs.String("output", pipeline.DefaultOutput, "path of the combined JSON output")
	fs.Usage = func() {
		fmt.Fprintln(stderr, "usage: process-files --input <pdf> [--output <json>]")
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		return exitUsage
	}
	if *input == "" || fs.NArg() > 0 {
		fs.Usage()
		return exitUsage
	}

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(stderr, "config: %v\n", err)
		return exitError
	}
	log := logging.NewWithWriter(stderr, cfg.LogLevel, false)
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "error", err)
		return exitError
	}

	runner, err := newRunner(ctx, cfg, log)
	if err != nil {
		log.Error("setup failed", "error", err)
		return exitError
	}

	rep, err := runner.Run(ctx, pipeline.DefaultPaths(cfg, *input, *output))
	if err != nil {
		if stage, ok := pipeline.FailedStage(err); ok {
			log.Error("processing failed", "stage", stage, "error", err)
		} else {
			log.Error("processing failed", "error", err)
		}
		return exitError
	}

	log.Info("Done: "+rep.Summary(), "output", *output)
	return exitOK
}
