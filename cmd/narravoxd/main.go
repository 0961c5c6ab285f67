package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/narravox/narravox/internal/codec"
	"github.com/narravox/narravox/internal/config"
	"github.com/narravox/narravox/internal/extract"
	"github.com/narravox/narravox/internal/library"
	"github.com/narravox/narravox/internal/model"
	"github.com/narravox/narravox/internal/pipeline"
	"github.com/narravox/narravox/internal/runtime"
)

var version = "0.1.0-dev"

func main() {
	var (
		configPath  string
		inputPath   string
		voiceName   string
		format      string
		outputDir   string
		serve       bool
		showVersion bool
	)

	flag.StringVar(&configPath, "config", "narravox.yaml", "Path to configuration file")
	flag.StringVar(&inputPath, "input", "", "Source document to synthesize (one-shot mode)")
	flag.StringVar(&voiceName, "voice", "", "Voice preset name or literal voice prompt")
	flag.StringVar(&format, "format", "", "Output format (wav or m4b)")
	flag.StringVar(&outputDir, "output", "", "Output directory")
	flag.BoolVar(&serve, "serve", false, "Run as a bus-driven service")
	flag.BoolVar(&showVersion, "version", false, "Print version and exit")
	flag.Parse()

	if showVersion {
		fmt.Println(version)
		return
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if serve {
		rt := runtime.New(cfg, logger)
		if err := rt.Start(ctx); err != nil {
			logger.Error("runtime exited with error", slog.String("error", err.Error()))
			time.Sleep(1 * time.Second)
			os.Exit(1)
		}
		logger.Info("shutdown complete")
		return
	}

	if inputPath == "" {
		fmt.Fprintln(os.Stderr, "either -input or -serve is required")
		flag.Usage()
		os.Exit(2)
	}

	if err := runOnce(ctx, cfg, logger, inputPath, voiceName, format, outputDir); err != nil {
		logger.Error("synthesis failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

func runOnce(ctx context.Context, cfg config.Config, logger *slog.Logger, inputPath, voiceName, format, outputDir string) error {
	backend, err := model.New(cfg.Model)
	if err != nil {
		return err
	}
	defer backend.Close()

	decoder, err := codec.New(cfg.Codec)
	if err != nil {
		return err
	}
	defer decoder.Close()

	extractor, err := extract.New(cfg.Extract)
	if err != nil {
		return err
	}

	store, err := library.Open(ctx, cfg.Library, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	book, err := extractor.Extract(ctx, inputPath)
	if err != nil {
		return err
	}

	pipe := pipeline.New(cfg, backend, decoder, store, logger)
	manifest, err := pipe.Run(ctx, book, pipeline.Options{
		Voice:     voiceName,
		Format:    format,
		OutputDir: outputDir,
		Progress: func(done, total int, chapter string) {
			fmt.Fprintf(os.Stderr, "\r%d/%d chunks (%s)", done, total, chapter)
			if done == total {
				fmt.Fprintln(os.Stderr)
			}
		},
	})
	if err != nil {
		return err
	}
	if manifest.Cancelled {
		logger.Warn("synthesis cancelled",
			slog.Int("chapters_completed", len(manifest.Chapters)))
		return nil
	}
	logger.Info("audiobook written",
		slog.String("path", manifest.MergedPath),
		slog.Int("chapters", len(manifest.Chapters)),
		slog.String("duration", formatHMS(manifest.Duration)))
	return nil
}

func formatHMS(seconds float64) string {
	s := int(seconds)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s%3600/60, s%60)
}
