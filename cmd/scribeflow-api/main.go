package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"scribeflow/internal/audio"
	"scribeflow/internal/config"
	"scribeflow/internal/diarization"
	"scribeflow/internal/httpapi"
	"scribeflow/internal/observability"
	"scribeflow/internal/pipeline"
	"scribeflow/internal/pool"
	"scribeflow/internal/postprocess"
	"scribeflow/internal/store"
	"scribeflow/internal/transcription"
	"scribeflow/internal/upstream/inference"

	"gopkg.in/natefinch/lumberjack.v2"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config error: %v\n", err)
		os.Exit(1)
	}

	logger, closeLog := newLogger(cfg.LogLevel, cfg.LogFile)
	defer closeLog()
	metrics := observability.NewMetrics()

	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		DialContext:           (&net.Dialer{Timeout: 10 * time.Second, KeepAlive: 30 * time.Second}).DialContext,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		MaxIdleConnsPerHost:   20,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}
	workerHTTPClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}

	replicas := make([]pool.Replica, 0, len(cfg.DeviceIndices))
	for i, device := range cfg.DeviceIndices {
		client := inference.New(cfg.InferenceBaseURLs[i], cfg.InferenceAPIKey, device, workerHTTPClient,
			inference.WithObserver(metrics.UpstreamObserver(device)))
		replicas = append(replicas, pool.Replica{
			Device:      device,
			Transcriber: client,
			Diarizer:    client,
			VAD:         client,
			Loader:      client,
		})
	}
	devices, err := pool.New(replicas, pool.WithObserver(metrics))
	if err != nil {
		logger.Error("model pool setup failed", "error", err)
		os.Exit(1)
	}

	selector, err := diarization.NewSelector(diarization.SelectorConfig{
		WindowLengths:        cfg.WindowLengths,
		ShiftLengths:         cfg.ShiftLengths,
		MultiscaleWeights:    cfg.MultiscaleWeights,
		LongAudioSeconds:     cfg.LongAudioSeconds,
		VeryLongAudioSeconds: cfg.VeryLongAudioSeconds,
	})
	if err != nil {
		logger.Error("diarization config invalid", "error", err)
		os.Exit(1)
	}

	diarizationService := diarization.New(selector, cfg.MaxNumSpeakers, cfg.DiarizationTimeout, logger)
	transcriptionService := transcription.New(cfg.TranscriptionTimeout, logger,
		transcription.WithFallbackObserver(metrics.IncTranscriptionFallback))
	pipelineService := pipeline.New(pipeline.Dependencies{
		Pool:          devices,
		Diarizer:      diarizationService,
		Transcriber:   transcriptionService,
		Combiner:      transcription.NewCombiner(transcriptionService),
		PostProcessor: postprocess.New(),
		Observer:      metrics,
	}, logger, pipeline.WithAcquireTimeout(cfg.AcquireTimeout))

	resultStore, closeStore, err := newStore(cfg)
	if err != nil {
		logger.Error("result store setup failed", "error", err)
		os.Exit(1)
	}
	defer closeStore()

	downloadClient := &http.Client{Timeout: cfg.RequestTimeout, Transport: transport}
	handler := httpapi.NewServer(cfg, logger, httpapi.Dependencies{
		Pipeline:       pipelineService,
		Devices:        devices,
		Fetcher:        audio.NewFetcher(downloadClient, cfg.DownloadConcurrency, cfg.MaxUploadBytes),
		Store:          resultStore,
		Metrics:        metrics,
		MetricsHandler: metrics.Handler(),
	})

	srv := &http.Server{
		Addr:              cfg.ListenAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       5 * time.Minute,
		WriteTimeout:      cfg.RequestTimeout + 30*time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("server starting", "addr", cfg.ListenAddr, "devices", devices.Devices())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("server exited", "error", err)
			os.Exit(1)
		}
		return
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown failed", "error", err)
		os.Exit(1)
	}
	logger.Info("server stopped")
}

// newStore picks redis when REDIS_URL is set, memory otherwise.
func newStore(cfg config.Config) (store.Store, func(), error) {
	if cfg.RedisURL == "" {
		return store.NewMemory(cfg.ResultTTL), func() {}, nil
	}
	rs, err := store.NewRedis(cfg.RedisURL, cfg.ResultTTL)
	if err != nil {
		return nil, nil, err
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rs.Ping(ctx); err != nil {
		_ = rs.Close()
		return nil, nil, fmt.Errorf("redis ping: %w", err)
	}
	return rs, func() { _ = rs.Close() }, nil
}

func newLogger(level, file string) (*slog.Logger, func()) {
	var slogLevel slog.Level
	switch level {
	case "debug":
		slogLevel = slog.LevelDebug
	case "warn", "warning":
		slogLevel = slog.LevelWarn
	case "error":
		slogLevel = slog.LevelError
	default:
		slogLevel = slog.LevelInfo
	}

	var out io.Writer = os.Stdout
	closeFn := func() {}
	if file != "" {
		rotator := &lumberjack.Logger{
			Filename:   file,
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
		}
		out = io.MultiWriter(os.Stdout, rotator)
		closeFn = func() { _ = rotator.Close() }
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: slogLevel})), closeFn
}
