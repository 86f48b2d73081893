package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lyrics-engine/internal/api"
	"github.com/snarg/lyrics-engine/internal/audio"
	"github.com/snarg/lyrics-engine/internal/config"
	"github.com/snarg/lyrics-engine/internal/mqttclient"
	"github.com/snarg/lyrics-engine/internal/transcribe"
	"github.com/snarg/lyrics-engine/internal/translate"
	"gopkg.in/natefinch/lumberjack.v2"
)

func serve(parent context.Context, overrides config.Overrides) error {
	startTime := time.Now()

	// Config
	cfg, err := config.Load(overrides)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	// Logger
	log := newLogger(cfg)
	log.Info().Str("version", version).Msg("lyrics-engine starting")

	// Context for graceful shutdown
	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Audio
	normalizer := audio.NewNormalizer(cfg.FFmpegBin, log.With().Str("component", "audio").Logger())
	if path, err := normalizer.Locate(); err != nil {
		log.Warn().Err(err).Str("binary", cfg.FFmpegBin).Msg("ffmpeg not found; /analyze will fail until it is installed")
	} else {
		log.Info().Str("path", path).Msg("ffmpeg located")
	}

	// Transcription
	provider := newProvider(cfg)
	log.Info().Str("provider", provider.Name()).Str("model", provider.Model()).Msg("transcription provider configured")
	provider = transcribe.Instrument(provider)

	denyLog := log.With().Str("component", "denylist").Logger()
	denylist := transcribe.NewDenylist(denyLog)
	if cfg.DenylistFile != "" {
		if err := denylist.LoadFile(cfg.DenylistFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.DenylistFile).Msg("failed to load hallucination denylist")
		}
		if err := denylist.Watch(ctx, cfg.DenylistFile); err != nil {
			log.Warn().Err(err).Str("path", cfg.DenylistFile).Msg("denylist watcher not started")
		}
	}

	// Translation
	translator := translate.NewGoogleClient(cfg.TranslateURL, cfg.TranslateTimeout)

	opts := api.ServerOptions{
		Config:     cfg,
		Normalizer: normalizer,
		Locate:     normalizer.Locate,
		Provider:   provider,
		Denylist:   denylist,
		Translator: translator,
		Version:    version,
		StartTime:  startTime,
		Log:        log.With().Str("component", "http").Logger(),
	}

	// MQTT (optional)
	if cfg.MQTTEnabled() {
		mqtt, err := mqttclient.Connect(mqttclient.Options{
			BrokerURL:   cfg.MQTTBrokerURL,
			ClientID:    cfg.MQTTClientID,
			TopicPrefix: cfg.MQTTTopicPrefix,
			Username:    cfg.MQTTUsername,
			Password:    cfg.MQTTPassword,
			Log:         log.With().Str("component", "mqtt").Logger(),
		})
		if err != nil {
			log.Warn().Err(err).Str("broker", cfg.MQTTBrokerURL).Msg("mqtt connect failed; events disabled")
		} else {
			defer mqtt.Close()
			opts.Events = mqtt
			opts.MQTT = mqtt
		}
	}

	// HTTP Server
	srv := api.NewServer(opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	// Wait for shutdown signal or server error
	var serveErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("shutdown signal received")
	case serveErr = <-errCh:
		if serveErr != nil {
			log.Error().Err(serveErr).Msg("http server error")
		}
	}

	// Graceful shutdown with 10s timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("http server shutdown error")
	}

	log.Info().Msg("lyrics-engine stopped")
	return serveErr
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		out = zerolog.MultiLevelWriter(os.Stdout, &lumberjack.Logger{
			Filename:   cfg.LogFile,
			MaxSize:    50, // MB
			MaxBackups: 5,
			MaxAge:     28, // days
			Compress:   true,
		})
	}
	return zerolog.New(out).With().Timestamp().Logger().Level(level)
}

func newProvider(cfg *config.Config) transcribe.Provider {
	switch strings.ToLower(cfg.TranscribeProvider) {
	case "deepinfra":
		return transcribe.NewDeepInfraClient(cfg.DeepInfraAPIKey, cfg.DeepInfraModel, cfg.WhisperTimeout)
	default:
		return transcribe.NewWhisperClient(cfg.WhisperURL, cfg.WhisperModel, cfg.WhisperTimeout)
	}
}
