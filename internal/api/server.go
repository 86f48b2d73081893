package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/snarg/lyrics-engine/internal/config"
	"github.com/snarg/lyrics-engine/internal/metrics"
	"github.com/snarg/lyrics-engine/internal/transcribe"
	"github.com/snarg/lyrics-engine/internal/translate"
)

// ServerOptions holds the collaborators the HTTP layer composes.
type ServerOptions struct {
	Config     *config.Config
	Normalizer AudioNormalizer
	Locate     func() (string, error) // ffmpeg lookup for /health
	Provider   transcribe.Provider
	Denylist   *transcribe.Denylist
	Translator translate.Translator
	Events     EventPublisher    // nil when MQTT is not configured
	MQTT       ConnectionChecker // nil when MQTT is not configured
	Version    string
	StartTime  time.Time
	Log        zerolog.Logger
}

type Server struct {
	http *http.Server
	log  zerolog.Logger
}

func NewServer(opts ServerOptions) *Server {
	cfg := opts.Config
	log := opts.Log

	r := chi.NewRouter()

	// Global middleware
	r.Use(RequestID)
	r.Use(Logger(log))
	r.Use(Recoverer)
	r.Use(metrics.InstrumentHandler)
	r.Use(CORSWithOrigins(cfg.CORSOriginList()))

	// Health and metrics: no auth
	health := NewHealthHandler(HealthOptions{
		Locate:    opts.Locate,
		Provider:  opts.Provider,
		Denylist:  opts.Denylist,
		MQTT:      opts.MQTT,
		Version:   opts.Version,
		StartTime: opts.StartTime,
	})
	r.Get("/health", health.ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())

	analyze := NewAnalyzeHandler(AnalyzeOptions{
		Normalizer:     opts.Normalizer,
		Provider:       opts.Provider,
		Denylist:       opts.Denylist,
		Events:         opts.Events,
		TempDir:        cfg.TempDir,
		MaxUploadBytes: cfg.MaxUploadBytes(),
		Log:            log,
	})
	translateH := NewTranslateHandler(TranslateOptions{
		Translator:    opts.Translator,
		DefaultTarget: cfg.TranslateTarget,
		Events:        opts.Events,
		Log:           log,
	})

	// Authenticated routes (open when AUTH_TOKEN is unset)
	r.Group(func(r chi.Router) {
		r.Use(BearerAuth(cfg.AuthToken))
		analyze.Routes(r)
		translateH.Routes(r)
	})

	return &Server{
		http: &http.Server{
			Addr:         cfg.HTTPAddr,
			Handler:      r,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		log: log,
	}
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.http.Handler
}

func (s *Server) Start() error {
	s.log.Info().Str("addr", s.http.Addr).Msg("http server starting")
	err := s.http.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("http server shutting down")
	return s.http.Shutdown(ctx)
}
