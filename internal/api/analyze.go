package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/lyrics-engine/internal/audio"
	"github.com/snarg/lyrics-engine/internal/lyrics"
	"github.com/snarg/lyrics-engine/internal/transcribe"
)

// AudioNormalizer converts an uploaded file into model-ready audio.
type AudioNormalizer interface {
	Normalize(ctx context.Context, inputPath string) (string, error)
}

// EventPublisher receives best-effort notifications about finished requests.
type EventPublisher interface {
	Publish(event string, payload map[string]any)
}

// Analysis modes, reported in logs and events.
const (
	modeTimestamped = "timestamped"
	modeAligned     = "aligned"
	modeTranscribed = "transcribed"
)

// AnalyzeHandler turns an uploaded song into timestamped lyric lines.
type AnalyzeHandler struct {
	normalizer AudioNormalizer
	provider   transcribe.Provider
	denylist   *transcribe.Denylist
	events     EventPublisher
	tempDir    string
	maxUpload  int64
	log        zerolog.Logger
}

// AnalyzeOptions configures an AnalyzeHandler.
type AnalyzeOptions struct {
	Normalizer     AudioNormalizer
	Provider       transcribe.Provider
	Denylist       *transcribe.Denylist
	Events         EventPublisher // nil disables publishing
	TempDir        string
	MaxUploadBytes int64
	Log            zerolog.Logger
}

// NewAnalyzeHandler creates a new analyze handler.
func NewAnalyzeHandler(opts AnalyzeOptions) *AnalyzeHandler {
	return &AnalyzeHandler{
		normalizer: opts.Normalizer,
		provider:   opts.Provider,
		denylist:   opts.Denylist,
		events:     opts.Events,
		tempDir:    opts.TempDir,
		maxUpload:  opts.MaxUploadBytes,
		log:        opts.Log.With().Str("handler", "analyze").Logger(),
	}
}

// Routes registers the analyze endpoint.
func (h *AnalyzeHandler) Routes(r chi.Router) {
	r.Post("/analyze", h.Analyze)
}

// Analyze handles POST /analyze.
//
// Form fields: file (required), language (default "auto"), lyrics_text
// (optional). With timestamped lyrics the lines are returned as given; with
// plain lyrics they are spread over the transcribed time span; without
// lyrics the filtered transcript itself is returned. Never translates.
func (h *AnalyzeHandler) Analyze(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := requestLog(r, h.log, "analyze")

	if h.maxUpload > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxUpload)
	}
	if err := r.ParseMultipartForm(32 << 20); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			WriteError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("upload exceeds %d bytes", tooBig.Limit))
			return
		}
		WriteError(w, http.StatusBadRequest, "invalid multipart form: "+err.Error())
		return
	}
	defer r.MultipartForm.RemoveAll()

	file, header, err := r.FormFile("file")
	if err != nil {
		WriteError(w, http.StatusBadRequest, "missing file field")
		return
	}
	defer file.Close()

	language := r.FormValue("language")
	if strings.TrimSpace(language) == "" {
		language = "auto"
	}
	lyricsText := r.FormValue("lyrics_text")

	log.Info().
		Str("filename", header.Filename).
		Int64("size", header.Size).
		Str("language", language).
		Bool("has_lyrics", lyricsText != "").
		Msg("analyze request")

	uploadPath, err := audio.SaveUpload(h.tempDir, header.Filename, file)
	if err != nil {
		log.Error().Err(err).Msg("saving upload failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	var cleanPath string
	defer func() { audio.RemoveAll(uploadPath, cleanPath) }()

	cleanPath, err = h.normalizer.Normalize(r.Context(), uploadPath)
	if err != nil {
		log.Error().Err(err).Msg("audio normalization failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	lines, mode, err := h.analyze(r.Context(), cleanPath, language, lyricsText)
	if err != nil {
		log.Error().Err(err).Str("mode", mode).Msg("analysis failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}

	durationMs := time.Since(start).Milliseconds()
	log.Info().Str("mode", mode).Int("segments", len(lines)).Int64("duration_ms", durationMs).Msg("analysis complete")

	if h.events != nil {
		h.events.Publish("analyze", map[string]any{
			"request_id":  r.Header.Get("X-Request-ID"),
			"mode":        mode,
			"language":    language,
			"segments":    len(lines),
			"duration_ms": durationMs,
		})
	}

	WriteSegments(w, lines)
}

func (h *AnalyzeHandler) analyze(ctx context.Context, audioPath, language, lyricsText string) ([]lyrics.Line, string, error) {
	// Any non-empty lyrics_text, even whitespace, selects the lyrics path.
	if lyricsText != "" {
		if parsed := lyrics.ParseTimestamped(lyricsText); len(parsed) > 0 {
			return parsed, modeTimestamped, nil
		}
		res, err := h.provider.Transcribe(ctx, audioPath, transcribe.SongDecodeOpts(language))
		if err != nil {
			return nil, modeAligned, fmt.Errorf("transcribe: %w", err)
		}
		return lyrics.ForceAlign(res.Segments, lyricsText), modeAligned, nil
	}

	res, err := h.provider.Transcribe(ctx, audioPath, transcribe.SongDecodeOpts(language))
	if err != nil {
		return nil, modeTranscribed, fmt.Errorf("transcribe: %w", err)
	}
	kept := transcribe.FilterHallucinations(res.Segments, h.denylist)
	return lyrics.FromSegments(kept), modeTranscribed, nil
}
