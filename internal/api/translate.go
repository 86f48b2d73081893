package api

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"
	"github.com/snarg/lyrics-engine/internal/lyrics"
	"github.com/snarg/lyrics-engine/internal/translate"
)

// TranslateHandler translates already-timed lyric lines.
type TranslateHandler struct {
	translator    translate.Translator
	defaultTarget string
	events        EventPublisher
	log           zerolog.Logger
}

// TranslateOptions configures a TranslateHandler.
type TranslateOptions struct {
	Translator    translate.Translator
	DefaultTarget string
	Events        EventPublisher
	Log           zerolog.Logger
}

func NewTranslateHandler(opts TranslateOptions) *TranslateHandler {
	target := opts.DefaultTarget
	if target == "" {
		target = translate.DefaultTarget
	}
	return &TranslateHandler{
		translator:    opts.Translator,
		defaultTarget: target,
		events:        opts.Events,
		log:           opts.Log.With().Str("handler", "translate").Logger(),
	}
}

// Routes registers the translate endpoint.
func (h *TranslateHandler) Routes(r chi.Router) {
	r.Post("/translate", h.Translate)
}

// translateItem is one element of the request body. Pointers distinguish a
// missing field from a zero value.
type translateItem struct {
	Start          *float64 `json:"start"`
	Text           *string  `json:"text"`
	TranslatedText *string  `json:"translated_text"`
}

// Translate handles POST /translate?target=ko.
func (h *TranslateHandler) Translate(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	log := requestLog(r, h.log, "translate")

	var items []translateItem
	if err := DecodeJSON(r, &items); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return
	}

	lines := make([]lyrics.Line, 0, len(items))
	for i, it := range items {
		if it.Start == nil || it.Text == nil {
			WriteError(w, http.StatusBadRequest, "each line needs start and text")
			log.Debug().Int("line", i).Msg("rejecting incomplete line")
			return
		}
		lines = append(lines, lyrics.Line{Start: *it.Start, Text: *it.Text, TranslatedText: it.TranslatedText})
	}

	target := strings.TrimSpace(r.URL.Query().Get("target"))
	if target == "" {
		target = h.defaultTarget
	}

	translate.Lines(r.Context(), h.translator, lines, target, log)

	durationMs := time.Since(start).Milliseconds()
	log.Info().Int("lines", len(lines)).Str("target", target).Int64("duration_ms", durationMs).Msg("translation request complete")

	if h.events != nil {
		h.events.Publish("translate", map[string]any{
			"request_id":  r.Header.Get("X-Request-ID"),
			"target":      target,
			"lines":       len(lines),
			"duration_ms": durationMs,
		})
	}

	WriteSegments(w, lines)
}
