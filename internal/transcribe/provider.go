package transcribe

import (
	"context"
	"strings"
	"time"

	"github.com/snarg/lyrics-engine/internal/metrics"
)

// Provider is the interface for speech-to-text backends.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Result, error)
	Name() string  // "whisper", "deepinfra"
	Model() string // model identifier for logs
}

// Result is the common transcription result from any provider.
type Result struct {
	Text     string
	Language string
	Duration float64 // audio duration in seconds
	Segments []Segment
}

// Segment is a timestamped span of transcript text.
type Segment struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`

	// Decoder statistics, zero when the provider doesn't report them.
	AvgLogProb   float64 `json:"avg_logprob,omitempty"`
	NoSpeechProb float64 `json:"no_speech_prob,omitempty"`
}

// TranscribeOpts are per-request decoding options.
// Zero-value fields are omitted from the request, preserving compatibility
// with servers that ignore unknown form fields.
type TranscribeOpts struct {
	Temperature float64
	Language    string // "" = auto-detect
	Prompt      string // initial_prompt

	// Anti-hallucination
	ConditionOnPreviousText *bool   // nil = omit (server default); false = prevent cascading
	NoSpeechThreshold       float64 // 0 = omit
	LogProbThreshold        float64 // 0 = omit
}

// SongPrompt primes the model to expect sung lyrics.
const SongPrompt = "Hello, this is a song."

// SongDecodeOpts returns the fixed decoding configuration used for lyrics.
// Disabling cross-segment conditioning and thresholding on no-speech and
// log-probability keeps segments short and literal and suppresses run-on
// hallucinations over instrumental passages.
func SongDecodeOpts(language string) TranscribeOpts {
	cond := false
	return TranscribeOpts{
		Temperature:             0,
		Language:                NormalizeLanguage(language),
		Prompt:                  SongPrompt,
		ConditionOnPreviousText: &cond,
		NoSpeechThreshold:       0.6,
		LogProbThreshold:        -1.0,
	}
}

// NormalizeLanguage maps the "auto" hint (and blanks) to "" for auto-detection.
func NormalizeLanguage(language string) string {
	l := strings.TrimSpace(strings.ToLower(language))
	if l == "auto" {
		return ""
	}
	return l
}

// Instrument wraps a provider so every call is counted and timed.
func Instrument(p Provider) Provider {
	return &instrumented{Provider: p}
}

type instrumented struct {
	Provider
}

func (i *instrumented) Transcribe(ctx context.Context, audioPath string, opts TranscribeOpts) (*Result, error) {
	start := time.Now()
	res, err := i.Provider.Transcribe(ctx, audioPath, opts)
	metrics.TranscriptionDuration.WithLabelValues(i.Name()).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.TranscriptionsTotal.WithLabelValues(i.Name(), "error").Inc()
		return nil, err
	}
	metrics.TranscriptionsTotal.WithLabelValues(i.Name(), "ok").Inc()
	return res, nil
}

// dropSilence applies Whisper's own silence rule: a segment is skipped when
// the model thinks there is no speech and is also unsure of the text.
// Servers that honour the thresholds never return such segments; this keeps
// the behaviour identical for servers that ignore them.
func dropSilence(segments []Segment, opts TranscribeOpts) []Segment {
	if opts.NoSpeechThreshold == 0 || opts.LogProbThreshold == 0 {
		return segments
	}
	out := segments[:0:0]
	for _, s := range segments {
		if s.NoSpeechProb > opts.NoSpeechThreshold && s.AvgLogProb < opts.LogProbThreshold {
			continue
		}
		out = append(out, s)
	}
	return out
}
