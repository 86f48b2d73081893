package translate

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/lyrics-engine/internal/lyrics"
	"github.com/snarg/lyrics-engine/internal/metrics"
)

// DefaultTarget is the target language when a request doesn't name one.
const DefaultTarget = "ko"

// Translator translates a single piece of text. source may be "auto".
type Translator interface {
	Translate(ctx context.Context, text, source, target string) (string, error)
}

// GoogleClient calls the public Google Translate "gtx" endpoint.
type GoogleClient struct {
	baseURL string
	client  *http.Client
}

// NewGoogleClient creates a Google Translate client. baseURL is normally
// https://translate.googleapis.com/translate_a/single.
func NewGoogleClient(baseURL string, timeout time.Duration) *GoogleClient {
	return &GoogleClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

// Translate returns the translation of text into target.
func (g *GoogleClient) Translate(ctx context.Context, text, source, target string) (string, error) {
	if source == "" {
		source = "auto"
	}
	q := url.Values{}
	q.Set("client", "gtx")
	q.Set("sl", source)
	q.Set("tl", target)
	q.Set("dt", "t")
	q.Set("q", text)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.baseURL+"?"+q.Encode(), nil)
	if err != nil {
		return "", fmt.Errorf("create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("translate request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("translate API error (status %d): %s", resp.StatusCode, truncate(string(body), 200))
	}

	return parseGTX(body)
}

// parseGTX extracts the translation from a gtx response, which looks like
// [[["translated","original",null,null,10],...],null,"en",...].
// Long input comes back split into sentence chunks that are concatenated.
func parseGTX(body []byte) (string, error) {
	var top []json.RawMessage
	if err := json.Unmarshal(body, &top); err != nil {
		return "", fmt.Errorf("decode response: %w", err)
	}
	if len(top) == 0 {
		return "", fmt.Errorf("decode response: empty array")
	}

	var chunks [][]any
	if err := json.Unmarshal(top[0], &chunks); err != nil {
		return "", fmt.Errorf("decode sentences: %w", err)
	}

	var b strings.Builder
	for _, c := range chunks {
		if len(c) == 0 {
			continue
		}
		if s, ok := c[0].(string); ok {
			b.WriteString(s)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("no translation in response")
	}
	return b.String(), nil
}

// Lines fills in TranslatedText for every line, in place, translating from
// an auto-detected source into target (DefaultTarget if empty).
//
// A failure on one line sets that line's translation to "" and moves on;
// it never aborts the rest of the batch. Blank lines are not sent.
func Lines(ctx context.Context, tr Translator, lines []lyrics.Line, target string, log zerolog.Logger) {
	if target == "" {
		target = DefaultTarget
	}

	failed := 0
	for i := range lines {
		translated := ""
		text := strings.TrimSpace(lines[i].Text)
		if text != "" {
			out, err := tr.Translate(ctx, text, "auto", target)
			if err != nil {
				failed++
				metrics.TranslationsTotal.WithLabelValues("error").Inc()
				log.Warn().Err(err).Int("line", i).Str("target", target).Msg("line translation failed")
			} else {
				metrics.TranslationsTotal.WithLabelValues("ok").Inc()
				translated = out
			}
		}
		lines[i].TranslatedText = &translated
	}

	log.Debug().Int("lines", len(lines)).Int("failed", failed).Str("target", target).Msg("translation complete")
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
