package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

// mockTranslator prefixes text with the target language and fails on the
// texts listed in failOn.
type mockTranslator struct {
	failOn  map[string]bool
	targets []string
}

func (m *mockTranslator) Translate(ctx context.Context, text, source, target string) (string, error) {
	m.targets = append(m.targets, target)
	if m.failOn[text] {
		return "", errors.New("translation service unavailable")
	}
	return target + ":" + text, nil
}

func doTranslate(t *testing.T, h *TranslateHandler, query, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest("POST", "/translate"+query, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h.Translate(rec, req)
	return rec
}

func TestTranslate_SingleLine(t *testing.T) {
	tr := &mockTranslator{}
	h := NewTranslateHandler(TranslateOptions{Translator: tr, DefaultTarget: "ko", Log: zerolog.Nop()})

	rec := doTranslate(t, h, "", `[{"start":0,"text":"Hello","translated_text":""}]`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeSegments(t, rec)
	if len(body.Segments) != 1 {
		t.Fatalf("segments = %d, want 1", len(body.Segments))
	}
	got := body.Segments[0]
	if got.TranslatedText == nil || *got.TranslatedText == "" {
		t.Fatalf("translated_text = %v, want non-empty", got.TranslatedText)
	}
	if *got.TranslatedText != "ko:Hello" {
		t.Errorf("translated_text = %q, want %q", *got.TranslatedText, "ko:Hello")
	}
	if got.Start != 0 || got.Text != "Hello" {
		t.Errorf("line = %+v, start/text must pass through", got)
	}
}

func TestTranslate_FailedLineIsEmpty(t *testing.T) {
	tr := &mockTranslator{failOn: map[string]bool{"two": true}}
	h := NewTranslateHandler(TranslateOptions{Translator: tr, Log: zerolog.Nop()})

	rec := doTranslate(t, h, "", `[{"start":1,"text":"one"},{"start":2,"text":"two"},{"start":3,"text":"three"}]`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200; body: %s", rec.Code, rec.Body.String())
	}
	body := decodeSegments(t, rec)
	want := []string{"ko:one", "", "ko:three"}
	if len(body.Segments) != len(want) {
		t.Fatalf("segments = %d, want %d", len(body.Segments), len(want))
	}
	for i, w := range want {
		tt := body.Segments[i].TranslatedText
		if tt == nil {
			t.Errorf("line %d: translated_text missing", i)
			continue
		}
		if *tt != w {
			t.Errorf("line %d: translated_text = %q, want %q", i, *tt, w)
		}
	}
}

func TestTranslate_TargetQuery(t *testing.T) {
	tr := &mockTranslator{}
	h := NewTranslateHandler(TranslateOptions{Translator: tr, DefaultTarget: "ko", Log: zerolog.Nop()})

	rec := doTranslate(t, h, "?target=ja", `[{"start":0,"text":"Hello"}]`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if len(tr.targets) != 1 || tr.targets[0] != "ja" {
		t.Errorf("targets = %v, want [ja]", tr.targets)
	}
}

func TestTranslate_EmptyList(t *testing.T) {
	h := NewTranslateHandler(TranslateOptions{Translator: &mockTranslator{}, Log: zerolog.Nop()})

	rec := doTranslate(t, h, "", `[]`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if got := strings.TrimSpace(rec.Body.String()); got != `{"segments":[]}` {
		t.Errorf("body = %s", got)
	}
}

func TestTranslate_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid_json", `[{"start":`},
		{"not_a_list", `{"start":0,"text":"x"}`},
		{"missing_text", `[{"start":0}]`},
		{"missing_start", `[{"text":"x"}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tr := &mockTranslator{}
			h := NewTranslateHandler(TranslateOptions{Translator: tr, Log: zerolog.Nop()})
			rec := doTranslate(t, h, "", tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", rec.Code)
			}
			if len(tr.targets) != 0 {
				t.Error("translator should not be called")
			}
		})
	}
}

func TestTranslate_PublishesEvent(t *testing.T) {
	pub := &recordingPublisher{}
	h := NewTranslateHandler(TranslateOptions{Translator: &mockTranslator{}, Events: pub, Log: zerolog.Nop()})

	doTranslate(t, h, "", `[{"start":0,"text":"Hello"}]`)

	if len(pub.events) != 1 || pub.events[0] != "translate" {
		t.Fatalf("events = %v, want [translate]", pub.events)
	}
	if pub.payloads[0]["target"] != "ko" {
		t.Errorf("target = %v, want ko", pub.payloads[0]["target"])
	}
}
