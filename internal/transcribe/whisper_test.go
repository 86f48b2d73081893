package transcribe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeAudio(t *testing.T) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "clip_clean.wav")
	if err := os.WriteFile(p, []byte("RIFF....WAVE"), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestWhisperClient_SendsSongOpts(t *testing.T) {
	var got map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse form: %v", err)
		}
		got = map[string]string{}
		for k, v := range r.MultipartForm.Value {
			got[k] = v[0]
		}
		if _, _, err := r.FormFile("file"); err != nil {
			t.Errorf("missing file field: %v", err)
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"text":"la la","language":"en","duration":4.0,
			"segments":[{"start":0.5,"end":2.0,"text":" la","avg_logprob":-0.3,"no_speech_prob":0.1},
			            {"start":2.0,"end":4.0,"text":" la","avg_logprob":-0.4,"no_speech_prob":0.2}]}`))
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "small", 5*time.Second)
	res, err := wc.Transcribe(context.Background(), writeAudio(t), SongDecodeOpts("en"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	want := map[string]string{
		"model":                      "small",
		"language":                   "en",
		"response_format":            "verbose_json",
		"prompt":                     SongPrompt,
		"condition_on_previous_text": "false",
		"no_speech_threshold":        "0.60",
		"log_prob_threshold":         "-1.00",
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("form[%s] = %q, want %q", k, got[k], v)
		}
	}

	if len(res.Segments) != 2 {
		t.Fatalf("segments = %d, want 2", len(res.Segments))
	}
	if res.Segments[0].Start != 0.5 || res.Segments[1].End != 4.0 {
		t.Errorf("segments = %+v", res.Segments)
	}
	if res.Language != "en" {
		t.Errorf("language = %q, want en", res.Language)
	}
}

func TestWhisperClient_AutoLanguageOmitted(t *testing.T) {
	var hasLang bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r.ParseMultipartForm(1 << 20)
		_, hasLang = r.MultipartForm.Value["language"]
		w.Write([]byte(`{"text":"","segments":[]}`))
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "", 5*time.Second)
	if _, err := wc.Transcribe(context.Background(), writeAudio(t), SongDecodeOpts("auto")); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if hasLang {
		t.Error("language field should be omitted for auto-detect")
	}
}

func TestWhisperClient_DropsSilentSegments(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"segments":[
			{"start":0,"end":3,"text":"Thanks for watching!","avg_logprob":-1.4,"no_speech_prob":0.92},
			{"start":3,"end":6,"text":"real words","avg_logprob":-0.2,"no_speech_prob":0.7},
			{"start":6,"end":9,"text":"mumble","avg_logprob":-1.6,"no_speech_prob":0.1}]}`))
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "small", 5*time.Second)
	res, err := wc.Transcribe(context.Background(), writeAudio(t), SongDecodeOpts("en"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	// Only the first segment exceeds both thresholds.
	if len(res.Segments) != 2 {
		t.Fatalf("segments = %+v, want 2 kept", res.Segments)
	}
	if res.Segments[0].Text != "real words" || res.Segments[1].Text != "mumble" {
		t.Errorf("unexpected segments kept: %+v", res.Segments)
	}
}

func TestWhisperClient_ErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "model not loaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	wc := NewWhisperClient(srv.URL, "small", 5*time.Second)
	_, err := wc.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{})
	if err == nil {
		t.Fatal("expected error on 503")
	}
	if !strings.Contains(err.Error(), "503") {
		t.Errorf("error %q should mention the status code", err)
	}
}

func TestWhisperClient_MissingFile(t *testing.T) {
	wc := NewWhisperClient("http://127.0.0.1:1", "small", time.Second)
	if _, err := wc.Transcribe(context.Background(), "/nonexistent/audio.wav", TranscribeOpts{}); err == nil {
		t.Fatal("expected error for missing audio file")
	}
}

func TestDeepInfraClient_Segments(t *testing.T) {
	var auth, path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		auth = r.Header.Get("Authorization")
		path = r.URL.Path
		r.ParseMultipartForm(1 << 20)
		if _, _, err := r.FormFile("audio"); err != nil {
			t.Errorf("missing audio field: %v", err)
		}
		w.Write([]byte(`{"text":"one two","language":"ko","duration":5,
			"segments":[{"text":"one","start":1,"end":2},{"text":"two","start":2,"end":5}]}`))
	}))
	defer srv.Close()

	di := NewDeepInfraClient("secret", "openai/whisper-large-v3-turbo", 5*time.Second)
	di.baseURL = srv.URL + "/v1/inference/"

	res, err := di.Transcribe(context.Background(), writeAudio(t), SongDecodeOpts("ko"))
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if auth != "Bearer secret" {
		t.Errorf("Authorization = %q", auth)
	}
	if path != "/v1/inference/openai/whisper-large-v3-turbo" {
		t.Errorf("path = %q", path)
	}
	if len(res.Segments) != 2 || res.Segments[1].End != 5 {
		t.Errorf("segments = %+v", res.Segments)
	}
	if di.Name() != "deepinfra" {
		t.Errorf("Name = %q", di.Name())
	}
}

func TestDeepInfraClient_TextOnlyBecomesOneSegment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"text":"hello there","duration":7.5}`))
	}))
	defer srv.Close()

	di := NewDeepInfraClient("k", "m", 5*time.Second)
	di.baseURL = srv.URL + "/"

	res, err := di.Transcribe(context.Background(), writeAudio(t), TranscribeOpts{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if len(res.Segments) != 1 || res.Segments[0].End != 7.5 {
		t.Errorf("segments = %+v, want one 0–7.5s segment", res.Segments)
	}
}
