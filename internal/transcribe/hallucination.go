package transcribe

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
	"github.com/snarg/lyrics-engine/internal/metrics"
	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

// knownHallucinations are phrases Whisper emits over music or silence,
// mostly subtitle credits picked up from its training data.
var knownHallucinations = []string{
	"lyrics",
	"lyrics.",
	"노래 가사",
	"mbc",
	"subtitles",
	"sous-titres",
	"시청해 주셔서 감사합니다",
}

// nonWord matches text with no letters or digits at all ("...", "♪♪", "-").
var nonWord = regexp.MustCompile(`^[^\p{L}\p{N}]+$`)

// Denylist is the set of transcript lines treated as hallucinations.
// It always holds the built-in phrases; extra phrases can be loaded from a
// file and reloaded while the server runs.
type Denylist struct {
	mu      sync.RWMutex
	phrases map[string]struct{}
	log     zerolog.Logger
}

// NewDenylist returns a denylist containing only the built-in phrases.
func NewDenylist(log zerolog.Logger) *Denylist {
	d := &Denylist{log: log}
	d.set(nil)
	return d
}

func (d *Denylist) set(extra []string) {
	phrases := make(map[string]struct{}, len(knownHallucinations)+len(extra))
	for _, p := range knownHallucinations {
		phrases[foldKey(p)] = struct{}{}
	}
	for _, p := range extra {
		if k := foldKey(p); k != "" {
			phrases[k] = struct{}{}
		}
	}
	d.mu.Lock()
	d.phrases = phrases
	d.mu.Unlock()
}

// Contains reports whether text exactly matches a denylisted phrase,
// ignoring case, surrounding whitespace and Unicode normalization form.
func (d *Denylist) Contains(text string) bool {
	k := foldKey(text)
	d.mu.RLock()
	_, ok := d.phrases[k]
	d.mu.RUnlock()
	return ok
}

// Len returns the number of distinct phrases.
func (d *Denylist) Len() int {
	if d == nil {
		return 0
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.phrases)
}

// LoadFile replaces the extra phrases with the contents of path.
// One phrase per line; blank lines and lines starting with # are ignored.
func (d *Denylist) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open denylist: %w", err)
	}
	defer f.Close()

	var extra []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		extra = append(extra, line)
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("read denylist: %w", err)
	}

	d.set(extra)
	d.log.Info().Str("path", path).Int("extra_phrases", len(extra)).Msg("hallucination denylist loaded")
	return nil
}

// Watch reloads path whenever it changes until ctx is cancelled.
// The parent directory is watched so editors that replace the file
// via rename are picked up.
func (d *Denylist) Watch(ctx context.Context, path string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		watcher.Close()
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	go func() {
		defer watcher.Close()

		const debounce = 250 * time.Millisecond
		var timer *time.Timer
		target := filepath.Clean(path)

		for {
			select {
			case <-ctx.Done():
				if timer != nil {
					timer.Stop()
				}
				return
			case ev, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(ev.Name) != target {
					continue
				}
				if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
					continue
				}
				if timer != nil {
					timer.Stop()
				}
				timer = time.AfterFunc(debounce, func() {
					if err := d.LoadFile(path); err != nil {
						d.log.Warn().Err(err).Str("path", path).Msg("denylist reload failed, keeping previous phrases")
					}
				})
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				d.log.Warn().Err(err).Msg("denylist watcher error")
			}
		}
	}()
	return nil
}

// FilterHallucinations returns the segments whose trimmed text is non-empty,
// not denylisted, and contains at least one letter or digit. Order is
// preserved and surviving segments are returned unmodified.
func FilterHallucinations(segments []Segment, deny *Denylist) []Segment {
	kept := make([]Segment, 0, len(segments))
	for _, seg := range segments {
		text := strings.TrimSpace(seg.Text)
		if text == "" {
			continue
		}
		if deny != nil && deny.Contains(text) {
			continue
		}
		if nonWord.MatchString(text) {
			continue
		}
		kept = append(kept, seg)
	}
	if dropped := len(segments) - len(kept); dropped > 0 {
		metrics.HallucinationsFilteredTotal.Add(float64(dropped))
	}
	return kept
}

func foldKey(s string) string {
	return norm.NFC.String(cases.Fold().String(strings.TrimSpace(s)))
}
