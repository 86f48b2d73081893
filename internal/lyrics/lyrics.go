// Package lyrics parses LRC-style timestamped lyrics and assigns timestamps
// to untimed lyric lines.
package lyrics

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/snarg/lyrics-engine/internal/transcribe"
)

// Line is one lyric line with its start time in seconds.
// TranslatedText is nil until a translation pass fills it in.
type Line struct {
	Start          float64 `json:"start"`
	Text           string  `json:"text"`
	TranslatedText *string `json:"translated_text,omitempty"`
}

// timestamped matches "[m:ss.xx] text" or "m:ss text". Brackets must be
// balanced; that is checked after matching since RE2 has no backreferences.
var timestamped = regexp.MustCompile(`^(\[)?(\d+):(\d+(?:\.\d*)?)(\])?\s*(.*)$`)

// lineBreak matches CRLF and every single-character line separator.
var lineBreak = regexp.MustCompile(`\r\n|[\n\r\v\f\x1c\x1d\x1e\x{85}\x{2028}\x{2029}]`)

// splitLines splits text on any line boundary.
func splitLines(text string) []string {
	return lineBreak.Split(text, -1)
}

// ParseTimestamped parses each line of text independently. A line is kept
// only when it starts with a minutes:seconds marker and has non-empty text
// after it; everything else (metadata tags, untimed lines, bare markers) is
// dropped. Output follows input order.
func ParseTimestamped(text string) []Line {
	var lines []Line
	for _, raw := range splitLines(text) {
		m := timestamped.FindStringSubmatch(strings.TrimSpace(raw))
		if m == nil {
			continue
		}
		if (m[1] == "") != (m[4] == "") {
			continue
		}
		body := strings.TrimSpace(m[5])
		if body == "" {
			continue
		}
		minutes, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		seconds, err := strconv.ParseFloat(m[3], 64)
		if err != nil {
			continue
		}
		lines = append(lines, Line{Start: float64(minutes)*60 + seconds, Text: body})
	}
	return lines
}

// FormatTimestamped renders lines as "[m:ss.cc] text", one per line.
func FormatTimestamped(lines []Line) string {
	var b strings.Builder
	for i, l := range lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		cs := int64(math.Round(l.Start * 100))
		if cs < 0 {
			cs = 0
		}
		fmt.Fprintf(&b, "[%d:%02d.%02d] %s", cs/6000, (cs/100)%60, cs%100, l.Text)
	}
	return b.String()
}

// ForceAlign spreads the non-empty lines of userText evenly across the time
// span covered by segments. Only the segments' first start and last end are
// used; their text is ignored. The i-th of N lines starts at
// offset + duration*i/N, rounded to two decimals.
func ForceAlign(segments []transcribe.Segment, userText string) []Line {
	var userLines []string
	for _, l := range splitLines(userText) {
		if l = strings.TrimSpace(l); l != "" {
			userLines = append(userLines, l)
		}
	}
	if len(segments) == 0 || len(userLines) == 0 {
		return []Line{}
	}

	offset := segments[0].Start
	duration := segments[len(segments)-1].End - offset
	n := float64(len(userLines))

	out := make([]Line, len(userLines))
	for i, text := range userLines {
		out[i] = Line{
			Start: round2(offset + duration*(float64(i)/n)),
			Text:  text,
		}
	}
	return out
}

// FromSegments converts transcript segments to lines with trimmed text.
func FromSegments(segments []transcribe.Segment) []Line {
	out := make([]Line, len(segments))
	for i, s := range segments {
		out[i] = Line{Start: s.Start, Text: strings.TrimSpace(s.Text)}
	}
	return out
}

// round2 rounds the exact binary value to two decimals, ties to even.
func round2(v float64) float64 {
	r, _ := strconv.ParseFloat(strconv.FormatFloat(v, 'f', 2, 64), 64)
	return r
}
