package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"github.com/snarg/lyrics-engine/internal/metrics"
)

// ErrToolNotFound is returned when no ffmpeg executable can be located.
var ErrToolNotFound = errors.New("ffmpeg executable not found")

// Normalizer converts uploaded audio into mono 16kHz 16-bit PCM WAV.
type Normalizer struct {
	binary string
	log    zerolog.Logger
}

// NewNormalizer creates a normalizer that runs the given ffmpeg binary name
// (or path). The binary is resolved on every call, so installing ffmpeg while
// the server is running takes effect without a restart.
func NewNormalizer(binary string, log zerolog.Logger) *Normalizer {
	if binary == "" {
		binary = "ffmpeg"
	}
	return &Normalizer{binary: binary, log: log}
}

// Locate resolves the converter executable.
// Priority: 1) PATH lookup  2) sidecar next to the running executable
func (n *Normalizer) Locate() (string, error) {
	return LocateFFmpeg(n.binary)
}

// LocateFFmpeg finds an ffmpeg executable by name.
func LocateFFmpeg(name string) (string, error) {
	if p, err := exec.LookPath(name); err == nil {
		return p, nil
	}

	// Fixed fallback: a copy shipped alongside our own binary.
	if self, err := os.Executable(); err == nil {
		candidate := filepath.Join(filepath.Dir(self), sidecarName(name))
		if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %q not in PATH or next to executable", ErrToolNotFound, name)
}

// Normalize converts inputPath to <input>_clean.wav and returns the new path.
//
// A failed conversion is not an error: the original path is returned so the
// request can continue on the unconverted file. Only ErrToolNotFound is
// returned to the caller.
func (n *Normalizer) Normalize(ctx context.Context, inputPath string) (string, error) {
	bin, err := n.Locate()
	if err != nil {
		return "", err
	}

	outPath := strings.TrimSuffix(inputPath, filepath.Ext(inputPath)) + "_clean.wav"
	if outPath == inputPath {
		outPath = inputPath + "_clean.wav"
	}

	n.log.Debug().Str("input", inputPath).Str("output", outPath).Msg("converting audio")

	cmd := exec.CommandContext(ctx, bin,
		"-i", inputPath,
		"-ar", "16000",
		"-ac", "1",
		"-c:a", "pcm_s16le",
		"-vn",
		"-y",
		outPath,
	) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		os.Remove(outPath)
		metrics.AudioConversionsTotal.WithLabelValues("fallback").Inc()
		n.log.Warn().Err(err).
			Str("input", inputPath).
			Str("ffmpeg_output", tail(string(output), 512)).
			Msg("audio conversion failed, using original file")
		return inputPath, nil
	}

	metrics.AudioConversionsTotal.WithLabelValues("ok").Inc()
	return outPath, nil
}

func sidecarName(name string) string {
	base := filepath.Base(name)
	if runtime.GOOS == "windows" && !strings.HasSuffix(strings.ToLower(base), ".exe") {
		base += ".exe"
	}
	return base
}

func isExecutable(info os.FileInfo) bool {
	if info == nil || info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}

// tail keeps the last n bytes of ffmpeg output; the error is at the end.
func tail(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[len(s)-n:]
}
