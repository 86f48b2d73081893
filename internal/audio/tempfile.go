package audio

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// safeExt matches extensions we are willing to carry over from an upload name.
var safeExt = regexp.MustCompile(`^\.[A-Za-z0-9]{1,8}$`)

// SaveUpload copies r into a new file in dir and returns its path.
// The name is a random UUID; only a short alphanumeric extension is kept
// from uploadName so ffmpeg can use it as a format hint.
func SaveUpload(dir, uploadName string, r io.Reader) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}

	ext := filepath.Ext(filepath.Base(uploadName))
	if !safeExt.MatchString(ext) {
		ext = ""
	}
	path := filepath.Join(dir, "upload-"+uuid.NewString()+strings.ToLower(ext))

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return "", fmt.Errorf("create temp: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("write: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("close: %w", err)
	}
	return path, nil
}

// RemoveAll deletes each distinct non-empty path, ignoring missing files.
// The normalizer may hand back the upload path itself, so duplicates are
// collapsed before removal.
func RemoveAll(paths ...string) {
	seen := make(map[string]bool, len(paths))
	for _, p := range paths {
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		os.Remove(p)
	}
}
