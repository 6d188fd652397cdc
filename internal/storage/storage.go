package storage

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"unicode"

	"github.com/lmittmann/tint"
	"golang.org/x/text/unicode/norm"

	"github.com/bdougie/emotion/internal/models"
)

// fallbackName is used when nothing of an uploaded filename survives sanitizing
const fallbackName = "upload"

// Recorder keeps finished analyses somewhere outside the request
type Recorder interface {
	// Record stores one finished analysis
	Record(ctx context.Context, report *models.Report) error

	// Close releases any held connections
	Close()
}

// NopRecorder drops every report
type NopRecorder struct{}

func (NopRecorder) Record(context.Context, *models.Report) error { return nil }
func (NopRecorder) Close()                                      {}

// Workspace owns the transient upload and frame directories
type Workspace struct {
	uploadDir string
	framesDir string
	logger    *slog.Logger

	mu    sync.Mutex
	names map[string]*nameLock
}

type nameLock struct {
	mu   sync.Mutex
	refs int
}

// NewWorkspace creates both directories if needed
func NewWorkspace(uploadDir, framesDir string, logger *slog.Logger) (*Workspace, error) {
	for _, dir := range []string{uploadDir, framesDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create directory '%s': %w", dir, err)
		}
	}
	return &Workspace{
		uploadDir: uploadDir,
		framesDir: framesDir,
		logger:    logger,
		names:     map[string]*nameLock{},
	}, nil
}

func (w *Workspace) UploadDir() string { return w.uploadDir }
func (w *Workspace) FramesDir() string { return w.framesDir }

// VideoPath is where an upload with the given sanitized name is stored
func (w *Workspace) VideoPath(name string) string {
	return filepath.Join(w.uploadDir, name)
}

// Lock serializes requests keyed by the same frame directory name, since
// they would otherwise share a video path or a frame directory. The returned
// function releases the lock.
func (w *Workspace) Lock(name string) func() {
	w.mu.Lock()
	l, ok := w.names[name]
	if !ok {
		l = &nameLock{}
		w.names[name] = l
	}
	l.refs++
	w.mu.Unlock()

	l.mu.Lock()
	return func() {
		l.mu.Unlock()
		w.mu.Lock()
		l.refs--
		if l.refs == 0 {
			delete(w.names, name)
		}
		w.mu.Unlock()
	}
}

// Save writes src to the upload directory under name and returns its path
func (w *Workspace) Save(name string, src io.Reader) (string, error) {
	videoPath := w.VideoPath(name)

	file, err := os.Create(videoPath)
	if err != nil {
		return "", fmt.Errorf("failed to create upload file: %w", err)
	}
	defer file.Close()

	if _, err := io.Copy(file, src); err != nil {
		return videoPath, fmt.Errorf("failed to write upload file: %w", err)
	}
	if err := file.Close(); err != nil {
		return videoPath, fmt.Errorf("failed to close upload file: %w", err)
	}
	return videoPath, nil
}

// RemoveVideo deletes a stored upload. Failures are logged only.
func (w *Workspace) RemoveVideo(videoPath string) {
	if err := os.Remove(videoPath); err != nil && !os.IsNotExist(err) {
		w.logger.Error("error removing upload", "path", videoPath, tint.Err(err))
	}
}

// Cleanup deletes the upload, the frames and then the frame directory. Each
// step is attempted even if an earlier one failed; failures are logged only.
func (w *Workspace) Cleanup(videoPath, frameDirPath string) {
	w.RemoveVideo(videoPath)
	if frameDirPath == "" {
		return
	}

	files, err := os.ReadDir(frameDirPath)
	if err != nil {
		if !os.IsNotExist(err) {
			w.logger.Error("error listing frames for cleanup", "dir", frameDirPath, tint.Err(err))
		}
		return
	}

	for _, file := range files {
		if file.IsDir() || !strings.HasSuffix(strings.ToLower(file.Name()), ".jpg") {
			continue
		}
		framePath := filepath.Join(frameDirPath, file.Name())
		if err := os.Remove(framePath); err != nil {
			w.logger.Error("error removing frame", "path", framePath, tint.Err(err))
		}
	}

	if err := os.Remove(frameDirPath); err != nil {
		w.logger.Error("error removing frame directory", "dir", frameDirPath, tint.Err(err))
	}
}

// SanitizeFilename makes an uploaded filename safe to join onto a directory.
// Path separators count as whitespace, unicode is folded to ASCII where it
// has a plain equivalent and runs of whitespace become one underscore. Then
// anything outside [A-Za-z0-9_.-] is removed and leading or trailing dots
// and underscores are trimmed, so the result never names a directory.
func SanitizeFilename(name string) string {
	name = norm.NFKD.String(name)

	var b strings.Builder
	for _, r := range name {
		switch {
		case r == '/' || r == '\\':
			b.WriteByte(' ')
		case r < unicode.MaxASCII:
			b.WriteRune(r)
		}
	}

	fields := strings.Fields(b.String())
	joined := strings.Join(fields, "_")

	b.Reset()
	for _, r := range joined {
		if r == '_' || r == '.' || r == '-' ||
			(r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}

	clean := strings.Trim(b.String(), "._")
	if clean == "" {
		return fallbackName
	}
	return clean
}
