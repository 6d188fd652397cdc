package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bdougie/emotion/internal/config"
	"github.com/bdougie/emotion/internal/extractor"
	"github.com/bdougie/emotion/internal/models"
	"github.com/bdougie/emotion/internal/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// fakeProcessor writes a couple of frames like the real extractor would and
// answers with a fixed aggregate or error
type fakeProcessor struct {
	framesDir string
	averaged  models.Emotions
	err       error
	panic     bool

	mu     sync.Mutex
	videos []string
}

func (f *fakeProcessor) ProcessVideo(ctx context.Context, videoPath string) (*models.Report, string, error) {
	f.mu.Lock()
	f.videos = append(f.videos, videoPath)
	f.mu.Unlock()

	if f.panic {
		panic("classifier exploded")
	}

	frameDir := extractor.FrameDir(f.framesDir, videoPath)
	if err := os.MkdirAll(frameDir, 0755); err != nil {
		return nil, "", err
	}
	for _, name := range []string{"frame_0001.jpg", "frame_0002.jpg"} {
		if err := os.WriteFile(filepath.Join(frameDir, name), nil, 0644); err != nil {
			return nil, frameDir, err
		}
	}

	if f.err != nil {
		return nil, frameDir, f.err
	}
	return &models.Report{
		VideoName:      filepath.Base(videoPath),
		FramesFound:    2,
		FramesAnalyzed: len(f.averaged),
		Averaged:       f.averaged,
	}, frameDir, nil
}

type fakeRecorder struct {
	reports []*models.Report
	err     error
}

func (r *fakeRecorder) Record(ctx context.Context, report *models.Report) error {
	r.reports = append(r.reports, report)
	return r.err
}

func (r *fakeRecorder) Close() {}

type harness struct {
	cfg       *config.Config
	workspace *storage.Workspace
	processor *fakeProcessor
	recorder  *fakeRecorder
	handler   http.Handler
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	root := t.TempDir()
	cfg := &config.Config{
		UploadDir:      filepath.Join(root, "uploads"),
		FramesDir:      filepath.Join(root, "frames"),
		MaxUploadBytes: 50 << 20,
		AllowedOrigins: []string{"http://localhost:5173", "https://emotion-diamond-fe.vercel.app"},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	ws, err := storage.NewWorkspace(cfg.UploadDir, cfg.FramesDir, logger)
	require.NoError(t, err)

	h := &harness{
		cfg:       cfg,
		workspace: ws,
		processor: &fakeProcessor{
			framesDir: cfg.FramesDir,
			averaged:  models.Emotions{"happy": 0.5, "sad": 0.25},
		},
		recorder: &fakeRecorder{},
	}
	h.handler = New(cfg, ws, h.processor, h.recorder, logger).Handler()
	return h
}

func (h *harness) do(req *http.Request) (*httptest.ResponseRecorder, Response) {
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	var resp Response
	_ = json.Unmarshal(rec.Body.Bytes(), &resp)
	return rec, resp
}

func (h *harness) uploads(t *testing.T) []string {
	t.Helper()
	entries, err := os.ReadDir(h.cfg.UploadDir)
	require.NoError(t, err)
	var names []string
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func uploadRequest(t *testing.T, field, filename string, content []byte) *http.Request {
	t.Helper()
	var body bytes.Buffer
	w := multipart.NewWriter(&body)
	if field != "" {
		part, err := w.CreateFormFile(field, filename)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.WriteField("note", "hello"))
	require.NoError(t, w.Close())

	req := httptest.NewRequest(http.MethodPost, "/analyze-video", &body)
	req.Header.Set("Content-Type", w.FormDataContentType())
	return req
}

func TestHome(t *testing.T) {
	h := newHarness(t)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message": "API works"}`, rec.Body.String())
}

func TestAnalyzeVideoSuccess(t *testing.T) {
	h := newHarness(t)

	rec, resp := h.do(uploadRequest(t, "file", "../My Clip.mp4", []byte("video bytes")))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{
		"status": "success",
		"message": "Video analysis completed",
		"data": {"averaged_emotions": {"happy": 0.5, "sad": 0.25}}
	}`, rec.Body.String())
	assert.Equal(t, statusSuccess, resp.Status)

	videoPath := filepath.Join(h.cfg.UploadDir, "My_Clip.mp4")
	assert.Equal(t, []string{videoPath}, h.processor.videos)
	assert.NoFileExists(t, videoPath)
	assert.NoDirExists(t, filepath.Join(h.cfg.FramesDir, "My_Clip"))

	require.Len(t, h.recorder.reports, 1)
	assert.Equal(t, "My_Clip.mp4", h.recorder.reports[0].VideoName)
}

func TestAnalyzeVideoRecorderFailureIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.recorder.err = errors.New("database is down")

	rec, _ := h.do(uploadRequest(t, "file", "clip.mp4", []byte("x")))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestAnalyzeVideoNoFaces(t *testing.T) {
	h := newHarness(t)
	h.processor.averaged = models.Emotions{}

	rec, _ := h.do(uploadRequest(t, "file", "clip.mp4", []byte("x")))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{
		"status": "success",
		"message": "Video analysis completed",
		"data": {"averaged_emotions": {}}
	}`, rec.Body.String())
}

func TestAnalyzeVideoMissingFile(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(uploadRequest(t, "", "", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status": "error", "message": "No file provided", "data": null}`, rec.Body.String())
	assert.Empty(t, h.uploads(t))
	assert.Empty(t, h.processor.videos)
}

func TestAnalyzeVideoWrongField(t *testing.T) {
	h := newHarness(t)

	rec, resp := h.do(uploadRequest(t, "video", "clip.mp4", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", resp.Message)
	assert.Empty(t, h.uploads(t))
}

func TestAnalyzeVideoNotMultipart(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodPost, "/analyze-video", bytes.NewBufferString(`{"file": "clip.mp4"}`))
	req.Header.Set("Content-Type", "application/json")
	rec, resp := h.do(req)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "No file provided", resp.Message)
}

func TestAnalyzeVideoEmptyFilename(t *testing.T) {
	h := newHarness(t)

	rec, _ := h.do(uploadRequest(t, "file", "", []byte("x")))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.JSONEq(t, `{"status": "error", "message": "No file selected", "data": null}`, rec.Body.String())
	assert.Empty(t, h.uploads(t))
}

func TestAnalyzeVideoDeclaredTooLarge(t *testing.T) {
	h := newHarness(t)

	req := uploadRequest(t, "file", "big.mp4", []byte("small body, large claim"))
	req.ContentLength = 50<<20 + 1
	rec, _ := h.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.JSONEq(t, `{"status": "error", "message": "File size exceeds limit (50MB)", "data": null}`, rec.Body.String())
	assert.Empty(t, h.uploads(t))
	assert.Empty(t, h.processor.videos)
}

func TestAnalyzeVideoUndeclaredTooLarge(t *testing.T) {
	h := newHarness(t)
	h.cfg.MaxUploadBytes = 1 << 20

	req := uploadRequest(t, "file", "big.mp4", bytes.Repeat([]byte{1}, 2<<20))
	req.ContentLength = -1
	rec, resp := h.do(req)

	assert.Equal(t, http.StatusRequestEntityTooLarge, rec.Code)
	assert.Equal(t, "File size exceeds limit (1MB)", resp.Message)
	assert.Empty(t, h.uploads(t))
}

func TestAnalyzeVideoProcessingError(t *testing.T) {
	h := newHarness(t)
	h.processor.err = errors.New("failed to read frames directory 'frames/clip': permission denied")

	rec, _ := h.do(uploadRequest(t, "file", "clip.mp4", []byte("x")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{
		"status": "error",
		"message": "failed to read frames directory 'frames/clip': permission denied",
		"data": null
	}`, rec.Body.String())
	assert.Empty(t, h.uploads(t))
	assert.Empty(t, h.recorder.reports)
}

func TestAnalyzeVideoPanic(t *testing.T) {
	h := newHarness(t)
	h.processor.panic = true

	rec, resp := h.do(uploadRequest(t, "file", "clip.mp4", []byte("x")))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, statusError, resp.Status)
	assert.Contains(t, resp.Message, "classifier exploded")
	assert.Nil(t, resp.Data)
	assert.Empty(t, h.uploads(t))
}

func TestCORSAllowedOrigin(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodOptions, "/analyze-video", nil)
	req.Header.Set("Origin", "https://emotion-diamond-fe.vercel.app")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://emotion-diamond-fe.vercel.app", rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORSRejectedOrigin(t *testing.T) {
	h := newHarness(t)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	h.handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}
