package server

import (
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/lmittmann/tint"

	"github.com/bdougie/emotion/internal/extractor"
	"github.com/bdougie/emotion/internal/metrics"
	"github.com/bdougie/emotion/internal/storage"
)

const fileField = "file"

func (s *Server) home(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"message": "API works"})
}

func (s *Server) analyzeVideo(c *gin.Context) {
	start := time.Now()
	ctx := c.Request.Context()
	log := s.logger.With("request_id", uuid.NewString())

	fh, apiErr := s.uploadedFile(c)
	if apiErr != nil {
		metrics.RequestsTotal.WithLabelValues("rejected").Inc()
		log.InfoContext(ctx, "upload rejected", "status", apiErr.Code, "reason", apiErr.Message)
		writeError(c, *apiErr)
		return
	}

	name := storage.SanitizeFilename(fh.Filename)
	log = log.With("video", name)

	// same-named uploads would share a video path and a frame directory
	unlock := s.workspace.Lock(filepath.Base(extractor.FrameDir("", name)))
	defer unlock()

	videoPath := s.workspace.VideoPath(name)
	defer func() {
		if r := recover(); r != nil {
			s.workspace.RemoveVideo(videoPath)
			panic(r)
		}
	}()
	fail := func(err error) {
		s.workspace.RemoveVideo(videoPath)
		metrics.RequestsTotal.WithLabelValues("failed").Inc()
		log.ErrorContext(ctx, "video analysis failed", tint.Err(err))
		writeError(c, errInternal(err))
	}

	src, err := fh.Open()
	if err != nil {
		fail(fmt.Errorf("open upload: %w", err))
		return
	}
	saveStart := time.Now()
	_, err = s.workspace.Save(name, src)
	src.Close()
	if err != nil {
		fail(err)
		return
	}
	metrics.StageDuration.WithLabelValues("save").Observe(time.Since(saveStart).Seconds())

	report, frameDirPath, err := s.processor.ProcessVideo(ctx, videoPath)
	if err != nil {
		fail(err)
		return
	}

	s.workspace.Cleanup(videoPath, frameDirPath)

	if err := s.recorder.Record(ctx, report); err != nil {
		log.WarnContext(ctx, "failed to record analysis", tint.Err(err))
	}

	metrics.RequestsTotal.WithLabelValues("completed").Inc()
	metrics.StageDuration.WithLabelValues("total").Observe(time.Since(start).Seconds())
	log.InfoContext(ctx, "video analysis completed",
		"frames_found", report.FramesFound,
		"frames_analyzed", report.FramesAnalyzed,
		"total", time.Since(start),
	)

	writeSuccess(c, "Video analysis completed", AnalysisData{AveragedEmotions: report.Averaged})
}

// uploadedFile validates the request and returns the uploaded file header.
// An oversized declared body is refused before anything is read; bodies
// without a declared length are capped while parsing.
func (s *Server) uploadedFile(c *gin.Context) (*multipart.FileHeader, *APIError) {
	limit := s.cfg.MaxUploadBytes
	tooLarge := errTooLarge(s.cfg.MaxUploadLabel())

	if c.Request.ContentLength > limit {
		return nil, &tooLarge
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, limit)

	form, err := c.MultipartForm()
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return nil, &tooLarge
		}
		noFile := errNoFile()
		return nil, &noFile
	}

	files := form.File[fileField]
	if len(files) == 0 {
		// a part without a filename is parsed as a plain value
		if _, ok := form.Value[fileField]; ok {
			noName := errNoFilename()
			return nil, &noName
		}
		noFile := errNoFile()
		return nil, &noFile
	}
	if files[0].Filename == "" {
		noName := errNoFilename()
		return nil, &noName
	}
	return files[0], nil
}
