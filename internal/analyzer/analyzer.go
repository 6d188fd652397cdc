package analyzer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/lmittmann/tint"
	"go.opentelemetry.io/otel/attribute"

	"github.com/bdougie/emotion/internal/classifier"
	"github.com/bdougie/emotion/internal/extractor"
	"github.com/bdougie/emotion/internal/metrics"
	"github.com/bdougie/emotion/internal/models"
	"github.com/bdougie/emotion/internal/tracing"
)

const defaultWorkers = 4

// FrameExtractor turns a stored video into a directory of frames
type FrameExtractor interface {
	ExtractFrames(ctx context.Context, videoPath string) (string, error)
}

// Options tunes the frame worker pool
type Options struct {
	Workers         int
	ClassifyTimeout time.Duration
}

type Processor struct {
	extractor  FrameExtractor
	classifier classifier.Classifier
	opts       Options
	logger     *slog.Logger
}

func NewProcessor(extractor FrameExtractor, classifier classifier.Classifier, opts Options, logger *slog.Logger) *Processor {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	return &Processor{
		extractor:  extractor,
		classifier: classifier,
		opts:       opts,
		logger:     logger,
	}
}

// ProcessVideo extracts the frames of videoPath and averages their emotions.
// The frame directory is returned even when analysis fails part way so the
// caller can clean it up.
func (p *Processor) ProcessVideo(ctx context.Context, videoPath string) (*models.Report, string, error) {
	tracer := tracing.Tracer("analyzer")
	ctx, span := tracer.Start(ctx, "Processor.ProcessVideo")
	defer span.End()

	start := time.Now()

	exCtx, exSpan := tracer.Start(ctx, "extract_frames")
	frameDirPath, err := p.extractor.ExtractFrames(exCtx, videoPath)
	exSpan.End()
	if err != nil {
		return nil, frameDirPath, fmt.Errorf("extract frames: %w", err)
	}
	metrics.StageDuration.WithLabelValues("extract").Observe(time.Since(start).Seconds())

	frames, err := extractor.ListFrames(frameDirPath)
	if err != nil {
		return nil, frameDirPath, err
	}
	metrics.FramesExtractedTotal.Add(float64(len(frames)))
	span.SetAttributes(attribute.Int("frames.found", len(frames)))

	classifyStart := time.Now()
	clCtx, clSpan := tracer.Start(ctx, "classify_frames")
	results := p.processFrames(clCtx, frames)
	clSpan.End()
	metrics.StageDuration.WithLabelValues("classify").Observe(time.Since(classifyStart).Seconds())

	averaged := Aggregate(results)

	report := &models.Report{
		VideoName:      filepath.Base(videoPath),
		FramesFound:    len(frames),
		FramesAnalyzed: len(results),
		Averaged:       averaged,
		Elapsed:        time.Since(start),
	}
	span.SetAttributes(attribute.Int("frames.analyzed", report.FramesAnalyzed))

	return report, frameDirPath, nil
}

// AnalyzeFrames classifies every JPEG in frameDirPath. Frames that fail are
// logged and left out; results come back in completion order.
func (p *Processor) AnalyzeFrames(ctx context.Context, frameDirPath string) ([]models.FrameResult, error) {
	frames, err := extractor.ListFrames(frameDirPath)
	if err != nil {
		return nil, err
	}
	return p.processFrames(ctx, frames), nil
}

func (p *Processor) processFrames(ctx context.Context, frames []string) []models.FrameResult {
	if len(frames) == 0 {
		p.logger.WarnContext(ctx, "no frames to analyze")
		return nil
	}

	p.logger.DebugContext(ctx, "analyzing frames", "count", len(frames), "workers", p.opts.Workers)

	workChan := make(chan models.WorkItem, len(frames))
	resultsChan := make(chan models.FrameResult, len(frames))

	var wg sync.WaitGroup

	remainingFrames := atomic.Int64{}
	remainingFrames.Store(int64(len(frames)))

	// Start worker pool
	for i := 0; i < p.opts.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for work := range workChan {
				emotions, err := p.classifyFrame(ctx, work.FramePath)
				remaining := remainingFrames.Add(-1)
				if err != nil {
					metrics.FramesClassifiedTotal.WithLabelValues("failed").Inc()
					p.logger.WarnContext(ctx, "frame analysis failed",
						"frame", filepath.Base(work.FramePath),
						"num", work.FrameNum,
						"total", work.Total,
						tint.Err(err),
					)
					continue
				}

				metrics.FramesClassifiedTotal.WithLabelValues("ok").Inc()
				resultsChan <- models.FrameResult{
					Frame:    filepath.Base(work.FramePath),
					Emotions: emotions,
				}
				p.logger.DebugContext(ctx, "frame analyzed", "frame", filepath.Base(work.FramePath), "remaining", remaining)
			}
		}()
	}

	// Send work to workers
	for i, frame := range frames {
		workChan <- models.WorkItem{
			FramePath: frame,
			FrameNum:  i + 1,
			Total:     len(frames),
		}
	}
	close(workChan)

	wg.Wait()
	close(resultsChan)

	results := make([]models.FrameResult, 0, len(frames))
	for result := range resultsChan {
		results = append(results, result)
	}
	return results
}

func (p *Processor) classifyFrame(ctx context.Context, framePath string) (models.Emotions, error) {
	metrics.ActiveWorkers.Inc()
	defer metrics.ActiveWorkers.Dec()

	if p.opts.ClassifyTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.opts.ClassifyTimeout)
		defer cancel()
	}

	emotions, err := p.classifier.Classify(ctx, framePath)
	if err != nil {
		return nil, err
	}
	if len(emotions) == 0 {
		return nil, classifier.ErrNoFace
	}
	return emotions, nil
}
