// Package classifier turns a single frame into emotion confidences by
// delegating to an external face-analysis backend.
package classifier

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/bdougie/emotion/internal/config"
	"github.com/bdougie/emotion/internal/models"
)

// Classifier scores the emotions of the face in one image
type Classifier interface {
	Classify(ctx context.Context, imagePath string) (models.Emotions, error)
}

// New builds the backend selected by cfg.Classifier.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (Classifier, error) {
	switch cfg.Classifier {
	case config.ClassifierCommand:
		return NewCommand(cfg.ClassifierCommand, cfg.ClassifierArgs...), nil
	case config.ClassifierOllama:
		return NewVision(ctx, VisionOptions{
			BaseURL: cfg.OllamaURL,
			Port:    cfg.OllamaPort,
			Model:   cfg.OllamaModel,
		}, logger)
	default:
		return nil, fmt.Errorf("unknown classifier backend %q", cfg.Classifier)
	}
}
