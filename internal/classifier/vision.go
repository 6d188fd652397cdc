package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/agent-api/core/pkg/agent"
	"github.com/agent-api/core/types"
	"github.com/agent-api/ollama"

	"github.com/bdougie/emotion/internal/models"
)

const visionSystemPrompt = "You are a facial expression rater. You only ever answer with a single JSON object and no other text."

const visionPrompt = `Rate the facial expression of the most prominent face in this image.
Answer with a JSON object whose keys are exactly "angry", "disgust", "fear", "happy", "sad", "surprise" and "neutral"
and whose values are confidences from 0 to 100 that add up to 100.`

// VisionOptions locates the Ollama server and model
type VisionOptions struct {
	BaseURL string
	Port    int
	Model   string
}

// Vision asks a local vision model, served by Ollama, to rate each frame
type Vision struct {
	newAgent func() *agent.DefaultAgent
	logger   *slog.Logger
}

// NewVision checks that Ollama is reachable and selects the model
func NewVision(ctx context.Context, opts VisionOptions, logger *slog.Logger) (*Vision, error) {
	if err := ping(ctx, fmt.Sprintf("%s:%d/api/tags", opts.BaseURL, opts.Port)); err != nil {
		return nil, fmt.Errorf("ollama is not reachable: %w", err)
	}

	provider := ollama.NewProvider(&ollama.ProviderOpts{
		Logger:  logger,
		BaseURL: opts.BaseURL,
		Port:    opts.Port,
	})
	provider.UseModel(ctx, &types.Model{
		ID: opts.Model,
	})

	newAgent := func() *agent.DefaultAgent {
		return agent.NewAgent(&agent.NewAgentConfig{
			Provider:     provider,
			Logger:       logger,
			SystemPrompt: visionSystemPrompt,
		})
	}

	return &Vision{newAgent: newAgent, logger: logger}, nil
}

// Classify sends the frame to the model and parses the JSON it answers with.
// Every call gets a fresh agent so frames never share conversation history.
func (v *Vision) Classify(ctx context.Context, imagePath string) (models.Emotions, error) {
	a := v.newAgent()

	response := a.Run(
		ctx,
		agent.WithInput(visionPrompt),
		agent.WithImagePath(imagePath),
	)
	if response.Err != nil {
		return nil, response.Err
	}
	if len(response.Messages) == 0 {
		return nil, fmt.Errorf("no response messages received from model")
	}

	// the last message is the model's answer, not the prompt
	content := response.Messages[len(response.Messages)-1].Content
	v.logger.DebugContext(ctx, "vision model answered", "frame", imagePath, "content", content)

	return ParseEmotions([]byte(content))
}

func ping(ctx context.Context, url string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %s", resp.Status)
	}
	return nil
}
