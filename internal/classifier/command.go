package classifier

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"

	"github.com/bdougie/emotion/internal/models"
)

// Command runs an external program once per frame. The image path is
// appended to args and the program prints the analysis as JSON on stdout,
// e.g. a small DeepFace wrapper calling DeepFace.analyze(actions=["emotion"]).
type Command struct {
	path string
	args []string
}

// NewCommand creates a command backed classifier
func NewCommand(path string, args ...string) *Command {
	return &Command{path: path, args: args}
}

// Classify runs the command for imagePath and parses its output
func (c *Command) Classify(ctx context.Context, imagePath string) (models.Emotions, error) {
	args := append(append([]string{}, c.args...), imagePath)
	cmd := exec.CommandContext(ctx, c.path, args...)

	out, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return nil, fmt.Errorf("%s failed: %w: %s", c.path, err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return nil, fmt.Errorf("%s failed: %w", c.path, err)
	}

	return ParseEmotions(out)
}
