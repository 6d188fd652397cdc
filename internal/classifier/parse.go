package classifier

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/bdougie/emotion/internal/models"
)

// ErrNoFace is returned when the backend answered but found nothing to score.
var ErrNoFace = errors.New("no face emotions in classifier output")

// face is one entry of a DeepFace style analysis
type face struct {
	Emotion         models.Emotions `json:"emotion"`
	DominantEmotion string          `json:"dominant_emotion,omitempty"`
}

// ParseEmotions reads classifier output. It accepts a list of faces (the
// first one wins), a single face object with an "emotion" field, or a bare
// label to score object. Text around the JSON document is ignored.
func ParseEmotions(out []byte) (models.Emotions, error) {
	doc := extractJSON(out)
	if len(doc) == 0 {
		return nil, fmt.Errorf("%w: no JSON document", ErrNoFace)
	}

	if doc[0] == '[' {
		var faces []face
		if err := json.Unmarshal(doc, &faces); err != nil {
			return nil, fmt.Errorf("decode face list: %w", err)
		}
		if len(faces) == 0 || len(faces[0].Emotion) == 0 {
			return nil, ErrNoFace
		}
		return faces[0].Emotion, nil
	}

	var single face
	if err := json.Unmarshal(doc, &single); err == nil && len(single.Emotion) > 0 {
		return single.Emotion, nil
	}

	var bare models.Emotions
	if err := json.Unmarshal(doc, &bare); err != nil {
		return nil, fmt.Errorf("decode emotions: %w", err)
	}
	if len(bare) == 0 {
		return nil, ErrNoFace
	}
	return bare, nil
}

// extractJSON trims anything before the first opening bracket and after the
// matching last closing bracket, which strips log lines and markdown fences.
func extractJSON(out []byte) []byte {
	start := bytes.IndexAny(out, "[{")
	if start < 0 {
		return nil
	}
	closer := byte('}')
	if out[start] == '[' {
		closer = ']'
	}
	end := bytes.LastIndexByte(out, closer)
	if end < start {
		return nil
	}
	return out[start : end+1]
}
