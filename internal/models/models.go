package models

import "time"

// Emotions maps an emotion label to a confidence score
type Emotions map[string]float64

// WorkItem represents a frame to be classified
type WorkItem struct {
	FramePath string
	FrameNum  int
	Total     int
}

// FrameResult represents the emotions found in a single frame
type FrameResult struct {
	Frame    string   `json:"frame"`
	Emotions Emotions `json:"emotions"`
}

// Report is the outcome of analyzing one uploaded video
type Report struct {
	VideoName      string        `json:"video_name"`
	FramesFound    int           `json:"frames_found"`
	FramesAnalyzed int           `json:"frames_analyzed"`
	Averaged       Emotions      `json:"averaged_emotions"`
	Elapsed        time.Duration `json:"elapsed"`
}
