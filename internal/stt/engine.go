package stt

import (
	"context"
	"time"
)

// Engine is the narrow surface of a speech-to-text backend. Implementations
// are not required to be safe for concurrent use; the Coordinator guarantees
// at most one Transcribe call is in flight at a time.
type Engine interface {
	Transcribe(ctx context.Context, audioPath string) (*Result, error)
	Name() string
}

// Segment is one timed span of recognized speech. Start and End are seconds
// from the beginning of the audio.
type Segment struct {
	ID    int     `json:"id"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Text  string  `json:"text"`
}

// Result is the outcome of one successful transcription.
type Result struct {
	Text     string
	Segments []Segment
	Language string
	Elapsed  time.Duration
}

// EngineError is any failure raised by the inference backend, including
// panics the Coordinator recovered from. Trace carries diagnostic detail
// such as engine stderr or a stack trace, when one exists.
type EngineError struct {
	Message string
	Trace   string
}

func (e *EngineError) Error() string {
	return e.Message
}
