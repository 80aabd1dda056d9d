package stt

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"go.uber.org/zap"
)

// Coordinator serializes access to a single Engine. The backing engine holds
// one loaded model and is not safe for concurrent inference, so callers queue
// on a capacity-one gate and run strictly one at a time, in arrival order.
//
// A caller can give up while still queued by cancelling its context. Once a
// call holds the gate it runs to completion; the configured timeout, not the
// queue, bounds how long an engine call may take.
type Coordinator struct {
	engine  Engine
	gate    chan struct{}
	timeout time.Duration
	log     *zap.Logger
}

// NewCoordinator wraps engine behind an exclusive gate. A zero timeout means
// engine calls are unbounded.
func NewCoordinator(engine Engine, timeout time.Duration, log *zap.Logger) *Coordinator {
	if log == nil {
		log = zap.NewNop()
	}
	return &Coordinator{
		engine:  engine,
		gate:    make(chan struct{}, 1),
		timeout: timeout,
		log:     log,
	}
}

// Transcribe runs one engine call on the stored audio file. Every failure
// surfaces as *EngineError: engine errors are wrapped, and a panicking
// engine is recovered and reported the same way instead of killing the
// request or poisoning the gate.
func (c *Coordinator) Transcribe(ctx context.Context, audioPath string) (res *Result, err error) {
	select {
	case c.gate <- struct{}{}:
	case <-ctx.Done():
		c.log.Warn("transcription abandoned while queued",
			zap.String("path", audioPath),
			zap.Error(ctx.Err()))
		return nil, &EngineError{Message: "transcription canceled while waiting for engine: " + ctx.Err().Error()}
	}
	defer func() { <-c.gate }()

	// The caller's context only governs waiting. A dispatched call is
	// bounded by the engine timeout alone, never by client disconnect.
	runCtx := context.WithoutCancel(ctx)
	if c.timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, c.timeout)
		defer cancel()
	}

	defer func() {
		if r := recover(); r != nil {
			c.log.Error("engine panicked",
				zap.String("engine", c.engine.Name()),
				zap.Any("panic", r))
			res = nil
			err = &EngineError{
				Message: fmt.Sprintf("engine panic: %v", r),
				Trace:   string(debug.Stack()),
			}
		}
	}()

	start := time.Now()
	out, engineErr := c.engine.Transcribe(runCtx, audioPath)
	elapsed := time.Since(start)

	if engineErr != nil {
		c.log.Error("transcription failed",
			zap.String("engine", c.engine.Name()),
			zap.Duration("elapsed", elapsed),
			zap.Error(engineErr))
		var engErr *EngineError
		if errors.As(engineErr, &engErr) {
			return nil, engErr
		}
		return nil, &EngineError{Message: engineErr.Error()}
	}

	out.Elapsed = elapsed
	if out.Segments == nil {
		out.Segments = []Segment{}
	}

	c.log.Info("transcription complete",
		zap.String("engine", c.engine.Name()),
		zap.String("language", out.Language),
		zap.Int("segments", len(out.Segments)),
		zap.Duration("elapsed", elapsed))

	return out, nil
}
