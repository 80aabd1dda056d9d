package stt

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubEngine struct {
	fn func(ctx context.Context, audioPath string) (*Result, error)
}

func (s *stubEngine) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	return s.fn(ctx, audioPath)
}

func (s *stubEngine) Name() string {
	return "stub"
}

func TestCoordinatorReturnsEngineResult(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fn: func(context.Context, string) (*Result, error) {
		time.Sleep(5 * time.Millisecond)
		return &Result{Text: "hello", Language: "en"}, nil
	}}
	coord := NewCoordinator(engine, 0, nil)

	res, err := coord.Transcribe(context.Background(), "a.wav")
	require.NoError(t, err)

	assert.Equal(t, "hello", res.Text)
	assert.Equal(t, "en", res.Language)
	assert.Greater(t, res.Elapsed, time.Duration(0))
	assert.NotNil(t, res.Segments, "segments should never be nil")
	assert.Empty(t, res.Segments)
}

func TestCoordinatorSerializesEngineCalls(t *testing.T) {
	t.Parallel()

	var mu sync.Mutex
	inFlight, maxInFlight := 0, 0

	engine := &stubEngine{fn: func(context.Context, string) (*Result, error) {
		mu.Lock()
		inFlight++
		if inFlight > maxInFlight {
			maxInFlight = inFlight
		}
		mu.Unlock()

		time.Sleep(10 * time.Millisecond)

		mu.Lock()
		inFlight--
		mu.Unlock()
		return &Result{Text: "ok"}, nil
	}}
	coord := NewCoordinator(engine, 0, nil)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := coord.Transcribe(context.Background(), "a.wav")
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, maxInFlight, "engine must never see concurrent calls")
}

func TestCoordinatorWrapsEngineErrors(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fn: func(context.Context, string) (*Result, error) {
		return nil, errors.New("model exploded")
	}}
	coord := NewCoordinator(engine, 0, nil)

	_, err := coord.Transcribe(context.Background(), "a.wav")

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "model exploded", engErr.Message)
	assert.Empty(t, engErr.Trace)
}

func TestCoordinatorKeepsEngineErrorDetail(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fn: func(context.Context, string) (*Result, error) {
		return nil, &EngineError{Message: "decode failed", Trace: "stderr tail"}
	}}
	coord := NewCoordinator(engine, 0, nil)

	_, err := coord.Transcribe(context.Background(), "a.wav")

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Equal(t, "decode failed", engErr.Message)
	assert.Equal(t, "stderr tail", engErr.Trace)
}

func TestCoordinatorRecoversEnginePanics(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fn: func(context.Context, string) (*Result, error) {
		panic("segfault in decoder")
	}}
	coord := NewCoordinator(engine, 0, nil)

	res, err := coord.Transcribe(context.Background(), "a.wav")
	assert.Nil(t, res)

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Contains(t, engErr.Message, "segfault in decoder")
	assert.NotEmpty(t, engErr.Trace)

	// The gate must be released even when the engine panics.
	engine.fn = func(context.Context, string) (*Result, error) {
		return &Result{Text: "recovered"}, nil
	}
	res, err = coord.Transcribe(context.Background(), "a.wav")
	require.NoError(t, err)
	assert.Equal(t, "recovered", res.Text)
}

func TestCoordinatorCancelWhileQueued(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})
	var calls int32

	engine := &stubEngine{fn: func(context.Context, string) (*Result, error) {
		atomic.AddInt32(&calls, 1)
		close(entered)
		<-release
		return &Result{Text: "ok"}, nil
	}}
	coord := NewCoordinator(engine, 0, nil)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, err := coord.Transcribe(context.Background(), "first.wav")
		assert.NoError(t, err)
	}()
	<-entered

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := coord.Transcribe(ctx, "second.wav")

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Contains(t, engErr.Message, "canceled while waiting")

	close(release)
	<-done

	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "abandoned request must never reach the engine")
}

func TestCoordinatorDispatchedCallSurvivesCancel(t *testing.T) {
	t.Parallel()

	entered := make(chan struct{})
	release := make(chan struct{})

	engine := &stubEngine{fn: func(ctx context.Context, _ string) (*Result, error) {
		close(entered)
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-release:
			return &Result{Text: "finished"}, nil
		}
	}}
	coord := NewCoordinator(engine, 0, nil)

	ctx, cancel := context.WithCancel(context.Background())

	type outcome struct {
		res *Result
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		res, err := coord.Transcribe(ctx, "a.wav")
		done <- outcome{res, err}
	}()

	<-entered
	cancel()
	// The running engine must not observe the caller's cancellation.
	time.Sleep(20 * time.Millisecond)
	close(release)

	got := <-done
	require.NoError(t, got.err)
	assert.Equal(t, "finished", got.res.Text)
}

func TestCoordinatorTimeoutBoundsEngineCall(t *testing.T) {
	t.Parallel()

	engine := &stubEngine{fn: func(ctx context.Context, _ string) (*Result, error) {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(5 * time.Second):
			return &Result{Text: "too late"}, nil
		}
	}}
	coord := NewCoordinator(engine, 20*time.Millisecond, nil)

	start := time.Now()
	_, err := coord.Transcribe(context.Background(), "a.wav")

	var engErr *EngineError
	require.ErrorAs(t, err, &engErr)
	assert.Contains(t, engErr.Message, context.DeadlineExceeded.Error())
	assert.Less(t, time.Since(start), 2*time.Second)
}
