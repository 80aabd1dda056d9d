package stt

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// WhisperCLI runs transcriptions through a local whisper.cpp whisper-cli
// binary. Each call is one subprocess: the CLI loads the model, decodes the
// audio and writes a JSON report that is parsed into a Result.
type WhisperCLI struct {
	executable string
	modelPath  string
	language   string
	log        *zap.Logger
}

func NewWhisperCLI(executable, modelPath, language string, log *zap.Logger) (*WhisperCLI, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if err := ensureExecutable(executable); err != nil {
		return nil, fmt.Errorf("whisper-cli binary: %w", err)
	}
	if _, err := os.Stat(modelPath); err != nil {
		return nil, fmt.Errorf("whisper model: %w", err)
	}
	return &WhisperCLI{
		executable: executable,
		modelPath:  modelPath,
		language:   language,
		log:        log,
	}, nil
}

func (e *WhisperCLI) Name() string {
	return "whispercli"
}

func (e *WhisperCLI) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	outBase := filepath.Join(os.TempDir(), "whisper-"+uuid.NewString())
	jsonPath := outBase + ".json"
	defer os.Remove(jsonPath)

	args := []string{"-m", e.modelPath, "-f", audioPath, "-oj", "-of", outBase, "-np"}
	lang := strings.TrimSpace(e.language)
	if lang != "" && lang != "auto" {
		args = append(args, "-l", lang)
	}

	cmd := exec.CommandContext(ctx, e.executable, args...)
	var stderr bytes.Buffer
	cmd.Stdout = io.Discard
	cmd.Stderr = &stderr

	e.log.Debug("running whisper-cli",
		zap.String("executable", e.executable),
		zap.Strings("args", args))

	if err := cmd.Run(); err != nil {
		return nil, &EngineError{
			Message: fmt.Sprintf("whisper-cli failed: %v", err),
			Trace:   strings.TrimSpace(stderr.String()),
		}
	}

	raw, err := os.ReadFile(jsonPath)
	if err != nil {
		return nil, &EngineError{
			Message: fmt.Sprintf("read whisper-cli output: %v", err),
			Trace:   strings.TrimSpace(stderr.String()),
		}
	}

	return parseWhisperOutput(raw)
}

// cliOutput mirrors the parts of whisper.cpp's -oj report the service
// consumes. Offsets are milliseconds from the start of the audio.
type cliOutput struct {
	Result struct {
		Language string `json:"language"`
	} `json:"result"`
	Transcription []struct {
		Offsets struct {
			From int64 `json:"from"`
			To   int64 `json:"to"`
		} `json:"offsets"`
		Text string `json:"text"`
	} `json:"transcription"`
}

func parseWhisperOutput(raw []byte) (*Result, error) {
	var out cliOutput
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse whisper-cli output: %w", err)
	}

	segments := make([]Segment, 0, len(out.Transcription))
	var text strings.Builder
	for i, seg := range out.Transcription {
		text.WriteString(seg.Text)
		segments = append(segments, Segment{
			ID:    i,
			Start: float64(seg.Offsets.From) / 1000,
			End:   float64(seg.Offsets.To) / 1000,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	return &Result{
		Text:     strings.TrimSpace(text.String()),
		Segments: segments,
		Language: out.Result.Language,
	}, nil
}

func ensureExecutable(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if info.IsDir() {
		return fmt.Errorf("%s is a directory", path)
	}
	if runtime.GOOS != "windows" && info.Mode()&0o111 == 0 {
		return fmt.Errorf("%s is not executable", path)
	}
	return nil
}
