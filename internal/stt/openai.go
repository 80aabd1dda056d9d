package stt

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// OpenAIEngine transcribes through the OpenAI audio API instead of a local
// binary. Useful on hosts with no GPU and no whisper-cli install.
type OpenAIEngine struct {
	client   *openai.Client
	model    string
	language string
	log      *zap.Logger
}

func NewOpenAIEngine(apiKey, model, language string, log *zap.Logger) (*OpenAIEngine, error) {
	if apiKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is not set")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if model == "" {
		model = openai.Whisper1
	}
	return &OpenAIEngine{
		client:   openai.NewClient(apiKey),
		model:    model,
		language: language,
		log:      log,
	}, nil
}

func (e *OpenAIEngine) Name() string {
	return "openai"
}

func (e *OpenAIEngine) Transcribe(ctx context.Context, audioPath string) (*Result, error) {
	lang := strings.TrimSpace(e.language)
	if lang == "auto" {
		lang = ""
	}

	e.log.Debug("calling openai transcription",
		zap.String("model", e.model),
		zap.String("path", audioPath))

	resp, err := e.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    e.model,
		FilePath: audioPath,
		Language: lang,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return nil, fmt.Errorf("openai transcription: %w", err)
	}

	segments := make([]Segment, 0, len(resp.Segments))
	for _, seg := range resp.Segments {
		segments = append(segments, Segment{
			ID:    seg.ID,
			Start: seg.Start,
			End:   seg.End,
			Text:  strings.TrimSpace(seg.Text),
		})
	}

	return &Result{
		Text:     strings.TrimSpace(resp.Text),
		Segments: segments,
		Language: resp.Language,
	}, nil
}
