package stt

import (
	"fmt"
	"os/exec"

	"go.uber.org/zap"

	"github.com/11im/whisper-api/internal/config"
)

// NewEngine creates the speech-to-text engine selected by configuration.
// The engine is built once at startup and shared for the process lifetime.
func NewEngine(cfg *config.Config, log *zap.Logger) (Engine, error) {
	if log == nil {
		log = zap.NewNop()
	}

	switch cfg.Engine {
	case "", config.EngineWhisperCLI:
		return newWhisperCLIEngine(cfg, log)
	case config.EngineOpenAI:
		log.Info("creating openai engine", zap.String("model", cfg.OpenAIModel))
		return NewOpenAIEngine(cfg.OpenAIKey, cfg.OpenAIModel, cfg.Language, log)
	default:
		return nil, fmt.Errorf("unsupported STT engine: %s. Supported: %s, %s",
			cfg.Engine, config.EngineWhisperCLI, config.EngineOpenAI)
	}
}

func newWhisperCLIEngine(cfg *config.Config, log *zap.Logger) (Engine, error) {
	modelPath, err := ResolveModelPath(cfg.Model, cfg.ModelDir)
	if err != nil {
		return nil, err
	}

	executable := cfg.WhisperCLIPath
	if executable == "" {
		executable, err = exec.LookPath("whisper-cli")
		if err != nil {
			return nil, fmt.Errorf("whisper-cli not found in PATH; install whisper.cpp or set WHISPER_CLI_PATH")
		}
	}

	log.Info("creating whispercli engine",
		zap.String("executable", executable),
		zap.String("model", modelPath))

	return NewWhisperCLI(executable, modelPath, cfg.Language, log)
}
