package stt

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

const DefaultModel = "base"

// modelFiles maps the model names accepted in WHISPER_MODEL to the GGML
// file expected under the model directory. Files come from the whisper.cpp
// releases on Hugging Face (ggerganov/whisper.cpp).
var modelFiles = map[string]string{
	"tiny":     "ggml-tiny.bin",
	"base":     "ggml-base.bin",
	"small":    "ggml-small.bin",
	"medium":   "ggml-medium.bin",
	"large-v3": "ggml-large-v3.bin",
	"turbo":    "ggml-large-v3-turbo.bin",
}

func ModelNames() []string {
	names := make([]string, 0, len(modelFiles))
	for name := range modelFiles {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ResolveModelPath turns a model reference into the path of an existing
// GGML file. The reference is either a registry name looked up under
// modelDir, or a direct path to a .bin file.
func ResolveModelPath(modelRef, modelDir string) (string, error) {
	modelRef = strings.TrimSpace(modelRef)
	if modelRef == "" {
		modelRef = DefaultModel
	}

	if fileName, ok := modelFiles[modelRef]; ok {
		modelPath := filepath.Join(modelDir, fileName)
		if _, err := os.Stat(modelPath); err != nil {
			return "", fmt.Errorf("model %q not found at %s; download %s from huggingface.co/ggerganov/whisper.cpp into %s", modelRef, modelPath, fileName, modelDir)
		}
		return modelPath, nil
	}

	if looksLikePath(modelRef) {
		if _, err := os.Stat(modelRef); err != nil {
			return "", fmt.Errorf("model file %s: %w", modelRef, err)
		}
		return filepath.Clean(modelRef), nil
	}

	return "", fmt.Errorf("unknown model %q, expected one of %s or a path to a .bin file", modelRef, strings.Join(ModelNames(), ", "))
}

func looksLikePath(ref string) bool {
	return strings.ContainsAny(ref, `/\`) || strings.HasSuffix(ref, ".bin")
}
