package device

import (
	"context"
	"os/exec"
	"strconv"
	"strings"

	"go.uber.org/zap"
)

// GPU is one accelerator as reported by the driver. Memory figures are
// megabytes.
type GPU struct {
	Name             string
	MemoryUsedMB     float64
	MemoryReservedMB float64
}

// Info is a point-in-time view of the accelerators on this host.
type Info struct {
	Available bool
	GPUs      []GPU
}

// Provider probes the host for accelerators. Probe must never fail: hosts
// without a GPU, without driver tooling, or with a wedged driver all report
// an empty Info.
type Provider interface {
	Probe(ctx context.Context) Info
}

type none struct{}

func (none) Probe(context.Context) Info {
	return Info{}
}

// None returns a Provider for hosts without GPU support.
func None() Provider {
	return none{}
}

type nvidiaSMI struct {
	path string
	log  *zap.Logger
}

// Detect picks the best available Provider for this host. It looks for
// nvidia-smi on PATH and falls back to the no-GPU provider.
func Detect(log *zap.Logger) Provider {
	if log == nil {
		log = zap.NewNop()
	}
	path, err := exec.LookPath("nvidia-smi")
	if err != nil {
		log.Info("nvidia-smi not found, assuming no GPU")
		return none{}
	}
	return &nvidiaSMI{path: path, log: log}
}

func (p *nvidiaSMI) Probe(ctx context.Context) Info {
	out, err := exec.CommandContext(ctx, p.path,
		"--query-gpu=name,memory.used,memory.reserved",
		"--format=csv,noheader,nounits").Output()
	if err != nil {
		p.log.Debug("nvidia-smi query failed", zap.Error(err))
		return Info{}
	}

	gpus := parseQueryOutput(string(out))
	return Info{Available: len(gpus) > 0, GPUs: gpus}
}

// parseQueryOutput reads nvidia-smi CSV output, one GPU per line:
//
//	NVIDIA GeForce RTX 3090, 1234, 2048
func parseQueryOutput(out string) []GPU {
	var gpus []GPU
	for _, line := range strings.Split(out, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		fields := strings.Split(line, ",")
		if len(fields) < 3 {
			continue
		}
		gpu := GPU{Name: strings.TrimSpace(fields[0])}
		gpu.MemoryUsedMB, _ = strconv.ParseFloat(strings.TrimSpace(fields[1]), 64)
		gpu.MemoryReservedMB, _ = strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
		gpus = append(gpus, gpu)
	}
	return gpus
}
