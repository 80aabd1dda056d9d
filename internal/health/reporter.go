package health

import (
	"context"
	"fmt"
	"time"

	"github.com/11im/whisper-api/internal/device"
)

// GPUInfo summarizes accelerator availability for the health response.
// DeviceName is a pointer so hosts without a GPU report null rather than "".
type GPUInfo struct {
	Available   bool    `json:"available"`
	DeviceCount int     `json:"device_count"`
	DeviceName  *string `json:"device_name"`
}

// Snapshot is the body of a health response.
type Snapshot struct {
	Status        string            `json:"status"`
	Model         string            `json:"model"`
	Device        string            `json:"device"`
	GPUInfo       GPUInfo           `json:"gpu_info"`
	MemoryInfo    map[string]string `json:"memory_info"`
	UptimeSeconds float64           `json:"uptime_seconds"`
	Timestamp     string            `json:"timestamp"`
}

// Reporter assembles health snapshots. Snapshot never fails: when the GPU
// probe comes back empty the service still reports healthy, just without
// accelerator detail.
type Reporter struct {
	model     string
	device    string
	devices   device.Provider
	startedAt time.Time
}

func NewReporter(model, deviceName string, devices device.Provider, startedAt time.Time) *Reporter {
	return &Reporter{
		model:     model,
		device:    deviceName,
		devices:   devices,
		startedAt: startedAt,
	}
}

func (r *Reporter) Snapshot(ctx context.Context) Snapshot {
	info := r.devices.Probe(ctx)

	gpu := GPUInfo{
		Available:   info.Available,
		DeviceCount: len(info.GPUs),
	}
	memory := map[string]string{}
	if len(info.GPUs) > 0 {
		gpu.DeviceName = &info.GPUs[0].Name
		memory["allocated"] = fmt.Sprintf("%.2fMB", info.GPUs[0].MemoryUsedMB)
		memory["cached"] = fmt.Sprintf("%.2fMB", info.GPUs[0].MemoryReservedMB)
	}

	return Snapshot{
		Status:        "healthy",
		Model:         r.model,
		Device:        r.device,
		GPUInfo:       gpu,
		MemoryInfo:    memory,
		UptimeSeconds: time.Since(r.startedAt).Seconds(),
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
	}
}
