// Package accel decides whether model layers can be offloaded to a GPU.
package accel

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"
)

// Kind names an accelerator backend.
type Kind string

const (
	CPU   Kind = "cpu"
	CUDA  Kind = "cuda"
	ROCm  Kind = "rocm"
	Metal Kind = "metal"
)

// Device is the result of accelerator detection.
type Device struct {
	Kind Kind   `json:"kind"`
	Name string `json:"name,omitempty"`
}

// Available reports whether layers can be offloaded.
func (d Device) Available() bool {
	return d.Kind != CPU && d.Kind != ""
}

func (d Device) String() string {
	if d.Name != "" {
		return string(d.Kind) + " (" + d.Name + ")"
	}
	return string(d.Kind)
}

// Detector probes the host. The function fields exist so tests can
// replace the host lookups.
type Detector struct {
	GOOS     string
	GOARCH   string
	LookPath func(string) (string, error)
	Output   func(ctx context.Context, name string, args ...string) ([]byte, error)
	Stat     func(string) (os.FileInfo, error)
}

// NewDetector returns a Detector backed by the real host.
func NewDetector() *Detector {
	return &Detector{
		GOOS:     runtime.GOOS,
		GOARCH:   runtime.GOARCH,
		LookPath: exec.LookPath,
		Output: func(ctx context.Context, name string, args ...string) ([]byte, error) {
			return exec.CommandContext(ctx, name, args...).Output()
		},
		Stat: os.Stat,
	}
}

// Detect resolves mode ("auto", "cpu" or "gpu") to a device. "cpu" always
// yields CPU. "gpu" trusts the caller and reports a generic GPU when
// nothing more specific is found.
func (d *Detector) Detect(ctx context.Context, mode string) Device {
	if mode == "cpu" {
		return Device{Kind: CPU}
	}

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if dev, ok := d.detectCUDA(ctx); ok {
		return dev
	}
	if dev, ok := d.detectROCm(); ok {
		return dev
	}
	if d.GOOS == "darwin" && d.GOARCH == "arm64" {
		return Device{Kind: Metal, Name: "Apple Silicon"}
	}
	if mode == "gpu" {
		return Device{Kind: CUDA, Name: "forced"}
	}
	return Device{Kind: CPU}
}

func (d *Detector) detectCUDA(ctx context.Context) (Device, bool) {
	path, err := d.LookPath("nvidia-smi")
	if err != nil {
		return Device{}, false
	}
	out, err := d.Output(ctx, path, "--query-gpu=name", "--format=csv,noheader")
	if err != nil {
		return Device{}, false
	}
	name := strings.TrimSpace(strings.SplitN(string(out), "\n", 2)[0])
	if name == "" {
		return Device{}, false
	}
	return Device{Kind: CUDA, Name: name}, true
}

func (d *Detector) detectROCm() (Device, bool) {
	if _, err := d.LookPath("rocm-smi"); err == nil {
		return Device{Kind: ROCm}, true
	}
	if _, err := d.Stat("/opt/rocm"); err == nil {
		return Device{Kind: ROCm}, true
	}
	return Device{}, false
}

// Detect runs detection against the real host.
func Detect(ctx context.Context, mode string) Device {
	return NewDetector().Detect(ctx, mode)
}

// ClampGPULayers returns 0 when dev cannot take offloaded layers.
func ClampGPULayers(dev Device, layers int) int {
	if !dev.Available() {
		return 0
	}
	return layers
}
