// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// Package detect discovers local compute resources for rigroute.
//
// The batch engine scales its concurrency to what the machine can actually
// sustain. This package probes the system for GPUs (NVIDIA via nvidia-smi,
// AMD via rocm-smi, Apple Silicon via system_profiler, Intel Arc via
// intel_gpu_top), falls back to system RAM when no accelerator is present,
// and condenses the findings into a ResourceSnapshot with an estimated
// parallel-task capacity.
//
// Discovery shells out to vendor tools and is therefore slow; results are
// cached for five minutes. Discovery failures are never fatal to callers,
// which degrade to their configured baseline concurrency.
package detect

import (
	"context"
	"os"
	"os/exec"
	"regexp"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"
)

// amdNumericRegex extracts the numeric value from rocm-smi memory lines.
var amdNumericRegex = regexp.MustCompile(`(\d+)`)

// discoverTimeout bounds a full discovery pass when the caller's context
// carries no deadline.
const discoverTimeout = 10 * time.Second

// cacheTTL is how long a snapshot stays fresh.
const cacheTTL = 5 * time.Minute

// =============================================================================
// ACCELERATOR TYPES
// =============================================================================

// Accelerator identifies the kind of compute device backing a GPU entry.
type Accelerator int

const (
	// AccelNone means no dedicated accelerator, CPU-only mode.
	AccelNone Accelerator = iota
	// AccelNvidia is a CUDA-capable NVIDIA GPU.
	AccelNvidia
	// AccelAmd is a ROCm-capable AMD GPU.
	AccelAmd
	// AccelApple is Apple Silicon unified memory.
	AccelApple
	// AccelIntel is an Intel Arc discrete GPU.
	AccelIntel
)

// String returns the human-readable accelerator name.
func (a Accelerator) String() string {
	switch a {
	case AccelNvidia:
		return "NVIDIA"
	case AccelAmd:
		return "AMD"
	case AccelApple:
		return "Apple Silicon"
	case AccelIntel:
		return "Intel Arc"
	case AccelNone:
		return "CPU"
	default:
		return "Unknown"
	}
}

// =============================================================================
// RESOURCE SNAPSHOT
// =============================================================================

// GPU describes one detected compute device.
type GPU struct {
	// Name of the device (e.g. "NVIDIA RTX 4090").
	Name string `json:"name"`
	// MemoryGB is the device memory in gigabytes. For Apple Silicon this
	// is unified memory; for CPU-only mode it is half of system RAM.
	MemoryGB float64 `json:"memory_gb"`
	// Driver version when the vendor tool reports one.
	Driver string `json:"driver,omitempty"`
	// Kind is the accelerator family.
	Kind Accelerator `json:"kind"`
}

// ResourceSnapshot summarizes the compute resources available for parallel
// inference at one point in time.
type ResourceSnapshot struct {
	// GPUCount is the number of dedicated accelerators found.
	GPUCount int `json:"gpu_count"`
	// GPUs lists the detected devices. Empty in CPU-only mode.
	GPUs []GPU `json:"gpus,omitempty"`
	// TotalComputeMemoryGB sums device memory across accelerators, or the
	// usable share of system RAM in CPU-only mode.
	TotalComputeMemoryGB float64 `json:"total_compute_memory_gb"`
	// CPUOnly is true when no accelerator was found.
	CPUOnly bool `json:"cpu_only"`
	// EstimatedCapacity is the number of inference tasks the machine can
	// plausibly run at once. Always at least 1.
	EstimatedCapacity int `json:"estimated_capacity"`
	// Taken records when discovery ran.
	Taken time.Time `json:"taken"`
}

// estimateCapacity derives parallel-task headroom from device count and
// total compute memory. Each GPU carries roughly two concurrent tasks and
// every 8 GB of memory adds one more.
func estimateCapacity(gpuCount int, memGB float64) int {
	capacity := gpuCount*2 + int(memGB/8)
	if capacity < 1 {
		capacity = 1
	}
	return capacity
}

// =============================================================================
// DISCOVERER
// =============================================================================

// Discoverer reports the machine's compute resources.
type Discoverer interface {
	Discover(ctx context.Context) (ResourceSnapshot, error)
}

// SystemDiscoverer probes the local machine via vendor tools. Snapshots are
// cached for cacheTTL since the probes shell out and can take seconds.
// Safe for concurrent use.
type SystemDiscoverer struct {
	mu       sync.Mutex
	cached   *ResourceSnapshot
	cachedAt time.Time
	ttl      time.Duration
}

// NewSystemDiscoverer creates a discoverer with the default cache TTL.
func NewSystemDiscoverer() *SystemDiscoverer {
	return &SystemDiscoverer{ttl: cacheTTL}
}

// Discover implements Discoverer. Returns the cached snapshot when fresh.
func (d *SystemDiscoverer) Discover(ctx context.Context) (ResourceSnapshot, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.cached != nil && time.Since(d.cachedAt) < d.ttl {
		return *d.cached, nil
	}

	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, discoverTimeout)
		defer cancel()
	}

	snap := discover(ctx)
	if err := ctx.Err(); err != nil {
		return ResourceSnapshot{}, err
	}

	d.cached = &snap
	d.cachedAt = time.Now()
	return snap, nil
}

// Invalidate drops the cached snapshot so the next Discover probes again.
// Useful after a driver update or hardware change.
func (d *SystemDiscoverer) Invalidate() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.cached = nil
	d.cachedAt = time.Time{}
}

// discover runs the probe chain: NVIDIA, then AMD, then Apple Silicon, then
// Intel Arc, then CPU fallback.
func discover(ctx context.Context) ResourceSnapshot {
	var gpus []GPU

	if found := detectNvidia(ctx); len(found) > 0 {
		gpus = found
	} else if found := detectAmd(ctx); len(found) > 0 {
		gpus = found
	} else if found := detectApple(ctx); len(found) > 0 {
		gpus = found
	} else if found := detectIntelArc(ctx); len(found) > 0 {
		gpus = found
	}

	if len(gpus) == 0 {
		return cpuSnapshot(ctx)
	}

	var totalMem float64
	for _, g := range gpus {
		totalMem += g.MemoryGB
	}

	return ResourceSnapshot{
		GPUCount:             len(gpus),
		GPUs:                 gpus,
		TotalComputeMemoryGB: totalMem,
		EstimatedCapacity:    estimateCapacity(len(gpus), totalMem),
		Taken:                time.Now(),
	}
}

// =============================================================================
// NVIDIA DETECTION
// =============================================================================

// detectNvidia queries nvidia-smi for every installed GPU. One CSV line per
// device.
func detectNvidia(ctx context.Context) []GPU {
	var output []byte
	var err error

	for _, path := range nvidiaSmiPaths() {
		cmd := exec.CommandContext(ctx, path,
			"--query-gpu=name,memory.total,driver_version",
			"--format=csv,noheader,nounits")
		output, err = cmd.Output()
		if err == nil {
			break
		}
		select {
		case <-ctx.Done():
			return nil
		default:
		}
	}

	if err != nil || len(output) == 0 {
		return nil
	}
	return parseNvidiaCSV(string(output))
}

// parseNvidiaCSV parses nvidia-smi CSV output into GPU entries. Malformed
// lines are skipped.
func parseNvidiaCSV(stdout string) []GPU {
	var gpus []GPU
	for _, line := range strings.Split(strings.TrimSpace(stdout), "\n") {
		parts := strings.Split(strings.TrimSpace(line), ", ")
		if len(parts) < 3 {
			continue
		}

		// memory.total is MiB
		vramMB, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
		if err != nil {
			continue
		}

		gpus = append(gpus, GPU{
			Name:     "NVIDIA " + strings.TrimSpace(parts[0]),
			MemoryGB: vramMB / 1024.0,
			Driver:   strings.TrimSpace(parts[2]),
			Kind:     AccelNvidia,
		})
	}
	return gpus
}

// nvidiaSmiPaths returns candidate nvidia-smi locations for the host OS.
func nvidiaSmiPaths() []string {
	if runtime.GOOS == "windows" {
		return []string{
			"nvidia-smi",
			`C:\Windows\System32\nvidia-smi.exe`,
			`C:\Program Files\NVIDIA Corporation\NVSMI\nvidia-smi.exe`,
		}
	}
	return []string{"nvidia-smi"}
}

// =============================================================================
// AMD DETECTION
// =============================================================================

// detectAmd queries rocm-smi. Windows AMD systems report no devices; ROCm
// tooling there does not expose a stable CLI surface.
func detectAmd(ctx context.Context) []GPU {
	if runtime.GOOS == "windows" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "rocm-smi", "--showproductname", "--showmeminfo", "vram")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	stdout := string(output)

	name := "AMD GPU"
	for _, line := range strings.Split(stdout, "\n") {
		if strings.Contains(line, "Card series:") || strings.Contains(line, "GPU") {
			if _, val, ok := strings.Cut(line, ":"); ok {
				name = "AMD " + strings.TrimSpace(val)
				break
			}
		}
	}

	memGB := 8.0
	for _, line := range strings.Split(stdout, "\n") {
		if !strings.Contains(line, "Total Memory") && !strings.Contains(line, "VRAM Total") {
			continue
		}
		matches := amdNumericRegex.FindStringSubmatch(line)
		if len(matches) > 1 {
			if val, err := strconv.ParseUint(matches[1], 10, 64); err == nil {
				switch {
				case val > 1_000_000_000: // bytes
					memGB = float64(val) / 1_073_741_824
				case val > 1_000_000: // MB
					memGB = float64(val) / 1024
				default:
					memGB = float64(val)
				}
			}
		}
		break
	}

	driver := ""
	cmd = exec.CommandContext(ctx, "rocm-smi", "--showdriverversion")
	if output, err := cmd.Output(); err == nil {
		for _, line := range strings.Split(string(output), "\n") {
			if strings.Contains(line, "Driver version") {
				if _, val, ok := strings.Cut(line, ":"); ok {
					driver = strings.TrimSpace(val)
				}
				break
			}
		}
	}

	return []GPU{{Name: name, MemoryGB: memGB, Driver: driver, Kind: AccelAmd}}
}

// =============================================================================
// APPLE SILICON DETECTION
// =============================================================================

// detectApple reports Apple Silicon unified memory on macOS.
func detectApple(ctx context.Context) []GPU {
	if runtime.GOOS != "darwin" {
		return nil
	}

	cmd := exec.CommandContext(ctx, "system_profiler", "SPDisplaysDataType", "-json")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	stdout := string(output)
	if !strings.Contains(stdout, "Apple") {
		return nil
	}

	name := "Apple Silicon"
	chipNames := []string{
		"M4 Ultra", "M4 Max", "M4 Pro", "M4",
		"M3 Ultra", "M3 Max", "M3 Pro", "M3",
		"M2 Ultra", "M2 Max", "M2 Pro", "M2",
		"M1 Ultra", "M1 Max", "M1 Pro", "M1",
	}
	for _, chip := range chipNames {
		if strings.Contains(stdout, chip) {
			name = "Apple " + chip
			break
		}
	}

	// Unified memory is shared between CPU and GPU; report the full size.
	memGB := 8.0
	cmd = exec.CommandContext(ctx, "sysctl", "-n", "hw.memsize")
	if output, err := cmd.Output(); err == nil {
		if bytes, err := strconv.ParseUint(strings.TrimSpace(string(output)), 10, 64); err == nil {
			memGB = float64(bytes) / 1_073_741_824
		}
	}

	driver := ""
	cmd = exec.CommandContext(ctx, "sw_vers", "-productVersion")
	if output, err := cmd.Output(); err == nil {
		driver = "macOS " + strings.TrimSpace(string(output))
	}

	return []GPU{{Name: name, MemoryGB: memGB, Driver: driver, Kind: AccelApple}}
}

// =============================================================================
// INTEL ARC DETECTION
// =============================================================================

func detectIntelArc(ctx context.Context) []GPU {
	cmd := exec.CommandContext(ctx, "intel_gpu_top", "-L")
	output, err := cmd.Output()
	if err != nil {
		return nil
	}

	stdout := strings.ToLower(string(output))
	if !strings.Contains(stdout, "arc") {
		return nil
	}

	name := "Intel Arc"
	memGB := 8.0
	switch {
	case strings.Contains(stdout, "a770"):
		name, memGB = "Intel Arc A770", 16
	case strings.Contains(stdout, "a750"):
		name, memGB = "Intel Arc A750", 8
	case strings.Contains(stdout, "a580"):
		name, memGB = "Intel Arc A580", 8
	case strings.Contains(stdout, "a380"):
		name, memGB = "Intel Arc A380", 6
	case strings.Contains(stdout, "a310"):
		name, memGB = "Intel Arc A310", 4
	}

	return []GPU{{Name: name, MemoryGB: memGB, Kind: AccelIntel}}
}

// =============================================================================
// CPU FALLBACK
// =============================================================================

// cpuSnapshot builds a CPU-only snapshot. Half of system RAM counts as
// compute memory for inference.
func cpuSnapshot(ctx context.Context) ResourceSnapshot {
	memGB := 0.0

	switch runtime.GOOS {
	case "darwin":
		cmd := exec.CommandContext(ctx, "sysctl", "-n", "hw.memsize")
		if output, err := cmd.Output(); err == nil {
			if bytes, err := strconv.ParseUint(strings.TrimSpace(string(output)), 10, 64); err == nil {
				memGB = float64(bytes) / 1_073_741_824 / 2
			}
		}
	case "linux":
		if data, err := os.ReadFile("/proc/meminfo"); err == nil {
			for _, line := range strings.Split(string(data), "\n") {
				if strings.HasPrefix(line, "MemTotal:") {
					parts := strings.Fields(line)
					if len(parts) >= 2 {
						if kb, err := strconv.ParseUint(parts[1], 10, 64); err == nil {
							memGB = float64(kb) / 1024 / 1024 / 2
						}
					}
					break
				}
			}
		}
	case "windows":
		cmd := exec.CommandContext(ctx, "powershell", "-NoProfile", "-Command",
			`[Math]::Round((Get-CimInstance Win32_ComputerSystem).TotalPhysicalMemory / 1GB / 2, 0)`)
		if output, err := cmd.Output(); err == nil {
			if val, err := strconv.ParseFloat(strings.TrimSpace(string(output)), 64); err == nil {
				memGB = val
			}
		}
	}

	if memGB == 0 {
		memGB = 4
	}

	return ResourceSnapshot{
		CPUOnly:              true,
		TotalComputeMemoryGB: memGB,
		EstimatedCapacity:    estimateCapacity(0, memGB),
		Taken:                time.Now(),
	}
}
