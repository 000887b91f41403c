// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package detect

import (
	"context"
	"testing"
	"time"
)

func TestAcceleratorString(t *testing.T) {
	tests := []struct {
		kind Accelerator
		want string
	}{
		{AccelNvidia, "NVIDIA"},
		{AccelAmd, "AMD"},
		{AccelApple, "Apple Silicon"},
		{AccelIntel, "Intel Arc"},
		{AccelNone, "CPU"},
		{Accelerator(99), "Unknown"},
	}

	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("Accelerator(%d).String() = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestEstimateCapacity(t *testing.T) {
	tests := []struct {
		name     string
		gpuCount int
		memGB    float64
		want     int
	}{
		{"single 24GB GPU", 1, 24, 5},
		{"dual 24GB GPUs", 2, 48, 10},
		{"small 8GB GPU", 1, 8, 3},
		{"cpu only 16GB usable", 0, 16, 2},
		{"tiny machine", 0, 2, 1},
		{"nothing detected", 0, 0, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := estimateCapacity(tt.gpuCount, tt.memGB); got != tt.want {
				t.Errorf("estimateCapacity(%d, %v) = %d, want %d", tt.gpuCount, tt.memGB, got, tt.want)
			}
		})
	}
}

func TestParseNvidiaCSVMultiGPU(t *testing.T) {
	out := "RTX 4090, 24564, 550.54.14\nRTX 4090, 24564, 550.54.14\n"

	gpus := parseNvidiaCSV(out)
	if len(gpus) != 2 {
		t.Fatalf("parseNvidiaCSV() found %d GPUs, want 2", len(gpus))
	}
	if gpus[0].Name != "NVIDIA RTX 4090" {
		t.Errorf("name = %q, want NVIDIA RTX 4090", gpus[0].Name)
	}
	if gpus[0].MemoryGB < 23 || gpus[0].MemoryGB > 25 {
		t.Errorf("memory = %v GB, want ~24", gpus[0].MemoryGB)
	}
	if gpus[0].Driver != "550.54.14" {
		t.Errorf("driver = %q, want 550.54.14", gpus[0].Driver)
	}
	if gpus[0].Kind != AccelNvidia {
		t.Errorf("kind = %v, want AccelNvidia", gpus[0].Kind)
	}
}

func TestParseNvidiaCSVMalformed(t *testing.T) {
	tests := []struct {
		name string
		out  string
		want int
	}{
		{"empty", "", 0},
		{"garbage", "not csv at all", 0},
		{"bad memory", "RTX 4090, not-a-number, 550.54\n", 0},
		{"one good one bad", "RTX 4090, 24564, 550.54\nbroken line\n", 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parseNvidiaCSV(tt.out); len(got) != tt.want {
				t.Errorf("parseNvidiaCSV() found %d GPUs, want %d", len(got), tt.want)
			}
		})
	}
}

func TestDiscoverNeverZeroCapacity(t *testing.T) {
	d := NewSystemDiscoverer()

	snap, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if snap.EstimatedCapacity < 1 {
		t.Errorf("EstimatedCapacity = %d, want >= 1", snap.EstimatedCapacity)
	}
	if snap.Taken.IsZero() {
		t.Error("Taken should be set")
	}
}

func TestDiscoverCaches(t *testing.T) {
	d := NewSystemDiscoverer()

	first, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	second, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if !first.Taken.Equal(second.Taken) {
		t.Error("second Discover within TTL should return the cached snapshot")
	}

	d.Invalidate()
	d.ttl = time.Nanosecond
	third, err := d.Discover(context.Background())
	if err != nil {
		t.Fatalf("Discover() error = %v", err)
	}
	if third.Taken.Before(first.Taken) {
		t.Error("post-Invalidate snapshot should be fresh")
	}
}
