// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// resources.go - The resources command: show detected accelerators and the
// estimated concurrent capacity.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/jeranaias/rigroute/internal/detect"
)

// HandleResources prints the current resource snapshot.
func HandleResources(args *ArgParser) error {
	discoverer := detect.NewSystemDiscoverer()
	snapshot, err := discoverer.Discover(context.Background())
	if err != nil {
		return fmt.Errorf("resource discovery failed: %w", err)
	}

	if args.BoolFlag("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(snapshot)
	}

	if snapshot.CPUOnly {
		fmt.Println("No GPU detected, CPU-only mode")
	} else {
		fmt.Printf("GPUs: %d\n", snapshot.GPUCount)
		for _, gpu := range snapshot.GPUs {
			fmt.Printf("  %s (%.0f GB, %s)\n", gpu.Name, gpu.MemoryGB, gpu.Kind)
		}
	}
	fmt.Printf("Compute memory:     %.0f GB\n", snapshot.TotalComputeMemoryGB)
	fmt.Printf("Estimated capacity: %d concurrent tasks\n", snapshot.EstimatedCapacity)
	return nil
}
