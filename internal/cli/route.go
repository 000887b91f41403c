// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// route.go - The route command: route one task and optionally execute it.
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/jeranaias/rigroute/internal/complexity"
	"github.com/jeranaias/rigroute/internal/router"
)

// HandleRoute routes a single task and prints the selection.
func HandleRoute(args *ArgParser) error {
	task := strings.Join(args.PositionalFrom(0), " ")
	if task == "" {
		return fmt.Errorf("route requires a task, e.g. rigroute route \"review this diff\"")
	}

	app, err := NewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	req := router.Request{
		Task:           task,
		TaskType:       args.Flag("type"),
		PreferredModel: args.Flag("model"),
	}

	if raw := args.Flag("complexity"); raw != "" {
		level, ok := complexity.ParseLevel(raw)
		if !ok {
			return fmt.Errorf("unknown complexity %q (valid: trivial, simple, moderate, complex, very_complex, extreme)", raw)
		}
		req.Complexity = &level
	}

	pol, err := app.ResolvePolicy(args.Flag("policy"))
	if err != nil {
		return err
	}
	req.Policy = pol

	ctx := context.Background()
	sel, err := app.Engine.Select(ctx, req)
	if err != nil {
		return err
	}
	app.RecordSelection(ctx, sel)

	if args.BoolFlag("json") {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(sel)
	}

	printSelection(sel)

	if args.BoolFlag("run") {
		output, err := app.Generate(ctx, sel, task)
		if err != nil {
			return fmt.Errorf("generation failed on %s/%s: %w", sel.Provider, sel.Model, err)
		}
		fmt.Println()
		fmt.Println(output)
	}
	return nil
}

// printSelection renders a Selection for humans.
func printSelection(sel router.Selection) {
	locality := "cloud"
	if sel.IsLocal {
		locality = "local"
	}

	fmt.Printf("Model:       %s\n", sel.Model)
	fmt.Printf("Provider:    %s (%s)\n", sel.Provider, locality)
	fmt.Printf("Tier:        %s\n", sel.Tier)
	fmt.Printf("Task type:   %s\n", sel.TaskType)
	fmt.Printf("Complexity:  %s\n", sel.Complexity)
	fmt.Printf("Cost:        %s\n", sel.CostTier)
	fmt.Printf("Temperature: %.1f\n", sel.Temperature)
	fmt.Printf("Max tokens:  %d\n", sel.MaxTokens)
	if len(sel.Fallbacks) > 0 {
		parts := make([]string, 0, len(sel.Fallbacks))
		for _, fb := range sel.Fallbacks {
			parts = append(parts, fmt.Sprintf("%s/%s", fb.Provider, fb.Model))
		}
		fmt.Printf("Fallbacks:   %s\n", strings.Join(parts, ", "))
	}
	fmt.Printf("Reason:      %s\n", sel.Reason)
}
