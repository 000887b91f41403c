// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// models.go - The models command: list local models with routing scores.
package cli

import (
	"context"
	"fmt"

	"github.com/jeranaias/rigroute/internal/complexity"
	"github.com/jeranaias/rigroute/internal/rank"
	"github.com/jeranaias/rigroute/internal/router"
)

// HandleModels lists local models with their scores for a task type.
func HandleModels(args *ArgParser) error {
	app, err := NewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	taskType := args.FlagOrDefault("type", router.TaskGeneral)

	ctx := context.Background()
	names, err := app.Ollama.ModelNames(ctx)
	if err != nil {
		return fmt.Errorf("could not list local models: %w", err)
	}
	if len(names) == 0 {
		fmt.Println("No local models installed. Pull one with: ollama pull llama3.1:8b")
		return nil
	}

	fmt.Printf("Local models scored for %s tasks:\n\n", taskType)
	fmt.Printf("%-28s %8s %8s %8s %8s %8s %8s\n",
		"MODEL", "SIZE", "CAPAB", "PERF", "SPEED", "QUALITY", "TOTAL")

	for _, name := range names {
		scored := rank.Score(name, taskType, complexity.LevelModerate)
		fmt.Printf("%-28s %7.1fB %8.2f %8.2f %8.2f %8.2f %8.2f\n",
			scored.Model, scored.SizeB,
			scored.Scores.Capability, scored.Scores.Performance,
			scored.Scores.Speed, scored.Scores.Quality, scored.Scores.Total)
	}
	return nil
}
