// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// history_cmd.go - The history command: show recent routing decisions and
// batch runs.
package cli

import (
	"context"
	"fmt"
)

// HandleHistory prints recent routing decisions or batch runs.
func HandleHistory(args *ArgParser) error {
	app, err := NewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	if app.history == nil {
		fmt.Println("History is disabled (history.enabled = false in config).")
		return nil
	}

	limit := args.FlagIntOrDefault("limit", 20)
	ctx := context.Background()

	if args.BoolFlag("batches") {
		records, err := app.history.RecentBatches(ctx, limit)
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("No batch runs recorded yet.")
			return nil
		}
		fmt.Printf("%-19s %-12s %6s %6s %8s %10s\n",
			"WHEN", "RUN", "OK", "FAIL", "WORKERS", "ELAPSED")
		for _, rec := range records {
			fmt.Printf("%-19s %-12s %6d %6d %8d %10v\n",
				rec.CreatedAt.Format("2006-01-02 15:04:05"), truncate(rec.RunID, 12),
				rec.Succeeded, rec.Failed, rec.Concurrency, rec.Elapsed.Round(timeUnit))
		}
		return nil
	}

	records, err := app.history.RecentSelections(ctx, limit)
	if err != nil {
		return err
	}
	if len(records) == 0 {
		fmt.Println("No routing decisions recorded yet.")
		return nil
	}

	fmt.Printf("%-19s %-10s %-12s %-10s %-26s %-8s\n",
		"WHEN", "TYPE", "COMPLEXITY", "PROVIDER", "MODEL", "COST")
	for _, rec := range records {
		fmt.Printf("%-19s %-10s %-12s %-10s %-26s %-8s\n",
			rec.CreatedAt.Format("2006-01-02 15:04:05"), rec.TaskType,
			rec.Complexity, rec.Provider, truncate(rec.Model, 26), rec.CostTier)
	}
	return nil
}
