// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// status.go - The status command: show provider and Ollama availability.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/jeranaias/rigroute/internal/batch"
	"github.com/jeranaias/rigroute/internal/detect"
	"github.com/jeranaias/rigroute/internal/provider"
)

// HandleStatus prints the operational state of every wired provider.
func HandleStatus(args *ArgParser) error {
	app, err := NewApp()
	if err != nil {
		return err
	}
	defer app.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	fmt.Printf("rigroute %s\n\n", Version)
	fmt.Printf("Policy: %s\n\n", app.Config.DefaultPolicy)

	// Local provider
	fmt.Printf("ollama (%s)\n", app.Config.Local.OllamaURL)
	if err := app.Ollama.CheckRunning(ctx); err != nil {
		fmt.Printf("  status: not running (%v)\n", err)
	} else {
		names, err := app.Ollama.ModelNames(ctx)
		if err != nil {
			fmt.Printf("  status: running, model list failed: %v\n", err)
		} else {
			fmt.Printf("  status: running, %d models\n", len(names))
		}
	}

	// Cloud providers
	for _, name := range app.Registry.Names() {
		if name == provider.LocalProviderName {
			continue
		}
		info := app.Registry.Get(name)
		pc, wired := app.Config.Providers[name]
		state := "not configured"
		if wired && pc.Enabled && pc.APIKey != "" {
			state = "configured"
		} else if wired && pc.Enabled {
			state = "enabled, missing API key"
		}
		fmt.Printf("%s\n  status: %s, cost: %s\n", name, state, info.CostTier)
	}

	// Batch capacity
	engine := batch.NewEngine(app.Config.Batch.BaseConcurrency, detect.NewSystemDiscoverer())
	fmt.Printf("\nBatch concurrency: %d (base %d)\n",
		engine.EffectiveConcurrency(ctx), app.Config.Batch.BaseConcurrency)
	return nil
}
