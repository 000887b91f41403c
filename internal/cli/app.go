// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// app.go - Shared wiring between CLI commands: config, routing engine,
// provider clients, and the history store.
package cli

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/jeranaias/rigroute/internal/cloud"
	"github.com/jeranaias/rigroute/internal/config"
	"github.com/jeranaias/rigroute/internal/history"
	"github.com/jeranaias/rigroute/internal/ollama"
	"github.com/jeranaias/rigroute/internal/policy"
	"github.com/jeranaias/rigroute/internal/provider"
	"github.com/jeranaias/rigroute/internal/rank"
	"github.com/jeranaias/rigroute/internal/router"
)

// generateFunc executes generation against one provider.
type generateFunc func(ctx context.Context, model, prompt string, params router.GenerateParams) (string, error)

// App holds the wired components every command works against.
type App struct {
	Config     *config.Config
	Engine     *router.Engine
	Ollama     *ollama.Client
	Registry   *provider.Registry
	generators map[string]generateFunc
	history    *history.Store
}

// NewApp loads configuration and wires the routing engine, provider
// clients, and history store.
func NewApp() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return NewAppWithConfig(cfg)
}

// NewAppWithConfig wires an App from an already loaded configuration.
func NewAppWithConfig(cfg *config.Config) (*App, error) {
	ollamaClient := ollama.NewClientWithConfig(&ollama.ClientConfig{
		BaseURL:      cfg.Local.OllamaURL,
		DefaultModel: cfg.Local.DefaultModel,
	})

	// Cost tier overrides from config feed the provider registry.
	overrides := make(map[string]provider.Override)
	for name, pc := range cfg.Providers {
		if pc.CostTier == "" {
			continue
		}
		if tier, ok := provider.ParseCostTier(pc.CostTier); ok {
			overrides[name] = provider.Override{CostTier: tier}
		}
	}
	registry := provider.NewRegistry(overrides)

	defaultPolicy, ok := policy.Preset(cfg.DefaultPolicy)
	if !ok {
		return nil, fmt.Errorf("unknown policy preset %q", cfg.DefaultPolicy)
	}

	providers := map[string]router.ProviderConfig{
		provider.LocalProviderName: {
			Enabled:      true,
			BaseURL:      cfg.Local.OllamaURL,
			DefaultModel: cfg.Local.DefaultModel,
		},
	}
	generators := map[string]generateFunc{
		provider.LocalProviderName: func(ctx context.Context, model, prompt string, params router.GenerateParams) (string, error) {
			return ollamaClient.Generate(ctx, model, prompt, params.Temperature, params.MaxTokens)
		},
	}

	for name, pc := range cfg.Providers {
		if !pc.Enabled {
			continue
		}
		providers[name] = router.ProviderConfig{
			Enabled:      pc.APIKey != "",
			BaseURL:      pc.BaseURL,
			DefaultModel: pc.DefaultModel,
		}
		client := cloud.NewClient(name, pc.BaseURL, pc.APIKey)
		generators[name] = func(ctx context.Context, model, prompt string, params router.GenerateParams) (string, error) {
			return client.Generate(ctx, model, prompt, params.Temperature, params.MaxTokens)
		}
	}

	engine := router.NewEngine(router.Options{
		Registry:      registry,
		Ranker:        rank.NewLocalRanker(modelListerFunc(ollamaClient.ModelNames)),
		DefaultPolicy: &defaultPolicy,
		Providers:     providers,
	})

	app := &App{
		Config:     cfg,
		Engine:     engine,
		Ollama:     ollamaClient,
		Registry:   registry,
		generators: generators,
	}

	if cfg.History.Enabled {
		path := cfg.History.Path
		var pathErr error
		if path == "" {
			path, pathErr = history.DefaultPath()
		}
		if pathErr == nil {
			store, openErr := history.Open(path)
			if openErr != nil {
				log.Printf("HISTORY: disabled, open failed: %v", openErr)
			} else {
				app.history = store
			}
		}
	}

	return app, nil
}

// Close releases held resources.
func (a *App) Close() {
	if a.history != nil {
		a.history.Close()
	}
}

// Generate executes a routing selection against its provider.
func (a *App) Generate(ctx context.Context, sel router.Selection, prompt string) (string, error) {
	gen, ok := a.generators[sel.Provider]
	if !ok {
		return "", fmt.Errorf("no client wired for provider %s", sel.Provider)
	}
	return gen(ctx, sel.Model, prompt, router.GenerateParams{
		Temperature: sel.Temperature,
		MaxTokens:   sel.MaxTokens,
	})
}

// RecordSelection stores a routing decision. Best effort.
func (a *App) RecordSelection(ctx context.Context, sel router.Selection) {
	if a.history == nil {
		return
	}
	err := a.history.RecordSelection(ctx, history.SelectionRecord{
		TaskType:   sel.TaskType,
		Complexity: sel.Complexity.String(),
		Provider:   sel.Provider,
		Model:      sel.Model,
		CostTier:   sel.CostTier.String(),
		IsLocal:    sel.IsLocal,
		Policy:     sel.Policy.Name(),
		Reason:     sel.Reason,
	})
	if err != nil {
		log.Printf("HISTORY: record selection failed: %v", err)
	}
}

// ResolvePolicy returns the policy named by the flag, the config default
// when the flag is empty, or an error for an unknown name.
func (a *App) ResolvePolicy(name string) (*policy.Policy, error) {
	if name == "" {
		return nil, nil // engine default applies
	}
	pol, ok := policy.Preset(strings.ToLower(name))
	if !ok {
		return nil, fmt.Errorf("unknown policy %q (valid: privacy_first, cost_first, quality_first, balanced)", name)
	}
	return &pol, nil
}

// modelListerFunc adapts a func to rank.ModelLister.
type modelListerFunc func(ctx context.Context) ([]string, error)

func (f modelListerFunc) ListModels(ctx context.Context) ([]string, error) {
	return f(ctx)
}
