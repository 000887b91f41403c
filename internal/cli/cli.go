// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

// cli.go - CLI parsing and command dispatch for rigroute.
package cli

import (
	"fmt"
	"os"
	"runtime"
)

// Version information (can be overridden at build time)
var (
	Version   = "0.1.0"
	GitCommit = "unknown"
	BuildDate = "unknown"
)

// Command represents the CLI command to execute.
type Command int

const (
	CmdRoute Command = iota
	CmdBatch
	CmdResources
	CmdModels
	CmdHistory
	CmdStatus
	CmdVersion
	CmdHelp
)

const usageText = `rigroute - policy-driven LLM routing and batch execution

Rigroute routes natural-language tasks to the right model under a privacy,
cost, and quality policy, preferring local Ollama models when they fit.

Usage:
  rigroute route "task"       Route one task and print the selection
    --policy NAME             Policy preset: privacy_first, cost_first,
                              quality_first, balanced
    --complexity LEVEL        Skip analysis: trivial, simple, moderate,
                              complex, very_complex, extreme
    --type TYPE               Skip classification: code, analysis, research,
                              reasoning, simple_chat, general
    --model NAME              Prefer a specific model
    --run                     Execute the task after routing
    --json                    Output the selection as JSON

  rigroute batch [tasks...]   Route and execute tasks concurrently
    --file PATH               Read tasks from file, one per line (- = stdin)
    --policy NAME             Policy preset for every task
    --concurrency N           Base worker count (resources may raise it)
    --json                    Output the summary as JSON

  rigroute resources          Show detected GPUs and estimated capacity
    --json                    Output the snapshot as JSON

  rigroute models             List local models with routing scores
    --type TYPE               Score for a task type (default: general)

  rigroute history            Show recent routing decisions
    --limit N                 Number of entries (default: 20)
    --batches                 Show batch runs instead

  rigroute status             Show provider and Ollama availability
  rigroute version            Show version information
  rigroute help               Show this help

Environment:
  RIGROUTE_POLICY             Default policy preset
  RIGROUTE_OLLAMA_URL         Ollama server URL
  RIGROUTE_OPENAI_KEY         OpenAI API key
  RIGROUTE_ANTHROPIC_KEY      Anthropic API key
  RIGROUTE_CONCURRENCY        Base batch concurrency

Examples:
  rigroute route "refactor this function to use generics"
  rigroute route --policy privacy_first "summarize quarterly report"
  rigroute batch --file tasks.txt --policy cost_first
  echo "task one" | rigroute batch --file -
`

// Parse parses os.Args into a command and its argument parser.
func Parse() (Command, *ArgParser) {
	args := os.Args[1:]
	if len(args) == 0 {
		return CmdHelp, NewArgParser(nil)
	}

	cmd := args[0]
	rest := NewArgParser(args[1:])

	switch cmd {
	case "route", "r":
		return CmdRoute, rest
	case "batch", "b":
		return CmdBatch, rest
	case "resources", "res":
		return CmdResources, rest
	case "models":
		return CmdModels, rest
	case "history", "hist":
		return CmdHistory, rest
	case "status", "s":
		return CmdStatus, rest
	case "version", "-v", "--version":
		return CmdVersion, rest
	case "help", "-h", "--help":
		return CmdHelp, rest
	default:
		// Treat an unknown first arg as a task for route
		return CmdRoute, NewArgParser(args)
	}
}

// HandleHelp prints usage information.
func HandleHelp() {
	fmt.Print(usageText)
}

// HandleVersion prints version information.
func HandleVersion() {
	fmt.Printf("rigroute %s\n", Version)
	fmt.Printf("  commit:  %s\n", GitCommit)
	fmt.Printf("  built:   %s\n", BuildDate)
	fmt.Printf("  go:      %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
