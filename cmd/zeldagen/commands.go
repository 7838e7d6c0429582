// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/zelda-datagen/cmd/zeldagen/config"
	"github.com/AleutianAI/zelda-datagen/pkg/logging"
)

// version is overridden at build time via -ldflags.
var version = "dev"

// --- Global Command Variables ---
var (
	configPath string
	quiet      bool

	// generate flags
	generateTarget   int
	generateModel    string
	generateNoVerify bool

	// kb flags
	kbJSONOutput bool

	// validate flags
	validateInstruction string
	validateVerify      bool

	cfg       *config.Config
	appLogger *logging.Logger

	rootCmd = &cobra.Command{
		Use:   "zeldagen",
		Short: "A cli to synthesize authenticity-validated training data from the OoT decompilation",
		Long: `Zeldagen mines the Ocarina of Time decompilation into a knowledge base,
prompts an LLM for candidate training examples, validates and corrects them
against the real codebase's conventions, and assembles the survivors into a
JSONL instruction-tuning dataset.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			loaded, err := config.Load(configPath)
			if err != nil {
				return err
			}
			cfg = loaded
			appLogger = logging.New(logging.Config{
				Level:   logging.ParseLevel(cfg.Logging.Level),
				LogDir:  cfg.Logging.Dir,
				Service: cmd.Name(),
				JSON:    cfg.Logging.JSON,
				Quiet:   quiet,
			})
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if appLogger != nil {
				_ = appLogger.Close()
			}
		},
	}

	// --- Knowledge Base ---
	kbCmd = &cobra.Command{
		Use:   "kb",
		Short: "Build the knowledge base from the reference sources and report its stats",
		RunE:  runKBStats, // Defined in cmd_kb.go
	}

	// --- Generation ---
	generateCmd = &cobra.Command{
		Use:   "generate",
		Short: "Run a generation batch and assemble the JSONL dataset",
		Long: `Runs the full pipeline: prompts the configured model with seed tasks,
extracts code fragments from the responses, validates them against the
knowledge base, scores the survivors, and appends accepted examples to the
dataset file with a metadata sidecar.`,
		RunE: runGenerate, // Defined in cmd_generate.go
	}

	// --- Validation ---
	validateCmd = &cobra.Command{
		Use:   "validate [file]",
		Short: "Validate and score a single C fragment from a file",
		Args:  cobra.ExactArgs(1),
		RunE:  runValidateFile, // Defined in cmd_validate.go
	}

	versionCmd = &cobra.Command{
		Use:   "version",
		Short: "Print the zeldagen version",
		// No config needed to print a version string.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Println("zeldagen", version)
		},
	}
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ~/.zeldagen/zeldagen.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "suppress stderr logging")

	generateCmd.Flags().IntVarP(&generateTarget, "target", "t", 0, "accepted examples to produce (overrides config)")
	generateCmd.Flags().StringVarP(&generateModel, "model", "m", "", "backend model (overrides config)")
	generateCmd.Flags().BoolVar(&generateNoVerify, "no-verify", false, "skip the C compiler check")

	kbCmd.Flags().BoolVar(&kbJSONOutput, "json", false, "print stats as JSON")

	validateCmd.Flags().StringVarP(&validateInstruction, "instruction", "i", "", "instruction text for concept checks")
	validateCmd.Flags().BoolVar(&validateVerify, "verify", false, "also run the C compiler check")

	rootCmd.AddCommand(kbCmd)
	rootCmd.AddCommand(generateCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
