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
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/zelda-datagen/services/datagen/compile"
	"github.com/AleutianAI/zelda-datagen/services/datagen/dataset"
	"github.com/AleutianAI/zelda-datagen/services/datagen/llm"
	"github.com/AleutianAI/zelda-datagen/services/datagen/pipeline"
	"github.com/AleutianAI/zelda-datagen/services/datagen/score"
)

// newVerifier builds the compile verifier from the config's toolchain
// settings.
func newVerifier() *compile.Verifier {
	opts := []compile.Option{compile.WithLogger(appLogger.Slog())}
	if cfg.Generation.Compiler != "" {
		opts = append(opts, compile.WithCompilers([]string{cfg.Generation.Compiler}))
	}
	if cfg.Generation.CompileTimeoutMs > 0 {
		opts = append(opts, compile.WithTimeout(
			time.Duration(cfg.Generation.CompileTimeoutMs)*time.Millisecond))
	}
	return compile.NewVerifier(opts...)
}

// scoringPolicy folds the config thresholds into the default weights.
func scoringPolicy() score.Policy {
	policy := score.DefaultPolicy()
	policy.AuthThreshold = cfg.Scoring.AuthThreshold
	policy.QualThreshold = cfg.Scoring.QualThreshold
	policy.MinOutputLength = cfg.Scoring.MinOutputLength
	return policy
}

func runGenerate(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	knowledge, err := buildKnowledgeBase(cmd)
	if err != nil {
		return err
	}

	model := cfg.Generation.Model
	if generateModel != "" {
		model = generateModel
	}
	client, err := llm.NewOpenAIClient(model)
	if err != nil {
		return err
	}

	writer, err := dataset.NewWriter(cfg.Dataset.Path)
	if err != nil {
		return err
	}
	defer writer.Close()

	batchCfg := pipeline.BatchConfig{
		TargetAccepted: cfg.Generation.TargetAccepted,
		MaxAttempts:    cfg.Generation.MaxAttempts,
		Delay:          time.Duration(cfg.Generation.DelayMs) * time.Millisecond,
		Temperature:    cfg.Generation.Temperature,
		MaxTokens:      cfg.Generation.MaxTokens,
		Policy:         scoringPolicy(),
	}
	if generateTarget > 0 {
		batchCfg.TargetAccepted = generateTarget
		batchCfg.MaxAttempts = 0 // re-derive from the new target
	}

	opts := []pipeline.RunnerOption{
		pipeline.WithLogger(appLogger.Slog()),
		pipeline.WithPromptBuilder(pipeline.NewPromptBuilder(knowledge)),
	}
	if cfg.Generation.Verify && !generateNoVerify {
		opts = append(opts, pipeline.WithVerifier(newVerifier()))
	}
	if isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd()) {
		accepted := 0
		opts = append(opts, pipeline.WithOnResult(func(r pipeline.Result) {
			if r.Accepted {
				accepted++
			}
			fmt.Printf("\r  attempt %-4d accepted %d/%d  (auth %.1f, qual %.1f)   ",
				r.Attempt, accepted, batchCfg.TargetAccepted, r.Authenticity, r.Quality)
		}))
	}

	runner := pipeline.NewRunner(client, knowledge, writer, batchCfg, opts...)
	meta, runErr := runner.Run(ctx)
	fmt.Println()

	// Write the sidecar even for an interrupted batch; partial batches are
	// still valid datasets.
	if meta != nil {
		if err := dataset.WriteMetadata(cfg.MetadataPath(), meta); err != nil {
			return err
		}
		fmt.Printf("Batch %s: %d attempted, %d accepted, %d rejected\n",
			meta.BatchID, meta.Attempted, meta.Accepted, meta.Rejected)
		fmt.Printf("Dataset: %s (avg authenticity %.1f, avg quality %.1f)\n",
			writer.Path(), meta.AvgAuthenticity, meta.AvgQuality)
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return runErr
	}
	return nil
}
