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
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/zelda-datagen/services/datagen/compile"
	"github.com/AleutianAI/zelda-datagen/services/datagen/extract"
	"github.com/AleutianAI/zelda-datagen/services/datagen/score"
	"github.com/AleutianAI/zelda-datagen/services/datagen/validate"
)

func runValidateFile(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading the fragment file: %w", err)
	}
	output := string(data)

	// Cross-referencing needs the knowledge base; a missing reference tree
	// downgrades the check rather than blocking it.
	var validator *validate.Validator
	knowledge, kbErr := buildKnowledgeBase(cmd)
	if kbErr != nil {
		appLogger.Warn("knowledge base unavailable, cross-referencing disabled",
			"error", kbErr.Error())
		validator = validate.New(nil, validate.WithLogger(appLogger.Slog()))
	} else {
		validator = validate.New(knowledge, validate.WithLogger(appLogger.Slog()))
	}

	report := validator.Validate(validateInstruction, output)

	var outcome *compile.Outcome
	if validateVerify {
		outcome = newVerifier().Verify(cmd.Context(), report.Corrected)
	}

	scorer := score.NewScorer(scoringPolicy())
	authenticity := scorer.Authenticity(report, outcome)
	quality := scorer.Quality(&extract.CodeFragment{
		Instruction: validateInstruction,
		Output:      report.Corrected,
	})
	decision := scorer.Gate(authenticity, quality, len(report.Corrected))

	if len(report.Findings) == 0 {
		fmt.Println("No findings.")
	} else {
		fmt.Printf("Findings (%d):\n", len(report.Findings))
		for _, finding := range report.Findings {
			fmt.Printf("  [%s/%s] %s: %s\n", finding.Severity, finding.Category, finding.RuleID, finding.Message)
		}
	}
	fmt.Printf("Required idioms: %d/%d\n", report.RequiredMatched, report.RequiredTotal)
	if report.TotalCalls > 0 {
		fmt.Printf("Cross-referenced calls: %d/%d resolved\n", report.AuthenticCalls, report.TotalCalls)
	}
	if outcome != nil && outcome.Attempted {
		fmt.Printf("Compile check: success=%v (%d errors, %d warnings)\n",
			outcome.Success, len(outcome.Errors), len(outcome.Warnings))
	}
	fmt.Printf("Authenticity: %.1f  Quality: %.1f\n", authenticity, quality)

	if report.Corrected != output {
		fmt.Println("\nCorrected fragment:")
		fmt.Println(report.Corrected)
	}

	if !decision.Accepted {
		return fmt.Errorf("fragment rejected: %s", strings.Join(decision.Reasons, "; "))
	}
	fmt.Println("Fragment accepted.")
	return nil
}
