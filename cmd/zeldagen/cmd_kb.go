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
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/zelda-datagen/services/datagen/kb"
)

// sourceRoots maps the config's source roots to the builder's type.
func sourceRoots() []kb.SourceRoot {
	roots := make([]kb.SourceRoot, 0, len(cfg.Sources.Roots))
	for _, root := range cfg.Sources.Roots {
		roots = append(roots, kb.SourceRoot{Path: root.Path, Category: root.Category})
	}
	return roots
}

// buildKnowledgeBase walks the configured reference trees.
func buildKnowledgeBase(cmd *cobra.Command) (*kb.KnowledgeBase, error) {
	builder := kb.NewBuilder(sourceRoots(), kb.WithLogger(appLogger.Slog()))
	knowledge, err := builder.Build(cmd.Context())
	if err != nil {
		return nil, fmt.Errorf("building the knowledge base: %w", err)
	}
	return knowledge, nil
}

func runKBStats(cmd *cobra.Command, args []string) error {
	knowledge, err := buildKnowledgeBase(cmd)
	if err != nil {
		return err
	}
	stats := knowledge.Stats()

	if kbJSONOutput {
		data, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Println(string(data))
		return nil
	}

	fmt.Println("Knowledge base")
	fmt.Printf("  Files analyzed: %d (skipped %d)\n", stats.FilesAnalyzed, stats.FilesSkipped)
	fmt.Printf("  Functions:      %d\n", stats.Functions)
	fmt.Printf("  Structs:        %d\n", stats.Structs)
	fmt.Printf("  Enums:          %d\n", stats.Enums)
	fmt.Printf("  Constants:      %d\n", stats.Constants)
	fmt.Printf("  Examples:       %d\n", stats.Examples)
	return nil
}
