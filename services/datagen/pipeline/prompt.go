// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"strings"

	"github.com/AleutianAI/zelda-datagen/services/datagen/validate"
)

// Seed is one generation task. Category and ExampleType feed batch
// metadata, not the prompt itself.
type Seed struct {
	Instruction string
	Category    string
	ExampleType string
}

// DefaultSeeds covers the actor archetypes the dataset should span.
func DefaultSeeds() []Seed {
	return []Seed{
		{
			Instruction: "Write the Init function for a small patrolling enemy actor with a cylinder collider.",
			Category:    "enemy",
			ExampleType: "lifecycle",
		},
		{
			Instruction: "Write the Update function for an enemy that approaches the player and attacks within range.",
			Category:    "enemy",
			ExampleType: "lifecycle",
		},
		{
			Instruction: "Write the Destroy function for an actor that owns a cylinder collider.",
			Category:    "enemy",
			ExampleType: "lifecycle",
		},
		{
			Instruction: "Write an NPC actor Init function that faces the player when spoken to.",
			Category:    "npc",
			ExampleType: "lifecycle",
		},
		{
			Instruction: "Write a function where a defeated enemy drops a collectible rupee.",
			Category:    "enemy",
			ExampleType: "behavior",
		},
		{
			Instruction: "Write an action function that moves an actor toward its home position and kills it on arrival.",
			Category:    "prop",
			ExampleType: "behavior",
		},
		{
			Instruction: "Write a prop actor Update function that bobs vertically using the sine table.",
			Category:    "prop",
			ExampleType: "behavior",
		},
		{
			Instruction: "Write a damage-handling function that applies knockback and plays a hurt sound.",
			Category:    "enemy",
			ExampleType: "behavior",
		},
	}
}

// Excerpter supplies reference context for prompts. *kb.KnowledgeBase
// satisfies it.
type Excerpter interface {
	Excerpt(maxFunctions, maxConstants int) string
}

// PromptBuilder assembles the user prompt for one seed: the task, the
// convention constraints derived from the rule tables, and a knowledge base
// excerpt when one is available.
type PromptBuilder struct {
	excerpter    Excerpter
	maxFunctions int
	maxConstants int
}

// NewPromptBuilder creates a PromptBuilder. A nil excerpter omits the
// reference context section.
func NewPromptBuilder(excerpter Excerpter) *PromptBuilder {
	return &PromptBuilder{
		excerpter:    excerpter,
		maxFunctions: 40,
		maxConstants: 20,
	}
}

// Build renders the prompt for one seed.
func (p *PromptBuilder) Build(seed Seed) string {
	var b strings.Builder

	b.WriteString("Task: ")
	b.WriteString(seed.Instruction)
	b.WriteString("\n\nFollow these conventions exactly:\n")
	for _, rule := range validate.ForbiddenRules {
		b.WriteString("- ")
		b.WriteString(rule.Message)
		b.WriteString("\n")
	}
	b.WriteString("- Only call functions that appear in the reference context or are defined in your answer.\n")

	if p.excerpter != nil {
		excerpt := p.excerpter.Excerpt(p.maxFunctions, p.maxConstants)
		if excerpt != "" {
			b.WriteString("\nReference context:\n")
			b.WriteString(excerpt)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nRespond with a JSON object: {\"instruction\": ..., \"input\": ..., \"output\": ...}. ")
	b.WriteString("Put only C code in the output field.\n")

	return b.String()
}
