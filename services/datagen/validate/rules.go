// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package validate checks candidate code fragments against the conventions
// of the Ocarina of Time decompilation and rewrites the known historical
// mistakes.
//
// All checks are table-driven. Adding a rule means adding a table entry, not
// a code path; the validator itself only walks the tables.
package validate

import "regexp"

// RuleVersion identifies the rule tables. Bump when a rule is added,
// removed, or its pattern changes, so dataset metadata records which
// vintage of checks produced a batch.
const RuleVersion = "1.2.0"

// Severity grades how strongly a finding counts against a fragment.
type Severity string

const (
	// SeverityWarning marks advisory findings.
	SeverityWarning Severity = "warning"

	// SeverityStandard marks convention violations.
	SeverityStandard Severity = "standard"

	// SeverityCritical marks violations that make a fragment unusable as
	// training data, such as fabricated APIs.
	SeverityCritical Severity = "critical"
)

// Category groups findings by which check produced them.
type Category string

const (
	// CategoryForbidden comes from the forbidden-pattern table.
	CategoryForbidden Category = "forbidden"

	// CategoryCrossRef comes from cross-referencing called functions
	// against the knowledge base.
	CategoryCrossRef Category = "crossref"

	// CategoryArchitecture comes from concept rules that tie instruction
	// topics to the subsystems the decompilation actually uses.
	CategoryArchitecture Category = "architecture"
)

// ForbiddenRule flags a pattern that never appears in the modern codebase.
type ForbiddenRule struct {
	ID       string
	Pattern  *regexp.Regexp
	Severity Severity
	Message  string
}

// RequiredPattern is an idiom authentic actor code exhibits. Presence is
// counted toward a coverage ratio rather than demanded individually.
type RequiredPattern struct {
	ID      string
	Pattern *regexp.Regexp
}

// Correction rewrites a known historical form to its modern equivalent.
// Corrections are applied in table order.
type Correction struct {
	RuleID      string
	Pattern     *regexp.Regexp
	Replacement string
}

// ConceptRule ties an instruction topic to the subsystem that implements it.
// If the instruction mentions the concept and the output names none of the
// expected identifiers, the fragment is probably inventing a parallel
// mechanism.
type ConceptRule struct {
	ID       string
	Concepts []string
	Expected []string
	Message  string
}

// ForbiddenRules are patterns that disqualify or penalize a fragment.
var ForbiddenRules = []ForbiddenRule{
	{
		ID:       "param-order-swapped",
		Pattern:  regexp.MustCompile(`\(\s*PlayState\s*\*\s*\w+\s*,\s*Actor\s*\*\s*\w+\s*\)`),
		Severity: SeverityCritical,
		Message:  "lifecycle parameter order is (Actor* thisx, PlayState* play), never the reverse",
	},
	{
		ID:       "globalcontext-type",
		Pattern:  regexp.MustCompile(`\bGlobalContext\b`),
		Severity: SeverityStandard,
		Message:  "GlobalContext was renamed to PlayState",
	},
	{
		ID:       "globalctx-name",
		Pattern:  regexp.MustCompile(`\bglobalCtx\b`),
		Severity: SeverityStandard,
		Message:  "the play state parameter is named play, not globalCtx",
	},
	{
		ID:       "direct-health-write",
		Pattern:  regexp.MustCompile(`gSaveContext\.[A-Za-z_.]*health\s*[-+]?=`),
		Severity: SeverityStandard,
		Message:  "health changes go through Health_ChangeBy, not direct gSaveContext writes",
	},
	{
		ID:       "fabricated-api",
		Pattern:  regexp.MustCompile(`\b(?:Actor_CreateNew|Game_SpawnActor|Zelda_[A-Za-z0-9_]+|OoT_[A-Za-z0-9_]+)\s*\(`),
		Severity: SeverityCritical,
		Message:  "calls an API that does not exist in the decompilation",
	},
}

// RequiredPatterns are the idioms counted toward authenticity coverage.
var RequiredPatterns = []RequiredPattern{
	{
		ID:      "lifecycle-signature",
		Pattern: regexp.MustCompile(`\(\s*Actor\s*\*\s*thisx\s*,\s*PlayState\s*\*\s*play\s*\)`),
	},
	{
		ID:      "actor-category",
		Pattern: regexp.MustCompile(`\bACTORCAT_[A-Z_]+\b`),
	},
	{
		ID:      "collider-init",
		Pattern: regexp.MustCompile(`Collider_InitCylinder\(\s*play\s*,\s*&this->collider`),
	},
	{
		ID:      "thisx-downcast",
		Pattern: regexp.MustCompile(`\(\s*[A-Z][A-Za-z0-9]*\s*\*\s*\)\s*thisx`),
	},
	{
		ID:      "actor-helpers",
		Pattern: regexp.MustCompile(`(?:Actor_Kill|Actor_SetScale)\(\s*&this->actor`),
	},
}

// Corrections rewrite historical forms in order. Each entry shares its
// RuleID with the forbidden rule it repairs, so a corrected fragment stops
// triggering that rule on re-validation.
var Corrections = []Correction{
	{
		RuleID:      "param-order-swapped",
		Pattern:     regexp.MustCompile(`\(\s*PlayState\s*\*\s*(\w+)\s*,\s*Actor\s*\*\s*(\w+)\s*\)`),
		Replacement: `(Actor* ${2}, PlayState* ${1})`,
	},
	{
		RuleID:      "globalcontext-type",
		Pattern:     regexp.MustCompile(`\bGlobalContext\b`),
		Replacement: "PlayState",
	},
	{
		RuleID:      "globalctx-name",
		Pattern:     regexp.MustCompile(`\bglobalCtx\b`),
		Replacement: "play",
	},
}

// ConceptRules catch fragments that reinvent existing subsystems.
var ConceptRules = []ConceptRule{
	{
		ID:       "concept-collectible",
		Concepts: []string{"collectible", "rupee", "heart drop", "recovery heart"},
		Expected: []string{"EnItem00", "Item_DropCollectible"},
		Message:  "collectible drops use EnItem00 via Item_DropCollectible",
	},
	{
		ID:       "concept-chest",
		Concepts: []string{"chest", "treasure box"},
		Expected: []string{"EnBox"},
		Message:  "chests are EnBox actors, not bespoke implementations",
	},
	{
		ID:       "concept-door",
		Concepts: []string{"door"},
		Expected: []string{"DoorShutter"},
		Message:  "standard doors are DoorShutter actors",
	},
}

// cCallKeywords are control-flow and operator tokens that look like calls.
var cCallKeywords = map[string]bool{
	"if": true, "for": true, "while": true, "switch": true, "return": true,
	"sizeof": true, "defined": true, "do": true, "else": true, "case": true,
	"typedef": true, "struct": true, "enum": true, "union": true,
}
