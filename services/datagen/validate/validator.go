// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package validate

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"unicode"
)

var (
	callPattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*)\s*\(`)

	// definitionPattern finds functions defined inside the fragment itself,
	// so their own calls are not cross-referenced against the knowledge base.
	definitionPattern = regexp.MustCompile(
		`(?m)^\s*(?:static\s+)?[A-Za-z_][A-Za-z0-9_]*(?:\s*\*+)?\s+([A-Za-z_][A-Za-z0-9_]*)\s*\([^()]*\)\s*\{`)
)

// minCallNameLength filters out short helper-like tokens that are almost
// never project functions (abs, min, max and friends).
const minCallNameLength = 4

// Finding is one rule violation or observation about a fragment.
type Finding struct {
	// RuleID names the table entry that fired.
	RuleID string

	// Severity grades the finding.
	Severity Severity

	// Category records which check produced it.
	Category Category

	// Message explains the violation in reviewer terms.
	Message string
}

// Report is the full result of validating one fragment.
//
// Validation never mutates its input. Corrected holds the rewritten output;
// the caller decides whether to adopt it. Re-validating Corrected yields no
// findings for any rule that has a correction.
type Report struct {
	// Findings in table order: forbidden, then cross-reference, then
	// architecture.
	Findings []Finding

	// Corrected is the output with all table corrections applied. Equal to
	// the input output when nothing matched.
	Corrected string

	// RequiredMatched and RequiredTotal express idiom coverage.
	RequiredMatched int
	RequiredTotal   int

	// AuthenticCalls and TotalCalls express how many cross-referenced calls
	// resolve against the knowledge base.
	AuthenticCalls int
	TotalCalls     int
}

// HasCritical reports whether any finding is critical.
func (r *Report) HasCritical() bool {
	for _, f := range r.Findings {
		if f.Severity == SeverityCritical {
			return true
		}
	}
	return false
}

// RequiredCoverage returns the matched fraction of required idioms, in
// [0, 1]. Zero when the table is empty.
func (r *Report) RequiredCoverage() float64 {
	if r.RequiredTotal == 0 {
		return 0
	}
	return float64(r.RequiredMatched) / float64(r.RequiredTotal)
}

// FunctionLookup resolves a function name against known definitions.
// *kb.KnowledgeBase satisfies it.
type FunctionLookup interface {
	HasFunction(name string) bool
}

// Validator checks fragments against the rule tables and a knowledge base.
type Validator struct {
	lookup FunctionLookup
	logger *slog.Logger
}

// Option configures the Validator.
type Option func(*Validator)

// WithLogger sets the validator's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Validator) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// New creates a Validator. A nil lookup disables cross-referencing; the
// rule tables still apply.
func New(lookup FunctionLookup, opts ...Option) *Validator {
	v := &Validator{lookup: lookup, logger: slog.Default()}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Validate checks one fragment.
//
// Description:
//
//	Scans the original output against the forbidden, required, and concept
//	tables, cross-references called functions against the knowledge base,
//	then computes the corrected output. Scanning precedes correction so the
//	report describes what the generator actually produced.
//
// Inputs:
//
//	instruction - The task text, used only by concept rules.
//	output - The candidate code.
//
// Outputs:
//
//	*Report - Always non-nil.
func (v *Validator) Validate(instruction, output string) *Report {
	report := &Report{
		Corrected:     output,
		RequiredTotal: len(RequiredPatterns),
	}

	for _, rule := range ForbiddenRules {
		if rule.Pattern.MatchString(output) {
			report.Findings = append(report.Findings, Finding{
				RuleID:   rule.ID,
				Severity: rule.Severity,
				Category: CategoryForbidden,
				Message:  rule.Message,
			})
		}
	}

	for _, required := range RequiredPatterns {
		if required.Pattern.MatchString(output) {
			report.RequiredMatched++
		}
	}

	v.crossReference(output, report)
	v.checkConcepts(instruction, output, report)

	for _, correction := range Corrections {
		report.Corrected = correction.Pattern.ReplaceAllString(report.Corrected, correction.Replacement)
	}

	v.logger.Debug("fragment validated",
		slog.Int("findings", len(report.Findings)),
		slog.Int("required_matched", report.RequiredMatched),
		slog.Int("authentic_calls", report.AuthenticCalls),
		slog.Int("total_calls", report.TotalCalls),
		slog.Bool("corrected", report.Corrected != output),
	)

	return report
}

// crossReference resolves every plausible function call against the
// knowledge base. Unknown calls are recorded but carry their own category;
// whether they cost anything is the scorer's decision.
func (v *Validator) crossReference(output string, report *Report) {
	if v.lookup == nil {
		return
	}

	defined := map[string]bool{}
	for _, m := range definitionPattern.FindAllStringSubmatch(output, -1) {
		defined[m[1]] = true
	}

	seen := map[string]bool{}
	for _, m := range callPattern.FindAllStringSubmatch(output, -1) {
		name := m[1]
		if seen[name] {
			continue
		}
		seen[name] = true

		if cCallKeywords[name] || defined[name] {
			continue
		}
		if len([]rune(name)) < minCallNameLength || isMacroName(name) {
			continue
		}

		report.TotalCalls++
		if v.lookup.HasFunction(name) {
			report.AuthenticCalls++
			continue
		}
		report.Findings = append(report.Findings, Finding{
			RuleID:   "xref-unknown-call",
			Severity: SeverityStandard,
			Category: CategoryCrossRef,
			Message:  fmt.Sprintf("call to %s does not resolve against the reference sources", name),
		})
	}
}

// checkConcepts fires when the instruction names a concept but the output
// never touches the subsystem implementing it.
func (v *Validator) checkConcepts(instruction, output string, report *Report) {
	lower := strings.ToLower(instruction)
	for _, rule := range ConceptRules {
		mentioned := false
		for _, concept := range rule.Concepts {
			if strings.Contains(lower, concept) {
				mentioned = true
				break
			}
		}
		if !mentioned {
			continue
		}

		present := false
		for _, expected := range rule.Expected {
			if strings.Contains(output, expected) {
				present = true
				break
			}
		}
		if present {
			continue
		}

		report.Findings = append(report.Findings, Finding{
			RuleID:   rule.ID,
			Severity: SeverityWarning,
			Category: CategoryArchitecture,
			Message:  rule.Message,
		})
	}
}

// isMacroName reports whether a name is ALL-CAPS, which in this codebase
// means a macro rather than a function.
func isMacroName(name string) bool {
	hasUpper := false
	for _, r := range name {
		if unicode.IsLower(r) {
			return false
		}
		if unicode.IsUpper(r) {
			hasUpper = true
		}
	}
	return hasUpper
}
