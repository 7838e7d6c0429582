// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package score

import (
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/AleutianAI/zelda-datagen/services/datagen/compile"
	"github.com/AleutianAI/zelda-datagen/services/datagen/extract"
	"github.com/AleutianAI/zelda-datagen/services/datagen/validate"
)

var (
	idiomPattern = regexp.MustCompile(
		`\(\s*Actor\s*\*\s*thisx\s*,\s*PlayState\s*\*\s*play\s*\)|\bACTORCAT_[A-Z_]+\b|this->actor\b`)

	deprecatedPattern   = regexp.MustCompile(`\bGlobalContext\b|\bglobalCtx\b`)
	directAccessPattern = regexp.MustCompile(`gSaveContext\.[A-Za-z_.]*health\s*[-+]?=`)
)

// ScoredExample is a fully judged fragment ready for assembly.
type ScoredExample struct {
	ID           string
	Fragment     *extract.CodeFragment
	Findings     []validate.Finding
	Compilation  *compile.Outcome
	Authenticity float64
	Quality      float64
	Accepted     bool
	Category     string
	ExampleType  string
}

// GateDecision explains an accept or reject.
type GateDecision struct {
	Accepted bool
	Reasons  []string
}

// Scorer applies a Policy to validation and compilation results.
type Scorer struct {
	policy Policy
	logger *slog.Logger
}

// Option configures the Scorer.
type Option func(*Scorer)

// WithLogger sets the scorer's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scorer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewScorer creates a Scorer with the given policy.
func NewScorer(policy Policy, opts ...Option) *Scorer {
	s := &Scorer{policy: policy, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Policy returns the scorer's policy.
func (s *Scorer) Policy() Policy {
	return s.policy
}

// Authenticity scores how faithful a fragment is to the real codebase.
//
// Description:
//
//	Starts at 10, subtracts per forbidden finding by severity, scales by
//	the cross-reference ratio when any calls were checked, then applies
//	the coverage bonus and the compile adjustment. Cross-reference and
//	architecture findings carry no direct penalty; the former already
//	shape the ratio and the latter are advisory.
//
// Inputs:
//
//	report - The validation report. Required.
//	outcome - The compile outcome, or nil when verification is off.
//
// Outputs:
//
//	float64 - Score clamped to [0, 10].
func (s *Scorer) Authenticity(report *validate.Report, outcome *compile.Outcome) float64 {
	score := 10.0

	for _, finding := range report.Findings {
		if finding.Category != validate.CategoryForbidden {
			continue
		}
		switch finding.Severity {
		case validate.SeverityCritical:
			score -= s.policy.CriticalPenalty
		case validate.SeverityStandard:
			score -= s.policy.StandardPenalty
		}
	}

	if report.TotalCalls > 0 {
		ratio := float64(report.AuthenticCalls) / float64(report.TotalCalls)
		multiplier := ratio + s.policy.RatioFloor
		if multiplier > 1 {
			multiplier = 1
		}
		score *= multiplier
	}

	if report.RequiredCoverage() >= s.policy.RequiredBonusCoverage {
		score += s.policy.RequiredBonus
	}

	if outcome != nil && outcome.Attempted {
		if outcome.Success {
			score += s.policy.CompileBonus
		} else {
			score -= s.policy.CompilePenalty
		}
	}

	return clamp(score)
}

// Quality scores a fragment's usefulness as a training example,
// independently of authenticity.
func (s *Scorer) Quality(frag *extract.CodeFragment) float64 {
	score := s.policy.QualityBase
	output := frag.Output

	if strings.Count(output, "{") > 0 && strings.Count(output, "{") == strings.Count(output, "}") {
		score += s.policy.StructureBonus
	}
	if len(output) >= s.policy.SubstantialLength {
		score += s.policy.LengthBonus
	}
	if idiomPattern.MatchString(output) {
		score += s.policy.IdiomBonus
	}
	if len(strings.Fields(frag.Instruction)) >= 3 {
		score += s.policy.InstructionBonus
	}
	if deprecatedPattern.MatchString(output) {
		score -= s.policy.DeprecatedPenalty
	}
	if directAccessPattern.MatchString(output) {
		score -= s.policy.DirectAccessPenalty
	}

	return clamp(score)
}

// Gate decides whether a scored fragment enters the dataset. Scores exactly
// at a threshold pass.
func (s *Scorer) Gate(authenticity, quality float64, outputLen int) GateDecision {
	decision := GateDecision{Accepted: true}

	if authenticity < s.policy.AuthThreshold {
		decision.Accepted = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("authenticity %.1f below threshold %.1f", authenticity, s.policy.AuthThreshold))
	}
	if quality < s.policy.QualThreshold {
		decision.Accepted = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("quality %.1f below threshold %.1f", quality, s.policy.QualThreshold))
	}
	if outputLen < s.policy.MinOutputLength {
		decision.Accepted = false
		decision.Reasons = append(decision.Reasons,
			fmt.Sprintf("output length %d below minimum %d", outputLen, s.policy.MinOutputLength))
	}

	return decision
}

func clamp(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > 10 {
		return 10
	}
	return score
}
