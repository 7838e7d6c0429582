// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package score turns validation and compilation results into authenticity
// and quality scores on a [0, 10] scale and gates which fragments enter the
// dataset.
package score

// Policy holds every scoring constant. All weights live here so a batch can
// be re-gated under different thresholds without touching scorer code.
type Policy struct {
	// StandardPenalty and CriticalPenalty are subtracted from authenticity
	// per forbidden-pattern finding of that severity.
	StandardPenalty float64
	CriticalPenalty float64

	// RatioFloor keeps a fragment with mostly-unknown calls from zeroing
	// out entirely; the authenticity multiplier is min(1, ratio+floor).
	RatioFloor float64

	// RequiredBonus is added when required-idiom coverage reaches
	// RequiredBonusCoverage.
	RequiredBonus         float64
	RequiredBonusCoverage float64

	// CompileBonus and CompilePenalty adjust authenticity when a compile
	// check was actually attempted.
	CompileBonus   float64
	CompilePenalty float64

	// QualityBase is the starting quality score.
	QualityBase float64

	// StructureBonus rewards a complete brace-balanced body.
	StructureBonus float64

	// LengthBonus rewards output of at least SubstantialLength bytes.
	LengthBonus       float64
	SubstantialLength int

	// IdiomBonus rewards outputs carrying the codebase's actor idioms.
	IdiomBonus float64

	// InstructionBonus rewards a substantive instruction.
	InstructionBonus float64

	// DeprecatedPenalty and DirectAccessPenalty are quality deductions for
	// legacy naming and raw save-context writes.
	DeprecatedPenalty   float64
	DirectAccessPenalty float64

	// AuthThreshold, QualThreshold, and MinOutputLength gate acceptance.
	// Scores exactly at a threshold are accepted.
	AuthThreshold   float64
	QualThreshold   float64
	MinOutputLength int
}

// DefaultPolicy returns the production weights.
func DefaultPolicy() Policy {
	return Policy{
		StandardPenalty:       2.0,
		CriticalPenalty:       3.0,
		RatioFloor:            0.1,
		RequiredBonus:         1.0,
		RequiredBonusCoverage: 0.8,
		CompileBonus:          0.2,
		CompilePenalty:        0.3,
		QualityBase:           5.0,
		StructureBonus:        1.0,
		LengthBonus:           1.0,
		SubstantialLength:     200,
		IdiomBonus:            1.0,
		InstructionBonus:      0.5,
		DeprecatedPenalty:     1.0,
		DirectAccessPenalty:   1.0,
		AuthThreshold:         7.0,
		QualThreshold:         6.0,
		MinOutputLength:       50,
	}
}
