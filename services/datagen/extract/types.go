// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package extract recovers (instruction, code) pairs from raw generated
// text of unknown shape.
//
// Generated text arrives in many forms: a clean JSON envelope, a JSON blob
// inside a markdown fence, a fenced code block with prose around it, JSON
// with unescaped quotes the encoder botched, or free-form text with field
// markers. The extractor applies a fixed, ordered strategy chain; the first
// strategy that yields a non-empty output wins, and the resulting fragment
// records which one it was.
//
// Contract: Extract never panics on malformed input. It either returns a
// populated CodeFragment or reports that no fragment could be recovered.
package extract

// Method tags which extraction strategy produced a fragment.
type Method string

const (
	// MethodEnvelopeJSON is a structured object embedded in surrounding
	// text, typically inside a fenced block.
	MethodEnvelopeJSON Method = "envelope_json"

	// MethodRawJSON is a blob that is exactly one structured object.
	MethodRawJSON Method = "raw_json"

	// MethodFencedBlock is a fenced code region with a derived or
	// synthesized instruction.
	MethodFencedBlock Method = "fenced_block"

	// MethodFieldRegex is per-field regex recovery tolerant of unescaped
	// quotes and newlines inside output.
	MethodFieldRegex Method = "field_regex"

	// MethodLineScan is line-oriented reconstruction of field markers.
	MethodLineScan Method = "line_scan"

	// MethodHeuristic is the last-resort imperative-sentence plus
	// code-region pairing.
	MethodHeuristic Method = "heuristic"
)

// CodeFragment is a candidate training example recovered from one
// generation attempt. Transient; the validator may rewrite Output.
type CodeFragment struct {
	// Instruction is the extracted or synthesized task description.
	Instruction string

	// Input is the optional context field of the training record.
	Input string

	// Output is the candidate code.
	Output string

	// Method records which strategy recovered the fragment.
	Method Method
}
