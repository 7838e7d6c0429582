// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package extract

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
)

// defaultInstruction is used when a strategy recovers code but no usable
// instruction text.
const defaultInstruction = "Write a C function for the Ocarina of Time decompilation following the codebase conventions."

// imperativeVerbs open an instruction sentence.
var imperativeVerbs = map[string]bool{
	"write": true, "create": true, "implement": true, "add": true,
	"define": true, "modify": true, "fix": true, "build": true,
	"make": true, "show": true, "generate": true, "explain": true,
}

var (
	fencePattern = regexp.MustCompile("(?s)```[a-zA-Z]*\r?\n?(.*?)```")

	// declPattern recognizes declaration-like C tokens so a fenced block of
	// prose or shell output is not mistaken for code.
	declPattern = regexp.MustCompile(
		`(?m)\b(?:void|s8|s16|s32|u8|u16|u32|f32|typedef|Actor|PlayState)\b|#define|[A-Za-z_][A-Za-z0-9_]*\s+[A-Za-z_][A-Za-z0-9_]*\s*\(`)

	instructionFieldPattern = regexp.MustCompile(`"instruction"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	inputFieldPattern       = regexp.MustCompile(`"input"\s*:\s*"((?:[^"\\]|\\.)*)"`)

	// outputFieldPattern is deliberately greedy: it tolerates unescaped
	// quotes and newlines inside the value by capturing to the last quote.
	outputFieldPattern = regexp.MustCompile(`(?s)"output"\s*:\s*"(.*)"`)

	lineMarkerPattern = regexp.MustCompile(`(?i)^[\s>*#-]*"?(instruction|input|output)"?\s*[:=]\s*(.*)$`)
	headingPattern    = regexp.MustCompile(`(?i)^#{1,4}\s*(instruction|input|output)\s*:?\s*$`)

	lifecycleNamePattern = regexp.MustCompile(`\b([A-Za-z_][A-Za-z0-9_]*_(?:Init|Destroy|Update|Draw))\b`)

	braceOpenPattern = regexp.MustCompile(`^[A-Za-z_#].*\{\s*$`)
)

// envelope is the structured object shape produced by a well-behaved
// generation.
type envelope struct {
	Instruction string `json:"instruction"`
	Input       string `json:"input"`
	Output      string `json:"output"`
}

// Extractor applies the strategy chain to raw generated text.
type Extractor struct {
	logger *slog.Logger
}

// Option configures the Extractor.
type Option func(*Extractor)

// WithLogger sets the extractor's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Extractor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an Extractor.
func New(opts ...Option) *Extractor {
	e := &Extractor{logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type strategy struct {
	method Method
	fn     func(string) *CodeFragment
}

// Extract recovers a fragment from one raw text blob.
//
// Description:
//
//	Strategies run in fixed order; the first non-nil result wins and is
//	tagged with the strategy's method. Malformed input never raises: when
//	nothing can be recovered the second return value is false.
//
// Outputs:
//
//	*CodeFragment - The recovered fragment, or nil.
//	bool - Whether a fragment was recovered.
func (e *Extractor) Extract(raw string) (*CodeFragment, bool) {
	strategies := []strategy{
		{MethodEnvelopeJSON, envelopeJSON},
		{MethodRawJSON, rawJSON},
		{MethodFencedBlock, fencedBlock},
		{MethodFieldRegex, fieldRegex},
		{MethodLineScan, lineScan},
		{MethodHeuristic, heuristic},
	}

	for _, s := range strategies {
		frag := s.fn(raw)
		if frag == nil || strings.TrimSpace(frag.Output) == "" {
			continue
		}
		if frag.Instruction == "" {
			frag.Instruction = defaultInstruction
		}
		frag.Method = s.method
		e.logger.Debug("fragment extracted",
			slog.String("method", string(s.method)),
			slog.Int("output_len", len(frag.Output)),
		)
		return frag, true
	}

	e.logger.Debug("no fragment recovered", slog.Int("raw_len", len(raw)))
	return nil, false
}

// envelopeJSON locates a structured object embedded in surrounding text,
// preferring fenced blocks. An object spanning the entire blob is left for
// the raw strategy.
func envelopeJSON(raw string) *CodeFragment {
	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		if frag := decodeEnvelope(strings.TrimSpace(m[1])); frag != nil {
			return frag
		}
	}

	idx := strings.Index(raw, `"instruction"`)
	if idx < 0 {
		return nil
	}
	start := strings.LastIndex(raw[:idx], "{")
	if start < 0 {
		return nil
	}
	end := matchBrace(raw, start)
	if end < 0 {
		return nil
	}
	candidate := raw[start : end+1]
	if candidate == strings.TrimSpace(raw) {
		return nil
	}
	return decodeEnvelope(candidate)
}

// rawJSON parses a blob that is exactly one structured object.
func rawJSON(raw string) *CodeFragment {
	return decodeEnvelope(strings.TrimSpace(raw))
}

func decodeEnvelope(text string) *CodeFragment {
	if !strings.HasPrefix(text, "{") {
		return nil
	}
	var env envelope
	if err := json.Unmarshal([]byte(text), &env); err != nil {
		return nil
	}
	if strings.TrimSpace(env.Output) == "" {
		return nil
	}
	return &CodeFragment{
		Instruction: strings.TrimSpace(env.Instruction),
		Input:       strings.TrimSpace(env.Input),
		Output:      env.Output,
	}
}

// fencedBlock accepts the first fenced region containing declaration-like
// tokens, deriving the instruction from prose outside the fence or
// synthesizing one from the code itself.
func fencedBlock(raw string) *CodeFragment {
	matches := fencePattern.FindAllStringSubmatchIndex(raw, -1)
	for _, m := range matches {
		content := strings.TrimSpace(raw[m[2]:m[3]])
		if content == "" || !declPattern.MatchString(content) {
			continue
		}
		// JSON inside a fence belongs to the envelope strategy; if it got
		// here the JSON was malformed, and the field regexes handle that.
		if strings.HasPrefix(content, "{") && strings.Contains(content, `"output"`) {
			continue
		}

		outside := raw[:m[0]] + "\n" + raw[m[1]:]
		instruction := firstImperativeSentence(outside)
		if instruction == "" {
			instruction = synthesizeInstruction(content)
		}
		return &CodeFragment{Instruction: instruction, Output: content}
	}
	return nil
}

// fieldRegex recovers fields with per-field regexes tolerant of unescaped
// quotes and newlines inside output.
func fieldRegex(raw string) *CodeFragment {
	out := outputFieldPattern.FindStringSubmatch(raw)
	if out == nil {
		return nil
	}
	frag := &CodeFragment{Output: unescapeLoose(out[1])}
	if m := instructionFieldPattern.FindStringSubmatch(raw); m != nil {
		frag.Instruction = unescapeLoose(m[1])
	}
	if m := inputFieldPattern.FindStringSubmatch(raw); m != nil {
		frag.Input = unescapeLoose(m[1])
	}
	return frag
}

// lineScan reconstructs fields line by line, tracking which field is open
// and accumulating multi-line content, fenced sub-blocks included.
func lineScan(raw string) *CodeFragment {
	fields := map[string]*strings.Builder{
		"instruction": {},
		"input":       {},
		"output":      {},
	}

	current := ""
	inFence := false
	for _, line := range strings.Split(raw, "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			if current != "" {
				fields[current].WriteString(line + "\n")
			}
			continue
		}
		if !inFence {
			if m := headingPattern.FindStringSubmatch(trimmed); m != nil {
				current = strings.ToLower(m[1])
				continue
			}
			if m := lineMarkerPattern.FindStringSubmatch(line); m != nil {
				current = strings.ToLower(m[1])
				rest := strings.TrimSpace(m[2])
				if rest != "" {
					fields[current].WriteString(rest + "\n")
				}
				continue
			}
		}
		if current != "" {
			fields[current].WriteString(line + "\n")
		}
	}

	output := cleanFieldValue(fields["output"].String())
	if output == "" {
		return nil
	}
	return &CodeFragment{
		Instruction: cleanFieldValue(fields["instruction"].String()),
		Input:       cleanFieldValue(fields["input"].String()),
		Output:      output,
	}
}

// heuristic pairs any imperative sentence with any fenced or brace-delimited
// region resembling code.
func heuristic(raw string) *CodeFragment {
	code := ""
	for _, m := range fencePattern.FindAllStringSubmatch(raw, -1) {
		content := strings.TrimSpace(m[1])
		if declPattern.MatchString(content) {
			code = content
			break
		}
	}
	if code == "" {
		code = braceRegion(raw)
	}
	if code == "" || !declPattern.MatchString(code) {
		return nil
	}
	return &CodeFragment{
		Instruction: firstImperativeSentence(raw),
		Output:      code,
	}
}

// firstImperativeSentence returns the first sentence opening with a known
// imperative verb, or "".
func firstImperativeSentence(text string) string {
	for _, sentence := range splitSentences(text) {
		word := firstWord(sentence)
		if imperativeVerbs[strings.ToLower(word)] {
			return sentence
		}
	}
	return ""
}

func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for i, r := range text {
		if r == '.' || r == '!' || r == '?' || r == '\n' {
			s := strings.TrimSpace(text[start:i])
			if s != "" {
				sentences = append(sentences, s)
			}
			start = i + 1
		}
	}
	if s := strings.TrimSpace(text[start:]); s != "" {
		sentences = append(sentences, s)
	}
	return sentences
}

func firstWord(sentence string) string {
	sentence = strings.TrimLeft(sentence, "#*->1234567890. \t")
	fields := strings.Fields(sentence)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// synthesizeInstruction builds a templated instruction from the code when
// no prose instruction exists.
func synthesizeInstruction(code string) string {
	if m := lifecycleNamePattern.FindStringSubmatch(code); m != nil {
		return fmt.Sprintf("Write the %s function for the Ocarina of Time decompilation following the codebase conventions.", m[1])
	}
	return defaultInstruction
}

// braceRegion returns the first top-level brace-delimited block opened by a
// declaration-like line, or "".
func braceRegion(raw string) string {
	lines := strings.Split(raw, "\n")
	start := -1
	for i, line := range lines {
		if braceOpenPattern.MatchString(strings.TrimRight(line, " \t")) {
			start = i
			break
		}
	}
	if start < 0 {
		return ""
	}

	depth := 0
	for i := start; i < len(lines); i++ {
		depth += strings.Count(lines[i], "{") - strings.Count(lines[i], "}")
		if depth <= 0 && i > start {
			return strings.Join(lines[start:i+1], "\n")
		}
	}
	// Unbalanced braces: keep what we have, the verifier will catch it.
	return strings.Join(lines[start:], "\n")
}

// matchBrace returns the index of the brace closing the one at start,
// respecting JSON string literals, or -1.
func matchBrace(text string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(text); i++ {
		c := text[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

// unescapeLoose decodes the escape sequences a tolerant field capture may
// contain without requiring valid JSON.
func unescapeLoose(s string) string {
	replacer := strings.NewReplacer(
		`\n`, "\n",
		`\t`, "\t",
		`\"`, `"`,
		`\\`, `\`,
	)
	return strings.TrimSpace(replacer.Replace(s))
}

// cleanFieldValue strips wrapping quotes, trailing commas, and fence lines
// from an accumulated field.
func cleanFieldValue(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, ",")
	s = strings.Trim(s, `"`)

	if strings.Contains(s, "```") {
		if m := fencePattern.FindStringSubmatch(s); m != nil {
			inner := strings.TrimSpace(m[1])
			if inner != "" {
				return inner
			}
		}
	}
	return strings.TrimSpace(s)
}
