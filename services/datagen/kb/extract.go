// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package kb

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Extractor mines definitions from one source file. Implementations use
// structural pattern matching, not a C grammar; the interface is the seam
// where a real tokenizer could be dropped in later.
type Extractor interface {
	Extract(path string, content string) []Definition
}

// DefaultExtractors returns the extraction rules applied to every file, in
// order: functions, structs, enums, constants, canonical examples.
func DefaultExtractors() []Extractor {
	return []Extractor{
		&functionExtractor{},
		&structExtractor{},
		&enumExtractor{},
		&constantExtractor{},
		&exampleExtractor{},
	}
}

// functionPattern matches a definition start at column 0:
// "<return-type> <name>(<params>) {". Multi-word return types are out of
// scope for structural matching; the decomp uses single-token types.
var functionPattern = regexp.MustCompile(
	`(?m)^(?:static\s+)?([A-Za-z_][A-Za-z0-9_]*(?:\s*\*+)?)\s+([A-Za-z_][A-Za-z0-9_]*)\s*\(([^()]*)\)\s*\{`)

// cKeywords are control-flow words that can masquerade as function names in
// a structural match.
var cKeywords = map[string]bool{
	"if": true, "else": true, "while": true, "for": true, "switch": true,
	"return": true, "do": true, "sizeof": true, "case": true, "defined": true,
}

type functionExtractor struct{}

func (e *functionExtractor) Extract(path string, content string) []Definition {
	var defs []Definition
	for _, m := range functionPattern.FindAllStringSubmatchIndex(content, -1) {
		retType := content[m[2]:m[3]]
		name := content[m[4]:m[5]]
		params := content[m[6]:m[7]]
		if cKeywords[name] || cKeywords[retType] {
			continue
		}
		header := strings.TrimSpace(content[m[0]:m[1]])
		defs = append(defs, &FunctionSignature{
			Name:       name,
			ReturnType: strings.TrimSpace(retType),
			Params:     parseParams(params),
			Raw:        header,
			Loc:        SourceLocation{File: path, Line: lineAt(content, m[0])},
		})
	}
	return defs
}

// parseParams splits a C parameter list into (type, name) pairs. Array
// suffixes are folded into the name-free type; varargs keep an empty name.
func parseParams(list string) []Param {
	list = strings.TrimSpace(list)
	if list == "" || list == "void" {
		return nil
	}

	parts := strings.Split(list, ",")
	params := make([]Param, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if part == "..." {
			params = append(params, Param{Type: "..."})
			continue
		}
		idx := strings.LastIndexAny(part, " *")
		if idx < 0 {
			params = append(params, Param{Type: part})
			continue
		}
		name := strings.TrimSpace(part[idx+1:])
		if bracket := strings.Index(name, "["); bracket >= 0 {
			name = name[:bracket]
		}
		typ := strings.TrimSpace(part[:idx+1])
		params = append(params, Param{Type: typ, Name: name})
	}
	return params
}

var structPattern = regexp.MustCompile(
	`(?s)typedef\s+struct\s*(?:[A-Za-z_][A-Za-z0-9_]*)?\s*\{(.*?)\}\s*([A-Za-z_][A-Za-z0-9_]*)\s*;`)

type structExtractor struct{}

func (e *structExtractor) Extract(path string, content string) []Definition {
	var defs []Definition
	for _, m := range structPattern.FindAllStringSubmatchIndex(content, -1) {
		body := content[m[2]:m[3]]
		name := content[m[4]:m[5]]
		defs = append(defs, &StructDefinition{
			Name:   name,
			Fields: bodyLines(body),
			Loc:    SourceLocation{File: path, Line: lineAt(content, m[0])},
		})
	}
	return defs
}

var enumPattern = regexp.MustCompile(
	`(?s)typedef\s+enum\s*(?:[A-Za-z_][A-Za-z0-9_]*)?\s*\{(.*?)\}\s*([A-Za-z_][A-Za-z0-9_]*)\s*;`)

type enumExtractor struct{}

func (e *enumExtractor) Extract(path string, content string) []Definition {
	var defs []Definition
	for _, m := range enumPattern.FindAllStringSubmatchIndex(content, -1) {
		body := content[m[2]:m[3]]
		name := content[m[4]:m[5]]
		defs = append(defs, &EnumDefinition{
			Name:   name,
			Values: bodyLines(body),
			Loc:    SourceLocation{File: path, Line: lineAt(content, m[0])},
		})
	}
	return defs
}

// constantPattern matches object-like #defines. Function-like macros have a
// "(" directly after the name, so the required whitespace excludes them.
var constantPattern = regexp.MustCompile(`(?m)^#define[ \t]+([A-Z_][A-Z0-9_]*)[ \t]+(.+)$`)

type constantExtractor struct{}

func (e *constantExtractor) Extract(path string, content string) []Definition {
	var defs []Definition
	for _, m := range constantPattern.FindAllStringSubmatchIndex(content, -1) {
		defs = append(defs, &ConstantDefinition{
			Name:  content[m[2]:m[3]],
			Value: strings.TrimSpace(content[m[4]:m[5]]),
			Loc:   SourceLocation{File: path, Line: lineAt(content, m[0])},
		})
	}
	return defs
}

// Canonical example shapes: an actor Init function (body up to the first
// closing brace at column 0) and an ActorProfile/ActorInit initializer.
var (
	profileExamplePattern = regexp.MustCompile(
		`(?ms)^(?:const\s+)?Actor(?:Init|Profile)\s+([A-Za-z_][A-Za-z0-9_]*)\s*=\s*\{.*?\};`)
	initExamplePattern = regexp.MustCompile(
		`(?ms)^void\s+([A-Za-z_][A-Za-z0-9_]*_Init)\s*\(Actor\s*\*\s*thisx,\s*PlayState\s*\*\s*play\)\s*\{.*?^\}`)
)

type exampleExtractor struct{}

func (e *exampleExtractor) Extract(path string, content string) []Definition {
	var defs []Definition
	key := filepath.Base(path)

	// Profile first so a later Init block for the same file wins the key.
	for _, pattern := range []*regexp.Regexp{profileExamplePattern, initExamplePattern} {
		m := pattern.FindStringSubmatchIndex(content)
		if m == nil {
			continue
		}
		defs = append(defs, &CanonicalExample{
			Name: key,
			Code: content[m[0]:m[1]],
			Loc:  SourceLocation{File: path, Line: lineAt(content, m[0])},
		})
	}
	return defs
}

// bodyLines splits a struct or enum body into trimmed non-comment lines.
var (
	blockCommentPattern = regexp.MustCompile(`(?s)/\*.*?\*/`)
	lineCommentPattern  = regexp.MustCompile(`//[^\n]*`)
)

func bodyLines(body string) []string {
	body = blockCommentPattern.ReplaceAllString(body, "")
	body = lineCommentPattern.ReplaceAllString(body, "")

	var lines []string
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		lines = append(lines, line)
	}
	return lines
}

// lineAt returns the 1-based line number of a byte offset.
func lineAt(content string, offset int) int {
	return 1 + strings.Count(content[:offset], "\n")
}
