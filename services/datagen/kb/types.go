// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package kb mines a reference C source tree (the OoT decompilation) into an
// indexed knowledge base of function, struct, enum, and constant definitions,
// plus canonical full-block examples used as few-shot prompt context.
//
// The knowledge base is built once per session and is read-only afterward,
// so it is safe to share across goroutines once Build returns.
package kb

import (
	"fmt"
	"sort"
	"strings"
)

// Kind identifies the definition variant stored in the knowledge base.
type Kind string

const (
	KindFunction Kind = "function"
	KindStruct   Kind = "struct"
	KindEnum     Kind = "enum"
	KindConstant Kind = "constant"
	KindExample  Kind = "example"
)

// SourceLocation records where a definition was mined from.
type SourceLocation struct {
	// File is the path of the source file, relative to its root.
	File string

	// Line is the 1-based line of the definition start.
	Line int

	// Category is the label of the source root ("core", "overlay", "header").
	Category string
}

// Definition is the narrow interface all mined definitions satisfy. It
// exists so the regex extractors can later be swapped for a tokenizer
// without touching the builder or the validator.
type Definition interface {
	// DefName is the identifier the definition is indexed under.
	DefName() string

	// DefKind reports which index the definition belongs to.
	DefKind() Kind

	// Location reports where the definition was found.
	Location() SourceLocation
}

// Param is one (type, name) entry of a function parameter list.
type Param struct {
	Type string
	Name string
}

// FunctionSignature is a mined C function definition header. Immutable once
// built.
type FunctionSignature struct {
	Name       string
	ReturnType string
	Params     []Param
	// Raw is the matched header text verbatim, used for prompt excerpts.
	Raw string
	Loc SourceLocation
}

func (f *FunctionSignature) DefName() string          { return f.Name }
func (f *FunctionSignature) DefKind() Kind            { return KindFunction }
func (f *FunctionSignature) Location() SourceLocation { return f.Loc }

// StructDefinition is a mined typedef struct with its non-comment field
// lines.
type StructDefinition struct {
	Name   string
	Fields []string
	Loc    SourceLocation
}

func (s *StructDefinition) DefName() string          { return s.Name }
func (s *StructDefinition) DefKind() Kind            { return KindStruct }
func (s *StructDefinition) Location() SourceLocation { return s.Loc }

// EnumDefinition is a mined typedef enum with its non-comment value lines.
type EnumDefinition struct {
	Name   string
	Values []string
	Loc    SourceLocation
}

func (e *EnumDefinition) DefName() string          { return e.Name }
func (e *EnumDefinition) DefKind() Kind            { return KindEnum }
func (e *EnumDefinition) Location() SourceLocation { return e.Loc }

// ConstantDefinition is a mined object-like #define.
type ConstantDefinition struct {
	Name  string
	Value string
	Loc   SourceLocation
}

func (c *ConstantDefinition) DefName() string          { return c.Name }
func (c *ConstantDefinition) DefKind() Kind            { return KindConstant }
func (c *ConstantDefinition) Location() SourceLocation { return c.Loc }

// CanonicalExample is a full code block of a recognizable shape (an actor
// Init function or an ActorProfile/ActorInit static initializer), kept for
// few-shot prompt context. Examples are keyed by base file name, so a later
// file with the same name replaces an earlier one.
type CanonicalExample struct {
	Name string
	Code string
	Loc  SourceLocation
}

func (x *CanonicalExample) DefName() string          { return x.Name }
func (x *CanonicalExample) DefKind() Kind            { return KindExample }
func (x *CanonicalExample) Location() SourceLocation { return x.Loc }

// Stats holds build observability counts.
type Stats struct {
	FilesAnalyzed int
	FilesSkipped  int
	Functions     int
	Structs       int
	Enums         int
	Constants     int
	Examples      int
}

// KnowledgeBase is the immutable snapshot of all mined definitions.
//
// Duplicate names across files resolve by last write in sorted path order;
// every overwrite is logged by the builder rather than silently merged.
//
// Thread Safety: read-only after Build; safe to share.
type KnowledgeBase struct {
	functions map[string]*FunctionSignature
	structs   map[string]*StructDefinition
	enums     map[string]*EnumDefinition
	constants map[string]*ConstantDefinition
	examples  map[string]*CanonicalExample
	stats     Stats
}

// HasFunction reports whether name is a known function in the reference
// tree. This is the index the validator's cross-reference check consults.
func (k *KnowledgeBase) HasFunction(name string) bool {
	_, ok := k.functions[name]
	return ok
}

// Function returns the signature for name, or nil if unknown.
func (k *KnowledgeBase) Function(name string) *FunctionSignature {
	return k.functions[name]
}

// Struct returns the struct definition for name, or nil if unknown.
func (k *KnowledgeBase) Struct(name string) *StructDefinition {
	return k.structs[name]
}

// Enum returns the enum definition for name, or nil if unknown.
func (k *KnowledgeBase) Enum(name string) *EnumDefinition {
	return k.enums[name]
}

// Constant returns the constant definition for name, or nil if unknown.
func (k *KnowledgeBase) Constant(name string) *ConstantDefinition {
	return k.constants[name]
}

// Example returns the canonical example for a base file name, or nil.
func (k *KnowledgeBase) Example(file string) *CanonicalExample {
	return k.examples[file]
}

// FunctionNames returns all function names in sorted order.
func (k *KnowledgeBase) FunctionNames() []string {
	names := make([]string, 0, len(k.functions))
	for name := range k.functions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ConstantNames returns all constant names in sorted order.
func (k *KnowledgeBase) ConstantNames() []string {
	names := make([]string, 0, len(k.constants))
	for name := range k.constants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// StructNames returns all struct names in sorted order.
func (k *KnowledgeBase) StructNames() []string {
	names := make([]string, 0, len(k.structs))
	for name := range k.structs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// EnumNames returns all enum names in sorted order.
func (k *KnowledgeBase) EnumNames() []string {
	names := make([]string, 0, len(k.enums))
	for name := range k.enums {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExampleKeys returns the base file names with canonical examples, sorted.
func (k *KnowledgeBase) ExampleKeys() []string {
	keys := make([]string, 0, len(k.examples))
	for key := range k.examples {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

// Stats returns the build counts.
func (k *KnowledgeBase) Stats() Stats {
	return k.stats
}

// Excerpt renders a deterministic prompt excerpt: up to maxFunctions
// function headers, up to maxConstants constants, and one canonical example.
//
// The excerpt is assembled from sorted name order so identical knowledge
// bases always produce identical prompt context.
func (k *KnowledgeBase) Excerpt(maxFunctions, maxConstants int) string {
	var b strings.Builder

	b.WriteString("Known functions:\n")
	for i, name := range k.FunctionNames() {
		if i >= maxFunctions {
			break
		}
		fn := k.functions[name]
		b.WriteString("  ")
		b.WriteString(strings.TrimSpace(strings.TrimSuffix(fn.Raw, "{")))
		b.WriteString(";\n")
	}

	if len(k.constants) > 0 {
		b.WriteString("Known constants:\n")
		for i, name := range k.ConstantNames() {
			if i >= maxConstants {
				break
			}
			c := k.constants[name]
			fmt.Fprintf(&b, "  #define %s %s\n", c.Name, c.Value)
		}
	}

	if keys := k.ExampleKeys(); len(keys) > 0 {
		ex := k.examples[keys[0]]
		b.WriteString("Canonical example from ")
		b.WriteString(ex.Loc.File)
		b.WriteString(":\n")
		b.WriteString(ex.Code)
		if !strings.HasSuffix(ex.Code, "\n") {
			b.WriteString("\n")
		}
	}

	return b.String()
}
