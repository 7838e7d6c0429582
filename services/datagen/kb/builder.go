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
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"golang.org/x/sync/errgroup"
)

// Sentinel errors for the kb package.
var (
	// ErrNoRoots is returned when Build is called with no source roots.
	ErrNoRoots = errors.New("no source roots configured")

	// ErrRootUnreadable is returned when a configured root cannot be walked.
	ErrRootUnreadable = errors.New("source root unreadable")
)

// sourceExtensions are the file extensions the builder recognizes.
var sourceExtensions = map[string]bool{
	".c": true,
	".h": true,
}

// SourceRoot is one reference directory tagged with a category label.
type SourceRoot struct {
	Path     string
	Category string
}

// Builder walks source roots and merges extracted definitions into a
// KnowledgeBase snapshot.
//
// Files are parsed in parallel but merged sequentially in sorted path order,
// so the documented last-write-wins behavior on duplicate names stays
// deterministic across runs.
type Builder struct {
	roots       []SourceRoot
	extractors  []Extractor
	logger      *slog.Logger
	parallelism int
}

// BuilderOption configures the Builder.
type BuilderOption func(*Builder)

// WithExtractors replaces the default extraction rules.
func WithExtractors(extractors []Extractor) BuilderOption {
	return func(b *Builder) {
		b.extractors = extractors
	}
}

// WithLogger sets the builder's logger.
func WithLogger(logger *slog.Logger) BuilderOption {
	return func(b *Builder) {
		if logger != nil {
			b.logger = logger
		}
	}
}

// WithParallelism bounds concurrent file parsing. Default is GOMAXPROCS.
func WithParallelism(n int) BuilderOption {
	return func(b *Builder) {
		if n > 0 {
			b.parallelism = n
		}
	}
}

// NewBuilder creates a Builder over the given roots.
func NewBuilder(roots []SourceRoot, opts ...BuilderOption) *Builder {
	b := &Builder{
		roots:       roots,
		extractors:  DefaultExtractors(),
		logger:      slog.Default(),
		parallelism: runtime.GOMAXPROCS(0),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// fileResult holds the definitions mined from one file, kept in walk order
// until the sequential merge.
type fileResult struct {
	path    string
	skipped bool
	defs    []Definition
}

// Build walks every root and returns the immutable snapshot.
//
// Description:
//
//	Unreadable files and subdirectories are logged and skipped; the build
//	never aborts on a single bad entry. It fails only when a root itself
//	cannot be walked, which is the one condition the batch loop treats as
//	fatal.
//
// Outputs:
//
//	*KnowledgeBase - The read-only snapshot. Non-nil on nil error.
//	error - Non-nil if no roots are configured or a root is unreadable.
func (b *Builder) Build(ctx context.Context) (*KnowledgeBase, error) {
	if len(b.roots) == 0 {
		return nil, ErrNoRoots
	}

	type walkEntry struct {
		path     string
		relPath  string
		category string
	}

	var files []walkEntry
	for _, root := range b.roots {
		rootPath := root.Path
		err := filepath.WalkDir(rootPath, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				// Only the root itself is fatal; an unreadable entry
				// further down is logged and walked around.
				if path == rootPath {
					return err
				}
				b.logger.Warn("skipping unreadable path",
					slog.String("path", path),
					slog.String("error", err.Error()),
				)
				if d != nil && d.IsDir() {
					return fs.SkipDir
				}
				return nil
			}
			if d.IsDir() {
				return nil
			}
			if !sourceExtensions[strings.ToLower(filepath.Ext(path))] {
				return nil
			}
			rel, relErr := filepath.Rel(rootPath, path)
			if relErr != nil {
				rel = path
			}
			files = append(files, walkEntry{path: path, relPath: rel, category: root.Category})
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrRootUnreadable, rootPath, err)
		}
	}

	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	results := make([]fileResult, len(files))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(b.parallelism)

	for i, entry := range files {
		i, entry := i, entry
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			data, err := os.ReadFile(entry.path)
			if err != nil {
				b.logger.Warn("skipping unreadable file",
					slog.String("path", entry.path),
					slog.String("error", err.Error()),
				)
				results[i] = fileResult{path: entry.path, skipped: true}
				return nil
			}
			content := string(data)
			var defs []Definition
			for _, extractor := range b.extractors {
				defs = append(defs, extractor.Extract(entry.relPath, content)...)
			}
			for _, def := range defs {
				loc := def.Location()
				loc.Category = entry.category
				setCategory(def, loc)
			}
			results[i] = fileResult{path: entry.path, defs: defs}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	knowledge := &KnowledgeBase{
		functions: make(map[string]*FunctionSignature),
		structs:   make(map[string]*StructDefinition),
		enums:     make(map[string]*EnumDefinition),
		constants: make(map[string]*ConstantDefinition),
		examples:  make(map[string]*CanonicalExample),
	}

	for _, result := range results {
		if result.skipped {
			knowledge.stats.FilesSkipped++
			continue
		}
		knowledge.stats.FilesAnalyzed++
		for _, def := range result.defs {
			b.merge(knowledge, def)
		}
	}

	b.logger.Info("knowledge base built",
		slog.Int("files_analyzed", knowledge.stats.FilesAnalyzed),
		slog.Int("files_skipped", knowledge.stats.FilesSkipped),
		slog.Int("functions", knowledge.stats.Functions),
		slog.Int("structs", knowledge.stats.Structs),
		slog.Int("enums", knowledge.stats.Enums),
		slog.Int("constants", knowledge.stats.Constants),
		slog.Int("examples", knowledge.stats.Examples),
	)

	return knowledge, nil
}

// merge adds one definition, applying the documented last-write-wins policy
// on duplicates. Overwrites are logged so ambiguity is visible, not guessed
// away.
func (b *Builder) merge(k *KnowledgeBase, def Definition) {
	switch d := def.(type) {
	case *FunctionSignature:
		if prev, ok := k.functions[d.Name]; ok {
			b.logDuplicate(def, prev.Loc)
		} else {
			k.stats.Functions++
		}
		k.functions[d.Name] = d
	case *StructDefinition:
		if prev, ok := k.structs[d.Name]; ok {
			b.logDuplicate(def, prev.Loc)
		} else {
			k.stats.Structs++
		}
		k.structs[d.Name] = d
	case *EnumDefinition:
		if prev, ok := k.enums[d.Name]; ok {
			b.logDuplicate(def, prev.Loc)
		} else {
			k.stats.Enums++
		}
		k.enums[d.Name] = d
	case *ConstantDefinition:
		if prev, ok := k.constants[d.Name]; ok {
			b.logDuplicate(def, prev.Loc)
		} else {
			k.stats.Constants++
		}
		k.constants[d.Name] = d
	case *CanonicalExample:
		if prev, ok := k.examples[d.Name]; ok {
			b.logDuplicate(def, prev.Loc)
		} else {
			k.stats.Examples++
		}
		k.examples[d.Name] = d
	}
}

func (b *Builder) logDuplicate(def Definition, prev SourceLocation) {
	loc := def.Location()
	b.logger.Debug("duplicate definition, last write wins",
		slog.String("kind", string(def.DefKind())),
		slog.String("name", def.DefName()),
		slog.String("kept", fmt.Sprintf("%s:%d", loc.File, loc.Line)),
		slog.String("replaced", fmt.Sprintf("%s:%d", prev.File, prev.Line)),
	)
}

// setCategory stamps the root category onto a mined definition.
func setCategory(def Definition, loc SourceLocation) {
	switch d := def.(type) {
	case *FunctionSignature:
		d.Loc = loc
	case *StructDefinition:
		d.Loc = loc
	case *EnumDefinition:
		d.Loc = loc
	case *ConstantDefinition:
		d.Loc = loc
	case *CanonicalExample:
		d.Loc = loc
	}
}
