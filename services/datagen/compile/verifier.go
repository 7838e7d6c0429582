// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package compile

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"
)

// defaultTimeout bounds a single compiler invocation.
const defaultTimeout = 10 * time.Second

// defaultCompilers are probed in order. The MIPS cross compilers match the
// decompilation's real toolchain; a host compiler is an acceptable stand-in
// for a syntax check.
var defaultCompilers = []string{
	"mips-linux-gnu-gcc",
	"mips64-elf-gcc",
	"gcc",
	"cc",
}

// compilerArgs run a syntax-only pass. gnu89 matches the era of the
// codebase and keeps implicit declarations from fragments that call
// functions outside the stub preamble non-fatal.
var compilerArgs = []string{
	"-x", "c",
	"-std=gnu89",
	"-fsyntax-only",
	"-Wall",
	"-Wno-implicit-function-declaration",
}

// Outcome is the result of one verification attempt.
type Outcome struct {
	// Attempted is false when no compiler is available.
	Attempted bool

	// Success means the fragment passed the syntax check.
	Success bool

	// Compiler is the resolved binary path, empty when not attempted.
	Compiler string

	// Errors and Warnings hold the classified diagnostic lines. A timeout
	// or invocation failure appears here as a synthetic diagnostic.
	Errors   []string
	Warnings []string

	// Duration covers the compiler invocation only.
	Duration time.Duration
}

// Verifier runs candidate fragments through a C compiler.
type Verifier struct {
	compilers []string
	timeout   time.Duration
	logger    *slog.Logger

	resolveOnce sync.Once
	resolved    string
}

// Option configures the Verifier.
type Option func(*Verifier)

// WithCompilers replaces the probed compiler list.
func WithCompilers(compilers []string) Option {
	return func(v *Verifier) {
		if len(compilers) > 0 {
			v.compilers = compilers
		}
	}
}

// WithTimeout bounds each compiler invocation.
func WithTimeout(timeout time.Duration) Option {
	return func(v *Verifier) {
		if timeout > 0 {
			v.timeout = timeout
		}
	}
}

// WithLogger sets the verifier's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(v *Verifier) {
		if logger != nil {
			v.logger = logger
		}
	}
}

// NewVerifier creates a Verifier.
func NewVerifier(opts ...Option) *Verifier {
	v := &Verifier{
		compilers: defaultCompilers,
		timeout:   defaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// Available reports whether a compiler from the probe list is on PATH.
func (v *Verifier) Available() bool {
	return v.compiler() != ""
}

// compiler resolves the probe list once.
func (v *Verifier) compiler() string {
	v.resolveOnce.Do(func() {
		for _, candidate := range v.compilers {
			path, err := exec.LookPath(candidate)
			if err == nil {
				v.resolved = path
				return
			}
		}
		v.logger.Warn("no C compiler found, compile verification disabled",
			slog.String("probed", strings.Join(v.compilers, ", ")),
		)
	})
	return v.resolved
}

// Verify syntax-checks one fragment.
//
// Description:
//
//	Writes the stub preamble plus the fragment to a temporary file, runs
//	the resolved compiler with a timeout, and classifies its diagnostics.
//	Verification is advisory and never returns an error: a missing
//	toolchain, an unwritable temp dir, or a timeout all surface as fields
//	on the outcome.
//
// Outputs:
//
//	*Outcome - Always non-nil.
func (v *Verifier) Verify(ctx context.Context, code string) *Outcome {
	compiler := v.compiler()
	if compiler == "" {
		return &Outcome{
			Warnings: []string{"no C compiler available, verification skipped"},
		}
	}

	outcome := &Outcome{Attempted: true, Compiler: compiler}

	tmp, err := os.CreateTemp("", "zeldagen-*.c")
	if err != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("temp file: %v", err))
		return outcome
	}
	path := tmp.Name()
	defer os.Remove(path)

	_, writeErr := tmp.WriteString(preamble + code + "\n")
	if closeErr := tmp.Close(); writeErr == nil {
		writeErr = closeErr
	}
	if writeErr != nil {
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("temp file: %v", writeErr))
		return outcome
	}

	runCtx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()

	args := append(append([]string{}, compilerArgs...), path)
	cmd := exec.CommandContext(runCtx, compiler, args...)
	var diag bytes.Buffer
	cmd.Stdout = &diag
	cmd.Stderr = &diag

	start := time.Now()
	runErr := cmd.Run()
	outcome.Duration = time.Since(start)

	classifyDiagnostics(diag.String(), outcome)

	switch {
	case runCtx.Err() == context.DeadlineExceeded:
		outcome.Errors = append(outcome.Errors,
			fmt.Sprintf("compiler timed out after %s", v.timeout))
	case runErr != nil && len(outcome.Errors) == 0:
		outcome.Errors = append(outcome.Errors, fmt.Sprintf("compiler: %v", runErr))
	}

	outcome.Success = runErr == nil && runCtx.Err() == nil

	v.logger.Debug("compile verification",
		slog.Bool("success", outcome.Success),
		slog.Int("errors", len(outcome.Errors)),
		slog.Int("warnings", len(outcome.Warnings)),
		slog.Duration("duration", outcome.Duration),
	)

	return outcome
}

// classifyDiagnostics splits compiler output into error and warning lines.
func classifyDiagnostics(output string, outcome *Outcome) {
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.Contains(line, "error:"):
			outcome.Errors = append(outcome.Errors, line)
		case strings.Contains(line, "warning:"):
			outcome.Warnings = append(outcome.Warnings, line)
		}
	}
}
