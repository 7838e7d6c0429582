// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/zelda-datagen/services/datagen/compile"
	"github.com/AleutianAI/zelda-datagen/services/datagen/dataset"
	"github.com/AleutianAI/zelda-datagen/services/datagen/extract"
	"github.com/AleutianAI/zelda-datagen/services/datagen/llm"
	"github.com/AleutianAI/zelda-datagen/services/datagen/score"
	"github.com/AleutianAI/zelda-datagen/services/datagen/validate"
)

// BatchConfig controls one batch run.
type BatchConfig struct {
	// TargetAccepted stops the batch once this many examples are written.
	TargetAccepted int

	// MaxAttempts bounds the batch regardless of acceptance rate. Zero
	// means ten attempts per target example.
	MaxAttempts int

	// Delay is the minimum spacing between generation attempts.
	Delay time.Duration

	// Temperature and MaxTokens are passed to the backend when non-zero.
	Temperature float32
	MaxTokens   int

	// Seeds cycle in order across attempts. Empty means DefaultSeeds.
	Seeds []Seed

	// Policy holds the scoring weights. Zero value means DefaultPolicy.
	Policy score.Policy
}

// DefaultBatchConfig returns the production batch settings.
func DefaultBatchConfig() BatchConfig {
	return BatchConfig{
		TargetAccepted: 50,
		Delay:          500 * time.Millisecond,
		Temperature:    0.8,
		MaxTokens:      1200,
		Seeds:          DefaultSeeds(),
		Policy:         score.DefaultPolicy(),
	}
}

// Result describes one attempt for progress reporting. Example is nil when
// no fragment was recovered.
type Result struct {
	Attempt      int
	Seed         Seed
	Accepted     bool
	Method       extract.Method
	Authenticity float64
	Quality      float64
	Reasons      []string
	Example      *score.ScoredExample
}

// Runner executes batches against a generation backend.
type Runner struct {
	client    llm.LLMClient
	extractor *extract.Extractor
	validator *validate.Validator
	verifier  *compile.Verifier
	scorer    *score.Scorer
	writer    *dataset.Writer
	prompts   *PromptBuilder
	limiter   *rate.Limiter
	logger    *slog.Logger
	onResult  func(Result)
	cfg       BatchConfig
}

// RunnerOption configures the Runner.
type RunnerOption func(*Runner)

// WithVerifier enables compile verification of corrected fragments.
func WithVerifier(verifier *compile.Verifier) RunnerOption {
	return func(r *Runner) {
		r.verifier = verifier
	}
}

// WithPromptBuilder replaces the default prompt builder.
func WithPromptBuilder(prompts *PromptBuilder) RunnerOption {
	return func(r *Runner) {
		if prompts != nil {
			r.prompts = prompts
		}
	}
}

// WithLogger sets the runner's logger.
func WithLogger(logger *slog.Logger) RunnerOption {
	return func(r *Runner) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithOnResult registers a per-attempt progress callback.
func WithOnResult(fn func(Result)) RunnerOption {
	return func(r *Runner) {
		r.onResult = fn
	}
}

// NewRunner wires the pipeline stages for one backend and dataset file.
// The lookup is usually a *kb.KnowledgeBase; nil disables cross-referencing.
func NewRunner(client llm.LLMClient, lookup validate.FunctionLookup, writer *dataset.Writer, cfg BatchConfig, opts ...RunnerOption) *Runner {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = cfg.TargetAccepted * 10
	}
	if len(cfg.Seeds) == 0 {
		cfg.Seeds = DefaultSeeds()
	}
	if cfg.Policy == (score.Policy{}) {
		cfg.Policy = score.DefaultPolicy()
	}

	limiter := rate.NewLimiter(rate.Inf, 1)
	if cfg.Delay > 0 {
		limiter = rate.NewLimiter(rate.Every(cfg.Delay), 1)
	}

	r := &Runner{
		client:    client,
		extractor: extract.New(),
		validator: validate.New(lookup),
		scorer:    score.NewScorer(cfg.Policy),
		writer:    writer,
		prompts:   NewPromptBuilder(nil),
		limiter:   limiter,
		logger:    slog.Default(),
		cfg:       cfg,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes one batch.
//
// Description:
//
//	Cycles seeds until the acceptance target or the attempt ceiling is
//	reached. A failed generation, an unextractable response, or a gated
//	fragment is a rejected attempt, never a batch failure; only context
//	cancellation aborts the loop. The returned metadata reflects whatever
//	was completed either way.
//
// Outputs:
//
//	*dataset.BatchMetadata - Counters and averages for the batch. Non-nil.
//	error - Non-nil only when the context was cancelled.
func (r *Runner) Run(ctx context.Context) (*dataset.BatchMetadata, error) {
	state := NewBatchState()
	r.logger.Info("batch started",
		slog.String("batch_id", state.BatchID()),
		slog.Int("target", r.cfg.TargetAccepted),
		slog.Int("max_attempts", r.cfg.MaxAttempts),
		slog.String("model", r.client.Model()),
	)

	for state.Accepted() < r.cfg.TargetAccepted && state.Attempted() < r.cfg.MaxAttempts {
		if err := r.limiter.Wait(ctx); err != nil {
			return state.Metadata(r.client.Model(), r.writer.Path()), err
		}

		seed := r.cfg.Seeds[state.Attempted()%len(r.cfg.Seeds)]
		state.RecordAttempt()

		result := r.attempt(ctx, seed, state)
		result.Attempt = state.Attempted()
		if r.onResult != nil {
			r.onResult(result)
		}

		if ctx.Err() != nil {
			return state.Metadata(r.client.Model(), r.writer.Path()), ctx.Err()
		}
	}

	meta := state.Metadata(r.client.Model(), r.writer.Path())
	r.logger.Info("batch finished",
		slog.String("batch_id", meta.BatchID),
		slog.Int("attempted", meta.Attempted),
		slog.Int("accepted", meta.Accepted),
		slog.Int("rejected", meta.Rejected),
		slog.Float64("avg_authenticity", meta.AvgAuthenticity),
		slog.Float64("avg_quality", meta.AvgQuality),
	)
	return meta, nil
}

// attempt runs one generation through the full pipeline.
func (r *Runner) attempt(ctx context.Context, seed Seed, state *BatchState) Result {
	result := Result{Seed: seed}

	params := llm.GenerationParams{}
	if r.cfg.Temperature > 0 {
		temp := r.cfg.Temperature
		params.Temperature = &temp
	}
	if r.cfg.MaxTokens > 0 {
		maxTokens := r.cfg.MaxTokens
		params.MaxTokens = &maxTokens
	}

	raw, err := r.client.Generate(ctx, r.prompts.Build(seed), params)
	if err != nil {
		state.RecordReject()
		result.Reasons = []string{"generation failed"}
		r.logger.Warn("generation failed", slog.String("error", err.Error()))
		return result
	}

	frag, ok := r.extractor.Extract(raw)
	if !ok {
		state.RecordReject()
		result.Reasons = []string{"no fragment recovered"}
		return result
	}
	result.Method = frag.Method

	report := r.validator.Validate(frag.Instruction, frag.Output)
	frag.Output = report.Corrected

	var outcome *compile.Outcome
	if r.verifier != nil {
		outcome = r.verifier.Verify(ctx, frag.Output)
	}

	result.Authenticity = r.scorer.Authenticity(report, outcome)
	quality := r.scorer.Quality(frag) + state.DiversityBonus(frag.Instruction, seed.Category, seed.ExampleType)
	if quality > 10 {
		quality = 10
	}
	result.Quality = quality

	decision := r.scorer.Gate(result.Authenticity, result.Quality, len(frag.Output))
	result.Reasons = decision.Reasons
	result.Example = &score.ScoredExample{
		ID:           uuid.NewString(),
		Fragment:     frag,
		Findings:     report.Findings,
		Compilation:  outcome,
		Authenticity: result.Authenticity,
		Quality:      result.Quality,
		Accepted:     decision.Accepted,
		Category:     seed.Category,
		ExampleType:  seed.ExampleType,
	}
	if !decision.Accepted {
		state.RecordReject()
		r.logger.Debug("fragment rejected",
			slog.String("method", string(frag.Method)),
			slog.Float64("authenticity", result.Authenticity),
			slog.Float64("quality", result.Quality),
		)
		return result
	}

	record := dataset.Record{
		Instruction: frag.Instruction,
		Input:       frag.Input,
		Output:      frag.Output,
	}
	if err := r.writer.Append(record); err != nil {
		state.RecordReject()
		result.Example.Accepted = false
		result.Reasons = []string{"dataset write failed"}
		r.logger.Error("dataset write failed", slog.String("error", err.Error()))
		return result
	}

	state.RecordAccept(seed.Category, seed.ExampleType, result.Authenticity, result.Quality)
	result.Accepted = true
	return result
}
