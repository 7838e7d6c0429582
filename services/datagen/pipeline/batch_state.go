// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package pipeline drives the generate, extract, validate, score, and
// assemble loop for one batch.
package pipeline

import (
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/AleutianAI/zelda-datagen/services/datagen/compile"
	"github.com/AleutianAI/zelda-datagen/services/datagen/dataset"
	"github.com/AleutianAI/zelda-datagen/services/datagen/validate"
)

// diversityBonus is added to quality once per under-represented bucket: a
// novel instruction, a starved category, a starved example type. Buckets at
// or above the batch mean get nothing; the bonus never subtracts, so a batch
// of duplicates is merely ungated, not punished.
const diversityBonus = 0.5

// BatchState tracks one batch run. All counters live here rather than in
// package globals, so concurrent batches in one process stay independent.
type BatchState struct {
	mu sync.Mutex

	batchID   string
	startedAt time.Time

	attempted int
	accepted  int
	rejected  int

	byCategory map[string]int
	byType     map[string]int

	seenInstructions map[string]bool

	authSum float64
	qualSum float64
}

// NewBatchState creates a fresh batch with a unique id.
func NewBatchState() *BatchState {
	return &BatchState{
		batchID:          uuid.NewString(),
		startedAt:        time.Now().UTC(),
		byCategory:       map[string]int{},
		byType:           map[string]int{},
		seenInstructions: map[string]bool{},
	}
}

// BatchID returns the batch's unique id.
func (s *BatchState) BatchID() string {
	return s.batchID
}

// RecordAttempt counts one generation attempt.
func (s *BatchState) RecordAttempt() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempted++
}

// RecordAccept counts an accepted example and folds its scores into the
// batch averages.
func (s *BatchState) RecordAccept(category, exampleType string, authenticity, quality float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.accepted++
	if category != "" {
		s.byCategory[category]++
	}
	if exampleType != "" {
		s.byType[exampleType]++
	}
	s.authSum += authenticity
	s.qualSum += quality
}

// RecordReject counts a rejected attempt.
func (s *BatchState) RecordReject() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rejected++
}

// Attempted returns the attempt count so far.
func (s *BatchState) Attempted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempted
}

// Accepted returns the accepted count so far.
func (s *BatchState) Accepted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.accepted
}

// Rejected returns the rejected count so far.
func (s *BatchState) Rejected() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rejected
}

// DiversityBonus returns the quality bonus for one attempt and marks the
// instruction seen. Each component is additive-only: a first-seen
// instruction, a category below the batch's accepted mean, and an example
// type below the mean each add diversityBonus.
func (s *BatchState) DiversityBonus(instruction, category, exampleType string) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	var bonus float64
	key := strings.ToLower(strings.TrimSpace(instruction))
	if key != "" && !s.seenInstructions[key] {
		s.seenInstructions[key] = true
		bonus += diversityBonus
	}
	if underRepresented(s.byCategory, category) {
		bonus += diversityBonus
	}
	if underRepresented(s.byType, exampleType) {
		bonus += diversityBonus
	}
	return bonus
}

// underRepresented reports whether the bucket sits below the mean of the
// buckets accepted so far. A label with no accepts counts as zero, so a
// starved bucket earns the bonus as soon as any other label pulls ahead.
func underRepresented(counts map[string]int, label string) bool {
	if label == "" || len(counts) == 0 {
		return false
	}
	total := 0
	for _, n := range counts {
		total += n
	}
	mean := float64(total) / float64(len(counts))
	return float64(counts[label]) < mean
}

// Metadata snapshots the batch into a dataset sidecar record.
func (s *BatchState) Metadata(model, datasetPath string) *dataset.BatchMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta := &dataset.BatchMetadata{
		BatchID:         s.batchID,
		CreatedAt:       s.startedAt,
		Duration:        time.Since(s.startedAt).Round(time.Millisecond).String(),
		Model:           model,
		RuleVersion:     validate.RuleVersion,
		PreambleVersion: compile.PreambleVersion,
		DatasetPath:     datasetPath,
		Attempted:       s.attempted,
		Accepted:        s.accepted,
		Rejected:        s.rejected,
		ByCategory:      map[string]int{},
		ByType:          map[string]int{},
	}
	for k, v := range s.byCategory {
		meta.ByCategory[k] = v
	}
	for k, v := range s.byType {
		meta.ByType[k] = v
	}
	if s.accepted > 0 {
		meta.AvgAuthenticity = s.authSum / float64(s.accepted)
		meta.AvgQuality = s.qualSum / float64(s.accepted)
	}
	return meta
}
