// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Config is the full zeldagen configuration.
type Config struct {
	// Sources: the reference trees the knowledge base is mined from
	Sources SourcesConfig `yaml:"sources"`

	// Generation: backend model and batch shape
	Generation GenerationConfig `yaml:"generation"`

	// Scoring: acceptance thresholds
	Scoring ScoringConfig `yaml:"scoring"`

	// Dataset: output locations
	Dataset DatasetConfig `yaml:"dataset"`

	// Logging: level and sinks
	Logging LoggingConfig `yaml:"logging"`
}

type SourcesConfig struct {
	Roots []SourceRoot `yaml:"roots" validate:"required,min=1,dive"`
}

type SourceRoot struct {
	Path     string `yaml:"path" validate:"required"`
	Category string `yaml:"category" validate:"required"` // e.g. overlay, core
}

type GenerationConfig struct {
	Model          string  `yaml:"model"`                           // e.g. gpt-4o-mini
	TargetAccepted int     `yaml:"target_accepted" validate:"gt=0"` // examples per batch
	MaxAttempts    int     `yaml:"max_attempts" validate:"gte=0"`   // 0 = 10x target
	DelayMs        int     `yaml:"delay_ms" validate:"gte=0"`       // spacing between attempts
	Temperature    float32 `yaml:"temperature" validate:"gte=0,lte=2"`
	MaxTokens      int     `yaml:"max_tokens" validate:"gte=0"`
	Verify         bool    `yaml:"verify"` // run the C compiler check

	// Compiler overrides the probe list with one binary; empty keeps the
	// cross-then-host default.
	Compiler         string `yaml:"compiler"`
	CompileTimeoutMs int    `yaml:"compile_timeout_ms" validate:"gte=0"`
}

type ScoringConfig struct {
	AuthThreshold   float64 `yaml:"auth_threshold" validate:"gte=0,lte=10"`
	QualThreshold   float64 `yaml:"qual_threshold" validate:"gte=0,lte=10"`
	MinOutputLength int     `yaml:"min_output_length" validate:"gte=0"`
}

type DatasetConfig struct {
	Path         string `yaml:"path" validate:"required"` // JSONL output
	MetadataPath string `yaml:"metadata_path"`            // defaults to <path>.meta.json
}

type LoggingConfig struct {
	Level string `yaml:"level" validate:"omitempty,oneof=debug info warn error"`
	Dir   string `yaml:"dir"`
	JSON  bool   `yaml:"json"`
}

// DefaultConfig returns the config written on first run.
func DefaultConfig() Config {
	return Config{
		Sources: SourcesConfig{
			Roots: []SourceRoot{
				{Path: "oot/src/overlays/actors", Category: "overlay"},
				{Path: "oot/src/code", Category: "core"},
				{Path: "oot/include", Category: "header"},
			},
		},
		Generation: GenerationConfig{
			Model:          "gpt-4o-mini",
			TargetAccepted: 50,
			DelayMs:        500,
			Temperature:    0.8,
			MaxTokens:      1200,
			Verify:         true,
		},
		Scoring: ScoringConfig{
			AuthThreshold:   7.0,
			QualThreshold:   6.0,
			MinOutputLength: 50,
		},
		Dataset: DatasetConfig{
			Path: "dataset/train.jsonl",
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Validate checks the struct tags and returns the first problem in plain
// terms.
func (c *Config) Validate() error {
	err := validator.New().Struct(c)
	if err == nil {
		return nil
	}
	if errs, ok := err.(validator.ValidationErrors); ok && len(errs) > 0 {
		first := errs[0]
		return fmt.Errorf("config field %s failed the %s check", first.Namespace(), first.Tag())
	}
	return fmt.Errorf("config validation: %w", err)
}

// MetadataPath returns the sidecar path, derived from the dataset path when
// not set explicitly.
func (c *Config) MetadataPath() string {
	if c.Dataset.MetadataPath != "" {
		return c.Dataset.MetadataPath
	}
	return c.Dataset.Path + ".meta.json"
}
