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
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_CreatesDefaultOnFirstRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeldagen.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)

	// The file now exists and holds the defaults.
	_, err = os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().Generation.Model, cfg.Generation.Model)
	assert.Equal(t, 50, cfg.Generation.TargetAccepted)
	assert.NotEmpty(t, cfg.Sources.Roots)
}

func TestLoad_ReadsExistingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeldagen.yaml")
	content := `sources:
  roots:
    - path: /data/oot/src
      category: core
generation:
  model: gpt-4o
  target_accepted: 5
dataset:
  path: out/train.jsonl
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "gpt-4o", cfg.Generation.Model)
	assert.Equal(t, 5, cfg.Generation.TargetAccepted)
	require.Len(t, cfg.Sources.Roots, 1)
	assert.Equal(t, "core", cfg.Sources.Roots[0].Category)
	// Unset sections keep their defaults.
	assert.Equal(t, 7.0, cfg.Scoring.AuthThreshold)
}

func TestLoad_RejectsInvalidConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeldagen.yaml")
	content := `sources:
  roots: []
generation:
  target_accepted: 0
dataset:
  path: ""
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config field")
}

func TestLoad_RejectsMalformedYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "zeldagen.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{sources: [unclosed"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestConfig_MetadataPath(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, "dataset/train.jsonl.meta.json", cfg.MetadataPath())

	cfg.Dataset.MetadataPath = "custom.json"
	assert.Equal(t, "custom.json", cfg.MetadataPath())
}

func TestDefaultConfig_Validates(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())
}
