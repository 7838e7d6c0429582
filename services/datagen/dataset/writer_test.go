// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package dataset

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriter_AppendAndCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "train.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Append(Record{
		Instruction: "Write the init function.",
		Output:      "void EnTest_Init(Actor* thisx, PlayState* play) {\n}",
	}))
	require.NoError(t, w.Append(Record{
		Instruction: "Write the update function.",
		Input:       "typedef struct EnTest { Actor actor; } EnTest;",
		Output:      "void EnTest_Update(Actor* thisx, PlayState* play) {\n}",
	}))
	assert.Equal(t, 2, w.Count())
	require.NoError(t, w.Close())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var rec Record
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &rec))
		records = append(records, rec)
	}
	require.NoError(t, scanner.Err())

	require.Len(t, records, 2)
	assert.Equal(t, "Write the init function.", records[0].Instruction)
	assert.Empty(t, records[0].Input)
	assert.Contains(t, records[1].Input, "typedef struct EnTest")
}

func TestWriter_OmitsEmptyInput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Append(Record{Instruction: "i", Output: "o"}))
	require.NoError(t, w.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), `"input"`)
}

func TestWriter_AppendsAcrossReopens(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.jsonl")

	first, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, first.Append(Record{Instruction: "a", Output: "1"}))
	require.NoError(t, first.Close())

	second, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, second.Append(Record{Instruction: "b", Output: "2"}))
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	assert.Len(t, lines, 2)
}

func TestWriter_AppendAfterClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.jsonl")

	w, err := NewWriter(path)
	require.NoError(t, err)
	require.NoError(t, w.Close())
	require.NoError(t, w.Close())

	assert.Error(t, w.Append(Record{Instruction: "i", Output: "o"}))
}

func TestWriteMetadata(t *testing.T) {
	path := filepath.Join(t.TempDir(), "train.meta.json")
	meta := &BatchMetadata{
		BatchID:         "9f2c7c4e-0000-0000-0000-000000000000",
		CreatedAt:       time.Date(2026, 8, 23, 12, 0, 0, 0, time.UTC),
		Duration:        "42.5s",
		Model:           "gpt-4o-mini",
		RuleVersion:     "1.2.0",
		PreambleVersion: "1.0.2",
		DatasetPath:     "train.jsonl",
		Attempted:       10,
		Accepted:        7,
		Rejected:        3,
		ByCategory:      map[string]int{"enemy": 4, "npc": 3},
		AvgAuthenticity: 8.4,
		AvgQuality:      7.1,
	}

	require.NoError(t, WriteMetadata(path, meta))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got BatchMetadata
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, meta.Accepted, got.Accepted)
	assert.Equal(t, meta.ByCategory, got.ByCategory)
	assert.Equal(t, "42.5s", got.Duration)
	assert.True(t, meta.CreatedAt.Equal(got.CreatedAt))
}
