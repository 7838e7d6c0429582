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
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// BatchMetadata is the sidecar record describing how a dataset file was
// produced. It carries the rule and preamble versions so a batch can be
// audited after the tables change.
type BatchMetadata struct {
	BatchID         string         `json:"batch_id"`
	CreatedAt       time.Time      `json:"created_at"`
	Duration        string         `json:"duration"`
	Model           string         `json:"model"`
	RuleVersion     string         `json:"rule_version"`
	PreambleVersion string         `json:"preamble_version"`
	DatasetPath     string         `json:"dataset_path"`
	Attempted       int            `json:"attempted"`
	Accepted        int            `json:"accepted"`
	Rejected        int            `json:"rejected"`
	ByCategory      map[string]int `json:"by_category,omitempty"`
	ByType          map[string]int `json:"by_type,omitempty"`
	AvgAuthenticity float64        `json:"avg_authenticity"`
	AvgQuality      float64        `json:"avg_quality"`
}

// WriteMetadata writes the sidecar as indented JSON, replacing any previous
// sidecar for the batch.
func WriteMetadata(path string, meta *BatchMetadata) error {
	data, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling batch metadata: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("writing batch metadata: %w", err)
	}
	return nil
}
