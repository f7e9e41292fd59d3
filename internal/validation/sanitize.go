// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package validation

import (
	"fmt"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/osintwire/intelhub/internal/models"
)

// SanitizeCollected decodes a raw submission body into a canonical
// CollectedItem. Unknown fields are dropped by the struct decode, a missing
// or empty UUID is filled with a freshly generated identifier, and nil
// slices are normalized. The result is schema-checked before return.
//
// Sanitization is idempotent: sanitizing an already-valid record returns an
// equal record.
func SanitizeCollected(body []byte) (*models.CollectedItem, error) {
	var item models.CollectedItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("malformed collected submission: %w", err)
	}

	if item.UUID == "" {
		item.UUID = uuid.New().String()
	}
	if item.Authors == nil {
		item.Authors = []string{}
	}

	if err := Struct(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SanitizeProcessedWithUUID decodes a processed-record body while forcing
// the record's UUID to the given value. The analysis model may echo a wrong
// or missing UUID; the collected identity always wins.
func SanitizeProcessedWithUUID(body []byte, uuid string) (*models.ProcessedItem, error) {
	var item models.ProcessedItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("malformed processed record: %w", err)
	}
	item.UUID = uuid

	if err := Struct(&item); err != nil {
		return nil, err
	}
	return &item, nil
}

// SanitizeProcessed decodes a raw processed-record body into a canonical
// ProcessedItem. Unlike collected submissions the UUID must already be
// present: it ties the record back to its originating collected item.
func SanitizeProcessed(body []byte) (*models.ProcessedItem, error) {
	var item models.ProcessedItem
	if err := json.Unmarshal(body, &item); err != nil {
		return nil, fmt.Errorf("malformed processed submission: %w", err)
	}

	if err := Struct(&item); err != nil {
		return nil, err
	}
	return &item, nil
}
