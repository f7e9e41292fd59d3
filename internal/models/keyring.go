// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package models

import (
	"time"
)

// KeyStatus is the lifecycle state of an LLM API key.
type KeyStatus string

const (
	// KeyUnknown is the state of a key that has never been balance-checked.
	KeyUnknown KeyStatus = "unknown"
	// KeyValid is a key whose last balance check succeeded above threshold.
	KeyValid KeyStatus = "valid"
	// KeyError is a key whose last balance check failed; retried later.
	KeyError KeyStatus = "error"
	// KeyDisabled is terminal: the key's balance crossed below threshold.
	KeyDisabled KeyStatus = "disabled"
)

// KeyRecord tracks one LLM credential in the rotation pool.
type KeyRecord struct {
	Key      string    `json:"key"`
	Balance  float64   `json:"balance"`
	LastUsed time.Time `json:"last_used,omitempty"`
	Status   KeyStatus `json:"status"`
}

// KeyringStatus is the rotator's observable state snapshot.
type KeyringStatus struct {
	Running     bool    `json:"running"`
	CurrentKey  string  `json:"current_key"`
	Balance     float64 `json:"balance"`
	UsableCount int     `json:"usable_count"`
	TotalCount  int     `json:"total_count"`
	Threshold   float64 `json:"threshold"`
}
