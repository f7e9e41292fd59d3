// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package models

import (
	"time"
)

// Crawl status codes. Values 0-9 are reserved for system use; user-defined
// statuses begin at 10.
const (
	CrawlNotExist = 0
	CrawlUnknown  = 1
	CrawlDBError  = 2

	CrawlError   = 10
	CrawlSuccess = 100
	CrawlIgnored = 110
)

// CrawlRecord is the per-URL durable status row used by upstream crawlers
// to avoid duplicate work.
type CrawlRecord struct {
	URL         string    `json:"url"`
	Status      int       `json:"status"`
	ErrorCount  int       `json:"error_count"`
	Extra       string    `json:"extra,omitempty"`
	CreatedTime time.Time `json:"created_time"`
	UpdatedTime time.Time `json:"updated_time"`
}
