// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package rss publishes archived items as an RSS 2.0 feed: a bounded FIFO
// of recent items with a revision counter and a cached XML rendering that
// is regenerated only when the feed has changed.
package rss

import (
	"encoding/xml"
	"fmt"
	"sync"
	"time"

	"github.com/osintwire/intelhub/internal/metrics"
)

// Item is one feed entry.
type Item struct {
	Title       string
	Link        string
	Description string
	GUID        string
	PubDate     time.Time
}

// Publisher holds the bounded feed. Thread-safe under a single mutex.
type Publisher struct {
	mu       sync.Mutex
	maxItems int
	items    []Item // newest first

	revision    uint64
	cachedXML   []byte
	cachedAtRev uint64
}

// New creates a publisher capped at maxItems entries.
func New(maxItems int) *Publisher {
	if maxItems <= 0 {
		maxItems = 50
	}
	return &Publisher{maxItems: maxItems}
}

// AddItem prepends an item, evicting the oldest beyond the cap, and bumps
// the revision so the next feed generation re-renders.
func (p *Publisher) AddItem(item Item) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.items = append([]Item{item}, p.items...)
	if len(p.items) > p.maxItems {
		p.items = p.items[:p.maxItems]
	}
	p.revision++
	metrics.RSSRevision.Set(float64(p.revision))
}

// Len returns the current item count.
func (p *Publisher) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.items)
}

// Revision returns the current revision counter.
func (p *Publisher) Revision() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.revision
}

// rss 2.0 document shapes
type xmlRSS struct {
	XMLName xml.Name   `xml:"rss"`
	Version string     `xml:"version,attr"`
	Channel xmlChannel `xml:"channel"`
}

type xmlChannel struct {
	Title         string    `xml:"title"`
	Link          string    `xml:"link"`
	Description   string    `xml:"description"`
	LastBuildDate string    `xml:"lastBuildDate,omitempty"`
	Items         []xmlItem `xml:"item"`
}

type xmlItem struct {
	Title       string  `xml:"title"`
	Link        string  `xml:"link"`
	Description string  `xml:"description"`
	GUID        xmlGUID `xml:"guid"`
	PubDate     string  `xml:"pubDate,omitempty"`
}

type xmlGUID struct {
	IsPermaLink bool   `xml:"isPermaLink,attr"`
	Value       string `xml:",chardata"`
}

// GenerateFeed returns the RSS 2.0 XML for the current feed state. The
// rendering is cached by revision: two calls with no intervening mutation
// return byte-identical output without re-rendering.
func (p *Publisher) GenerateFeed(channelTitle, channelLink, channelDesc string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.cachedXML != nil && p.cachedAtRev == p.revision {
		return p.cachedXML, nil
	}

	doc := xmlRSS{
		Version: "2.0",
		Channel: xmlChannel{
			Title:       channelTitle,
			Link:        channelLink,
			Description: channelDesc,
			Items:       make([]xmlItem, len(p.items)),
		},
	}
	if len(p.items) > 0 {
		doc.Channel.LastBuildDate = p.items[0].PubDate.UTC().Format(time.RFC1123Z)
	}
	for i, it := range p.items {
		doc.Channel.Items[i] = xmlItem{
			Title:       it.Title,
			Link:        it.Link,
			Description: it.Description,
			GUID:        xmlGUID{IsPermaLink: false, Value: it.GUID},
			PubDate:     it.PubDate.UTC().Format(time.RFC1123Z),
		}
	}

	body, err := xml.Marshal(&doc)
	if err != nil {
		return nil, fmt.Errorf("render rss feed: %w", err)
	}
	p.cachedXML = append([]byte(xml.Header), body...)
	p.cachedAtRev = p.revision
	return p.cachedXML, nil
}
