// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

// Package fetch provides the content-fetch capability consumed by crawler
// plugins: interchangeable fetchers for syndication feeds and raw pages.
// Feed parsing is bozo-tolerant: a non-fatal parse error is surfaced
// alongside the entries that could still be extracted.
package fetch

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mmcdole/gofeed"
)

// Entry is one fetched content unit: a feed entry or a whole page.
type Entry struct {
	Title     string     `json:"title,omitempty"`
	Link      string     `json:"link,omitempty"`
	Authors   []string   `json:"authors,omitempty"`
	Content   string     `json:"content"`
	Published *time.Time `json:"published,omitempty"`
}

// Result is the outcome of one fetch. Errors holds non-fatal problems
// encountered while extracting entries; a Result can carry both entries
// and errors.
type Result struct {
	Entries []Entry  `json:"entries"`
	Errors  []string `json:"errors,omitempty"`
}

// Options tune a single fetch.
type Options struct {
	Timeout time.Duration
	Proxy   string
}

// Fetcher retrieves content from a URL. Implementations are
// interchangeable; the caller picks by source type.
type Fetcher interface {
	FetchContent(ctx context.Context, url string, opts Options) (*Result, error)
}

// FeedFetcher parses RSS/Atom/JSON feeds with gofeed.
type FeedFetcher struct{}

// NewFeedFetcher creates a feed fetcher.
func NewFeedFetcher() *FeedFetcher { return &FeedFetcher{} }

// FetchContent downloads and parses a feed. A parse error with zero usable
// entries is fatal; with entries present it is reported in Result.Errors.
func (f *FeedFetcher) FetchContent(ctx context.Context, url string, opts Options) (*Result, error) {
	body, err := getBody(ctx, url, opts)
	if err != nil {
		return nil, err
	}

	parser := gofeed.NewParser()
	feed, perr := parser.ParseString(body)
	if feed == nil {
		return nil, fmt.Errorf("parse feed %s: %w", url, perr)
	}

	result := &Result{}
	if perr != nil {
		result.Errors = append(result.Errors, perr.Error())
	}
	for _, item := range feed.Items {
		if item == nil {
			continue
		}
		entry := Entry{
			Title:     item.Title,
			Link:      item.Link,
			Content:   item.Content,
			Published: item.PublishedParsed,
		}
		if entry.Content == "" {
			entry.Content = item.Description
		}
		for _, a := range item.Authors {
			if a != nil && a.Name != "" {
				entry.Authors = append(entry.Authors, a.Name)
			}
		}
		result.Entries = append(result.Entries, entry)
	}
	return result, nil
}

// PageFetcher retrieves a raw page body.
type PageFetcher struct{}

// NewPageFetcher creates a page fetcher.
func NewPageFetcher() *PageFetcher { return &PageFetcher{} }

// FetchContent downloads the page and returns its body as a single entry.
func (p *PageFetcher) FetchContent(ctx context.Context, url string, opts Options) (*Result, error) {
	body, err := getBody(ctx, url, opts)
	if err != nil {
		return nil, err
	}
	return &Result{Entries: []Entry{{Link: url, Content: body}}}, nil
}

// getBody performs the HTTP GET with the per-fetch timeout and optional
// proxy.
func getBody(ctx context.Context, url string, opts Options) (string, error) {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.Proxy != "" {
		client.SetProxy(opts.Proxy)
	}

	resp, err := client.R().SetContext(ctx).Get(url)
	if err != nil {
		return "", fmt.Errorf("fetch %s: %w", url, err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("fetch %s: status %d", url, resp.StatusCode())
	}
	return resp.String(), nil
}
