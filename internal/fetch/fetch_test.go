// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

const sampleFeed = `<?xml version="1.0"?>
<rss version="2.0">
  <channel>
    <title>Wire</title>
    <item>
      <title>First story</title>
      <link>http://host/1</link>
      <description>brief one</description>
      <pubDate>Mon, 02 Mar 2026 08:00:00 +0000</pubDate>
    </item>
    <item>
      <title>Second story</title>
      <link>http://host/2</link>
      <description>brief two</description>
    </item>
  </channel>
</rss>`

func serve(t *testing.T, body string, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestFeedFetcher(t *testing.T) {
	srv := serve(t, sampleFeed, http.StatusOK)

	res, err := NewFeedFetcher().FetchContent(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(res.Entries))
	}
	if res.Entries[0].Title != "First story" || res.Entries[0].Content != "brief one" {
		t.Errorf("unexpected entry %+v", res.Entries[0])
	}
	if res.Entries[0].Published == nil {
		t.Error("expected parsed pub date")
	}
	if len(res.Errors) != 0 {
		t.Errorf("unexpected non-fatal errors %v", res.Errors)
	}
}

func TestFeedFetcher_Garbage(t *testing.T) {
	srv := serve(t, "this is not a feed", http.StatusOK)
	if _, err := NewFeedFetcher().FetchContent(context.Background(), srv.URL, Options{}); err == nil {
		t.Fatal("expected error for unparseable body")
	}
}

func TestFeedFetcher_HTTPError(t *testing.T) {
	srv := serve(t, "gone", http.StatusNotFound)
	if _, err := NewFeedFetcher().FetchContent(context.Background(), srv.URL, Options{}); err == nil {
		t.Fatal("expected error for http failure")
	}
}

func TestPageFetcher(t *testing.T) {
	srv := serve(t, "<html>page body</html>", http.StatusOK)

	res, err := NewPageFetcher().FetchContent(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if len(res.Entries) != 1 || res.Entries[0].Content != "<html>page body</html>" {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Entries[0].Link != srv.URL {
		t.Errorf("expected link to echo the url, got %q", res.Entries[0].Link)
	}
}
