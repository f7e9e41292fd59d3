// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package llm

import (
	"errors"
	"regexp"
	"strings"
)

// ErrNoJSON is returned when no JSON object can be located in a reply.
var ErrNoJSON = errors.New("no json object in model reply")

var thinkRe = regexp.MustCompile(`(?s)<think>.*?</think>`)

// ExtractJSON pulls the JSON object out of a model reply: reasoning
// segments in <think> tags are stripped, surrounding markdown code fences
// removed, and the outermost {...} span returned.
func ExtractJSON(reply string) ([]byte, error) {
	s := thinkRe.ReplaceAllString(reply, "")
	s = stripFences(s)

	start := strings.Index(s, "{")
	end := strings.LastIndex(s, "}")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	return []byte(s[start : end+1]), nil
}

// ExtractJSONArray is ExtractJSON for [...] replies, used by the
// recommendation selection prompt.
func ExtractJSONArray(reply string) ([]byte, error) {
	s := thinkRe.ReplaceAllString(reply, "")
	s = stripFences(s)

	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end < start {
		return nil, ErrNoJSON
	}
	return []byte(s[start : end+1]), nil
}

// stripFences removes markdown code fences, tolerating a language tag on
// the opening fence.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	if idx := strings.Index(s, "\n"); idx >= 0 {
		s = s[idx+1:]
	} else {
		s = strings.TrimPrefix(s, "```")
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
