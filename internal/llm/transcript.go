// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package llm

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// writeTranscript records one call as an audit artifact under
// conversation/<kind>/conversation_<unixnano>.txt with system, user, and
// reply blocks.
func (c *Client) writeTranscript(kind, systemPrompt, userMessage, reply string) error {
	if c.cfg.ConversationDir == "" {
		return nil
	}

	dir := filepath.Join(c.cfg.ConversationDir, kind)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create transcript dir: %w", err)
	}

	var sb strings.Builder
	sb.WriteString("=== SYSTEM ===\n")
	sb.WriteString(systemPrompt)
	sb.WriteString("\n\n=== USER ===\n")
	sb.WriteString(userMessage)
	sb.WriteString("\n\n=== REPLY ===\n")
	sb.WriteString(reply)
	sb.WriteString("\n")

	name := fmt.Sprintf("conversation_%d.txt", time.Now().UnixNano())
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(sb.String()), 0o644); err != nil {
		return fmt.Errorf("write transcript: %w", err)
	}
	return nil
}
