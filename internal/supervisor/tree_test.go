// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package supervisor

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/osintwire/intelhub/internal/logging"
)

type countingService struct {
	starts atomic.Int32
}

func (s *countingService) Serve(ctx context.Context) error {
	s.starts.Add(1)
	<-ctx.Done()
	return ctx.Err()
}

func TestTreeServesAndStops(t *testing.T) {
	tree := NewTree(logging.NewSlogLogger(), TreeConfig{ShutdownTimeout: time.Second})

	svc := &countingService{}
	tree.AddPipelineService(svc)
	tree.AddAPIService(&countingService{})

	ctx, cancel := context.WithCancel(context.Background())
	errCh := tree.ServeBackground(ctx)

	deadline := time.After(2 * time.Second)
	for svc.starts.Load() == 0 {
		select {
		case <-deadline:
			t.Fatal("service never started")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	select {
	case <-errCh:
	case <-time.After(3 * time.Second):
		t.Fatal("tree did not stop")
	}
}
