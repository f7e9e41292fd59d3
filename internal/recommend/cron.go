// IntelHub - Intelligence Integration and Analysis Hub
// Copyright 2026 OSINTWire
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/osintwire/intelhub

package recommend

import (
	"context"
	"errors"
	"fmt"

	"github.com/robfig/cron/v3"

	"github.com/osintwire/intelhub/internal/logging"
)

// CronService runs scheduled recommendation generations. Implements the
// supervisor's Serve contract.
type CronService struct {
	spec    string
	manager *Manager
}

// NewCronService schedules generations on the given cron spec, e.g.
// "0 * * * *" for the top of every hour.
func NewCronService(spec string, manager *Manager) *CronService {
	if spec == "" {
		spec = "0 * * * *"
	}
	return &CronService{spec: spec, manager: manager}
}

// Serve runs the schedule until ctx is cancelled.
func (s *CronService) Serve(ctx context.Context) error {
	log := logging.With().Str("component", "recommend_cron").Logger()

	c := cron.New()
	_, err := c.AddFunc(s.spec, func() {
		if _, gerr := s.manager.Generate(ctx); gerr != nil {
			if errors.Is(gerr, ErrGenerationRunning) {
				log.Warn().Msg("previous generation still running, skipping")
				return
			}
			log.Error().Err(gerr).Msg("scheduled generation failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid recommendation cron spec %q: %w", s.spec, err)
	}

	c.Start()
	log.Info().Str("spec", s.spec).Msg("recommendation schedule started")
	<-ctx.Done()
	stopCtx := c.Stop()
	<-stopCtx.Done()
	return ctx.Err()
}
