package sts

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"iamcore/internal/domain"
)

// Maintenance defaults. The rotate horizon exceeds the rotate interval so a
// missed run never leaves a role without a valid key, and the sweep grace
// covers the longest session a key could still have outstanding.
const (
	DefaultRotateSchedule = "@every 1h"
	DefaultSweepSchedule  = "@every 6h"
	DefaultRotateHorizon  = 3 * time.Hour
	DefaultSweepGrace     = domain.MaxMaxSessionDuration * time.Second
)

// MaintenanceConfig carries the schedules for background key upkeep.
// Zero values select the defaults.
type MaintenanceConfig struct {
	RotateSchedule string
	SweepSchedule  string
	RotateHorizon  time.Duration
	SweepGrace     time.Duration
}

// Maintenance runs proactive token-key rotation and the history sweep on
// cron schedules.
type Maintenance struct {
	cron   *cron.Cron
	svc    *TokenService
	logger *slog.Logger
	cfg    MaintenanceConfig
}

// NewMaintenance creates the maintenance runner for a token service.
func NewMaintenance(svc *TokenService, logger *slog.Logger, cfg MaintenanceConfig) *Maintenance {
	if cfg.RotateSchedule == "" {
		cfg.RotateSchedule = DefaultRotateSchedule
	}
	if cfg.SweepSchedule == "" {
		cfg.SweepSchedule = DefaultSweepSchedule
	}
	if cfg.RotateHorizon <= 0 {
		cfg.RotateHorizon = DefaultRotateHorizon
	}
	if cfg.SweepGrace <= 0 {
		cfg.SweepGrace = DefaultSweepGrace
	}
	return &Maintenance{
		cron:   cron.New(),
		svc:    svc,
		logger: logger,
		cfg:    cfg,
	}
}

// Start registers the jobs and starts the scheduler.
func (m *Maintenance) Start() error {
	if _, err := m.cron.AddFunc(m.cfg.RotateSchedule, m.rotate); err != nil {
		return domain.ErrValidation("invalid rotate schedule %q: %v", m.cfg.RotateSchedule, err)
	}
	if _, err := m.cron.AddFunc(m.cfg.SweepSchedule, m.sweep); err != nil {
		return domain.ErrValidation("invalid sweep schedule %q: %v", m.cfg.SweepSchedule, err)
	}
	m.cron.Start()
	m.logger.Info("token key maintenance started",
		"rotate_schedule", m.cfg.RotateSchedule,
		"sweep_schedule", m.cfg.SweepSchedule,
	)
	return nil
}

// Stop gracefully stops the scheduler.
func (m *Maintenance) Stop() {
	m.cron.Stop()
	m.logger.Info("token key maintenance stopped")
}

func (m *Maintenance) rotate() {
	ctx := context.Background()
	n, err := m.svc.RotateExpiring(ctx, m.cfg.RotateHorizon)
	if err != nil {
		m.logger.Error("token key rotation pass failed", "error", err)
		return
	}
	if n > 0 {
		m.logger.Info("rotated token keys", "count", n)
	}
}

func (m *Maintenance) sweep() {
	ctx := context.Background()
	n, err := m.svc.SweepExpiredKeys(ctx, m.cfg.SweepGrace)
	if err != nil {
		m.logger.Error("token key sweep failed", "error", err)
		return
	}
	if n > 0 {
		m.logger.Info("swept expired token keys", "count", n)
	}
}
