// Package app wires the daemon components together and owns their
// lifecycle: local store, poll loop, maintenance job and HTTP server.
package app

import (
	"context"
	"fmt"
	"time"

	"leadsync/internal/maintenance"
	"leadsync/pkg/actions"
	"leadsync/pkg/api"
	"leadsync/pkg/banner"
	"leadsync/pkg/config"
	"leadsync/pkg/gateway"
	"leadsync/pkg/logger"
	"leadsync/pkg/stats"
	"leadsync/pkg/store"
	"leadsync/pkg/syncer"
)

// App encapsulates the daemon components and lifecycle.
type App struct {
	eff     config.EffectiveConfigResult
	version string

	gw   *gateway.Client
	sync *syncer.Syncer
	acts *actions.Service
}

// New validates the effective config and initializes everything that
// does not need a running context. Call Run to start the loops and
// block until shutdown.
func New(eff config.EffectiveConfigResult, version string) (*App, error) {
	if err := validateConfig(eff); err != nil {
		return nil, err
	}
	cfg := eff.Config

	if err := store.Open(eff.DBPath); err != nil {
		return nil, fmt.Errorf("failed to open pebble at %s: %w", eff.DBPath, err)
	}

	webhook := eff.Webhook
	if webhook == "" {
		webhook = cfg.Backend.URL
	}
	gw := gateway.New(webhook, time.Duration(cfg.Backend.TimeoutSeconds)*time.Second)

	s := syncer.New(gw, syncer.Options{
		NameEditWindow: time.Duration(cfg.Sync.NameEditWindowSeconds) * time.Second,
		ToggleExpiry:   cfg.Sync.ToggleExpiryTicks,
		PollInterval:   time.Duration(cfg.Backend.PollSeconds) * time.Second,
		Hours: stats.BusinessHours{
			Open:  cfg.Sync.BusinessHours.OpenHour,
			Close: cfg.Sync.BusinessHours.CloseHour,
		},
	})
	s.SetNotifier(func() {
		logger.Info("inbound_message_notification")
	})

	// restore a persisted session so a restart does not force re-login
	if u, err := store.LoadSession(); err != nil {
		logger.Warn("session_restore_failed", "error", err)
	} else if u != nil {
		s.SetUser(u)
		logger.Info("session_restored", "email", u.Email)
	}

	return &App{
		eff:     eff,
		version: version,
		gw:      gw,
		sync:    s,
		acts:    actions.New(gw),
	}, nil
}

// Run starts the maintenance scheduler, the poll loop and the HTTP
// server, and blocks until ctx is canceled or the server fails.
func (a *App) Run(ctx context.Context) error {
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("store_close_failed", "error", err)
		}
	}()

	banner.Print(a.eff, a.version)

	stopMaint, err := maintenance.Start(ctx, a.eff.Config)
	if err != nil {
		return err
	}
	defer stopMaint()

	go a.sync.Run(ctx)

	errCh := a.startHTTP(ctx, api.Handler(a.sync, a.acts, a.eff.Config))

	select {
	case <-ctx.Done():
		return nil
	case err := <-errCh:
		return err
	}
}

func validateConfig(eff config.EffectiveConfigResult) error {
	if eff.Config == nil {
		return fmt.Errorf("no config loaded")
	}
	if eff.Webhook == "" && eff.Config.Backend.URL == "" {
		return fmt.Errorf("no backend webhook URL configured (use --webhook, backend.url or LEADSYNC_WEBHOOK_URL)")
	}
	if eff.Addr == "" {
		return fmt.Errorf("no listen address configured")
	}
	if eff.DBPath == "" {
		return fmt.Errorf("no db path configured")
	}
	return nil
}
