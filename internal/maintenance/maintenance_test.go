package maintenance

import (
	"context"
	"testing"
	"time"

	"leadsync/pkg/config"
	"leadsync/pkg/store"
)

func TestRunOncePrunesExpiredWindows(t *testing.T) {
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	cfg := &config.Config{}
	cfg.ApplyDefaults()

	now := time.Now()
	_ = store.SetNameEditAt("stale", now.Add(-time.Hour).UnixMilli())
	_ = store.SetNameEditAt("fresh", now.UnixMilli())
	_ = store.MarkDeleted("old", now.Add(-200*time.Hour).UnixMilli())
	_ = store.MarkDeleted("recent", now.UnixMilli())

	if err := RunOnce(cfg); err != nil {
		t.Fatalf("run: %v", err)
	}

	edits, _ := store.NameEdits()
	if _, ok := edits["stale"]; ok {
		t.Fatalf("stale name window survived")
	}
	if _, ok := edits["fresh"]; !ok {
		t.Fatalf("fresh name window pruned")
	}

	wins, _ := store.DeletedWindow()
	if _, ok := wins["old"]; ok {
		t.Fatalf("old deletion window survived")
	}
	if _, ok := wins["recent"]; !ok {
		t.Fatalf("recent deletion window pruned")
	}
}

func TestStartRejectsBadCron(t *testing.T) {
	cfg := &config.Config{}
	cfg.Maintenance.Enabled = true
	cfg.Maintenance.Cron = "not a cron"
	if _, err := Start(context.Background(), cfg); err == nil {
		t.Fatalf("expected error for invalid cron expression")
	}
}

func TestStartDisabledIsNoop(t *testing.T) {
	cancel, err := Start(context.Background(), &config.Config{})
	if err != nil {
		t.Fatalf("start: %v", err)
	}
	cancel()
}
