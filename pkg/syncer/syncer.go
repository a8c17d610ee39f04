// Package syncer owns the long-lived local state and the reconciliation
// loop that folds backend snapshots into it. One refresh may be in
// flight at a time; ticks arriving while busy are dropped, so all state
// mutation is serialized structurally rather than by fine-grained locks.
package syncer

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"leadsync/pkg/extract"
	"leadsync/pkg/gateway"
	"leadsync/pkg/logger"
	"leadsync/pkg/metrics"
	"leadsync/pkg/models"
	"leadsync/pkg/stats"
	"leadsync/pkg/store"
)

// Notifier is invoked at most once per poll when new inbound user
// messages arrive.
type Notifier func()

// Options tune the merge behavior.
type Options struct {
	// NameEditWindow suppresses server name facts after a local edit.
	NameEditWindow time.Duration
	// ToggleExpiry bounds how many polls a pending toggle stays
	// optimistic without server confirmation.
	ToggleExpiry int
	// PollInterval drives the fixed-cadence loop.
	PollInterval time.Duration
	Hours        stats.BusinessHours
}

func (o *Options) applyDefaults() {
	if o.NameEditWindow <= 0 {
		o.NameEditWindow = 30 * time.Second
	}
	if o.ToggleExpiry <= 0 {
		o.ToggleExpiry = 10
	}
	if o.PollInterval <= 0 {
		o.PollInterval = 3 * time.Second
	}
	if o.Hours.Open == 0 && o.Hours.Close == 0 {
		o.Hours = stats.BusinessHours{Open: 8, Close: 18}
	}
}

// PendingToggle is an optimistic automation toggle awaiting server
// confirmation. Target is the desired state (for a chat: automation
// handles it; for the global key: automation paused).
type PendingToggle struct {
	Target bool      `json:"target"`
	Since  time.Time `json:"since"`
	ticks  int
}

// GlobalToggleKey is the pending-toggle key for the global pause flag.
const GlobalToggleKey = "GLOBAL"

// Syncer is the reconciliation merger plus the published state.
type Syncer struct {
	gw   *gateway.Client
	opts Options

	refreshing atomic.Bool

	mu      sync.RWMutex
	snap    *models.Snapshot
	user    *models.User
	pending map[string]PendingToggle

	notifier Notifier
	now      func() time.Time
}

// New builds a Syncer over the given gateway.
func New(gw *gateway.Client, opts Options) *Syncer {
	opts.applyDefaults()
	return &Syncer{
		gw:      gw,
		opts:    opts,
		snap:    emptySnapshot(),
		pending: map[string]PendingToggle{},
		now:     time.Now,
	}
}

func emptySnapshot() *models.Snapshot {
	return &models.Snapshot{
		Status:          "disconnected",
		ChatsTabVisible: true,
		LeadsTabVisible: true,
		TagIDByName:     map[string]string{},
		ChatTags:        map[string][]string{},
	}
}

// SetNotifier installs the inbound-message notification side effect.
func (s *Syncer) SetNotifier(n Notifier) { s.notifier = n }

// SetClock overrides the clock; tests drive conflict windows with it.
func (s *Syncer) SetClock(now func() time.Time) { s.now = now }

// SetUser marks the session as authenticated (nil logs out and resets
// the published state).
func (s *Syncer) SetUser(u *models.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.user = u
	if u == nil {
		s.snap = emptySnapshot()
	}
}

// User returns the current session user, or nil.
func (s *Syncer) User() *models.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// Snapshot returns the published state. The returned value is replaced,
// never mutated, by later refreshes.
func (s *Syncer) Snapshot() *models.Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snap
}

// Pending returns the in-flight optimistic toggles.
func (s *Syncer) Pending() map[string]PendingToggle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]PendingToggle, len(s.pending))
	for k, v := range s.pending {
		out[k] = v
	}
	return out
}

// Refresh runs one reconciliation cycle. It is a no-op when not
// authenticated or when a refresh is already in flight. Transport
// failures and the no-change sentinel leave the published state
// untouched; the next tick retries naturally.
func (s *Syncer) Refresh(ctx context.Context) error {
	user := s.User()
	if user == nil {
		return nil
	}
	if !s.refreshing.CompareAndSwap(false, true) {
		metrics.TicksDropped.Inc()
		return nil
	}
	defer s.refreshing.Store(false)

	start := s.now()
	metrics.PollsTotal.Inc()

	resp, err := s.gw.Fetch(ctx, "login", map[string]any{"email": user.Email})
	if err != nil {
		if errors.Is(err, gateway.ErrNoChange) {
			metrics.PollNoChange.Inc()
			return nil
		}
		metrics.PollFailures.Inc()
		logger.Warn("poll_failed", "error", err)
		return nil
	}

	facts := extract.Extract(resp)
	if err := s.apply(facts); err != nil {
		logger.Error("reconcile_failed", "error", err)
		return err
	}
	metrics.RefreshSeconds.Observe(s.now().Sub(start).Seconds())
	return nil
}

// apply folds extracted facts into the canonical state and publishes a
// new snapshot atomically.
func (s *Syncer) apply(facts *extract.Facts) error {
	nowMs := s.now().UnixMilli()

	if err := s.mergeCRM(facts, nowMs); err != nil {
		return err
	}

	autoIDs := dedup(facts.AutomationIDs)
	humanIDs := dedup(facts.HumanIDs)

	s.mu.Lock()
	// the deletion window is read under the lock: a DeleteChat that
	// republished while this cycle was fetching stays filtered here
	deleted, err := store.DeletedWindow()
	if err != nil {
		s.mu.Unlock()
		return err
	}
	msgs := make([]models.Message, 0, len(facts.Messages))
	for _, m := range facts.Messages {
		if _, gone := deleted[m.ChatID]; gone {
			continue
		}
		msgs = append(msgs, m)
	}

	prev := s.snap
	notify := shouldNotify(prev.Messages, msgs)

	next := &models.Snapshot{
		Messages:        msgs,
		ChatIDs:         distinctChats(msgs),
		AutomationIDs:   autoIDs,
		HumanIDs:        humanIDs,
		Status:          facts.Status,
		GlobalPaused:    prev.GlobalPaused,
		ChatsTabVisible: prev.ChatsTabVisible,
		LeadsTabVisible: prev.LeadsTabVisible,
		TagNames:        facts.TagNames,
		TagIDByName:     facts.TagIDByName,
		ChatTags:        facts.ChatTags,
		Stats:           stats.Compute(msgs, autoIDs, humanIDs, s.opts.Hours),
		Training:        prev.Training,
		AccountName:     facts.AccountName,
		LastSyncMs:      nowMs,
	}
	if next.Status == "" {
		next.Status = "disconnected"
	}
	if facts.GlobalPaused != nil {
		next.GlobalPaused = *facts.GlobalPaused
	}
	if facts.ChatsTab != nil {
		next.ChatsTabVisible = *facts.ChatsTab
	}
	if facts.LeadsTab != nil {
		next.LeadsTabVisible = *facts.LeadsTab
	}
	if len(facts.Training) > 0 {
		next.Training = facts.Training
	}
	if next.AccountName == "" {
		next.AccountName = prev.AccountName
	}

	s.resolvePending(next)
	s.snap = next
	s.mu.Unlock()

	if notify {
		metrics.NotificationsFired.Inc()
		if s.notifier != nil {
			s.notifier()
		}
	}

	if facts.WebhookOverride != "" {
		if err := store.SetWebhookOverride(facts.WebhookOverride); err != nil {
			logger.Warn("webhook_override_save_failed", "error", err)
		}
	}

	metrics.MessagesCurrent.Set(float64(len(msgs)))
	metrics.ChatsCurrent.Set(float64(len(next.ChatIDs)))
	return nil
}

// mergeCRM folds name, note and tag facts into the CRM records, writing
// only when the value actually changed. Name facts inside an active
// local-edit window are suppressed on purpose; that is precedence, not
// failure.
func (s *Syncer) mergeCRM(facts *extract.Facts, nowMs int64) error {
	nameEdits, err := store.NameEdits()
	if err != nil {
		return err
	}
	window := s.opts.NameEditWindow.Milliseconds()
	for id, name := range facts.Names {
		if at, ok := nameEdits[id]; ok && nowMs-at < window {
			logger.Debug("name_fact_suppressed", "chat", id)
			continue
		}
		cur, err := store.GetCRM(id)
		if err != nil {
			return err
		}
		if cur.Name == name {
			continue
		}
		if err := store.UpdateCRM(id, func(r *models.CRMRecord) { r.Name = name }); err != nil {
			return err
		}
	}
	for id, note := range facts.Notes {
		cur, err := store.GetCRM(id)
		if err != nil {
			return err
		}
		if cur.Notes == note {
			continue
		}
		if err := store.UpdateCRM(id, func(r *models.CRMRecord) { r.Notes = note }); err != nil {
			return err
		}
	}
	for id, tags := range facts.ChatTags {
		cur, err := store.GetCRM(id)
		if err != nil {
			return err
		}
		if models.TagsEqual(cur.Tags, tags) {
			continue
		}
		t := append([]string(nil), tags...)
		if err := store.UpdateCRM(id, func(r *models.CRMRecord) { r.Tags = t }); err != nil {
			return err
		}
	}
	return nil
}

// shouldNotify reports whether the new batch advances the max timestamp
// with at least one inbound user message past the previous maximum. The
// caller invokes the notifier after releasing the lock, so a notifier
// that reads the published state back does not deadlock.
func shouldNotify(prev, next []models.Message) bool {
	prevMax := maxTimestamp(prev)
	newMax := maxTimestamp(next)
	if newMax <= prevMax {
		return false
	}
	for _, m := range next {
		if m.Role() == "user" && m.Timestamp > prevMax {
			return true
		}
	}
	return false
}

// resolvePending confirms or expires optimistic toggles against server
// truth. Caller holds the write lock.
func (s *Syncer) resolvePending(next *models.Snapshot) {
	for key, p := range s.pending {
		confirmed := false
		if key == GlobalToggleKey {
			confirmed = next.GlobalPaused == p.Target
		} else if inList(next.AutomationIDs, key) == p.Target {
			confirmed = true
		}
		if confirmed {
			delete(s.pending, key)
			continue
		}
		p.ticks++
		if p.ticks >= s.opts.ToggleExpiry {
			logger.Warn("pending_toggle_expired", "key", key, "target", p.Target)
			delete(s.pending, key)
			continue
		}
		s.pending[key] = p
	}
}

func maxTimestamp(msgs []models.Message) int64 {
	var max int64
	for _, m := range msgs {
		if m.Timestamp > max {
			max = m.Timestamp
		}
	}
	return max
}

func distinctChats(msgs []models.Message) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, m := range msgs {
		if m.ChatID == "" {
			continue
		}
		if _, ok := seen[m.ChatID]; ok {
			continue
		}
		seen[m.ChatID] = struct{}{}
		out = append(out, m.ChatID)
	}
	return out
}

func dedup(list []string) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, s := range list {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func inList(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}
