package syncer

import (
	"leadsync/pkg/models"
	"leadsync/pkg/store"
)

// Local edit intents. Each goes through the same read-modify-write
// accessor the reconciliation path uses, so neither path can lose the
// other's write inside one tick.

// EditName writes a locally chosen display name and opens the conflict
// window that keeps stale server snapshots from clobbering it.
func (s *Syncer) EditName(chatID, name string) error {
	if err := store.UpdateCRM(chatID, func(r *models.CRMRecord) { r.Name = name }); err != nil {
		return err
	}
	return store.SetNameEditAt(chatID, s.now().UnixMilli())
}

// EditNotes writes locally edited notes.
func (s *Syncer) EditNotes(chatID, notes string) error {
	return store.UpdateCRM(chatID, func(r *models.CRMRecord) { r.Notes = notes })
}

// EditTags replaces the tag list.
func (s *Syncer) EditTags(chatID string, tags []string) error {
	t := append([]string(nil), tags...)
	return store.UpdateCRM(chatID, func(r *models.CRMRecord) { r.Tags = t })
}

// EditStage moves the lead to another pipeline stage.
func (s *Syncer) EditStage(chatID, stage string) error {
	return store.UpdateCRM(chatID, func(r *models.CRMRecord) { r.Stage = stage })
}

// EditEmail writes the lead's contact email.
func (s *Syncer) EditEmail(chatID, email string) error {
	return store.UpdateCRM(chatID, func(r *models.CRMRecord) { r.Email = email })
}

// DeleteChat opens the deletion window for a chat and immediately
// republishes the filtered view; the chat stays gone regardless of
// server content until restored.
func (s *Syncer) DeleteChat(chatID string) error {
	if err := store.MarkDeleted(chatID, s.now().UnixMilli()); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	prev := s.snap
	msgs := make([]models.Message, 0, len(prev.Messages))
	for _, m := range prev.Messages {
		if m.ChatID == chatID {
			continue
		}
		msgs = append(msgs, m)
	}
	next := *prev
	next.Messages = msgs
	next.ChatIDs = distinctChats(msgs)
	s.snap = &next
	return nil
}

// RestoreChat lifts the deletion window; the chat reappears on the next
// successful poll.
func (s *Syncer) RestoreChat(chatID string) error {
	return store.ClearDeleted(chatID)
}

// MarkRead stores the last-read timestamp used for unread badges.
func (s *Syncer) MarkRead(chatID string) error {
	if chatID == "" {
		return nil
	}
	return store.MarkRead(chatID, s.now().UnixMilli())
}

// UnreadCount counts visible inbound messages newer than their chat's
// read mark.
func (s *Syncer) UnreadCount() (int, error) {
	readState, err := store.ReadState()
	if err != nil {
		return 0, err
	}
	snap := s.Snapshot()
	n := 0
	for _, m := range snap.Messages {
		if m.Hidden || m.IsAutomated() {
			continue
		}
		if r := m.Role(); r != "" && r != "user" && r != "unknown" {
			continue
		}
		if m.Timestamp > readState[m.ChatID] {
			n++
		}
	}
	return n, nil
}

// RequestToggle records an optimistic per-chat automation toggle to be
// reconciled against server truth on the next successful poll.
func (s *Syncer) RequestToggle(chatID string, target bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[chatID] = PendingToggle{Target: target, Since: s.now()}
}

// RequestGlobalToggle records an optimistic global pause/resume.
func (s *Syncer) RequestGlobalToggle(targetPaused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending[GlobalToggleKey] = PendingToggle{Target: targetPaused, Since: s.now()}
}

// HandledByAutomation reports who currently answers a chat. A chat
// listed in both assignment lists counts as automation-handled;
// duplicate membership is tolerated upstream and resolved here.
func (s *Syncer) HandledByAutomation(chatID string) bool {
	snap := s.Snapshot()
	return inList(snap.AutomationIDs, chatID)
}
