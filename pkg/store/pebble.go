// Package store is the durable local storage for everything the engine
// owns across sessions: CRM overrides, read-state, the cached session
// and the conflict windows. Values are whole-document JSON blobs behind
// read-modify-write accessors; CRM records are edited concurrently by
// the poll loop and the API handlers, so their accessor serializes the
// full get/mutate/set cycle.
package store

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/cockroachdb/pebble"

	"leadsync/pkg/logger"
	"leadsync/pkg/models"
)

var (
	db     *pebble.DB
	dbPath string
	crmMu  sync.Mutex
)

const (
	prefixCRM     = "crm:"
	prefixRead    = "read:"
	prefixNameWin = "window:name:"
	prefixDelWin  = "window:deleted:"
	keySession    = "session:user"
	keyWebhook    = "session:webhook"
)

// Open opens (or creates) a Pebble database at the given path and keeps
// a global handle for simple usage in this package.
func Open(path string) error {
	var err error
	logger.Info("opening_pebble_db", "path", path)
	db, err = pebble.Open(path, &pebble.Options{})
	if err != nil {
		logger.Error("pebble_open_failed", "path", path, "error", err)
		return err
	}
	dbPath = path
	logger.Info("pebble_opened", "path", path)
	return nil
}

// Close closes the opened pebble DB if present.
func Close() error {
	if db == nil {
		return nil
	}
	if err := db.Close(); err != nil {
		return err
	}
	db = nil
	logger.Info("pebble_closed")
	return nil
}

// Ready reports whether the store is opened and ready.
func Ready() bool {
	return db != nil
}

func getJSON(key string, out any) (bool, error) {
	if db == nil {
		return false, fmt.Errorf("pebble not opened; call store.Open first")
	}
	v, closer, err := db.Get([]byte(key))
	if err == pebble.ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	defer closer.Close()
	if err := json.Unmarshal(v, out); err != nil {
		return false, fmt.Errorf("corrupt record at %s: %w", key, err)
	}
	return true, nil
}

func setJSON(key string, v any) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	b, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", key, err)
	}
	return db.Set([]byte(key), b, pebble.Sync)
}

func deleteKey(key string) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	return db.Delete([]byte(key), pebble.Sync)
}

// scanPrefix visits every key under prefix and hands the suffix plus raw
// value to fn.
func scanPrefix(prefix string, fn func(suffix string, value []byte) error) error {
	if db == nil {
		return fmt.Errorf("pebble not opened; call store.Open first")
	}
	iter, err := db.NewIter(&pebble.IterOptions{})
	if err != nil {
		return err
	}
	defer iter.Close()
	for iter.First(); iter.Valid(); iter.Next() {
		k := string(iter.Key())
		if !strings.HasPrefix(k, prefix) {
			continue
		}
		if err := fn(strings.TrimPrefix(k, prefix), iter.Value()); err != nil {
			return err
		}
	}
	return nil
}

// GetCRM returns the CRM record for a chat, creating defaults lazily.
// The defaults are not persisted until the first write.
func GetCRM(chatID string) (models.CRMRecord, error) {
	rec := models.NewCRMRecord()
	if _, err := getJSON(prefixCRM+chatID, &rec); err != nil {
		return rec, err
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	return rec, nil
}

// UpdateCRM is the shared read-modify-write accessor for CRM records.
// Both the reconciliation path and direct user edits go through it; the
// lock covers the whole get/mutate/set cycle so a write from one path
// never silently clobbers the other.
func UpdateCRM(chatID string, mutate func(*models.CRMRecord)) error {
	crmMu.Lock()
	defer crmMu.Unlock()
	rec, err := GetCRM(chatID)
	if err != nil {
		return err
	}
	mutate(&rec)
	if err := setJSON(prefixCRM+chatID, rec); err != nil {
		logger.Error("crm_save_failed", "chat", chatID, "error", err)
		return err
	}
	return nil
}

// ListCRM returns every persisted CRM record keyed by chat id.
func ListCRM() (map[string]models.CRMRecord, error) {
	out := map[string]models.CRMRecord{}
	err := scanPrefix(prefixCRM, func(id string, value []byte) error {
		var rec models.CRMRecord
		if err := json.Unmarshal(value, &rec); err != nil {
			logger.Warn("crm_record_corrupt", "chat", id, "error", err)
			return nil
		}
		out[id] = rec
		return nil
	})
	return out, err
}

// MarkRead stores the last-read timestamp for a chat.
func MarkRead(chatID string, ts int64) error {
	return setJSON(prefixRead+chatID, ts)
}

// ReadState returns the chat id -> last-read timestamp map.
func ReadState() (map[string]int64, error) {
	out := map[string]int64{}
	err := scanPrefix(prefixRead, func(id string, value []byte) error {
		var ts int64
		if err := json.Unmarshal(value, &ts); err == nil {
			out[id] = ts
		}
		return nil
	})
	return out, err
}

// DeleteRead removes the read mark for a chat.
func DeleteRead(chatID string) error {
	return deleteKey(prefixRead + chatID)
}

// SaveSession persists the authenticated user record.
func SaveSession(u models.User) error {
	return setJSON(keySession, u)
}

// LoadSession returns the cached session, or nil when not logged in.
func LoadSession() (*models.User, error) {
	var u models.User
	found, err := getJSON(keySession, &u)
	if err != nil || !found {
		return nil, err
	}
	return &u, nil
}

// ClearSession drops the cached session and webhook override.
func ClearSession() error {
	if err := deleteKey(keySession); err != nil {
		return err
	}
	return deleteKey(keyWebhook)
}

// SetWebhookOverride persists the per-tenant webhook URL.
func SetWebhookOverride(url string) error {
	return setJSON(keyWebhook, url)
}

// WebhookOverride returns the persisted per-tenant webhook URL, if any.
func WebhookOverride() (string, error) {
	var url string
	found, err := getJSON(keyWebhook, &url)
	if err != nil || !found {
		return "", err
	}
	if url == "undefined" {
		// a historical client bug persisted the literal string
		return "", nil
	}
	return url, nil
}

// SetNameEditAt records a local name edit; server name facts for the
// chat are suppressed while the window is active.
func SetNameEditAt(chatID string, ts int64) error {
	return setJSON(prefixNameWin+chatID, ts)
}

// NameEdits returns the chat id -> last-local-edit timestamp map.
func NameEdits() (map[string]int64, error) {
	return windowMap(prefixNameWin)
}

// MarkDeleted records a local deletion; messages for the chat are
// filtered from every derived view until the window is cleared.
func MarkDeleted(chatID string, ts int64) error {
	return setJSON(prefixDelWin+chatID, ts)
}

// ClearDeleted lifts the deletion window for a chat.
func ClearDeleted(chatID string) error {
	return deleteKey(prefixDelWin + chatID)
}

// DeletedWindow returns the chat id -> deletion timestamp map.
func DeletedWindow() (map[string]int64, error) {
	return windowMap(prefixDelWin)
}

func windowMap(prefix string) (map[string]int64, error) {
	out := map[string]int64{}
	err := scanPrefix(prefix, func(id string, value []byte) error {
		var ts int64
		if err := json.Unmarshal(value, &ts); err == nil {
			out[id] = ts
		}
		return nil
	})
	return out, err
}

// PruneNameEdits drops name-edit windows older than the cutoff and
// returns how many were removed.
func PruneNameEdits(beforeMs int64) (int, error) {
	return pruneWindows(prefixNameWin, beforeMs)
}

// PruneDeleted drops deletion windows older than the cutoff and returns
// how many were removed.
func PruneDeleted(beforeMs int64) (int, error) {
	return pruneWindows(prefixDelWin, beforeMs)
}

func pruneWindows(prefix string, beforeMs int64) (int, error) {
	wins, err := windowMap(prefix)
	if err != nil {
		return 0, err
	}
	n := 0
	for id, ts := range wins {
		if ts < beforeMs {
			if err := deleteKey(prefix + id); err != nil {
				return n, err
			}
			n++
		}
	}
	return n, nil
}
