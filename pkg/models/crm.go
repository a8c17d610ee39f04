package models

import "sort"

// DefaultStage is the pipeline stage assigned to a lead on first access.
const DefaultStage = "Novo Lead"

// CRMRecord holds the locally owned, user-editable fields layered on top
// of server-reported facts, keyed by chat id.
type CRMRecord struct {
	Stage string   `json:"stage"`
	Tags  []string `json:"tags"`
	Notes string   `json:"notes"`
	Email string   `json:"email"`
	Name  string   `json:"name"`
}

// NewCRMRecord returns a record with the lazy-creation defaults.
func NewCRMRecord() CRMRecord {
	return CRMRecord{Stage: DefaultStage, Tags: []string{}}
}

// TagsEqual compares two tag lists ignoring order.
func TagsEqual(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	as := append([]string(nil), a...)
	bs := append([]string(nil), b...)
	sort.Strings(as)
	sort.Strings(bs)
	for i := range as {
		if as[i] != bs[i] {
			return false
		}
	}
	return true
}

// User is the cached session record.
type User struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	WebhookOverride string `json:"webhook_override,omitempty"`
}

// TrainingMessage is one entry of the sandbox transcript reported by the
// backend.
type TrainingMessage struct {
	Text      string `json:"text"`
	Sender    string `json:"sender"` // "user" or "bot"
	Timestamp int64  `json:"timestamp_ms,omitempty"`
}

// Stats are the aggregate statistics recomputed wholesale on every
// successful reconciliation.
type Stats struct {
	TotalChats     int     `json:"total_chats"`
	TotalMessages  int     `json:"total_messages"`
	AutomationRate int     `json:"automation_rate"` // percent of non-user replies sent by automation
	TimeSaved      string  `json:"time_saved"`
	OutOfHours     int     `json:"out_of_hours"`
	HourlyVolume   [24]int `json:"hourly_volume"`
}

// Snapshot is the canonical published state, replaced atomically after
// each successful reconciliation.
type Snapshot struct {
	Messages        []Message           `json:"messages"`
	ChatIDs         []string            `json:"chat_ids"`
	AutomationIDs   []string            `json:"automation_ids"`
	HumanIDs        []string            `json:"human_ids"`
	Status          string              `json:"status"`
	GlobalPaused    bool                `json:"global_paused"`
	ChatsTabVisible bool                `json:"chats_tab_visible"`
	LeadsTabVisible bool                `json:"leads_tab_visible"`
	TagNames        []string            `json:"tag_names"`
	TagIDByName     map[string]string   `json:"tag_id_by_name"`
	ChatTags        map[string][]string `json:"chat_tags"`
	Stats           Stats               `json:"stats"`
	Training        []TrainingMessage   `json:"training,omitempty"`
	AccountName     string              `json:"account_name,omitempty"`
	LastSyncMs      int64               `json:"last_sync_ms"`
}
