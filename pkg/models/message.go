package models

import (
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NoText is the placeholder used when no readable text can be derived
// from a message record.
const NoText = "Sem texto"

// Message is the canonical shape of one chat message after normalization.
// Raw wire fields that feed the role and text queries are kept so the
// queries stay pure and re-runnable.
type Message struct {
	ChatID    string `json:"chat_id"`
	ID        string `json:"id,omitempty"`
	Timestamp int64  `json:"timestamp_ms"`
	// Automated is the coerced automation flag; nil when the record
	// carried no flag at all (absence and false behave differently for
	// role derivation).
	Automated *bool  `json:"automated,omitempty"`
	RoleHint  string `json:"role,omitempty"`
	Text      string `json:"text,omitempty"`
	History   any    `json:"history,omitempty"`
	Hidden    bool   `json:"hidden,omitempty"`
	Sender    string `json:"sender,omitempty"`
	Type      string `json:"type,omitempty"`
}

// IsAutomated reports whether the message was produced by the automation.
func (m Message) IsAutomated() bool {
	return m.Automated != nil && *m.Automated
}

// Role derives the message role. Precedence: automation flag true, role
// nested in the history payload, top-level role field, automation flag
// explicitly false, otherwise "unknown".
func (m Message) Role() string {
	if m.IsAutomated() {
		return "assistant"
	}
	role := historyRole(m.History)
	if role == "" {
		role = m.RoleHint
	}
	if role == "" && m.Automated != nil && !*m.Automated {
		role = "user"
	}
	if role == "" {
		return "unknown"
	}
	return role
}

// DisplayText derives the human-readable text of the message: history
// payload first, then the raw text field, then the placeholder.
func (m Message) DisplayText() string {
	if m.History != nil {
		if t := ExtractText(m.History); t != NoText {
			return t
		}
	}
	if m.Text != "" {
		return m.Text
	}
	return NoText
}

// historyRole pulls a role value out of a conversation-history payload,
// which may itself arrive as a JSON-encoded string.
func historyRole(hist any) string {
	switch h := hist.(type) {
	case map[string]any:
		if r, ok := h["role"].(string); ok {
			return r
		}
	case string:
		var decoded map[string]any
		if err := json.Unmarshal([]byte(h), &decoded); err == nil {
			if r, ok := decoded["role"].(string); ok {
				return r
			}
		}
	}
	return ""
}

// ExtractText derives display text from a history-like payload.
// Precedence: parts[0].text, then a text field, then a content field.
// A non-JSON string is returned as-is.
func ExtractText(v any) string {
	if v == nil {
		return NoText
	}
	data := v
	if s, ok := v.(string); ok {
		var decoded any
		if err := json.Unmarshal([]byte(s), &decoded); err != nil {
			return s
		}
		data = decoded
	}
	obj, ok := data.(map[string]any)
	if !ok {
		return NoText
	}
	if parts, ok := obj["parts"].([]any); ok && len(parts) > 0 {
		if p0, ok := parts[0].(map[string]any); ok {
			if t, ok := p0["text"].(string); ok && t != "" {
				return t
			}
		}
	}
	if t, ok := obj["text"].(string); ok && t != "" {
		return t
	}
	if c, ok := obj["content"].(string); ok && c != "" {
		return c
	}
	return NoText
}

// TimestampMs normalizes a timestamp value to milliseconds. Accepts
// numbers (seconds or milliseconds), numeric strings, and date-like
// strings; returns 0 when nothing can be parsed.
func TimestampMs(ts any) int64 {
	switch t := ts.(type) {
	case nil:
		return 0
	case time.Time:
		return t.UnixMilli()
	case int64:
		return secondsToMs(t)
	case int:
		return secondsToMs(int64(t))
	case float64:
		return secondsToMs(int64(t))
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return secondsToMs(n)
		}
		return 0
	case string:
		s := strings.TrimSpace(t)
		if s == "" {
			return 0
		}
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return secondsToMs(n)
		}
		for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02 15:04:05", "2006-01-02"} {
			if d, err := time.Parse(layout, s); err == nil {
				return d.UnixMilli()
			}
		}
		return 0
	default:
		return 0
	}
}

// secondsToMs treats values below 1e10 as seconds.
func secondsToMs(n int64) int64 {
	if n <= 0 {
		return 0
	}
	if n < 10000000000 {
		return n * 1000
	}
	return n
}

// CoerceBool folds boolean, string and numeric truth encodings into a
// bool. Returns nil when the value is absent or unrecognizable, so
// callers can distinguish "false" from "not present".
func CoerceBool(v any) *bool {
	switch t := v.(type) {
	case bool:
		return &t
	case string:
		b := strings.EqualFold(strings.TrimSpace(t), "true")
		return &b
	case float64:
		b := t == 1
		return &b
	case int:
		b := t == 1
		return &b
	case json.Number:
		if n, err := t.Int64(); err == nil {
			b := n == 1
			return &b
		}
		return nil
	default:
		return nil
	}
}
