package extract

import (
	"leadsync/pkg/models"
)

// normalizeMessage converts one raw message record into the canonical
// shape. The timestamp may live under a legacy misspelled field; the
// automation flag arrives as bool, string or number.
func normalizeMessage(rec map[string]any) models.Message {
	ts, ok := firstPresent(rec, "timestamp", "timestemp")
	if !ok {
		ts = nil
	}
	m := models.Message{
		ChatID:    stringValue(rec["remotejid"]),
		ID:        stringValue(rec["id"]),
		Timestamp: models.TimestampMs(ts),
		RoleHint:  stringValue(rec["role"]),
		Sender:    stringValue(rec["sender"]),
		Type:      stringValue(rec["type"]),
		History:   rec["conversation_history"],
	}
	if v, ok := rec["msg_da_IA"]; ok {
		m.Automated = models.CoerceBool(v)
	}
	if t, ok := rec["text"].(string); ok {
		m.Text = t
	}
	if h := models.CoerceBool(rec["nao_mostrar"]); h != nil {
		m.Hidden = *h
	}
	return m
}

// probeTraining reads the sandbox transcript. Entries follow the same
// loose conventions as live messages but carry a couple of extra role
// markers (fromMe, msg_da_IA).
func (f *Facts) probeTraining(raw any) {
	if raw == nil {
		return
	}
	decoded, ok := maybeDecode(raw)
	if !ok {
		return
	}
	list, ok := decoded.([]any)
	if !ok {
		return
	}
	var out []models.TrainingMessage
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		role := stringValue(obj["role"])
		content := ""
		if hist, ok := obj["conversation_history"]; ok && hist != nil {
			h, ok := maybeDecode(hist)
			if ok {
				if hm, ok := h.(map[string]any); ok {
					if r := stringValue(hm["role"]); r != "" {
						role = r
					}
				}
				if t := models.ExtractText(h); t != models.NoText {
					content = t
				}
			} else if s, isStr := hist.(string); isStr {
				// unparseable history string is itself the text
				content = s
			}
		}
		if content == "" {
			if t, ok := obj["text"].(string); ok {
				content = t
			} else if c, ok := obj["content"].(string); ok {
				content = c
			} else if msg, ok := obj["message"].(map[string]any); ok {
				content = stringValue(msg["conversation"])
			}
		}
		if role == "" {
			if b := models.CoerceBool(obj["msg_da_IA"]); b != nil && *b {
				role = "assistant"
			}
		}
		if b := models.CoerceBool(obj["fromMe"]); b != nil && *b {
			role = "assistant"
		}
		if role == "" {
			role = "unknown"
		}
		if content == "" || content == models.NoText {
			continue
		}
		sender := "bot"
		if role == "user" || role == "human" {
			sender = "user"
		}
		ts, _ := firstPresent(obj, "timestamp", "messageTimestamp")
		out = append(out, models.TrainingMessage{
			Text:      content,
			Sender:    sender,
			Timestamp: models.TimestampMs(ts),
		})
	}
	if len(out) > 0 {
		f.Training = out
	}
}
