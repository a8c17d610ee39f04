// Package extract walks the untyped payload tree returned by the
// automation backend and pulls typed facts out of it. The backend has no
// stable schema: fields drift between native values and JSON-encoded
// strings, lists nest at arbitrary depths, and single objects stand in
// for arrays. Every probe in this package tolerates that drift and skips
// malformed sub-structures instead of failing the whole payload.
package extract

import (
	"encoding/json"
	"sort"
	"strconv"
	"strings"

	"leadsync/pkg/models"
)

// Facts is the typed result of one extraction pass. Boolean facts are
// pointers because their absence must leave the previous state alone.
type Facts struct {
	Messages        []models.Message
	Status          string
	AutomationIDs   []string
	HumanIDs        []string
	GlobalPaused    *bool
	ChatsTab        *bool
	LeadsTab        *bool
	TagNames        []string
	TagNameByID     map[string]string
	TagIDByName     map[string]string
	ChatTags        map[string][]string
	Names           map[string]string
	Notes           map[string]string
	AccountName     string
	Training        []models.TrainingMessage
	WebhookOverride string
}

// Extract runs the metadata pass and the data pass over every slice of
// the payload. The output is deterministic for identical input.
func Extract(data any) *Facts {
	f := &Facts{
		TagNameByID: map[string]string{},
		TagIDByName: map[string]string{},
		ChatTags:    map[string][]string{},
		Names:       map[string]string{},
		Notes:       map[string]string{},
	}

	slices := normalizeSlices(data)

	// Pass 1: metadata. Tag dictionaries must exist before the data pass
	// resolves tag assignments against them.
	for _, item := range slices {
		if v, ok := item["webhook_teste"].(string); ok && v != "" {
			f.WebhookOverride = v
		}
		if v, ok := item["nome_whatsapp"].(string); ok && v != "" {
			f.AccountName = v
		}
		f.probeTagDictionary(item["identificao_etiquetas"])
		if raw, ok := firstPresent(item, "status_de_atendimento", "anotacoes"); ok {
			f.probeNotes(raw)
		}
		f.probeTraining(item["chat_treinamento"])
	}

	// Pass 2: data.
	for _, item := range slices {
		if convs, ok := item["conversas"].([]any); ok {
			for _, c := range convs {
				if rec, ok := c.(map[string]any); ok {
					f.Messages = append(f.Messages, normalizeMessage(rec))
				}
			}
		}
		if raw, ok := firstPresent(item, "status_da_coneccao", "status"); ok {
			f.probeStatus(raw)
		}
		if v, ok := item["pausar_ia_total"]; ok {
			f.GlobalPaused = models.CoerceBool(v)
		}
		if v, ok := item["aba_atendimentos"]; ok {
			f.ChatsTab = models.CoerceBool(v)
		}
		if v, ok := item["aba_leads"]; ok {
			f.LeadsTab = models.CoerceBool(v)
		}
		f.probeTagAssignments(item["numero_e_etiquetas"])
		f.deepSearchIDs(item)
	}

	// reverse index tag name -> id
	for id, name := range f.TagNameByID {
		f.TagIDByName[name] = id
	}
	return f
}

// normalizeSlices folds the payload into an array of object slices: a
// bare object becomes a one-element array, anything else is empty.
func normalizeSlices(data any) []map[string]any {
	switch d := data.(type) {
	case []any:
		out := make([]map[string]any, 0, len(d))
		for _, e := range d {
			if m, ok := e.(map[string]any); ok {
				out = append(out, m)
			}
		}
		return out
	case map[string]any:
		return []map[string]any{d}
	default:
		return nil
	}
}

// firstPresent returns the first of the named fields present in the map.
func firstPresent(m map[string]any, keys ...string) (any, bool) {
	for _, k := range keys {
		if v, ok := m[k]; ok && v != nil {
			return v, true
		}
	}
	return nil, false
}

// maybeDecode parses a JSON-encoded string field; native values pass
// through untouched. The second result is false when a string field
// failed to parse (the probe must skip it silently).
func maybeDecode(v any) (any, bool) {
	s, ok := v.(string)
	if !ok {
		return v, true
	}
	var decoded any
	if err := json.Unmarshal([]byte(s), &decoded); err != nil {
		return nil, false
	}
	return decoded, true
}

// probeTagDictionary reads the declared tag list (id -> display name),
// tolerating JSON-as-string at both the list and the entry level.
func (f *Facts) probeTagDictionary(raw any) {
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
	for _, entry := range list {
		e, ok := maybeDecode(entry)
		if !ok {
			continue
		}
		obj, ok := e.(map[string]any)
		if !ok {
			continue
		}
		id := stringValue(obj["id"])
		name := stringValue(obj["name"])
		if id == "" || name == "" {
			continue
		}
		f.TagNameByID[id] = name
		if !contains(f.TagNames, name) {
			f.TagNames = append(f.TagNames, name)
		}
	}
}

// probeNotes reads per-chat note blocks. Ids must carry the "@" marker.
func (f *Facts) probeNotes(raw any) {
	decoded, ok := maybeDecode(raw)
	if !ok {
		return
	}
	list, ok := decoded.([]any)
	if !ok {
		return
	}
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		var id string
		for _, k := range []string{"remotejid", "id", "chat_id", "Atendente", "IA"} {
			if s, ok := obj[k].(string); ok && strings.Contains(s, "@") {
				id = s
				break
			}
		}
		if id == "" {
			continue
		}
		note, found := firstPresent(obj, "anotacao", "text", "note", "content", "anotacoes")
		if !found {
			f.Notes[id] = ""
			continue
		}
		f.Notes[id] = stringValue(note)
	}
}

// probeStatus normalizes the backend-reported connection status. Values
// that look like serialized lists are skipped.
func (f *Facts) probeStatus(raw any) {
	s, ok := raw.(string)
	if !ok || s == "" {
		return
	}
	if strings.HasPrefix(strings.TrimSpace(s), "[") {
		return
	}
	low := strings.ToLower(s)
	if low == "open" || low == "connected" {
		f.Status = "connected"
		return
	}
	f.Status = low
}

// probeTagAssignments pairs dotted ".wa_label"/".wa_chatid" field
// suffixes inside one record into a chat-id -> tag-name assignment. Only
// tags declared in the dictionary are accepted.
func (f *Facts) probeTagAssignments(raw any) {
	list, ok := raw.([]any)
	if !ok {
		return
	}
	for _, entry := range list {
		obj, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		var chat, tagID string
		keys := make([]string, 0, len(obj))
		for k := range obj {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			switch {
			case strings.HasSuffix(k, ".wa_label"):
				tagID = stringValue(obj[k])
			case strings.HasSuffix(k, ".wa_chatid"):
				chat = stringValue(obj[k])
			}
		}
		if chat == "" || tagID == "" {
			continue
		}
		name, ok := f.TagNameByID[tagID]
		if !ok {
			continue
		}
		if !contains(f.ChatTags[chat], name) {
			f.ChatTags[chat] = append(f.ChatTags[chat], name)
		}
	}
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if e == s {
			return true
		}
	}
	return false
}

// stringValue renders scalar JSON values as strings; numbers lose any
// ".0" suffix the JSON decoder introduced.
func stringValue(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}
