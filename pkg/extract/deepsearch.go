package extract

import (
	"sort"
	"strings"
)

// deepSearchIDs recursively walks a slice looking for role-assignment
// markers: keys naming the automation id or the human-attendant id. The
// same chat may legitimately show up in both lists across slices; the
// merger decides precedence, not this probe.
func (f *Facts) deepSearchIDs(v any) {
	switch node := v.(type) {
	case []any:
		for _, e := range node {
			f.deepSearchIDs(e)
		}
	case map[string]any:
		f.probeLeadName(node)
		keys := make([]string, 0, len(node))
		for k := range node {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			val := node[k]
			lower := strings.ToLower(k)
			switch {
			case lower == "ia" || strings.Contains(lower, "remotejid_ia"):
				appendIDs(val, &f.AutomationIDs)
			case lower == "atendente" || strings.Contains(lower, "remotejid_atendente"):
				appendIDs(val, &f.HumanIDs)
			default:
				switch val.(type) {
				case map[string]any, []any:
					f.deepSearchIDs(val)
				}
			}
		}
	}
}

// probeLeadName records a display name when a record carries both a
// lead-name field and one of the id fields.
func (f *Facts) probeLeadName(obj map[string]any) {
	name, ok := obj["nome_lead"].(string)
	if !ok || name == "" {
		return
	}
	id, ok := firstPresent(obj, "IA", "remotejid_ia", "Atendente", "remotejid_atendente")
	if !ok {
		return
	}
	clean := cleanID(stringValue(id))
	if strings.Contains(clean, "@") {
		f.Names[clean] = name
	}
}

// appendIDs splits a single id or a delimiter-separated list of ids,
// strips quoting/bracket characters, and keeps only tokens carrying the
// "@" chat-id marker.
func appendIDs(value any, dst *[]string) {
	switch v := value.(type) {
	case nil:
		return
	case []any:
		for _, e := range v {
			appendIDs(e, dst)
		}
		return
	default:
		s := stringValue(v)
		if s == "" {
			return
		}
		for _, part := range splitIDList(s) {
			clean := cleanID(part)
			if strings.Contains(clean, "@") {
				*dst = append(*dst, clean)
			}
		}
	}
}

// splitIDList splits on runs of commas and semicolons.
func splitIDList(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		return r == ',' || r == ';'
	})
}

// cleanID strips quoting, bracket characters and whitespace from an id
// token.
func cleanID(s string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '\'', '"', '[', ']', ' ', '\t', '\n', '\r':
			return -1
		}
		return r
	}, s)
}
