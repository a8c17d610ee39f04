package extract

import (
	"reflect"
	"testing"
)

func samplePayload() any {
	return []any{
		map[string]any{
			"webhook_teste":         "https://tenant.example/hook",
			"nome_whatsapp":         "Acme Corp",
			"identificao_etiquetas": `[{"id":1,"name":"VIP"},{"id":2,"name":"Cold"}]`,
			"status_de_atendimento": []any{
				map[string]any{"remotejid": "a@s.whatsapp.net", "anotacao": "prefers mornings"},
			},
		},
		map[string]any{
			"conversas": []any{
				map[string]any{
					"remotejid":            "a@s.whatsapp.net",
					"id":                   "m1",
					"timestemp":            float64(1700000000),
					"msg_da_IA":            "true",
					"conversation_history": `{"role":"model","parts":[{"text":"Oi!"}]}`,
				},
				map[string]any{
					"remotejid": "b@s.whatsapp.net",
					"id":        "m2",
					"timestamp": float64(1700000001000),
					"msg_da_IA": false,
					"text":      "quero saber o preco",
				},
			},
			"status_da_coneccao": "open",
			"pausar_ia_total":    "true",
			"aba_leads":          float64(0),
			"numero_e_etiquetas": []any{
				map[string]any{"x.wa_label": "1", "x.wa_chatid": "a@s.whatsapp.net"},
				map[string]any{"y.wa_label": "99", "y.wa_chatid": "a@s.whatsapp.net"},
			},
			"leads": []any{
				map[string]any{
					"nome_lead": "Joana",
					"IA":        "a@s.whatsapp.net",
				},
				map[string]any{
					"IA": "b@s.whatsapp.net",
				},
				map[string]any{
					"nested": map[string]any{
						"deeper": map[string]any{
							"remotejid_atendente_old": "c@s.whatsapp.net",
						},
					},
				},
			},
		},
	}
}

func TestExtractSample(t *testing.T) {
	f := Extract(samplePayload())

	if f.WebhookOverride != "https://tenant.example/hook" {
		t.Fatalf("webhook override: %q", f.WebhookOverride)
	}
	if f.AccountName != "Acme Corp" {
		t.Fatalf("account name: %q", f.AccountName)
	}
	if f.Status != "connected" {
		t.Fatalf("status: %q", f.Status)
	}
	if f.GlobalPaused == nil || !*f.GlobalPaused {
		t.Fatalf("global pause flag not extracted")
	}
	if f.LeadsTab == nil || *f.LeadsTab {
		t.Fatalf("leads tab flag should be false")
	}
	if f.ChatsTab != nil {
		t.Fatalf("absent chats tab flag must stay nil")
	}

	if !reflect.DeepEqual(f.TagNames, []string{"VIP", "Cold"}) {
		t.Fatalf("tag names: %v", f.TagNames)
	}
	// only dictionary-declared tag ids bind; id 99 is dropped
	if got := f.ChatTags["a@s.whatsapp.net"]; !reflect.DeepEqual(got, []string{"VIP"}) {
		t.Fatalf("chat tags: %v", got)
	}
	if f.TagIDByName["VIP"] != "1" {
		t.Fatalf("reverse tag index: %v", f.TagIDByName)
	}

	if len(f.Messages) != 2 {
		t.Fatalf("messages: %d", len(f.Messages))
	}
	m := f.Messages[0]
	if m.ChatID != "a@s.whatsapp.net" || m.Timestamp != 1700000000000 {
		t.Fatalf("legacy timestamp field not normalized: %+v", m)
	}
	if m.Role() != "assistant" {
		t.Fatalf("string automation flag not coerced: role %q", m.Role())
	}
	if m.DisplayText() != "Oi!" {
		t.Fatalf("history text: %q", m.DisplayText())
	}
	if f.Messages[1].Role() != "user" {
		t.Fatalf("explicit false flag should derive user role")
	}

	if f.Notes["a@s.whatsapp.net"] != "prefers mornings" {
		t.Fatalf("notes: %v", f.Notes)
	}
	if f.Names["a@s.whatsapp.net"] != "Joana" {
		t.Fatalf("lead name: %v", f.Names)
	}
}

func TestDeepSearchIDs(t *testing.T) {
	f := Extract(samplePayload())

	wantAuto := []string{"a@s.whatsapp.net", "b@s.whatsapp.net"}
	if !reflect.DeepEqual(f.AutomationIDs, wantAuto) {
		t.Fatalf("automation ids: %v", f.AutomationIDs)
	}
	// substring key match at depth 3
	if !reflect.DeepEqual(f.HumanIDs, []string{"c@s.whatsapp.net"}) {
		t.Fatalf("human ids: %v", f.HumanIDs)
	}
}

func TestExtractTokensWithoutMarkerDropped(t *testing.T) {
	f := Extract(map[string]any{"IA": "not-a-chat-id, x@y"})
	if !reflect.DeepEqual(f.AutomationIDs, []string{"x@y"}) {
		t.Fatalf("ids missing @ must be dropped: %v", f.AutomationIDs)
	}
}

func TestExtractIDListQuoting(t *testing.T) {
	f := Extract(map[string]any{"IA": `['a@s.whatsapp.net' ; "b@s.whatsapp.net"]`})
	want := []string{"a@s.whatsapp.net", "b@s.whatsapp.net"}
	if !reflect.DeepEqual(f.AutomationIDs, want) {
		t.Fatalf("quoted list: %v", f.AutomationIDs)
	}
}

func TestExtractDeterministic(t *testing.T) {
	first := Extract(samplePayload())
	for i := 0; i < 20; i++ {
		again := Extract(samplePayload())
		if !reflect.DeepEqual(first.AutomationIDs, again.AutomationIDs) {
			t.Fatalf("automation id order unstable: %v vs %v", first.AutomationIDs, again.AutomationIDs)
		}
		if !reflect.DeepEqual(first.ChatTags, again.ChatTags) {
			t.Fatalf("chat tags unstable")
		}
	}
}

func TestExtractMalformedSubstructures(t *testing.T) {
	f := Extract([]any{
		map[string]any{
			"identificao_etiquetas": "{not json",
			"numero_e_etiquetas":    "also not a list",
			"conversas":             "nope",
			"status_da_coneccao":    "[serialized list]",
		},
	})
	if len(f.TagNames) != 0 || len(f.Messages) != 0 || f.Status != "" {
		t.Fatalf("malformed substructures must be skipped: %+v", f)
	}
}

func TestProbeTraining(t *testing.T) {
	f := Extract(map[string]any{
		"chat_treinamento": `[
			{"conversation_history":"{\"role\":\"user\",\"parts\":[{\"text\":\"teste\"}]}","timestamp":1700000000},
			{"text":"resposta","msg_da_IA":true,"messageTimestamp":1700000001000},
			{"text":""}
		]`,
	})
	if len(f.Training) != 2 {
		t.Fatalf("training entries: %d", len(f.Training))
	}
	if f.Training[0].Sender != "user" || f.Training[0].Text != "teste" {
		t.Fatalf("training[0]: %+v", f.Training[0])
	}
	if f.Training[1].Sender != "bot" || f.Training[1].Timestamp != 1700000001000 {
		t.Fatalf("training[1]: %+v", f.Training[1])
	}
}
