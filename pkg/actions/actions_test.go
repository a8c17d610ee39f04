package actions

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"leadsync/pkg/gateway"
	"leadsync/pkg/store"
)

func openStore(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestLoginMatchesArrayReply(t *testing.T) {
	openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`[{"email":"n@x.com","senha":"pw","nome":"Nina","webhook_teste":"https://tenant.example/hook"}]`))
	}))
	defer srv.Close()

	svc := New(gateway.New(srv.URL, time.Second))
	u, err := svc.Login(context.Background(), "n@x.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Name != "Nina" || u.Email != "n@x.com" {
		t.Fatalf("user: %+v", u)
	}
	if u.WebhookOverride != "https://tenant.example/hook" {
		t.Fatalf("override: %q", u.WebhookOverride)
	}

	// session and override persisted
	saved, err := store.LoadSession()
	if err != nil || saved == nil || saved.Email != "n@x.com" {
		t.Fatalf("session: %+v %v", saved, err)
	}
	if url, _ := store.WebhookOverride(); url != "https://tenant.example/hook" {
		t.Fatalf("persisted override: %q", url)
	}
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"email":"n@x.com","senha":"other"}`))
	}))
	defer srv.Close()

	svc := New(gateway.New(srv.URL, time.Second))
	if _, err := svc.Login(context.Background(), "n@x.com", "pw"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestLoginIgnoresUndefinedOverride(t *testing.T) {
	openStore(t)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte(`{"email":"n@x.com","senha":"pw","webhook_teste":"undefined"}`))
	}))
	defer srv.Close()

	svc := New(gateway.New(srv.URL, time.Second))
	u, err := svc.Login(context.Background(), "n@x.com", "pw")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.WebhookOverride != "" {
		t.Fatalf("literal undefined must be ignored: %q", u.WebhookOverride)
	}
}

func TestActionsPreferWebhookOverride(t *testing.T) {
	openStore(t)
	var mainHits, overrideHits int
	var payload map[string]any

	override := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		overrideHits++
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer override.Close()
	main := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		mainHits++
	}))
	defer main.Close()

	if err := store.SetWebhookOverride(override.URL); err != nil {
		t.Fatalf("set override: %v", err)
	}
	svc := New(gateway.New(main.URL, time.Second))
	if err := svc.SendReply(context.Background(), "n@x.com", "a@x", "ola"); err != nil {
		t.Fatalf("reply: %v", err)
	}
	if mainHits != 0 || overrideHits != 1 {
		t.Fatalf("hits: main=%d override=%d", mainHits, overrideHits)
	}
	if payload["action"] != "responder_lead" || payload["remotejid"] != "a@x" || payload["msg"] != "ola" {
		t.Fatalf("payload: %v", payload)
	}
}

func TestToggleAutomationPayload(t *testing.T) {
	openStore(t)
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
	}))
	defer srv.Close()

	svc := New(gateway.New(srv.URL, time.Second))
	if err := svc.ToggleAutomation(context.Background(), "pausar_IA", "a@x", "n@x.com"); err != nil {
		t.Fatalf("toggle: %v", err)
	}
	if payload["action"] != "pausar_IA" || payload["remotejid"] != "a@x" || payload["email"] != "n@x.com" {
		t.Fatalf("payload: %v", payload)
	}
}

func TestToggleGlobalToleratesSentinel(t *testing.T) {
	openStore(t)
	var payload map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewDecoder(r.Body).Decode(&payload)
		w.Write([]byte(gateway.NoChangeSentinel))
	}))
	defer srv.Close()

	svc := New(gateway.New(srv.URL, time.Second))
	if err := svc.ToggleGlobal(context.Background(), true, "n@x.com"); err != nil {
		t.Fatalf("toggle global: %v", err)
	}
	if payload["action"] != "pausar_ia_total" {
		t.Fatalf("payload: %v", payload)
	}
}
