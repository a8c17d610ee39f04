// Package actions issues the outbound webhook triggers. The engine core
// only consumes their inputs; failures here are the one place a user
// sees an error directly.
package actions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"leadsync/pkg/gateway"
	"leadsync/pkg/logger"
	"leadsync/pkg/models"
	"leadsync/pkg/store"
)

// ErrInvalidCredentials is returned when the backend login reply does
// not match the submitted email/password pair.
var ErrInvalidCredentials = errors.New("invalid credentials")

// Service wraps the gateway with the action-specific payload shapes.
type Service struct {
	gw *gateway.Client
}

func New(gw *gateway.Client) *Service {
	return &Service{gw: gw}
}

// targetURL prefers the persisted per-tenant webhook override.
func (s *Service) targetURL() string {
	url, err := store.WebhookOverride()
	if err != nil || url == "" {
		return s.gw.URL
	}
	return url
}

// Login authenticates against the backend. The reply may be a single
// object or an array; the matching record must echo the email and
// password. On success the session and any webhook override are
// persisted.
func (s *Service) Login(ctx context.Context, email, password string) (*models.User, error) {
	resp, err := s.gw.Fetch(ctx, "login", map[string]any{"email": email, "senha": password})
	if err != nil {
		return nil, fmt.Errorf("login: %w", err)
	}
	rec := matchCredentials(resp, email, password)
	if rec == nil {
		return nil, ErrInvalidCredentials
	}
	u := &models.User{Email: email}
	if name, ok := rec["nome"].(string); ok {
		u.Name = name
	}
	if hook, ok := rec["webhook_teste"].(string); ok && hook != "" && hook != "undefined" {
		u.WebhookOverride = hook
		if err := store.SetWebhookOverride(hook); err != nil {
			logger.Warn("webhook_override_save_failed", "error", err)
		}
	}
	if err := store.SaveSession(*u); err != nil {
		return nil, err
	}
	logger.Info("login_ok", "email", email)
	return u, nil
}

// Logout drops the cached session and webhook override.
func (s *Service) Logout() error {
	return store.ClearSession()
}

func matchCredentials(resp any, email, password string) map[string]any {
	check := func(m map[string]any) bool {
		return m["email"] == email && m["senha"] == password
	}
	switch r := resp.(type) {
	case []any:
		if len(r) == 0 {
			return nil
		}
		if m, ok := r[0].(map[string]any); ok && check(m) {
			return m
		}
	case map[string]any:
		if check(r) {
			return r
		}
	}
	return nil
}

// ToggleAutomation hands a chat to the automation or to a human
// attendant ("ativar_IA" / "pausar_IA").
func (s *Service) ToggleAutomation(ctx context.Context, action, chatID, email string) error {
	return s.gw.Post(ctx, s.targetURL(), map[string]any{
		"action":    action,
		"remotejid": chatID,
		"email":     email,
	})
}

// ToggleGlobal pauses or resumes the automation for every chat.
func (s *Service) ToggleGlobal(ctx context.Context, pause bool, email string) error {
	action := "ativar_ia_total"
	if pause {
		action = "pausar_ia_total"
	}
	_, err := s.gw.Fetch(ctx, action, map[string]any{"email": email})
	if err != nil && !errors.Is(err, gateway.ErrNoChange) {
		return err
	}
	return nil
}

// SendReply posts a text reply to a lead.
func (s *Service) SendReply(ctx context.Context, email, chatID, text string) error {
	return s.gw.Post(ctx, s.targetURL(), map[string]any{
		"action":    "responder_lead",
		"email":     email,
		"remotejid": chatID,
		"msg":       text,
		"type":      "text",
	})
}

// SendMedia posts a base64-encoded media reply to a lead.
func (s *Service) SendMedia(ctx context.Context, email, chatID, filename, b64, mimeType, kind string) error {
	return s.gw.Post(ctx, s.targetURL(), map[string]any{
		"action":    "responder_lead",
		"email":     email,
		"remotejid": chatID,
		"nome":      filename,
		"base64":    b64,
		"mimeType":  mimeType,
		"type":      kind,
	})
}

// SendTraining posts one sandbox message using the synthetic chat the
// backend expects for training traffic.
func (s *Service) SendTraining(ctx context.Context, email, text string) error {
	now := time.Now().UnixMilli()
	payload := map[string]any{
		"BaseUrl":   "https://training.radar.ia",
		"EventType": "messages",
		"chat": map[string]any{
			"id": email, "owner": email,
			"wa_contactName": "User", "wa_name": "User",
		},
		"message": map[string]any{
			"chatid": email, "content": text, "fromMe": false,
			"id": fmt.Sprintf("TR-%d", now), "messageTimestamp": now,
			"text": text, "type": "text", "sender": email,
		},
		"owner": email, "is_test": true,
		"action": "chat_treinamento", "email": email,
	}
	return s.gw.Post(ctx, s.targetURL(), payload)
}

// ClearTraining resets the sandbox transcript.
func (s *Service) ClearTraining(ctx context.Context, email string) error {
	return s.gw.Post(ctx, s.targetURL(), map[string]any{
		"action":  "limpar_conversa",
		"email":   email,
		"is_test": true,
		"owner":   email,
	})
}

// RequestAdjustment asks the backend operators for a behavior tweak.
func (s *Service) RequestAdjustment(ctx context.Context, email, text string) error {
	return s.gw.Post(ctx, s.targetURL(), map[string]any{
		"action": "solicitar_ajuste",
		"email":  email,
		"msg":    text,
	})
}
