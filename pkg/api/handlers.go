package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"leadsync/pkg/actions"
	"leadsync/pkg/fragment"
	"leadsync/pkg/models"
	"leadsync/pkg/store"
	"leadsync/pkg/utils"
)

// sessionUser re-reads the session inside the handler body; a logout
// can land between the middleware check and here, so the middleware's
// answer cannot be trusted by the time a handler runs.
func (s *server) sessionUser(w http.ResponseWriter) (*models.User, bool) {
	u := s.sync.User()
	if u == nil {
		utils.JSONError(w, http.StatusUnauthorized, "not authenticated")
		return nil, false
	}
	return u, true
}

func (s *server) login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, err := s.acts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, actions.ErrInvalidCredentials) {
			utils.JSONError(w, http.StatusUnauthorized, "invalid credentials")
			return
		}
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.sync.SetUser(u)
	utils.JSONWrite(w, http.StatusOK, u)
}

func (s *server) logout(w http.ResponseWriter, _ *http.Request) {
	if err := s.acts.Logout(); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.sync.SetUser(nil)
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) state(w http.ResponseWriter, _ *http.Request) {
	snap := s.sync.Snapshot()
	unread, err := s.sync.UnreadCount()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{
		"status":            snap.Status,
		"account_name":      snap.AccountName,
		"global_paused":     snap.GlobalPaused,
		"chats_tab_visible": snap.ChatsTabVisible,
		"leads_tab_visible": snap.LeadsTabVisible,
		"chats":             len(snap.ChatIDs),
		"messages":          len(snap.Messages),
		"unread":            unread,
		"tags":              snap.TagNames,
		"last_sync_ms":      snap.LastSyncMs,
		"pending_toggles":   s.sync.Pending(),
	})
}

func (s *server) stats(w http.ResponseWriter, _ *http.Request) {
	utils.JSONWrite(w, http.StatusOK, s.sync.Snapshot().Stats)
}

type chatSummary struct {
	ID          string           `json:"id"`
	Name        string           `json:"name"`
	CRM         models.CRMRecord `json:"crm"`
	Tags        []string         `json:"tags"`
	Unread      int              `json:"unread"`
	Automation  bool             `json:"automation"`
	LastText    string           `json:"last_text"`
	LastMessage int64            `json:"last_message_ms"`
}

func (s *server) listChats(w http.ResponseWriter, _ *http.Request) {
	snap := s.sync.Snapshot()
	readState, err := store.ReadState()
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	out := make([]chatSummary, 0, len(snap.ChatIDs))
	for _, id := range snap.ChatIDs {
		crm, err := store.GetCRM(id)
		if err != nil {
			utils.JSONError(w, http.StatusInternalServerError, err.Error())
			return
		}
		c := chatSummary{
			ID:         id,
			Name:       crm.Name,
			CRM:        crm,
			Tags:       snap.ChatTags[id],
			Automation: s.sync.HandledByAutomation(id),
		}
		if c.Name == "" {
			c.Name = id
		}
		mark := readState[id]
		for _, m := range snap.Messages {
			if m.ChatID != id || m.Hidden {
				continue
			}
			if m.Timestamp >= c.LastMessage {
				c.LastMessage = m.Timestamp
				c.LastText = m.DisplayText()
			}
			if m.Role() == "user" && m.Timestamp > mark {
				c.Unread++
			}
		}
		out = append(out, c)
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"chats": out})
}

type messageView struct {
	ID        string              `json:"id"`
	Role      string              `json:"role"`
	Text      string              `json:"text"`
	Timestamp int64               `json:"timestamp_ms"`
	Fragments []fragment.Fragment `json:"fragments,omitempty"`
}

func (s *server) chatMessages(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	withFragments := r.URL.Query().Get("fragments") == "1"
	snap := s.sync.Snapshot()
	out := make([]messageView, 0)
	for _, m := range snap.Messages {
		if m.ChatID != id || m.Hidden {
			continue
		}
		v := messageView{
			ID:        m.ID,
			Role:      m.Role(),
			Text:      m.DisplayText(),
			Timestamp: m.Timestamp,
		}
		if withFragments && v.Role != "user" {
			v.Fragments = fragment.Render(v.Text)
		}
		out = append(out, v)
	}
	utils.JSONWrite(w, http.StatusOK, map[string]any{"chat": id, "messages": out})
}

func (s *server) getCRM(w http.ResponseWriter, r *http.Request) {
	crm, err := store.GetCRM(mux.Vars(r)["id"])
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	utils.JSONWrite(w, http.StatusOK, crm)
}

func (s *server) patchCRM(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Name  *string   `json:"name"`
		Notes *string   `json:"notes"`
		Tags  *[]string `json:"tags"`
		Stage *string   `json:"stage"`
		Email *string   `json:"email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	var err error
	if req.Name != nil {
		err = s.sync.EditName(id, *req.Name)
	}
	if err == nil && req.Notes != nil {
		err = s.sync.EditNotes(id, *req.Notes)
	}
	if err == nil && req.Tags != nil {
		err = s.sync.EditTags(id, *req.Tags)
	}
	if err == nil && req.Stage != nil {
		err = s.sync.EditStage(id, *req.Stage)
	}
	if err == nil && req.Email != nil {
		err = s.sync.EditEmail(id, *req.Email)
	}
	if err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.getCRM(w, r)
}

func (s *server) markRead(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.MarkRead(mux.Vars(r)["id"]); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) deleteChat(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.DeleteChat(mux.Vars(r)["id"]); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) restoreChat(w http.ResponseWriter, r *http.Request) {
	if err := s.sync.RestoreChat(mux.Vars(r)["id"]); err != nil {
		utils.JSONError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) reply(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Text     string `json:"text"`
		Filename string `json:"filename"`
		Base64   string `json:"base64"`
		MimeType string `json:"mime_type"`
		Kind     string `json:"kind"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, ok := s.sessionUser(w)
	if !ok {
		return
	}
	var err error
	if req.Base64 != "" {
		err = s.acts.SendMedia(r.Context(), u.Email, id, req.Filename, req.Base64, req.MimeType, req.Kind)
	} else if req.Text != "" {
		err = s.acts.SendReply(r.Context(), u.Email, id, req.Text)
	} else {
		utils.JSONError(w, http.StatusBadRequest, "empty reply")
		return
	}
	if err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) toggleChat(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, ok := s.sessionUser(w)
	if !ok {
		return
	}
	action := "pausar_IA"
	if req.Enabled {
		action = "ativar_IA"
	}
	if err := s.acts.ToggleAutomation(r.Context(), action, id, u.Email); err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.sync.RequestToggle(id, req.Enabled)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) toggleGlobal(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Paused bool `json:"paused"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.JSONError(w, http.StatusBadRequest, "invalid json")
		return
	}
	u, ok := s.sessionUser(w)
	if !ok {
		return
	}
	if err := s.acts.ToggleGlobal(r.Context(), req.Paused, u.Email); err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	s.sync.RequestGlobalToggle(req.Paused)
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) training(w http.ResponseWriter, _ *http.Request) {
	snap := s.sync.Snapshot()
	utils.JSONWrite(w, http.StatusOK, map[string]any{"messages": snap.Training})
}

func (s *server) sendTraining(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		utils.JSONError(w, http.StatusBadRequest, "text required")
		return
	}
	u, ok := s.sessionUser(w)
	if !ok {
		return
	}
	if err := s.acts.SendTraining(r.Context(), u.Email, req.Text); err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *server) clearTraining(w http.ResponseWriter, r *http.Request) {
	u, ok := s.sessionUser(w)
	if !ok {
		return
	}
	if err := s.acts.ClearTraining(r.Context(), u.Email); err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *server) requestAdjustment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Text == "" {
		utils.JSONError(w, http.StatusBadRequest, "text required")
		return
	}
	u, ok := s.sessionUser(w)
	if !ok {
		return
	}
	if err := s.acts.RequestAdjustment(r.Context(), u.Email, req.Text); err != nil {
		utils.JSONError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}
