package store_test

import (
	"fmt"
	"reflect"
	"sync"
	"testing"

	"leadsync/pkg/models"
	"leadsync/pkg/store"
)

func openTemp(t *testing.T) {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
}

func TestCRMDefaultsAndUpdate(t *testing.T) {
	openTemp(t)

	rec, err := store.GetCRM("a@s.whatsapp.net")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if rec.Stage != models.DefaultStage {
		t.Fatalf("default stage: %q", rec.Stage)
	}
	if rec.Tags == nil || len(rec.Tags) != 0 {
		t.Fatalf("default tags: %v", rec.Tags)
	}

	// defaults are lazy; nothing persisted yet
	all, err := store.ListCRM()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 0 {
		t.Fatalf("lazy defaults leaked into storage: %v", all)
	}

	err = store.UpdateCRM("a@s.whatsapp.net", func(r *models.CRMRecord) {
		r.Name = "Joana"
		r.Tags = []string{"VIP"}
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	rec, _ = store.GetCRM("a@s.whatsapp.net")
	if rec.Name != "Joana" || !reflect.DeepEqual(rec.Tags, []string{"VIP"}) {
		t.Fatalf("after update: %+v", rec)
	}
	if rec.Stage != models.DefaultStage {
		t.Fatalf("stage lost on update: %q", rec.Stage)
	}
}

// The poll loop and HTTP handlers edit the same record from different
// goroutines; interleaved read-modify-write cycles must not lose either
// side's field.
func TestUpdateCRMConcurrentEdits(t *testing.T) {
	openTemp(t)
	const chat = "a@s.whatsapp.net"

	for i := 0; i < 200; i++ {
		name := fmt.Sprintf("name-%d", i)
		notes := fmt.Sprintf("notes-%d", i)
		start := make(chan struct{})
		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			<-start
			if err := store.UpdateCRM(chat, func(r *models.CRMRecord) { r.Name = name }); err != nil {
				t.Errorf("update name: %v", err)
			}
		}()
		go func() {
			defer wg.Done()
			<-start
			if err := store.UpdateCRM(chat, func(r *models.CRMRecord) { r.Notes = notes }); err != nil {
				t.Errorf("update notes: %v", err)
			}
		}()
		close(start)
		wg.Wait()

		rec, err := store.GetCRM(chat)
		if err != nil {
			t.Fatalf("get: %v", err)
		}
		if rec.Name != name || rec.Notes != notes {
			t.Fatalf("round %d lost an update: name=%q notes=%q", i, rec.Name, rec.Notes)
		}
	}
}

func TestReadState(t *testing.T) {
	openTemp(t)

	if err := store.MarkRead("a", 100); err != nil {
		t.Fatalf("mark: %v", err)
	}
	if err := store.MarkRead("b", 200); err != nil {
		t.Fatalf("mark: %v", err)
	}
	rs, err := store.ReadState()
	if err != nil {
		t.Fatalf("read state: %v", err)
	}
	if rs["a"] != 100 || rs["b"] != 200 {
		t.Fatalf("read state: %v", rs)
	}
	if err := store.DeleteRead("a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	rs, _ = store.ReadState()
	if _, ok := rs["a"]; ok {
		t.Fatalf("read mark not deleted")
	}
}

func TestSessionRoundTrip(t *testing.T) {
	openTemp(t)

	if u, err := store.LoadSession(); err != nil || u != nil {
		t.Fatalf("empty session: %v %v", u, err)
	}
	in := models.User{Name: "Nina", Email: "n@x.com"}
	if err := store.SaveSession(in); err != nil {
		t.Fatalf("save: %v", err)
	}
	u, err := store.LoadSession()
	if err != nil || u == nil || u.Email != "n@x.com" {
		t.Fatalf("load: %+v %v", u, err)
	}
	if err := store.ClearSession(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if u, _ := store.LoadSession(); u != nil {
		t.Fatalf("session not cleared")
	}
}

func TestWebhookOverrideFiltersUndefined(t *testing.T) {
	openTemp(t)

	if err := store.SetWebhookOverride("undefined"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if url, err := store.WebhookOverride(); err != nil || url != "" {
		t.Fatalf("literal undefined must be filtered: %q %v", url, err)
	}
	if err := store.SetWebhookOverride("https://hook.example"); err != nil {
		t.Fatalf("set: %v", err)
	}
	if url, _ := store.WebhookOverride(); url != "https://hook.example" {
		t.Fatalf("override: %q", url)
	}
}

func TestWindowPruning(t *testing.T) {
	openTemp(t)

	_ = store.SetNameEditAt("a", 100)
	_ = store.SetNameEditAt("b", 900)
	_ = store.MarkDeleted("c", 100)
	_ = store.MarkDeleted("d", 900)

	n, err := store.PruneNameEdits(500)
	if err != nil || n != 1 {
		t.Fatalf("prune name edits: %d %v", n, err)
	}
	edits, _ := store.NameEdits()
	if _, ok := edits["a"]; ok {
		t.Fatalf("expired window survived")
	}
	if edits["b"] != 900 {
		t.Fatalf("live window pruned: %v", edits)
	}

	n, err = store.PruneDeleted(500)
	if err != nil || n != 1 {
		t.Fatalf("prune deleted: %d %v", n, err)
	}
	wins, _ := store.DeletedWindow()
	if _, ok := wins["c"]; ok {
		t.Fatalf("expired deletion window survived")
	}
	if wins["d"] != 900 {
		t.Fatalf("live deletion window pruned: %v", wins)
	}
}
