// Offline inspection tool for a leadsync data dir: dumps the cached
// session, CRM records and conflict windows without running the daemon.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"leadsync/pkg/logger"
	"leadsync/pkg/store"
)

func main() {
	var path string
	flag.StringVar(&path, "db", "", "path to the leadsync data dir")
	flag.Parse()
	if path == "" {
		fmt.Fprintln(os.Stderr, "--db required")
		os.Exit(2)
	}
	logger.Init()

	if err := store.Open(path); err != nil {
		fmt.Fprintf(os.Stderr, "open %s: %v\n", path, err)
		os.Exit(1)
	}
	defer store.Close()

	if u, err := store.LoadSession(); err != nil {
		fmt.Fprintf(os.Stderr, "session: %v\n", err)
	} else if u != nil {
		fmt.Printf("session: %s <%s>\n", u.Name, u.Email)
	} else {
		fmt.Println("session: none")
	}
	if hook, _ := store.WebhookOverride(); hook != "" {
		fmt.Printf("webhook override: %s\n", hook)
	}

	crm, err := store.ListCRM()
	if err != nil {
		fmt.Fprintf(os.Stderr, "crm: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("crm records: %d\n", len(crm))
	for id, rec := range crm {
		b, _ := json.Marshal(rec)
		fmt.Printf("  %s %s\n", id, b)
	}

	if edits, err := store.NameEdits(); err == nil && len(edits) > 0 {
		fmt.Printf("name-edit windows: %v\n", edits)
	}
	if wins, err := store.DeletedWindow(); err == nil && len(wins) > 0 {
		fmt.Printf("deletion windows: %v\n", wins)
	}
	if rs, err := store.ReadState(); err == nil && len(rs) > 0 {
		fmt.Printf("read marks: %d chats\n", len(rs))
	}
}
