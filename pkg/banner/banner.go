package banner

import (
	"fmt"

	"leadsync/pkg/config"
)

const banner = `
██╗     ███████╗ █████╗ ██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗
██║     ██╔════╝██╔══██╗██╔══██╗██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
██║     █████╗  ███████║██║  ██║███████╗ ╚████╔╝ ██╔██╗ ██║██║
██║     ██╔══╝  ██╔══██║██║  ██║╚════██║  ╚██╔╝  ██║╚██╗██║██║
███████╗███████╗██║  ██║██████╔╝███████║   ██║   ██║ ╚████║╚██████╗
╚══════╝╚══════╝╚═╝  ╚═╝╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// Print shows the startup summary for an effective config.
func Print(eff config.EffectiveConfigResult, version string) {
	addr := eff.Addr
	if addr == "" && eff.Config != nil {
		addr = eff.Config.Addr()
	}
	dbPath := eff.DBPath
	if dbPath == "" && eff.Config != nil {
		dbPath = eff.Config.Server.DBPath
	}
	src := eff.Source
	if src == "" {
		src = "flags"
	}

	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", addr)
	fmt.Printf("DB Path:  %s\n", dbPath)
	if eff.Webhook != "" {
		fmt.Printf("Webhook:  %s\n", eff.Webhook)
	}
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Printf("Config source: %s\n", src)
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("POST /v1/login - Authenticate against the automation backend")
	fmt.Println("GET  /v1/state - Connection status and snapshot counters")
	fmt.Println("GET  /v1/chats - Chat list with CRM, tags and unread counts")
	fmt.Println("GET  /v1/chats/{id}/messages?fragments=1 - Transcript with reply fragments")
	fmt.Println("GET  /metrics - Prometheus metrics")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl -X POST 'http://localhost%s/v1/login' -d '{\"email\":\"a@b.c\",\"password\":\"...\"}'\n", addr)
	fmt.Printf("curl 'http://localhost%s/v1/chats'\n", addr)
}
