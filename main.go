package main

import (
	"github.com/zapdesk/app/cmd"
)

// @title ZapDesk API
// @version 1.0
// @description WhatsApp customer messaging engine: instances, conversations, tickets and SLA tracking.

// @host  localhost:8000
// @BasePath /api/v1

func main() {
	cmd.StartApp()
}
