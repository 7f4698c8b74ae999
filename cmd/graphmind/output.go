package main

import (
	"net/http"
	"time"

	"github.com/fatih/color"

	"github.com/psidex/graphmind/internal/knowledge"
)

var (
	brand  = color.New(color.FgHiGreen, color.Bold)
	subtle = color.New(color.FgHiBlack)
	good   = color.New(color.FgGreen)
	bad    = color.New(color.FgRed)
	accent = color.New(color.FgHiMagenta)
)

func newKnowledgeClient() *knowledge.Client {
	return knowledge.NewClient(cfg.Client.HubURL,
		knowledge.WithHTTPClient(&http.Client{Timeout: requestTimeout()}),
		knowledge.WithBreaker(knowledge.DefaultBreakerSettings("graphmind-hub")),
	)
}

// requestTimeout bounds each command's conversation with the hub.
func requestTimeout() time.Duration {
	if cfg.Client.Timeout.Duration > 0 {
		return cfg.Client.Timeout.Duration
	}
	return knowledge.DefaultTimeout
}
