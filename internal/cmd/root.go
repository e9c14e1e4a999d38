package cmd

import (
	"github.com/alecthomas/kong"
	"github.com/jimezsa/jobops/internal/config"
)

type CLI struct {
	Color   string `help:"Color output: auto, always, never." enum:"auto,always,never" default:"auto"`
	JSON    bool   `help:"JSON output to stdout; disables colors."`
	Plain   bool   `help:"TSV output to stdout; disables colors."`
	Verbose bool   `help:"Enable debug logging."`

	APIBase   string `name:"api-base" help:"Backend base URL." default:"${api_base}"`
	ProxyURLs string `name:"proxies" help:"Comma-separated proxy URLs." env:"JOBOPS_PROXIES"`
	Retries   int    `help:"Extra attempts for failed backend calls (exponential backoff: 2s, 4s, 8s...)." default:"${retries}"`
	HistoryDB string `name:"history-db" help:"SQLite file recording runs; empty disables history." default:"${history_db}" env:"JOBOPS_HISTORY_DB"`

	VersionFlag kong.VersionFlag `name:"version" help:"Print version."`

	Version VersionCmd `cmd:"" help:"Print version."`
	Config  ConfigCmd  `cmd:"" help:"Manage configuration."`
	Ingest  IngestCmd  `cmd:"" help:"Trigger backend ingestion across search queries and pages."`
	Expire  ExpireCmd  `cmd:"" help:"Mark expired jobs, or preview them with --dry-run."`
	Stats   StatsCmd   `cmd:"" help:"Show total job count and a sampled status distribution."`
	History HistoryCmd `cmd:"" help:"List recorded runs."`
	Proxies ProxiesCmd `cmd:"" help:"Proxy utilities."`
}

func NewCLI() *CLI {
	return &CLI{}
}

// Vars returns the kong variables used for flag defaults.
func Vars(cfg config.Config, version string) kong.Vars {
	vars := kong.Vars{"version": version}
	for key, value := range cfg.Vars() {
		vars[key] = value
	}
	return vars
}
