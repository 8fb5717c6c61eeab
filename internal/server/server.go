package server

import (
	"github.com/hashicorp/go-hclog"

	"github.com/hashicorp-forge/chartpress/internal/config"
	"github.com/hashicorp-forge/chartpress/pkg/datawrapper"
	"github.com/hashicorp-forge/chartpress/pkg/gsheets"
)

// Server contains the server configuration and the collaborators handlers
// need.
type Server struct {
	// Config is the config for the server.
	Config *config.Config

	// Logger is the logger for the server.
	Logger hclog.Logger

	// Charts is the Datawrapper API client.
	Charts *datawrapper.Client

	// Sheets fetches and parses source spreadsheets.
	Sheets *gsheets.Fetcher
}
