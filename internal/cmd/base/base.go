// Package base carries the plumbing shared by all CLI commands: the UI, the
// logger, and a flag set that knows how to render its own help.
package base

import (
	"bytes"
	"flag"

	"github.com/hashicorp/go-hclog"
	"github.com/mitchellh/cli"
)

// Command is embedded by every subcommand.
type Command struct {
	// UI is used for command output.
	UI cli.Ui

	// Log is the logger commands hand down to the server and clients.
	Log hclog.Logger
}

// NewCommand creates a base command.
func NewCommand(ui cli.Ui, log hclog.Logger) *Command {
	return &Command{
		UI:  ui,
		Log: log,
	}
}

// FlagSet wraps flag.FlagSet with help rendering.
type FlagSet struct {
	*flag.FlagSet
}

// NewFlagSet creates a named flag set that reports errors instead of exiting.
func NewFlagSet(name string) *FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &FlagSet{FlagSet: fs}
}

// Help renders the flag set's defaults as a help string.
func (f *FlagSet) Help() string {
	var buf bytes.Buffer
	f.SetOutput(&buf)
	f.PrintDefaults()
	return buf.String()
}
