package version

import (
	"github.com/hashicorp-forge/chartpress/internal/cmd/base"
	"github.com/hashicorp-forge/chartpress/internal/version"
)

type Command struct {
	*base.Command
}

func (c *Command) Synopsis() string {
	return "Print the chartpress version"
}

func (c *Command) Help() string {
	return "Usage: chartpress version\n"
}

func (c *Command) Run(args []string) int {
	c.UI.Output(version.Version)
	return 0
}
