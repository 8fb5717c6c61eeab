package main

import (
	"os"

	"github.com/hashicorp-forge/chartpress/internal/cmd"
)

func main() {
	os.Exit(cmd.Main(os.Args))
}
