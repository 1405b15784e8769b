package main

import (
	"os"

	nsoctlcmd "github.com/nso-bridge/nsoctl/pkg/nsoctl/cmd"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := nsoctlcmd.NewRootCommand(nsoctlcmd.DefaultConfig())
	root.SetArgs(args)
	if err := root.Execute(); err != nil {
		return 1
	}
	return 0
}
