package main

import (
	"os"

	"github.com/tkingovr/roochguard/cmd/roochguard/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
