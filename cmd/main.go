package main

import (
	"os"
	_ "time/tzdata"

	"einstein-dashboard/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
