package main

import (
	"os"

	"github.com/tanpawarit/ops-desk/cmd"
	_ "github.com/tanpawarit/ops-desk/pkg/logger/autoload"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
