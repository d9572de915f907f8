package main

import (
	"os"

	"github.com/michaelpento.lv/crossarb/cmd"
	"github.com/michaelpento.lv/crossarb/utils"
)

func main() {
	defer utils.CleanupLogger()

	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
