// Command analyser runs the interactive profile: one listing, plots and
// numeric dumps for every record.
package main

import (
	"os"

	"github.com/GovindGNampoothiri/windCode/internal/app"
	"github.com/GovindGNampoothiri/windCode/internal/config"
)

func main() {
	os.Exit(app.Main("analyser", os.Args[1:], config.ProfileInteractive, os.Stderr))
}
