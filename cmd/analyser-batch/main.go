// Command analyser-batch runs the batch profile over numbered listings,
// writing numeric dumps only.
package main

import (
	"os"

	"github.com/GovindGNampoothiri/windCode/internal/app"
	"github.com/GovindGNampoothiri/windCode/internal/config"
)

func main() {
	os.Exit(app.Main("analyser-batch", os.Args[1:], config.ProfileBatch, os.Stderr))
}
