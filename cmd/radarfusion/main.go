// Command radarfusion ingests weather-radar composite products from
// six national meteorological providers, reprojects each onto a
// shared Web Mercator grid, and fuses them into a single Central
// European composite.
package main

import (
	"fmt"
	"os"

	"github.com/imeteo/radarfusion/internal/cliapp"
)

func main() {
	if err := cliapp.NewRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
