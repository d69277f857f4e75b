// main - main entry-point to pulseras-go commands through cobra
// individual commands are outlined in ./cmd/ and the services' cmd packages
package main

import (
	"github.com/pulseras/pulseras-go/cmd"
	"github.com/pulseras/pulseras-go/libs/logging"

	// pull in the services
	_ "github.com/pulseras/pulseras-go/services/checkout/cmd"
	_ "github.com/pulseras/pulseras-go/services/rates/cmd"
)

var (
	// variables will be overwritten at build time
	version   string
	commit    string
	buildTime string
)

func main() {
	defer func() {
		if logging.Writer != nil {
			logging.Writer.Close()
		}
	}()
	cmd.Execute(version, commit, buildTime)
}
