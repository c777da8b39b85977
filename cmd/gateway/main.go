/*
This command provides an executable version of the gateway with the builtin
predicates and filters.

For the list of command line options, run:

	gateway -help

Options may be given in a YAML file as well, with -config-file. Flags
override the values of the file.
*/
package main

import (
	log "github.com/sirupsen/logrus"

	"github.com/zalando/gateway"
	"github.com/zalando/gateway/config"
)

func main() {
	cfg := config.NewConfig()
	if err := cfg.Parse(); err != nil {
		log.Fatalf("Error processing config: %s", err)
	}

	log.SetLevel(cfg.ApplicationLogLevel)
	if err := gateway.Run(cfg.ToOptions()); err != nil {
		log.Fatal(err)
	}
}
