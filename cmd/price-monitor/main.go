// Package main is the entry point for the price-monitor service.
package main

import (
	"os"

	"github.com/donaldgifford/price-monitor/cmd/price-monitor/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
