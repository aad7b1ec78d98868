// Package main is the entry point for the pmon CLI client.
package main

import (
	"github.com/donaldgifford/price-monitor/cmd/pmon/cmd"
)

func main() {
	cmd.Execute()
}
