// Command dhtnode is a thin process wrapper around the node package: it
// resolves configuration with viper, then either runs a node until
// interrupted or prints a freshly generated node ID.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "dhtnode",
		Short: "Run or inspect a BitTorrent Mainline DHT node",
	}
	root.AddCommand(newRunCmd())
	root.AddCommand(newIDCmd())
	return root
}
