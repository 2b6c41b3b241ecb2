package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"dhtnode/util"
)

func newIDCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "id",
		Short: "Print a freshly generated node ID and exit",
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := util.RandomNodeID()
			if err != nil {
				return err
			}
			fmt.Println(id.String())
			return nil
		},
	}
}
