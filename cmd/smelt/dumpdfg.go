package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"smelt/internal/driver"
)

var dumpDFGCmd = &cobra.Command{
	Use:   "dump-dfg <input.astp>",
	Short: "Print the control-flow graph of a program",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		dump, err := driver.DumpDFG(args[0])
		if err != nil {
			return err
		}
		fmt.Print(dump)
		return nil
	},
}
