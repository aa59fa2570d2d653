package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"smelt/internal/driver"
)

var compileCmd = &cobra.Command{
	Use:   "compile <input.astp> [more inputs...]",
	Short: "Compile serialized programs to stack-machine assembly",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfgPath, _ := cmd.Flags().GetString("config")
		if cfgPath == "" {
			cfgPath = filepath.Join(filepath.Dir(args[0]), driver.DefaultConfigName)
		}
		cfg, err := driver.LoadConfig(cfgPath)
		if err != nil {
			return err
		}

		results, err := driver.CompileAll(cmd.Context(), args, cfg)
		if err != nil {
			return err
		}

		colorize := colorEnabled(cmd)
		timings, _ := cmd.Flags().GetBool("timings")
		failed := false
		for _, res := range results {
			if err := driver.RenderResult(os.Stdout, res, colorize); err != nil {
				return err
			}
			if timings {
				fmt.Fprint(os.Stderr, res.Timer.Summary())
			}
			failed = failed || res.Failed()
		}
		if len(results) > 1 {
			driver.RenderSummary(os.Stdout, results, colorize)
		}
		if failed {
			return fmt.Errorf("compilation failed")
		}
		return nil
	},
}
