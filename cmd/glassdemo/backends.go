package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/gogpu/glass"
)

var probeBackends bool

var backendsCmd = &cobra.Command{
	Use:   "backends",
	Short: "List registered backends in priority order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		for _, name := range glass.Backends() {
			if !probeBackends {
				fmt.Fprintln(out, name)
				continue
			}
			a, err := glass.NewAdapterNamed(name)
			if err != nil {
				fmt.Fprintf(out, "%-10s unavailable: %v\n", name, err)
				continue
			}
			fmt.Fprintf(out, "%-10s ok (%s)\n", name, a.Name())
			a.Destroy()
		}
		return nil
	},
}

func init() {
	backendsCmd.Flags().BoolVar(&probeBackends, "probe", false, "try to open each backend")
	rootCmd.AddCommand(backendsCmd)
}
