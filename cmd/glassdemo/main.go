// Command glassdemo renders and drives glass scenes without a window.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/gogpu/glass"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "glassdemo",
	Short: "Render and drag glass shapes headlessly",
	Long: `glassdemo builds a scene of glass shapes over a background, renders it
to PNG and simulates pointer drags. It runs on any registered backend,
including the CPU one.`,
	Version: "0.1.0",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			glass.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			})))
		}
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log to stderr")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
