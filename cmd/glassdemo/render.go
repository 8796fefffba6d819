package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var renderFlags sceneFlags

var renderCmd = &cobra.Command{
	Use:   "render [output.png]",
	Short: "Render a scene snapshot to PNG",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runRender,
}

var renderCursor string

func init() {
	renderFlags.register(renderCmd)
	renderCmd.Flags().StringVar(&renderCursor, "cursor", "", "cursor position x,y for the hover glow")
	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	out := "glass.png"
	if len(args) == 1 {
		out = args[0]
	}
	adapter, scene, err := renderFlags.build()
	if err != nil {
		return err
	}
	defer adapter.Destroy()
	defer scene.Close()

	if renderCursor != "" {
		p, err := parsePoint(renderCursor)
		if err != nil {
			return err
		}
		if err := scene.CursorMove(p.X, p.Y); err != nil {
			return err
		}
	}
	if err := writePNG(out, scene); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%dx%d, %d shapes)\n",
		out, renderFlags.width, renderFlags.height, scene.Shapes().Len())
	return nil
}
