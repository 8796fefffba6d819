package main

import (
	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/glass"
)

var dragFlags sceneFlags

var (
	dragFrom  string
	dragTo    string
	dragSteps int
	dragOut   string
	dragLang  string
)

var dragCmd = &cobra.Command{
	Use:   "drag",
	Short: "Simulate a pointer drag and report regeneration counts",
	Long: `drag presses at --from, moves the cursor to --to in --steps equal moves
and releases. Each move while dragging moves the shape and regenerates the
silhouette and light map.`,
	Args: cobra.NoArgs,
	RunE: runDrag,
}

func init() {
	dragFlags.register(dragCmd)
	dragCmd.Flags().StringVar(&dragFrom, "from", "150,170", "press position x,y")
	dragCmd.Flags().StringVar(&dragTo, "to", "250,200", "release position x,y")
	dragCmd.Flags().IntVar(&dragSteps, "steps", 10, "number of cursor moves")
	dragCmd.Flags().StringVarP(&dragOut, "output", "o", "", "write the final frame to this PNG")
	dragCmd.Flags().StringVar(&dragLang, "lang", "en", "report language tag")
	rootCmd.AddCommand(dragCmd)
}

func runDrag(cmd *cobra.Command, args []string) error {
	from, err := parsePoint(dragFrom)
	if err != nil {
		return err
	}
	to, err := parsePoint(dragTo)
	if err != nil {
		return err
	}
	tag, err := language.Parse(dragLang)
	if err != nil {
		return err
	}
	steps := max(dragSteps, 1)

	adapter, scene, err := dragFlags.build()
	if err != nil {
		return err
	}
	defer adapter.Destroy()
	defer scene.Close()

	silBefore := scene.Silhouette().Generations()
	lightBefore := scene.LightMap().Generations()

	if err := scene.CursorMove(from.X, from.Y); err != nil {
		return err
	}
	state := scene.State()
	p := message.NewPrinter(tag)
	if state.Kind != glass.StateHovered {
		p.Fprintf(cmd.OutOrStdout(), "no shape under %.0f,%.0f\n", from.X, from.Y)
		return nil
	}
	index := state.Index
	if err := scene.MousePress(); err != nil {
		return err
	}
	for i := 1; i <= steps; i++ {
		t := float32(i) / float32(steps)
		if err := scene.CursorMove(from.X+(to.X-from.X)*t, from.Y+(to.Y-from.Y)*t); err != nil {
			return err
		}
	}
	if err := scene.MouseRelease(); err != nil {
		return err
	}

	pos, err := scene.Shapes().Position(index)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	p.Fprintf(out, "shape %d dragged over %d moves\n", index, steps)
	p.Fprintf(out, "  final center:       %.1f, %.1f\n", pos.Center.X, pos.Center.Y)
	p.Fprintf(out, "  silhouette passes:  %d\n", scene.Silhouette().Generations()-silBefore)
	p.Fprintf(out, "  light map passes:   %d\n", scene.LightMap().Generations()-lightBefore)
	w, h := scene.Size()
	p.Fprintf(out, "  texels regenerated: %d\n", 2*(scene.Silhouette().Generations()-silBefore)*w*h)

	if dragOut != "" {
		if err := writePNG(dragOut, scene); err != nil {
			return err
		}
		p.Fprintf(out, "wrote %s\n", dragOut)
	}
	return nil
}
