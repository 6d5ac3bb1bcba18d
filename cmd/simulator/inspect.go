package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/signalsfoundry/mobility-simulator/trace"
)

func newInspectCmd() *cobra.Command {
	var (
		showMatrix bool
		node       int
	)
	cmd := &cobra.Command{
		Use:   "inspect <trace-file>",
		Short: "Print the header, and optionally the positions, of a binary trace",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return inspect(cmd.OutOrStdout(), args[0], showMatrix, node)
		},
	}
	cmd.Flags().BoolVar(&showMatrix, "matrix", false, "also print every (x, y) position")
	cmd.Flags().IntVar(&node, "node", -1, "also print the track of one node")
	return cmd
}

func inspect(out io.Writer, path string, showMatrix bool, node int) error {
	h, m, err := trace.ReadFile(path)
	if err != nil {
		return err
	}
	if node >= m.Nodes {
		return fmt.Errorf("node %d outside [0,%d)", node, m.Nodes)
	}
	fmt.Fprintf(out, "file:           %s\n", path)
	fmt.Fprintf(out, "nodes:          %d\n", h.NodeCount)
	fmt.Fprintf(out, "duration steps: %d\n", h.DurationSteps)
	fmt.Fprintf(out, "mbr:            (%g, %g) - (%g, %g)\n", h.MinX, h.MinY, h.MaxX, h.MaxY)
	fmt.Fprintf(out, "size:           %d bytes\n", h.FileSize())
	if node >= 0 {
		fmt.Fprintf(out, "node %d:\n", node)
		for i := 0; i < m.Steps; i++ {
			p := m.At(i, node)
			fmt.Fprintf(out, "  %d: (%g, %g)\n", i, p.X, p.Y)
		}
	}
	if !showMatrix {
		return nil
	}
	for i := 0; i < m.Steps; i++ {
		fmt.Fprintf(out, "%d:", i)
		for _, p := range m.Row(i) {
			fmt.Fprintf(out, " (%g, %g)", p.X, p.Y)
		}
		fmt.Fprintln(out)
	}
	return nil
}
