package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"sketch-engine/internal/sketch/expr"
	"sketch-engine/internal/sketch/extrude"
	"sketch-engine/internal/sketch/graph"
	"sketch-engine/internal/sketch/mapper"
	"sketch-engine/internal/sketch/models"

	"github.com/spf13/cobra"
)

var errInvalidSketch = errors.New("sketch has validation errors")

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "sketchctl",
		Short:         "Parametric cross-section sketch tool",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.AddCommand(newValidateCmd())
	root.AddCommand(newSolidCmd())
	root.AddCommand(newEvalCmd())
	root.AddCommand(newRenderCmd())
	root.AddCommand(newConvertCmd())
	return root
}

func readSketch(path string) (*models.Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read sketch: %w", err)
	}
	return models.ParseDocument(data)
}

// writeOutput пишет в файл, если он задан, иначе в stdout команды.
func writeOutput(cmd *cobra.Command, path string, data []byte) error {
	if path == "" {
		_, err := cmd.OutOrStdout().Write(data)
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	fmt.Fprintf(cmd.ErrOrStderr(), "written %s (%d bytes)\n", path, len(data))
	return nil
}

// ============================================================
// validate
// ============================================================

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <sketch.json>",
		Short: "Check references, closure, parameters and extrusion settings",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSketch(args[0])
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			report := graph.Validate(doc)
			for _, e := range report.Errors {
				fmt.Fprintf(out, "error: %s\n", e)
			}
			for _, w := range report.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			if !report.OK() {
				return fmt.Errorf("%w: %d errors", errInvalidSketch, len(report.Errors))
			}
			fmt.Fprintln(out, "ok")
			return nil
		},
	}
}

// ============================================================
// solid
// ============================================================

func newSolidCmd() *cobra.Command {
	var (
		asJSON bool
		output string
	)

	cmd := &cobra.Command{
		Use:   "solid <sketch.json>",
		Short: "Extrude the sketch and report the mesh",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSketch(args[0])
			if err != nil {
				return err
			}
			resolved, err := graph.Resolve(doc)
			if err != nil {
				return err
			}
			solid, err := extrude.BuildSolid(doc, resolved.Params)
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(solid, "", "  ")
				if err != nil {
					return err
				}
				return writeOutput(cmd, output, append(data, '\n'))
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "vertices:  %d\n", len(solid.Vertices))
			fmt.Fprintf(out, "triangles: %d\n", len(solid.Triangles))
			fmt.Fprintf(out, "height:    %s\n", strconv.FormatFloat(solid.Height, 'f', -1, 64))
			fmt.Fprintf(out, "volume:    %.3f\n", solid.Volume())
			fmt.Fprintf(out, "footprint: (%g, %g) - (%g, %g)\n",
				solid.Footprint.Min.X, solid.Footprint.Min.Y, solid.Footprint.Max.X, solid.Footprint.Max.Y)
			for _, w := range solid.Warnings {
				fmt.Fprintf(out, "warning: %s\n", w)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full mesh as JSON")
	cmd.Flags().StringVarP(&output, "output", "o", "", "Write JSON to a file instead of stdout")
	return cmd
}

// ============================================================
// eval
// ============================================================

func newEvalCmd() *cobra.Command {
	var (
		sketchPath string
		params     []string
	)

	cmd := &cobra.Command{
		Use:   "eval <expression>",
		Short: "Evaluate an expression against sketch parameters",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values := map[string]float64{}
			if sketchPath != "" {
				doc, err := readSketch(sketchPath)
				if err != nil {
					return err
				}
				values, _, err = expr.ResolveParameters(doc.Params)
				if err != nil {
					return err
				}
			}
			for _, kv := range params {
				name, raw, ok := strings.Cut(kv, "=")
				if !ok {
					return fmt.Errorf("param %q: expected name=value", kv)
				}
				v, err := strconv.ParseFloat(raw, 64)
				if err != nil {
					return fmt.Errorf("param %q: %w", kv, err)
				}
				values[strings.TrimSpace(name)] = v
			}

			names := make([]string, 0, len(values))
			for name := range values {
				names = append(names, name)
			}
			sort.Strings(names)
			if res := expr.Validate(args[0], names); !res.Valid {
				return fmt.Errorf("invalid expression: %s", res.Error)
			}

			value := expr.EvaluateString(args[0], values)
			fmt.Fprintln(cmd.OutOrStdout(), strconv.FormatFloat(value, 'f', -1, 64))
			return nil
		},
	}

	cmd.Flags().StringVarP(&sketchPath, "sketch", "s", "", "Take parameters from a sketch file")
	cmd.Flags().StringArrayVarP(&params, "param", "p", nil, "Parameter override name=value (repeatable)")
	return cmd
}

// ============================================================
// render & convert
// ============================================================

func newRenderCmd() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "render <sketch.json>",
		Short: "Draw an SVG preview of the sketch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			doc, err := readSketch(args[0])
			if err != nil {
				return err
			}
			svg, err := mapper.NewRenderer().Render(doc)
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, []byte(svg+"\n"))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	return cmd
}

func newConvertCmd() *cobra.Command {
	var (
		output string
		height float64
		flip   bool
	)

	cmd := &cobra.Command{
		Use:   "convert <drawing.svg>",
		Short: "Import an SVG drawing with Outer_/Hole_ ids as a sketch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var in io.Reader = cmd.InOrStdin()
			if args[0] != "-" {
				f, err := os.Open(args[0])
				if err != nil {
					return fmt.Errorf("open svg: %w", err)
				}
				defer f.Close()
				in = f
			}

			converter := mapper.New(height)
			if flip {
				converter.FlipY()
			}
			doc, err := converter.Convert(in)
			if err != nil {
				return err
			}

			data, err := json.MarshalIndent(doc, "", "  ")
			if err != nil {
				return err
			}
			return writeOutput(cmd, output, append(data, '\n'))
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "Output file")
	cmd.Flags().Float64Var(&height, "height", mapper.DefaultHeight, "Extrusion height")
	cmd.Flags().BoolVar(&flip, "flip", false, "Flip the Y axis (SVG screen coordinates are Y-down)")
	return cmd
}
