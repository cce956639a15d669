package main

import (
	"context"
	"fmt"
	"image"
	"image/png"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/gogpu/pdfview"
	"github.com/gogpu/pdfview/internal/config"
)

// viewSettings describes one viewport to render.
type viewSettings struct {
	size      sizeValue
	page      int
	scale     float64
	output    string
	stateFile string
	saveState bool
	timeout   time.Duration
}

var renderFlags = viewSettings{size: sizeValue(image.Pt(800, 1000)), scale: 1}

var renderCmd = &cobra.Command{
	Use:   "render FILE",
	Short: "Render one viewport of a PDF to PNG",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := renderView(cmd.Context(), cfgManager.Get(), args[0], renderFlags)
		if err != nil {
			return err
		}
		printResult(cmd, res)
		return nil
	},
}

func addViewFlags(cmd *cobra.Command, v *viewSettings) {
	f := cmd.Flags()
	f.VarP(&v.size, "size", "s", "surface size as WIDTHxHEIGHT")
	f.IntVarP(&v.page, "page", "p", 1, "first page to show (1-based)")
	f.Float64Var(&v.scale, "scale", 1, "zoom factor; 1 fits the page width")
	f.StringVarP(&v.output, "output", "o", "page.png", "PNG file to write")
	f.StringVar(&v.stateFile, "state", "", "restore the viewport from this YAML state file")
	f.BoolVar(&v.saveState, "save-state", false, "write the final viewport back to --state")
	f.DurationVar(&v.timeout, "timeout", time.Minute, "give up if rendering takes longer")
}

func init() {
	addViewFlags(renderCmd, &renderFlags)
}

// renderResult summarizes one render.
type renderResult struct {
	output  string
	pages   int
	first   int
	last    int
	elapsed time.Duration
	stats   pdfview.Stats
}

// renderView opens path, positions the viewport and writes the settled
// surface to v.output.
func renderView(ctx context.Context, cfg *config.Config, path string, v viewSettings) (*renderResult, error) {
	start := time.Now()
	op, err := opener(cfg)
	if err != nil {
		return nil, err
	}
	doc, err := pdfview.Open(ctx, path, op, cfg.Options()...)
	if err != nil {
		return nil, err
	}
	defer doc.Close()

	doc.Resize(v.size.X, v.size.Y)
	if err := position(doc, v); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, v.timeout)
	defer cancel()
	if err := doc.Settle(ctx); err != nil {
		return nil, fmt.Errorf("render %s: %w", path, err)
	}

	surface := image.NewRGBA(image.Rect(0, 0, v.size.X, v.size.Y))
	doc.Draw(surface)
	if err := writePNG(v.output, surface); err != nil {
		return nil, err
	}
	if v.saveState && v.stateFile != "" {
		if err := saveState(v.stateFile, doc.State()); err != nil {
			return nil, err
		}
	}

	first, last := doc.VisiblePages()
	return &renderResult{
		output:  v.output,
		pages:   doc.PageCount(),
		first:   first,
		last:    last,
		elapsed: time.Since(start),
		stats:   doc.Stats(),
	}, nil
}

// position applies a saved state if one exists, else the page and scale
// flags.
func position(doc *pdfview.Document, v viewSettings) error {
	if v.stateFile != "" {
		f, err := os.Open(v.stateFile)
		switch {
		case err == nil:
			defer f.Close()
			s, err := pdfview.ReadState(f)
			if err != nil {
				return err
			}
			return doc.Restore(s)
		case !os.IsNotExist(err):
			return err
		}
	}
	if err := doc.ScrollToPage(v.page - 1); err != nil {
		return err
	}
	doc.ScaleTo(0, 0, v.scale)
	return nil
}

func writePNG(path string, img image.Image) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := png.Encode(f, img); err != nil {
		f.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return f.Close()
}

func saveState(path string, s pdfview.State) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := pdfview.WriteState(f, s); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func printResult(cmd *cobra.Command, r *renderResult) {
	d := r.stats.Render.Details
	th := r.stats.Render.Thumbnails
	printer.Fprintf(cmd.OutOrStdout(), "wrote %s: pages %d-%d of %d in %v\n",
		r.output, r.first+1, r.last+1, r.pages, r.elapsed.Round(time.Millisecond))
	printer.Fprintf(cmd.OutOrStdout(), "  tiles:  %d detail, %d thumbnail, %d failed\n",
		d.Rendered, th.Rendered, d.Failed+th.Failed)
	printer.Fprintf(cmd.OutOrStdout(), "  cache:  %d KB of %d KB, hit rate %.0f%%\n",
		r.stats.Cache.SizeKB, r.stats.Cache.BudgetKB, r.stats.Cache.HitRate*100)
}
