package main

import (
	"github.com/spf13/cobra"

	"github.com/gogpu/pdfview"
)

var infoCmd = &cobra.Command{
	Use:   "info FILE",
	Short: "Print page count, page sizes and document identity",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		op, err := opener(cfgManager.Get())
		if err != nil {
			return err
		}
		src, err := op.Open(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		defer src.Close()

		count := src.PageCount()
		printer.Fprintf(cmd.OutOrStdout(), "%s\n  id:    %s\n  pages: %d\n", args[0], pdfview.DocumentID(args[0]), count)

		var area int64
		for i := 0; i < count; i++ {
			w, h, err := src.PageSize(i)
			if err != nil {
				printer.Fprintf(cmd.OutOrStdout(), "  %4d  error: %v\n", i+1, err)
				continue
			}
			area += int64(w) * int64(h)
			printer.Fprintf(cmd.OutOrStdout(), "  %4d  %d x %d pt\n", i+1, w, h)
		}
		// One RGBA pixel per point at scale 1.
		printer.Fprintf(cmd.OutOrStdout(), "  raster at scale 1: %d KB\n", area*4/1024)
		return nil
	},
}
