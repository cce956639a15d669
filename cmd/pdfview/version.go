package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/gogpu/pdfview"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "pdfview %s\n", pdfview.Version)
		fmt.Fprintf(cmd.OutOrStdout(), "  Go: %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}
