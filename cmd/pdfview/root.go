package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/gogpu/pdfview"
	"github.com/gogpu/pdfview/internal/config"
	"github.com/gogpu/pdfview/source/fitz"
	"github.com/gogpu/pdfview/source/outline"
)

var (
	cfgFile    string
	sourceKind string
	logLevel   levelValue

	cfgManager *config.Manager
	printer    = message.NewPrinter(language.English)
)

var rootCmd = &cobra.Command{
	Use:   "pdfview",
	Short: "Render PDF pages through a tiled, zoomable viewport",
	Long: `pdfview lays out a PDF as a vertical column of pages, splits the visible
part into tiles and renders them on background workers, recycling pixel
buffers between renders.

Commands:
  - render: draw one viewport to a PNG file
  - info:   print page geometry
  - watch:  re-render whenever the PDF changes`,
	Version:       pdfview.Version,
	SilenceUsage:  true,
	SilenceErrors: false,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgManager = mgr

		level := mgr.Get().LogLevel()
		if logLevel.set {
			level = logLevel.level
		}
		pdfview.SetLogger(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(
		&cfgFile, "config", "", "config file (default: ./pdfview.yaml or ~/.pdfview/pdfview.yaml)",
	)
	rootCmd.PersistentFlags().StringVar(
		&sourceKind, "source", "", "page source: fitz or outline (default from config)",
	)
	rootCmd.PersistentFlags().Var(&logLevel, "log-level", "log level: debug, info, warn or error")

	rootCmd.AddCommand(renderCmd, infoCmd, watchCmd, configCmd, versionCmd)
}

// opener returns the page source opener selected by flag or config.
func opener(cfg *config.Config) (pdfview.Opener, error) {
	kind := cfg.Source.Kind
	if sourceKind != "" {
		kind = sourceKind
	}
	switch kind {
	case "fitz":
		return fitz.Opener(cfg.Source.CachedPages), nil
	case "outline":
		return outline.Opener(), nil
	default:
		return nil, fmt.Errorf("unknown page source %q", kind)
	}
}
