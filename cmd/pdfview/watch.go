package main

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/gogpu/pdfview"
	"github.com/gogpu/pdfview/internal/config"
)

var (
	watchFlags    = viewSettings{size: sizeValue(renderFlags.size), scale: 1}
	watchDebounce time.Duration
)

var watchCmd = &cobra.Command{
	Use:   "watch FILE",
	Short: "Re-render whenever the PDF or the config file changes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path, err := filepath.Abs(args[0])
		if err != nil {
			return err
		}
		ctx := cmd.Context()
		log := pdfview.Logger()

		watcher, err := fsnotify.NewWatcher()
		if err != nil {
			return fmt.Errorf("watch: %w", err)
		}
		defer watcher.Close()
		// Editors replace files, so watch the directory and filter by name.
		if err := watcher.Add(filepath.Dir(path)); err != nil {
			return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
		}

		reload := make(chan struct{}, 1)
		trigger := func() {
			select {
			case reload <- struct{}{}:
			default:
			}
		}
		cfgManager.OnChange(func(*config.Config) { trigger() })
		cfgManager.WatchConfig()

		render := func() {
			res, err := renderView(ctx, cfgManager.Get(), path, watchFlags)
			if err != nil {
				cmd.PrintErrf("render failed: %v\n", err)
				return
			}
			printResult(cmd, res)
		}
		render()

		var debounce <-chan time.Time
		for {
			select {
			case <-ctx.Done():
				return nil
			case ev, ok := <-watcher.Events:
				if !ok {
					return nil
				}
				if filepath.Clean(ev.Name) != path || !(ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create)) {
					continue
				}
				log.Debug("watch: file changed", "file", ev.Name, "op", ev.Op.String())
				debounce = time.After(watchDebounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return nil
				}
				log.Warn("watch: watcher error", "err", err)
			case <-reload:
				debounce = time.After(watchDebounce)
			case <-debounce:
				debounce = nil
				render()
			}
		}
	},
}

func init() {
	addViewFlags(watchCmd, &watchFlags)
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 200*time.Millisecond, "wait this long after a change before rendering")
}
