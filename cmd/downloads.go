package cmd

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"toolshed/internal/api"
	"toolshed/internal/config"
	"toolshed/internal/downloads"

	"github.com/spf13/cobra"
)

var (
	watchPath     string
	downloadsPort int
)

var downloadsCmd = &cobra.Command{
	Use:   "downloads",
	Short: "Sort downloaded files into category folders",
	Long: `Move files from the watch folder into <sorted>/<category>/ by file
extension, keeping a history of every move. Name clashes get a numeric
suffix; partial downloads and hidden files are left alone.`,
}

var downloadsSortCmd = &cobra.Command{
	Use:   "sort",
	Short: "Sort the files currently in the watch folder and exit",
	Args:  cobra.NoArgs,
	RunE:  runDownloadsSort,
}

var downloadsServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Watch the download folder and serve the download manager API",
	Args:  cobra.NoArgs,
	RunE:  runDownloadsServe,
}

func init() {
	downloadsCmd.PersistentFlags().StringVar(&watchPath, "path", "", "Folder to sort (default from config)")
	downloadsServeCmd.Flags().IntVar(&downloadsPort, "port", 0, "Port to listen on (default from config)")

	downloadsCmd.AddCommand(downloadsSortCmd)
	downloadsCmd.AddCommand(downloadsServeCmd)
}

// downloadsConfig applies the command line overrides to the downloads
// section.
func downloadsConfig() (config.DownloadsConfig, error) {
	dlCfg := cfg.Downloads
	if watchPath != "" {
		abs, err := filepath.Abs(watchPath)
		if err != nil {
			return dlCfg, fmt.Errorf("failed to resolve %s: %w", watchPath, err)
		}
		dlCfg.WatchPath = abs
	}
	if downloadsPort != 0 {
		dlCfg.Port = downloadsPort
	}
	return dlCfg, nil
}

func newSorter(dlCfg config.DownloadsConfig) (*downloads.Sorter, *downloads.History, error) {
	history := downloads.OpenHistory(dlCfg.HistoryFile, logger)
	sorter := downloads.NewSorter(dlCfg, history, logger)
	if err := sorter.Prepare(); err != nil {
		return nil, nil, err
	}
	return sorter, history, nil
}

func runDownloadsSort(cmd *cobra.Command, args []string) error {
	dlCfg, err := downloadsConfig()
	if err != nil {
		return err
	}
	sorter, _, err := newSorter(dlCfg)
	if err != nil {
		return err
	}

	root := dlCfg.WatchPath
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", root, err)
	}

	out := cmd.OutOrStdout()
	table := newTable(out, "File", "Category", "Size", "Sorted To")
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		moved, err := sorter.Sort(filepath.Join(root, entry.Name()))
		if err != nil {
			logger.Error("error sorting file", "file", entry.Name(), "error", err)
			continue
		}
		if moved == nil {
			continue
		}
		table.Append([]string{moved.Filename, moved.Category, formatSize(moved.Size), moved.SortedPath})
	}

	stats := sorter.Stats()
	if stats.TotalSorted == 0 {
		fmt.Fprintln(out, "Nothing to sort.")
		return nil
	}
	table.Render()
	fmt.Fprintf(out, "\n%s\n", okStyle.Render(fmt.Sprintf("✓ Sorted %d file(s)", stats.TotalSorted)))
	return nil
}

func runDownloadsServe(cmd *cobra.Command, args []string) error {
	dlCfg, err := downloadsConfig()
	if err != nil {
		return err
	}
	sorter, history, err := newSorter(dlCfg)
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	ctx, stop := signalContext(cmd.Context())
	defer stop()

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := downloads.NewWatcher(sorter, logger).Run(ctx); err != nil {
			logger.Error("watcher stopped", "error", err)
			stop()
		}
	}()

	server := api.NewDownloadServer(dlCfg, sorter, history, logger)
	return serve(ctx, "downloads", dlCfg.Port, server.Handler())
}
