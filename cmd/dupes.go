package cmd

import (
	"fmt"
	"strconv"
	"toolshed/internal/dupes"

	"github.com/spf13/cobra"
)

var dupesCmd = &cobra.Command{
	Use:   "dupes [dir]",
	Short: "Find files with identical content",
	Long: `Hash every file under dir (the sorted downloads folder by default) and
list the groups of files whose content is identical.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDupes,
}

func runDupes(cmd *cobra.Command, args []string) error {
	root := cfg.Downloads.SortedPath
	if len(args) == 1 {
		root = args[0]
	}

	groups, err := dupes.FindDuplicates(cmd.Context(), root, logger)
	if err != nil {
		return fmt.Errorf("failed to find duplicates: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(groups) == 0 {
		fmt.Fprintln(out, "No duplicate files found.")
		return nil
	}

	var wasted int64
	table := newTable(out, "Hash", "Size", "Copies", "Files")
	for _, g := range groups {
		wasted += g.Size * int64(g.Count-1)
		for i, f := range g.Files {
			if i == 0 {
				table.Append([]string{g.Hash[:12], formatSize(g.Size), strconv.Itoa(g.Count), f})
				continue
			}
			table.Append([]string{"", "", "", f})
		}
	}
	table.Render()

	fmt.Fprintf(out, "\n%s\n", warnStyle.Render(fmt.Sprintf("%d duplicate group(s), %s reclaimable", len(groups), formatSize(wasted))))
	return nil
}
