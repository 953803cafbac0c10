package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lorepatch/internal/lore"
	"lorepatch/internal/model"
)

var (
	listsRefresh bool
	listsJSON    bool
)

var listsCmd = &cobra.Command{
	Use:     "lists",
	GroupID: GroupBrowse,
	Short:   "List the mailing lists archived on the server",
	Long: `Print every mailing list of the archive with its description.

The directory is scraped once and saved to <data_dir>/mailing_lists.json;
later runs read the snapshot unless --refresh is given.

Examples:
  lorepatch lists
  lorepatch lists --refresh
  lorepatch lists --json`,
	Args: cobra.NoArgs,
	RunE: runLists,
}

func init() {
	listsCmd.Flags().BoolVar(&listsRefresh, "refresh", false, "Scrape the directory even when a snapshot exists")
	listsCmd.Flags().BoolVar(&listsJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(listsCmd)
}

func runLists(cmd *cobra.Command, _ []string) error {
	path := cfg.MailingListsPath()

	var lists []model.MailingList
	if !listsRefresh {
		if cached, err := lore.LoadAvailableLists(path); err == nil && len(cached) > 0 {
			lists = cached
		}
	}
	if lists == nil {
		fetched, err := lore.FetchAvailableLists(cmd.Context(), newClient())
		if err != nil {
			return fmt.Errorf("fetching mailing lists: %w", err)
		}
		if err := lore.SaveAvailableLists(fetched, path); err != nil {
			slog.Warn("failed to save mailing lists", "path", path, "error", err)
		}
		lists = fetched
	}

	out := cmd.OutOrStdout()
	if listsJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(lists)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, l := range lists {
		fmt.Fprintf(tw, "%s\t%s\n", l.Name, l.Description)
	}
	return tw.Flush()
}
