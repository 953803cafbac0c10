package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"lorepatch/internal/lore"
	"lorepatch/internal/model"
	"lorepatch/internal/store"
)

var (
	patchesPage int
	patchesJSON bool
)

var patchesCmd = &cobra.Command{
	Use:     "patches <list>",
	GroupID: GroupBrowse,
	Short:   "Print one page of the latest patchsets of a list",
	Long: `Fetch the patch feed of a mailing list and print one page of patchsets.

Each series is shown once, by its cover letter when it has one. Pages
hold page_size entries; fetched pages are also written to the cache
the interactive browser reads on startup.

Examples:
  lorepatch patches lkml
  lorepatch patches bpf --page 3 --page-size 10
  lorepatch patches lkml --json`,
	Args: cobra.ExactArgs(1),
	RunE: runPatches,
}

func init() {
	patchesCmd.Flags().IntVar(&patchesPage, "page", 1, "Page number, starting at 1")
	patchesCmd.Flags().BoolVar(&patchesJSON, "json", false, "Output as JSON")
	rootCmd.AddCommand(patchesCmd)
}

func runPatches(cmd *cobra.Command, args []string) error {
	list := args[0]
	if patchesPage < 1 {
		return fmt.Errorf("--page must be at least 1, got %d", patchesPage)
	}

	need, err := lore.WindowEnd(cfg.PageSize, patchesPage)
	if err != nil {
		return fmt.Errorf("--page: %w", err)
	}

	sess := lore.NewSession(list, lore.WithMaxEmptyPages(cfg.MaxEmptyPages))
	if err := sess.EnsureAtLeast(cmd.Context(), newClient(), need); err != nil {
		return err
	}
	patches, ok := sess.Page(cfg.PageSize, patchesPage)
	if !ok {
		return fmt.Errorf("page %d of %s is empty (%d patchsets found)", patchesPage, list, sess.RepresentativeCount())
	}

	if err := cachePage(cmd, list, patches); err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if patchesJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(patches)
	}

	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	for _, p := range patches {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", p.SeriesLabel(), p.Author.Name, p.Title, p.ID())
	}
	return tw.Flush()
}

func cachePage(cmd *cobra.Command, list string, patches []model.Patch) error {
	cache, err := store.NewSQLiteStore(cfg.CachePath())
	if err != nil {
		return fmt.Errorf("open cache: %w", err)
	}
	defer cache.Close()
	if patchesPage == 1 {
		// A fresh first page invalidates positions cached by earlier runs.
		if err := cache.DeletePatches(cmd.Context(), list); err != nil {
			return fmt.Errorf("clear cache: %w", err)
		}
	}
	return cache.UpsertPatches(cmd.Context(), list, (patchesPage-1)*cfg.PageSize, patches)
}
