package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var downloadVersion int

var downloadCmd = &cobra.Command{
	Use:     "download <message-url>",
	GroupID: GroupMbox,
	Short:   "Download a patchset mailbox with b4",
	Long: `Download the series containing a message into patchsets_dir and print
the mailbox path. b4 must be installed; an existing mailbox is reused.

Examples:
  lorepatch download https://lore.kernel.org/lkml/20240501-foo-v2-0-1234@example.com/
  lorepatch download https://lore.kernel.org/bpf/abc@example.com/ --version 3`,
	Args: cobra.ExactArgs(1),
	RunE: runDownload,
}

func init() {
	downloadCmd.Flags().IntVar(&downloadVersion, "version", 1, "Series version to fetch")
	rootCmd.AddCommand(downloadCmd)
}

func runDownload(cmd *cobra.Command, args []string) error {
	if downloadVersion < 1 {
		return fmt.Errorf("--version must be at least 1, got %d", downloadVersion)
	}
	path, err := newDownloader(newClient()).Download(cmd.Context(), cfg.PatchsetsPath(), args[0], downloadVersion)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), path)
	return nil
}
