package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"lorepatch/internal/lore"
)

var (
	splitIndex int
	splitPart  string
)

var splitCmd = &cobra.Command{
	Use:     "split <mbox>",
	GroupID: GroupMbox,
	Short:   "Split a downloaded patchset mailbox into patches",
	Long: `Split a mailbox written by b4 into its messages.

A ".cover" file next to the ".mbx" is read first, so the cover letter is
patch 0. Without --index every patch is listed with its subject.

Examples:
  lorepatch split lkml.1234@example.com.mbx
  lorepatch split lkml.1234@example.com.mbx --index 2
  lorepatch split lkml.1234@example.com.mbx --index 2 --part diff`,
	Args: cobra.ExactArgs(1),
	RunE: runSplit,
}

func init() {
	splitCmd.Flags().IntVar(&splitIndex, "index", -1, "Print the patch at this position")
	splitCmd.Flags().StringVar(&splitPart, "part", "all", "With --index: all, cover or diff")
	rootCmd.AddCommand(splitCmd)
}

func runSplit(cmd *cobra.Command, args []string) error {
	patches, err := lore.SplitPatchset(args[0])
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if splitIndex < 0 {
		for i, p := range patches {
			fmt.Fprintf(out, "%d\t%s\n", i, subjectOf(p))
		}
		return nil
	}
	if splitIndex >= len(patches) {
		return fmt.Errorf("--index %d out of range, mailbox has %d patches", splitIndex, len(patches))
	}

	patch := patches[splitIndex]
	cover, diff := lore.SplitCover(patch)
	switch splitPart {
	case "all":
		fmt.Fprint(out, patch)
	case "cover":
		fmt.Fprint(out, cover)
	case "diff":
		fmt.Fprint(out, diff)
	default:
		return fmt.Errorf("unknown --part %q (want all, cover or diff)", splitPart)
	}
	return nil
}

// subjectOf returns the Subject header value of a raw patch.
func subjectOf(patch string) string {
	for _, line := range strings.Split(patch, "\n") {
		if line == "" {
			break
		}
		if s, ok := strings.CutPrefix(line, "Subject: "); ok {
			return s
		}
	}
	return ""
}
