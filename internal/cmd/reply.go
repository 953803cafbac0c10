package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"lorepatch/internal/git"
	"lorepatch/internal/lore"
	"lorepatch/internal/util"
)

var (
	replyIndex      int
	replyReviewedBy bool
)

var replyTemplateCmd = &cobra.Command{
	Use:     "reply-template <mbox>",
	GroupID: GroupMbox,
	Short:   "Print a quoted reply to one patch of a mailbox",
	Long: `Print a reply template for one patch of a downloaded mailbox.

The subject gets a "Re: " prefix, sender and threading headers are dropped,
and the body is quoted with "> ". --reviewed-by appends a Reviewed-by
trailer signed with the configured reviewer or the git identity.

Examples:
  lorepatch reply-template lkml.1234@example.com.mbx --index 1
  lorepatch reply-template lkml.1234@example.com.mbx --index 1 --reviewed-by`,
	Args: cobra.ExactArgs(1),
	RunE: runReplyTemplate,
}

func init() {
	replyTemplateCmd.Flags().IntVar(&replyIndex, "index", 0, "Position of the patch in the mailbox")
	replyTemplateCmd.Flags().BoolVar(&replyReviewedBy, "reviewed-by", false, "Append a Reviewed-by trailer")
	rootCmd.AddCommand(replyTemplateCmd)
}

func runReplyTemplate(cmd *cobra.Command, args []string) error {
	patches, err := lore.SplitPatchset(args[0])
	if err != nil {
		return err
	}
	if replyIndex < 0 || replyIndex >= len(patches) {
		return fmt.Errorf("--index %d out of range, mailbox has %d patches", replyIndex, len(patches))
	}

	out := cmd.OutOrStdout()
	fmt.Fprint(out, lore.GenerateReplyTemplate(patches[replyIndex]))
	if !replyReviewedBy {
		return nil
	}

	name, email := util.ParseSender(cfg.Reviewer)
	if email == "" {
		name, email, err = git.NewGit(cfg.GitRepoPath).Identity(cmd.Context())
		if err != nil {
			return fmt.Errorf("reading git identity: %w", err)
		}
	}
	fmt.Fprintf(out, "\nReviewed-by: %s\n", util.FormatSignature(name, email))
	return nil
}
