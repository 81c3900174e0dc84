package cli

import (
	"context"
	"log/slog"
	"strconv"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "split",
		Short: "Fork a new branch from the active timeline",
		Long: "Fork a new branch from the active timeline and make it active. The parent is paused; " +
			"the new branch starts immediately unless --paused is given.",
		Args: cobra.NoArgs,
		Run:  runSplit,
	}

	cmd.Flags().Bool("restart-parent", true, "Start the parent first if it was never started")
	cmd.Flags().Bool("paused", false, "Leave the new branch paused")

	RootCmd.AddCommand(cmd)
}

type splitView struct {
	statusView
	BranchID uint32 `json:"branch_id"`
	ParentID uint32 `json:"parent_id"`
}

func runSplit(cmd *cobra.Command, args []string) {
	restart, _ := cmd.Flags().GetBool("restart-parent")
	paused, _ := cmd.Flags().GetBool("paused")

	s, cfg, logger := openStore()
	defer s.Close()

	parentID, sess, err := splitLog(cmd.Context(), s, cfg.Log, logger, restart, paused)
	if err != nil {
		exitErr("split", err)
	}
	printJSON(cmd, splitView{statusView: sess.status(), BranchID: sess.forest.ActiveID(), ParentID: parentID})
}

func splitLog(ctx context.Context, s store.Store, name string, logger *slog.Logger, restartParent, paused bool) (uint32, *session, error) {
	var parentID uint32
	sess, err := mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		parentID = sess.forest.ActiveID()
		id := sess.forest.Split(restartParent)
		sess.forest.Start()
		if paused {
			sess.forest.Pause()
		}
		return "split " + formatID(parentID) + " -> " + formatID(id), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return parentID, sess, nil
}

func formatID(id uint32) string { return strconv.FormatUint(uint64(id), 10) }
