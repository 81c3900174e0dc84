package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	backtrackCmd := &cobra.Command{
		Use:   "backtrack",
		Short: "Leave the active branch and return to its parent",
		Long:  "Pause the active branch and make its parent active. The branch stays in the log.",
		Args:  cobra.NoArgs,
		Run:   runBacktrack,
	}
	rollbackCmd := &cobra.Command{
		Use:   "rollback",
		Short: "Discard the active branch and return to its parent",
		Long:  "Discard the active branch, everything forked from it and its split marker, then make the parent active.",
		Args:  cobra.NoArgs,
		Run:   runRollback,
	}
	mergeCmd := &cobra.Command{
		Use:   "merge",
		Short: "Fold the active branch into its parent",
		Long: "Fold the active branch's records into its parent at the split marker, remove the branch " +
			"and make the parent active.",
		Args: cobra.NoArgs,
		Run:  runMerge,
	}

	for _, c := range []*cobra.Command{backtrackCmd, rollbackCmd, mergeCmd} {
		c.Flags().Bool("no-resume", false, "Leave the parent paused")
		RootCmd.AddCommand(c)
	}
}

type navigateView struct {
	statusView
	FromID uint32 `json:"from_id"`
	Tip    *bool  `json:"tip,omitempty"`
}

func runBacktrack(cmd *cobra.Command, args []string) {
	runNavigate(cmd, "backtrack", backtrackLog)
}

func runRollback(cmd *cobra.Command, args []string) {
	runNavigate(cmd, "rollback", rollbackLog)
}

func runMerge(cmd *cobra.Command, args []string) {
	noResume, _ := cmd.Flags().GetBool("no-resume")

	s, cfg, logger := openStore()
	defer s.Close()

	from, tip, sess, err := mergeLog(cmd.Context(), s, cfg.Log, logger, !noResume)
	if err != nil {
		exitErr("merge", err)
	}
	printJSON(cmd, navigateView{statusView: sess.status(), FromID: from, Tip: &tip})
}

type navigateFunc func(context.Context, store.Store, string, *slog.Logger, bool) (uint32, *session, error)

func runNavigate(cmd *cobra.Command, name string, fn navigateFunc) {
	noResume, _ := cmd.Flags().GetBool("no-resume")

	s, cfg, logger := openStore()
	defer s.Close()

	from, sess, err := fn(cmd.Context(), s, cfg.Log, logger, !noResume)
	if err != nil {
		exitErr(name, err)
	}
	printJSON(cmd, navigateView{statusView: sess.status(), FromID: from})
}

func errAtRoot(sess *session) error {
	return fmt.Errorf("timeline %d is the root", sess.forest.ActiveID())
}

func backtrackLog(ctx context.Context, s store.Store, name string, logger *slog.Logger, resume bool) (uint32, *session, error) {
	var from uint32
	sess, err := mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		from = sess.forest.ActiveID()
		parentID, err := sess.forest.Backtrack(resume)
		if err != nil {
			return "", err
		}
		if parentID == 0 {
			return "", errAtRoot(sess)
		}
		return "backtrack " + formatID(from) + " -> " + formatID(parentID), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return from, sess, nil
}

func rollbackLog(ctx context.Context, s store.Store, name string, logger *slog.Logger, resume bool) (uint32, *session, error) {
	var from uint32
	sess, err := mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		from = sess.forest.ActiveID()
		parentID, err := sess.forest.Rollback(resume)
		if err != nil {
			return "", err
		}
		if parentID == 0 {
			return "", errAtRoot(sess)
		}
		return "rollback " + formatID(from) + " -> " + formatID(parentID), nil
	})
	if err != nil {
		return 0, nil, err
	}
	return from, sess, nil
}

// mergeLog also reports whether the branch was merged by a tail append.
func mergeLog(ctx context.Context, s store.Store, name string, logger *slog.Logger, resume bool) (uint32, bool, *session, error) {
	var (
		from uint32
		tip  bool
	)
	sess, err := mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		from = sess.forest.ActiveID()
		tip = sess.forest.IsMergeable()
		ok, err := sess.forest.Merge(resume)
		if err != nil {
			return "", err
		}
		if !ok {
			return "", errAtRoot(sess)
		}
		return "merge " + formatID(from) + " -> " + formatID(sess.forest.ActiveID()), nil
	})
	if err != nil {
		return 0, false, nil, err
	}
	return from, tip, sess, nil
}
