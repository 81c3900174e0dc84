package cli

import (
	"context"
	"log/slog"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "trim",
		Short: "Drop every branch off the active timeline's ancestry",
		Args:  cobra.NoArgs,
		Run:   runTrim,
	}

	RootCmd.AddCommand(cmd)
}

type trimView struct {
	statusView
	Removed []uint32 `json:"removed"`
}

func runTrim(cmd *cobra.Command, args []string) {
	s, cfg, logger := openStore()
	defer s.Close()

	removed, sess, err := trimLog(cmd.Context(), s, cfg.Log, logger)
	if err != nil {
		exitErr("trim", err)
	}
	printJSON(cmd, trimView{statusView: sess.status(), Removed: removed})
}

func trimLog(ctx context.Context, s store.Store, name string, logger *slog.Logger) ([]uint32, *session, error) {
	removed := []uint32{}
	sess, err := mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		removed = append(removed, sess.forest.TrimInactiveBranches()...)
		return "trim", nil
	})
	if err != nil {
		return nil, nil, err
	}
	return removed, sess, nil
}
