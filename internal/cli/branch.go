package cli

import (
	"context"
	"log/slog"

	"github.com/rcliao/branchlog/internal/forest"
	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	branchCmd := &cobra.Command{
		Use:   "branch",
		Short: "Branch inspection",
	}

	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List every timeline in the log",
		Run:   runBranchList,
	}

	branchCmd.AddCommand(listCmd)
	RootCmd.AddCommand(branchCmd)
}

func runBranchList(cmd *cobra.Command, args []string) {
	s, cfg, logger := openStore()
	defer s.Close()

	rows, err := listBranches(cmd.Context(), s, cfg.Log, logger)
	if err != nil {
		exitErr("list branches", err)
	}
	printJSON(cmd, rows)
}

func listBranches(ctx context.Context, s store.Store, name string, logger *slog.Logger) ([]forest.BranchInfo, error) {
	sess, err := openSession(ctx, s, name, logger)
	if err != nil {
		return nil, err
	}
	if err := sess.requireInitialized(); err != nil {
		return nil, err
	}
	return sess.forest.Describe(), nil
}
