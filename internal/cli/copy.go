package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "cp <dest>",
		Short: "Copy the log under a new name",
		Long:  "Copy the latest version of the log, every branch included, into a new log named dest.",
		Args:  cobra.ExactArgs(1),
		Run:   runCopy,
	}

	RootCmd.AddCommand(cmd)
}

func runCopy(cmd *cobra.Command, args []string) {
	s, cfg, logger := openStore()
	defer s.Close()

	sess, err := copyLog(cmd.Context(), s, cfg.Log, args[0], logger)
	if err != nil {
		exitErr("cp", err)
	}
	printJSON(cmd, sess.status())
}

// copyLog replicates src into a new log named dest and returns dest's session.
func copyLog(ctx context.Context, s store.Store, src, dest string, logger *slog.Logger) (*session, error) {
	from, err := openSession(ctx, s, src, logger)
	if err != nil {
		return nil, err
	}
	if err := from.requireInitialized(); err != nil {
		return nil, err
	}
	to, err := openSession(ctx, s, dest, logger)
	if err != nil {
		return nil, err
	}
	if to.exists {
		return nil, fmt.Errorf("log %q already exists at version %d", dest, to.version)
	}
	replica, err := from.forest.Replicate()
	if err != nil {
		return nil, err
	}
	if from.forest.IsStarted() && !from.forest.IsPaused() {
		replica.Resume()
	}
	to.forest = replica
	if err := to.save(ctx, "copy of "+src); err != nil {
		return nil, err
	}
	return to, nil
}
