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
		Use:   "init",
		Short: "Create a new log",
		Long:  "Create a new log with a started root timeline. Use --paused to create it with its clock stopped.",
		Args:  cobra.NoArgs,
		Run:   runInit,
	}

	cmd.Flags().Bool("paused", false, "Pause the root timeline right after starting it")

	RootCmd.AddCommand(cmd)
}

func runInit(cmd *cobra.Command, args []string) {
	paused, _ := cmd.Flags().GetBool("paused")

	s, cfg, logger := openStore()
	defer s.Close()

	sess, err := initLog(cmd.Context(), s, cfg.Log, logger, paused)
	if err != nil {
		exitErr("init", err)
	}
	printJSON(cmd, sess.status())
}

func initLog(ctx context.Context, s store.Store, name string, logger *slog.Logger, paused bool) (*session, error) {
	sess, err := openSession(ctx, s, name, logger)
	if err != nil {
		return nil, err
	}
	if sess.exists {
		return nil, fmt.Errorf("log %q already exists at version %d", name, sess.version)
	}
	sess.forest.Initialize()
	sess.forest.Start()
	if paused {
		sess.forest.Pause()
	}
	if err := sess.save(ctx, "init"); err != nil {
		return nil, err
	}
	return sess, nil
}
