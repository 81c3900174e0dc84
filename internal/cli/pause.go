package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	pauseCmd := &cobra.Command{
		Use:   "pause",
		Short: "Stop the active timeline's clock",
		Args:  cobra.NoArgs,
		Run:   runPause,
	}
	resumeCmd := &cobra.Command{
		Use:   "resume",
		Short: "Restart the active timeline's clock",
		Args:  cobra.NoArgs,
		Run:   runResume,
	}

	RootCmd.AddCommand(pauseCmd, resumeCmd)
}

func runPause(cmd *cobra.Command, args []string) {
	s, cfg, logger := openStore()
	defer s.Close()

	sess, err := pauseLog(cmd.Context(), s, cfg.Log, logger)
	if err != nil {
		exitErr("pause", err)
	}
	printJSON(cmd, sess.status())
}

func runResume(cmd *cobra.Command, args []string) {
	s, cfg, logger := openStore()
	defer s.Close()

	sess, err := resumeLog(cmd.Context(), s, cfg.Log, logger)
	if err != nil {
		exitErr("resume", err)
	}
	printJSON(cmd, sess.status())
}

func pauseLog(ctx context.Context, s store.Store, name string, logger *slog.Logger) (*session, error) {
	return mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		if !sess.forest.Pause() {
			return "", fmt.Errorf("timeline %d is not running", sess.forest.ActiveID())
		}
		return "pause " + formatID(sess.forest.ActiveID()), nil
	})
}

func resumeLog(ctx context.Context, s store.Store, name string, logger *slog.Logger) (*session, error) {
	return mutate(ctx, s, name, logger, func(sess *session) (string, error) {
		if !sess.forest.Resume() {
			return "", fmt.Errorf("timeline %d is not paused", sess.forest.ActiveID())
		}
		return "resume " + formatID(sess.forest.ActiveID()), nil
	})
}
