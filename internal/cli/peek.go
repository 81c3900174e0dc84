package cli

import (
	"context"
	"log/slog"

	"github.com/rcliao/branchlog/internal/model"
	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "peek",
		Short: "Print one record of the active timeline",
		Long:  "Print one record of the active timeline. Negative indexes count from the end; the default is the last record.",
		Args:  cobra.NoArgs,
		Run:   runPeek,
	}

	cmd.Flags().IntP("index", "i", -1, "Record index")

	RootCmd.AddCommand(cmd)
}

func runPeek(cmd *cobra.Command, args []string) {
	index, _ := cmd.Flags().GetInt("index")

	s, cfg, logger := openStore()
	defer s.Close()

	rec, err := peekLog(cmd.Context(), s, cfg.Log, logger, index)
	if err != nil {
		exitErr("peek", err)
	}
	printJSON(cmd, rec)
}

func peekLog(ctx context.Context, s store.Store, name string, logger *slog.Logger, index int) (model.Record, error) {
	sess, err := openSession(ctx, s, name, logger)
	if err != nil {
		return model.Record{}, err
	}
	if err := sess.requireInitialized(); err != nil {
		return model.Record{}, err
	}
	return sess.forest.Peek(index)
}
