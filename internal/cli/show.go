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
		Use:   "show",
		Short: "Print a timeline of the log",
		Long: "Print the active timeline (or --branch) as a snapshot. --flatten prints the records along " +
			"the branch's ancestry as one sequence; --all prints the whole forest.",
		Args: cobra.NoArgs,
		Run:  runShow,
	}

	cmd.Flags().Uint32P("branch", "b", 0, "Branch id (default: active)")
	cmd.Flags().Bool("flatten", false, "Flatten the branch's ancestry into one record sequence")
	cmd.Flags().Bool("all", false, "Print every timeline")

	RootCmd.AddCommand(cmd)
}

type showOptions struct {
	BranchID uint32
	Flatten  bool
	All      bool
}

func runShow(cmd *cobra.Command, args []string) {
	var opts showOptions
	opts.BranchID, _ = cmd.Flags().GetUint32("branch")
	opts.Flatten, _ = cmd.Flags().GetBool("flatten")
	opts.All, _ = cmd.Flags().GetBool("all")

	s, cfg, logger := openStore()
	defer s.Close()

	v, err := showLog(cmd.Context(), s, cfg.Log, logger, opts)
	if err != nil {
		exitErr("show", err)
	}
	printJSON(cmd, v)
}

func showLog(ctx context.Context, s store.Store, name string, logger *slog.Logger, opts showOptions) (any, error) {
	sess, err := openSession(ctx, s, name, logger)
	if err != nil {
		return nil, err
	}
	if err := sess.requireInitialized(); err != nil {
		return nil, err
	}
	f := sess.forest

	if opts.All {
		return f.ExtractAll(), nil
	}
	id := opts.BranchID
	if id == 0 {
		id = f.ActiveID()
	}
	if opts.Flatten {
		if opts.BranchID == 0 {
			return f.FlattenActive()
		}
		return f.Flatten(id)
	}
	tl, ok := f.ExtractAll().Timeline(id)
	if !ok {
		return nil, fmt.Errorf("branch %d not found in log %q", id, name)
	}
	return tl, nil
}
