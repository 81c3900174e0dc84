package cli

import (
	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Retrieve a stored checkpoint of the log",
		Run:   runGet,
	}

	cmd.Flags().Bool("history", false, "Return all versions (newest first)")
	cmd.Flags().IntP("version", "v", 0, "Specific version number")

	RootCmd.AddCommand(cmd)
}

func runGet(cmd *cobra.Command, args []string) {
	history, _ := cmd.Flags().GetBool("history")
	version, _ := cmd.Flags().GetInt("version")

	s, cfg, _ := openStore()
	defer s.Close()

	checkpoints, err := s.Get(cmd.Context(), store.GetParams{
		Name:    cfg.Log,
		History: history,
		Version: version,
	})
	if err != nil {
		exitErr("get", err)
	}

	if history || len(checkpoints) > 1 {
		printJSON(cmd, checkpoints)
	} else {
		printJSON(cmd, checkpoints[0])
	}
}
