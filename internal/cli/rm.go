package cli

import (
	"fmt"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm",
		Short: "Delete the log's latest checkpoint",
		Long:  "Delete the log's latest checkpoint, which makes the previous version current. --all-versions deletes the whole log.",
		Run:   runRm,
	}

	cmd.Flags().Bool("all-versions", false, "Delete all versions")
	cmd.Flags().Bool("hard", false, "Permanent delete (irreversible)")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	allVersions, _ := cmd.Flags().GetBool("all-versions")
	hard, _ := cmd.Flags().GetBool("hard")

	s, cfg, _ := openStore()
	defer s.Close()

	err := s.Rm(cmd.Context(), store.RmParams{
		Name:        cfg.Log,
		AllVersions: allVersions,
		Hard:        hard,
	})
	if err != nil {
		exitErr("rm", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"log":%q}`+"\n", cfg.Log)
}
