package cli

import (
	"fmt"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "ls",
		Short: "List logs",
		Long:  "List the latest version of every log, most recently changed first.",
		Run:   runList,
	}

	cmd.Flags().IntP("limit", "n", 20, "Max results")
	cmd.Flags().Bool("names-only", false, "Only output log names")

	RootCmd.AddCommand(cmd)
}

func runList(cmd *cobra.Command, args []string) {
	limit, _ := cmd.Flags().GetInt("limit")
	namesOnly, _ := cmd.Flags().GetBool("names-only")

	s, _, _ := openStore()
	defer s.Close()

	checkpoints, err := s.List(cmd.Context(), store.ListParams{Limit: limit})
	if err != nil {
		exitErr("list", err)
	}

	if namesOnly {
		for _, cp := range checkpoints {
			fmt.Fprintln(cmd.OutOrStdout(), cp.Name)
		}
		return
	}
	printJSON(cmd, checkpoints)
}
