package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export checkpoints as JSON",
		Long:  "Export every live version of the log as a JSON array. --all exports every log.",
		Run:   runExport,
	}

	cmd.Flags().Bool("all", false, "Export every log")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	all, _ := cmd.Flags().GetBool("all")

	s, cfg, _ := openStore()
	defer s.Close()

	name := cfg.Log
	if all {
		name = ""
	}
	checkpoints, err := s.ExportAll(cmd.Context(), name)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(cmd, checkpoints)
}
