package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/rcliao/branchlog/internal/model"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import checkpoints from JSON",
		Long:  "Import checkpoints from JSON on stdin. Expects the format produced by export; each becomes a new version of its log.",
		Run:   runImport,
	}

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	data, err := io.ReadAll(cmd.InOrStdin())
	if err != nil {
		exitErr("read stdin", err)
	}

	var checkpoints []model.Checkpoint
	if err := json.Unmarshal(data, &checkpoints); err != nil {
		exitErr("parse json", err)
	}

	s, _, _ := openStore()
	defer s.Close()

	imported, err := s.Import(cmd.Context(), checkpoints)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
}
