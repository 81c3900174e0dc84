package cli

import (
	"fmt"
	"strings"

	"github.com/rcliao/branchlog/internal/store"
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search checkpoint notes",
		Long:  "Search every stored version's note and log name for a substring. Use --here to restrict to the current log.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().Bool("here", false, "Only search the current log")
	cmd.Flags().IntP("limit", "n", 20, "Max results")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	here, _ := cmd.Flags().GetBool("here")
	limit, _ := cmd.Flags().GetInt("limit")

	query := strings.Join(args, " ")
	if strings.TrimSpace(query) == "" {
		exitErr("search", fmt.Errorf("query is required"))
	}

	s, cfg, _ := openStore()
	defer s.Close()

	p := store.SearchParams{Query: query, Limit: limit}
	if here {
		p.Name = cfg.Log
	}
	results, err := s.Search(cmd.Context(), p)
	if err != nil {
		exitErr("search", err)
	}
	printJSON(cmd, results)
}
