package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search facts and transcript by keyword",
		Long:  "Rank a character's facts, and optionally a conversation's transcript, by keyword overlap with the query.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runSearch,
	}

	cmd.Flags().StringP("character", "c", "", "Character id (required)")
	cmd.Flags().String("conversation", "", "Also search this conversation's transcript")
	cmd.Flags().IntP("limit", "l", 0, "Max results (default: $COMPANION_RELEVANCE_LIMIT)")

	cmd.MarkFlagRequired("character")

	RootCmd.AddCommand(cmd)
}

func runSearch(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	conversation, _ := cmd.Flags().GetString("conversation")
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		limit = cfg.RelevanceLimit
	}

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	results, err := svc.Search(cmd.Context(), character, conversation, strings.Join(args, " "), limit)
	if err != nil {
		exitErr("search", err)
	}

	if len(results) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "[]")
		return
	}
	printJSON(cmd, results)
}
