package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export facts or a relationship as JSON",
		Long:  "Export facts, optionally filtered by character. With --user, export that relationship instead.",
		Run:   runExport,
	}

	cmd.Flags().StringP("character", "c", "", "Filter by character")
	cmd.Flags().StringP("user", "u", "", "Export the character's relationship with this user")

	RootCmd.AddCommand(cmd)
}

func runExport(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	user, _ := cmd.Flags().GetString("user")

	if user != "" {
		if character == "" {
			exitErr("export", fmt.Errorf("--user needs --character"))
		}
		svc, s, err := openService()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		b, err := svc.ExportRelationship(cmd.Context(), character, user)
		if err != nil {
			exitErr("export", err)
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(b))
		return
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	records, err := s.ExportAll(cmd.Context(), character)
	if err != nil {
		exitErr("export", err)
	}
	printJSON(cmd, records)
}
