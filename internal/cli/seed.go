package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "List a character's important facts for a new conversation",
		Run:   runSeed,
	}

	cmd.Flags().StringP("character", "c", "", "Character id (required)")

	cmd.MarkFlagRequired("character")

	RootCmd.AddCommand(cmd)
}

func runSeed(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	writeEntries(cmd, svc.SeedContext(cmd.Context(), character))
}
