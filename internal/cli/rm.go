package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "rm [id]",
		Short: "Delete facts",
		Long: "Delete one fact by id, every non-permanent fact of a character (--non-permanent), " +
			"or everything stored for a character (--purge).",
		Args: cobra.MaximumNArgs(1),
		Run:  runRm,
	}

	cmd.Flags().StringP("character", "c", "", "Character id")
	cmd.Flags().Bool("non-permanent", false, "Delete the character's short and long term facts")
	cmd.Flags().Bool("purge", false, "Delete all facts, conversations and relationships of the character (irreversible)")

	RootCmd.AddCommand(cmd)
}

func runRm(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	nonPermanent, _ := cmd.Flags().GetBool("non-permanent")
	purge, _ := cmd.Flags().GetBool("purge")

	switch {
	case len(args) == 1:
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		if err := s.Delete(cmd.Context(), args[0]); err != nil {
			exitErr("rm", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"id":%q}`+"\n", args[0])

	case character != "" && purge:
		svc, s, err := openService()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		if err := svc.DeleteCharacter(cmd.Context(), character); err != nil {
			exitErr("rm", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"character":%q}`+"\n", character)

	case character != "" && nonPermanent:
		s, err := openStore()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()
		n, err := s.DeleteNonPermanent(cmd.Context(), character)
		if err != nil {
			exitErr("rm", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"character":%q,"deleted":%d}`+"\n", character, n)

	default:
		exitErr("rm", fmt.Errorf("give an id, or --character with --non-permanent or --purge"))
	}
}
