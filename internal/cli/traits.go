package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "traits",
		Short: "Show trust and traits of a relationship",
		Run:   runTraits,
	}

	cmd.Flags().StringP("character", "c", "", "Character id (required)")
	cmd.Flags().StringP("user", "u", "", "User id (required)")

	cmd.MarkFlagRequired("character")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runTraits(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	user, _ := cmd.Flags().GetString("user")

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rel, err := svc.Relationship(cmd.Context(), character, user)
	if err != nil {
		exitErr("traits", err)
	}

	if formatFlag == "text" {
		w := cmd.OutOrStdout()
		fmt.Fprintf(w, "trust         %.3f\n", rel.Trust.Level())
		for _, name := range rel.Traits.Names() {
			fmt.Fprintf(w, "%-13s %.3f\n", name, rel.Traits[name].Value)
		}
		fmt.Fprintf(w, "interactions  %d\nconflicts     %d\n", len(rel.Interactions), len(rel.Conflicts))
		return
	}
	printJSON(cmd, map[string]any{
		"character_id": rel.CharacterID,
		"user_id":      rel.UserID,
		"trust_level":  rel.Trust.Level(),
		"traits":       rel.Traits,
		"interactions": len(rel.Interactions),
		"conflicts":    len(rel.Conflicts),
		"updated_at":   rel.UpdatedAt,
	})
}
