package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/conflict"
)

func init() {
	cmd := &cobra.Command{
		Use:   "conflict [description]",
		Short: "Resolve a conflict and adjust trust",
		Long:  "Pick a stance from the character's traits for a disagreement, misunderstanding, betrayal or generic conflict.",
		Run:   runConflict,
	}

	cmd.Flags().StringP("character", "c", "", "Character id (required)")
	cmd.Flags().StringP("user", "u", "", "User id (required)")
	cmd.Flags().String("category", "generic", "Category: disagreement, misunderstanding, betrayal, generic")
	cmd.Flags().Float64P("severity", "s", 0.5, "Severity in [0,1]")

	cmd.MarkFlagRequired("character")
	cmd.MarkFlagRequired("user")

	RootCmd.AddCommand(cmd)
}

func runConflict(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	user, _ := cmd.Flags().GetString("user")
	category, _ := cmd.Flags().GetString("category")
	severity, _ := cmd.Flags().GetFloat64("severity")

	description, err := readContent(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	if description == "" {
		exitErr("conflict", fmt.Errorf("description is required (positional arg or stdin)"))
	}

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := svc.ResolveConflict(cmd.Context(), character, user, description, conflict.ParseCategory(category), severity)
	if err != nil {
		exitErr("conflict", err)
	}
	printJSON(cmd, struct {
		Category string `json:"category"`
		*conflict.Resolution
	}{res.Category.String(), res})
}
