package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Clear a conversation",
		Long:  "Drop the conversation transcript and the character's non-permanent facts. Permanent facts, trust and traits are kept.",
		Run:   runClear,
	}

	cmd.Flags().String("conversation", "", "Conversation id (required)")

	cmd.MarkFlagRequired("conversation")

	RootCmd.AddCommand(cmd)
}

func runClear(cmd *cobra.Command, args []string) {
	conversation, _ := cmd.Flags().GetString("conversation")

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := svc.ClearConversation(cmd.Context(), conversation)
	if err != nil {
		exitErr("clear", err)
	}
	printJSON(cmd, res)
}
