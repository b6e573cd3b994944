package cli

import (
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/companion"
	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "turn",
		Short: "Record one exchange and evolve the relationship",
		Long: "Append the user message and the character's reply to the transcript, " +
			"optionally remember facts, then update trust and traits.",
		Run: runTurn,
	}

	cmd.Flags().String("conversation", "", "Conversation id (required)")
	cmd.Flags().StringP("message", "m", "", "User message (required)")
	cmd.Flags().StringP("reply", "r", "", "Character reply (required)")
	cmd.Flags().StringArray("remember", nil, "Fact to store with this turn (repeatable)")
	cmd.Flags().StringP("type", "t", string(model.LongTerm), "Memory type for remembered facts")
	cmd.Flags().IntP("importance", "i", model.NeutralImportance, "Importance 1-5 for remembered facts")

	cmd.MarkFlagRequired("conversation")
	cmd.MarkFlagRequired("message")
	cmd.MarkFlagRequired("reply")

	RootCmd.AddCommand(cmd)
}

func runTurn(cmd *cobra.Command, args []string) {
	conversation, _ := cmd.Flags().GetString("conversation")
	message, _ := cmd.Flags().GetString("message")
	reply, _ := cmd.Flags().GetString("reply")
	remember, _ := cmd.Flags().GetStringArray("remember")
	typ, _ := cmd.Flags().GetString("type")
	importance, _ := cmd.Flags().GetInt("importance")

	var facts []companion.Fact
	for _, r := range remember {
		facts = append(facts, companion.Fact{
			Content:    r,
			MemoryType: model.MemoryType(typ),
			Importance: importance,
		})
	}

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	res, err := svc.RecordTurn(cmd.Context(), companion.Turn{
		ConversationID: conversation,
		UserMessage:    message,
		Response:       reply,
		Remember:       facts,
	})
	if err != nil {
		exitErr("turn", err)
	}
	printJSON(cmd, res)
}
