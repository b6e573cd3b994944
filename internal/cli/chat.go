package cli

import (
	"github.com/spf13/cobra"
)

func init() {
	chat := &cobra.Command{
		Use:   "chat",
		Short: "Manage conversations",
	}

	newCmd := &cobra.Command{
		Use:   "new",
		Short: "Start a conversation between a character and a user",
		Run:   runChatNew,
	}
	newCmd.Flags().StringP("character", "c", "", "Character id (required)")
	newCmd.Flags().StringP("user", "u", "", "User id (required)")
	newCmd.MarkFlagRequired("character")
	newCmd.MarkFlagRequired("user")

	chat.AddCommand(newCmd)
	RootCmd.AddCommand(chat)
}

func runChatNew(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	user, _ := cmd.Flags().GetString("user")

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	conv, err := svc.StartConversation(cmd.Context(), character, user)
	if err != nil {
		exitErr("chat new", err)
	}
	printJSON(cmd, conv)
}
