package cli

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/recall"
)

func init() {
	cmd := &cobra.Command{
		Use:   "context [message]",
		Short: "Compose prompt context for the next message",
		Long:  "Unite the recent transcript window with keyword matches for the message, oldest first.",
		Args:  cobra.MinimumNArgs(1),
		Run:   runContext,
	}

	cmd.Flags().String("conversation", "", "Conversation id (required)")

	cmd.MarkFlagRequired("conversation")

	RootCmd.AddCommand(cmd)
}

func runContext(cmd *cobra.Command, args []string) {
	conversation, _ := cmd.Flags().GetString("conversation")

	svc, s, err := openService()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	entries, err := svc.ComposeContext(cmd.Context(), conversation, strings.Join(args, " "))
	if err != nil {
		exitErr("context", err)
	}
	writeEntries(cmd, entries)
}

func writeEntries(cmd *cobra.Command, entries []recall.Entry) {
	if formatFlag == "text" {
		writeEntriesText(cmd.OutOrStdout(), entries)
		return
	}
	printJSON(cmd, entries)
}

func writeEntriesText(w io.Writer, entries []recall.Entry) {
	for _, e := range entries {
		who := string(e.Role)
		if e.Source == recall.SourceMemory {
			who = "fact:" + string(e.MemoryType)
		}
		fmt.Fprintf(w, "[%s] %s: %s\n", e.Timestamp.Local().Format(time.DateTime), who, e.Content)
	}
}
