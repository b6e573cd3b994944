package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "put [content]",
		Short: "Store a fact",
		Long:  "Store a fact for a character. Content can be a positional arg or piped via stdin.",
		Run:   runPut,
	}

	cmd.Flags().StringP("character", "c", "", "Character id (required)")
	cmd.Flags().StringP("type", "t", string(model.ShortTerm), "Memory type: short_term, long_term, permanent")
	cmd.Flags().IntP("importance", "i", model.NeutralImportance, "Importance 1-5")
	cmd.Flags().Bool("hidden", false, "Exclude from relevance search")
	cmd.Flags().String("meta", "", "JSON metadata")

	cmd.MarkFlagRequired("character")

	RootCmd.AddCommand(cmd)
}

func runPut(cmd *cobra.Command, args []string) {
	character, _ := cmd.Flags().GetString("character")
	typ, _ := cmd.Flags().GetString("type")
	importance, _ := cmd.Flags().GetInt("importance")
	hidden, _ := cmd.Flags().GetBool("hidden")
	meta, _ := cmd.Flags().GetString("meta")

	content, err := readContent(args)
	if err != nil {
		exitErr("read stdin", err)
	}
	if content == "" {
		exitErr("put", fmt.Errorf("content is required (positional arg or stdin)"))
	}

	var metadata map[string]any
	if meta != "" {
		if err := json.Unmarshal([]byte(meta), &metadata); err != nil {
			exitErr("parse meta", err)
		}
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	rec, err := s.Insert(cmd.Context(), model.MemoryRecord{
		CharacterID: character,
		Content:     content,
		MemoryType:  model.MemoryType(typ),
		Importance:  importance,
		IsHidden:    hidden,
		Metadata:    metadata,
	})
	if err != nil {
		exitErr("put", err)
	}

	printJSON(cmd, rec)
}
