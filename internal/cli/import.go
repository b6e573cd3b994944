package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/model"
)

func init() {
	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import facts or a relationship from JSON",
		Long:  "Import facts from JSON on stdin, in the format produced by export. With --relationship, import an exported relationship.",
		Run:   runImport,
	}

	cmd.Flags().Bool("relationship", false, "Input is an exported relationship")

	RootCmd.AddCommand(cmd)
}

func runImport(cmd *cobra.Command, args []string) {
	relationship, _ := cmd.Flags().GetBool("relationship")

	data, err := io.ReadAll(os.Stdin)
	if err != nil {
		exitErr("read stdin", err)
	}

	if relationship {
		svc, s, err := openService()
		if err != nil {
			exitErr("open store", err)
		}
		defer s.Close()

		rel, err := svc.ImportRelationship(cmd.Context(), data)
		if err != nil {
			exitErr("import", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"character":%q,"user":%q}`+"\n", rel.CharacterID, rel.UserID)
		return
	}

	var records []model.MemoryRecord
	if err := json.Unmarshal(data, &records); err != nil {
		exitErr("parse json", err)
	}

	s, err := openStore()
	if err != nil {
		exitErr("open store", err)
	}
	defer s.Close()

	imported, err := s.Import(cmd.Context(), records)
	if err != nil {
		exitErr("import", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), `{"ok":true,"imported":%d}`+"\n", imported)
}
