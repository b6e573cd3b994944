// Package cli implements the companion-state CLI commands.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/rcliao/companion-state/internal/companion"
	"github.com/rcliao/companion-state/internal/config"
	"github.com/rcliao/companion-state/internal/personality"
	"github.com/rcliao/companion-state/internal/store"
)

var (
	dbPath     string
	formatFlag string

	cfg    *config.Config
	logger = log.New(io.Discard)
)

// RootCmd is the top-level command.
var RootCmd = &cobra.Command{
	Use:   "companion-state",
	Short: "Relationship state for AI companions",
	Long: "Facts, transcripts, trust and personality traits for character and user pairings. " +
		"SQLite-backed, single binary.",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
}

func init() {
	RootCmd.PersistentFlags().StringVarP(&dbPath, "db", "d", "", "Database path (default: $COMPANION_DB or ~/.companion-state/state.db)")
	RootCmd.PersistentFlags().StringVarP(&formatFlag, "format", "f", "json", "Output format: json or text")
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := config.Load()
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.DBPath = dbPath
	}
	cfg = c

	level, err := log.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = log.InfoLevel
	}
	logger = log.NewWithOptions(os.Stderr, log.Options{
		Level:           level,
		ReportTimestamp: true,
		Prefix:          "companion-state",
	})
	return nil
}

func openStore() (*store.SQLiteStore, error) {
	return store.NewSQLiteStore(cfg.DBPath, store.WithLogger(logger))
}

func openService() (*companion.Service, *store.SQLiteStore, error) {
	p, err := personality.Load(cfg.PersonalityPath)
	if err != nil {
		return nil, nil, err
	}
	s, err := openStore()
	if err != nil {
		return nil, nil, err
	}
	svc, err := companion.NewService(s, cfg,
		companion.WithLogger(logger),
		companion.WithPersonality(p),
	)
	if err != nil {
		s.Close()
		return nil, nil, err
	}
	return svc, s, nil
}

// readContent joins positional args or, when there are none, reads piped stdin.
func readContent(args []string) (string, error) {
	if len(args) > 0 {
		return strings.TrimSpace(strings.Join(args, " ")), nil
	}
	stat, _ := os.Stdin.Stat()
	if stat == nil || (stat.Mode()&os.ModeCharDevice) != 0 {
		return "", nil
	}
	b, err := io.ReadAll(os.Stdin)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(b)), nil
}

func printJSON(cmd *cobra.Command, v any) {
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Fprintln(cmd.OutOrStdout(), string(b))
}

func exitErr(msg string, err error) {
	logger.Error(msg, "err", err)
	fmt.Fprintf(os.Stderr, "error: %s: %v\n", msg, err)
	os.Exit(1)
}
