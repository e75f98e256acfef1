package cli

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/store"
)

var (
	draftsLimit     int
	draftsOlderThan time.Duration
)

func init() {
	rootCmd.AddCommand(draftsCmd)
	draftsCmd.AddCommand(draftsListCmd)
	draftsCmd.AddCommand(draftsDeleteCmd)
	draftsCmd.AddCommand(draftsPruneCmd)

	draftsCmd.PersistentFlags().String("store", "", "draft database path")
	draftsListCmd.Flags().IntVar(&draftsLimit, "limit", 20, "maximum number of drafts to list")
	draftsPruneCmd.Flags().DurationVar(&draftsOlderThan, "older-than", 30*24*time.Hour, "delete drafts not edited for this long")
}

var draftsCmd = &cobra.Command{
	Use:   "drafts",
	Short: "Manage saved editor drafts",
	Long:  "Inspect and clean up the drafts the editor saves in store.path.",
}

var draftsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the most recently edited drafts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		drafts, err := openDrafts(cmd)
		if err != nil {
			return err
		}
		defer drafts.Close()

		list, err := drafts.List(cmd.Context(), draftsLimit)
		if err != nil {
			return err
		}

		if jsonOutput {
			return writeJSON(cmd.OutOrStdout(), list)
		}
		rows := make([][]string, 0, len(list))
		for _, d := range list {
			rows = append(rows, []string{
				d.SessionID,
				d.UpdatedAt.Local().Format(time.DateTime),
				d.Theme,
				export.FormatMultiplier(d.Multiplier) + "x",
				firstLine(d.Source),
			})
		}
		return writeTable(cmd.OutOrStdout(), []string{"SESSION", "UPDATED", "THEME", "RESOLUTION", "SOURCE"}, rows)
	},
}

var draftsDeleteCmd = &cobra.Command{
	Use:   "delete <session-id>...",
	Short: "Delete drafts",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		drafts, err := openDrafts(cmd)
		if err != nil {
			return err
		}
		defer drafts.Close()

		for _, id := range args {
			if err := drafts.Delete(cmd.Context(), id); err != nil {
				if errors.Is(err, store.ErrDraftNotFound) {
					return fmt.Errorf("draft %s not found", id)
				}
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", id)
		}
		return nil
	},
}

var draftsPruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete drafts not edited recently",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if draftsOlderThan <= 0 {
			return fmt.Errorf("--older-than must be positive, got %s", draftsOlderThan)
		}
		drafts, err := openDrafts(cmd)
		if err != nil {
			return err
		}
		defer drafts.Close()

		n, err := drafts.Prune(cmd.Context(), time.Now().Add(-draftsOlderThan))
		if err != nil {
			return err
		}
		logger.Debug().Int64("deleted", n).Dur("older_than", draftsOlderThan).Msg("Pruned drafts")
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %d drafts\n", n)
		return nil
	},
}

func openDrafts(cmd *cobra.Command) (*store.Store, error) {
	cfg := GetConfig()
	if cfg == nil || cfg.Store.Path == "" {
		return nil, errors.New("no draft store configured; set store.path or --store")
	}
	return store.Open(cmd.Context(), cfg.Store.Path)
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	const maxWidth = 40
	if len([]rune(s)) > maxWidth {
		s = string([]rune(s)[:maxWidth-1]) + "…"
	}
	return s
}
