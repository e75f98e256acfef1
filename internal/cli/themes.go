package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ankek/mermaid-studio/internal/theme"
)

var themesFonts bool

func init() {
	rootCmd.AddCommand(themesCmd)

	themesCmd.Flags().BoolVar(&themesFonts, "fonts", false, "list the font stacks instead of the themes")
	themesCmd.Flags().String("themes-dir", "", "directory of extra HCL theme files")
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List themes and fonts",
	Long:  "List the themes offered by the editor, including those loaded from themes.dir, or the font stacks with --fonts.",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()

		if themesFonts {
			fonts := theme.Fonts()
			if jsonOutput {
				return writeJSON(out, fonts)
			}
			rows := make([][]string, 0, len(fonts))
			for _, f := range fonts {
				rows = append(rows, []string{f.Name, f.Value})
			}
			return writeTable(out, []string{"NAME", "VALUE"}, rows)
		}

		cfg := GetConfig()
		dir := ""
		if cfg != nil {
			dir = cfg.Themes.Dir
		}
		catalog, err := loadCatalog(dir)
		if err != nil {
			return err
		}

		type themeEntry struct {
			ID         string     `json:"id"`
			Name       string     `json:"name"`
			Kind       theme.Kind `json:"kind"`
			Background string     `json:"background"`
			Default    bool       `json:"default"`
		}
		defaultID := catalog.Get("").ID
		var entries []themeEntry
		for _, d := range catalog.List() {
			entries = append(entries, themeEntry{
				ID:         d.ID,
				Name:       d.Name,
				Kind:       d.Kind,
				Background: theme.Background(d),
				Default:    d.ID == defaultID,
			})
		}
		if jsonOutput {
			return writeJSON(out, entries)
		}

		rows := make([][]string, 0, len(entries))
		for _, e := range entries {
			id := e.ID
			if e.Default {
				id += " *"
			}
			rows = append(rows, []string{id, e.Name, string(e.Kind), e.Background})
		}
		if err := writeTable(out, []string{"ID", "NAME", "BASE", "BACKGROUND"}, rows); err != nil {
			return err
		}
		_, err = fmt.Fprintln(out, "\n* default theme")
		return err
	},
}
