// Package cli implements the mermaid-studio command line.
package cli

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/ankek/mermaid-studio/internal/config"
	"github.com/ankek/mermaid-studio/internal/logging"
	"github.com/ankek/mermaid-studio/internal/mermaid"
	"github.com/ankek/mermaid-studio/internal/theme"
)

var (
	cfgFile    string
	jsonOutput bool

	appConfig *config.Config
	logger    = zerolog.Nop()
)

// rendererFactory builds the render backend named by the configuration.
// Tests replace it with a stub.
var rendererFactory = func(cfg *config.Config, logger zerolog.Logger) (mermaid.Factory, error) {
	return mermaid.NewFactory(cfg.RendererOptions(), logger)
}

var rootCmd = &cobra.Command{
	Use:   "mermaid-studio",
	Short: "Mermaid diagram editor and exporter",
	Long: `mermaid-studio serves a browser editor for Mermaid diagrams with live preview,
themes and fonts, and exports diagrams as SVG or high resolution PNG.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig(cmd)
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "config file (default ./mermaid-studio.yaml or <user config dir>/mermaid-studio/mermaid-studio.yaml)")
	flags.String("log-level", "", "log level: trace, debug, info, warn, error")
	flags.String("log-format", "", "log format: console or json")
	flags.BoolVar(&jsonOutput, "json", false, "print machine readable JSON")
}

// Execute runs the root command.
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

// flagKeys maps command line flags to configuration keys. Flags override
// the config file and the environment only when set.
var flagKeys = map[string]string{
	"log-level":  config.KeyLogLevel,
	"log-format": config.KeyLogFormat,
	"host":       config.KeyServerHost,
	"port":       config.KeyServerPort,
	"renderer":   config.KeyRendererBackend,
	"kroki-url":  config.KeyRendererKrokiURL,
	"mmdc-path":  config.KeyRendererMMDCPath,
	"themes-dir": config.KeyThemesDir,
	"font-file":  config.KeyExportFontFile,
	"store":      config.KeyStorePath,
}

func initConfig(cmd *cobra.Command) error {
	v := viper.New()
	for name, key := range flagKeys {
		if f := cmd.Flags().Lookup(name); f != nil {
			if err := v.BindPFlag(key, f); err != nil {
				return fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg, err := config.Load(v, cfgFile)
	if err != nil {
		return err
	}

	l, err := logging.New(logging.Options{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Writer: cmd.ErrOrStderr(),
	})
	if err != nil {
		return err
	}

	appConfig = cfg
	logger = l
	return nil
}

// GetConfig returns the loaded configuration.
func GetConfig() *config.Config {
	return appConfig
}

// addRendererFlags registers the flags selecting the render backend.
func addRendererFlags(cmd *cobra.Command) {
	cmd.Flags().String("renderer", "", "render backend: kroki or mmdc")
	cmd.Flags().String("kroki-url", "", "Kroki server base URL")
	cmd.Flags().String("mmdc-path", "", "mermaid-cli executable")
	cmd.Flags().String("themes-dir", "", "directory of extra HCL theme files")
}

func loadCatalog(dir string) (*theme.Catalog, error) {
	catalog, err := theme.LoadCatalog(dir)
	if err != nil {
		return nil, err
	}
	if dir != "" {
		logger.Debug().Str("dir", dir).Int("themes", len(catalog.IDs())).Msg("Loaded theme files")
	}
	return catalog, nil
}
