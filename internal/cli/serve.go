package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/ankek/mermaid-studio/internal/config"
	"github.com/ankek/mermaid-studio/internal/editor"
	"github.com/ankek/mermaid-studio/internal/export"
	"github.com/ankek/mermaid-studio/internal/server"
	"github.com/ankek/mermaid-studio/internal/store"
)

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("host", "", "listen host (default 127.0.0.1)")
	serveCmd.Flags().Int("port", 0, "listen port (default 8080)")
	serveCmd.Flags().String("store", "", "draft database path (default in memory)")
	serveCmd.Flags().String("font-file", "", "TrueType font for PNG labels")
	addRendererFlags(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser editor",
	Long: `Serve the Mermaid editor on the configured address. Sessions render with
the configured backend and keep their drafts in the store.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		srv, cleanup, err := newServer(ctx, GetConfig())
		if err != nil {
			return err
		}
		defer func() {
			if err := cleanup(); err != nil {
				logger.Warn().Err(err).Msg("Failed to release resources")
			}
		}()

		return srv.Run(ctx)
	},
}

// newServer wires the editor stack from cfg. cleanup releases the export
// fonts and the draft store once the server has stopped.
func newServer(ctx context.Context, cfg *config.Config) (srv *server.Server, cleanup func() error, err error) {
	if cfg == nil {
		return nil, nil, errors.New("configuration not loaded")
	}

	catalog, err := loadCatalog(cfg.Themes.Dir)
	if err != nil {
		return nil, nil, err
	}

	factory, err := rendererFactory(cfg, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create renderer: %w", err)
	}

	pipeline, err := export.New(export.Options{
		FontFile:  cfg.Export.FontFile,
		MaxPixels: cfg.Export.MaxPixels,
		Logger:    logger.With().Str("component", "export").Logger(),
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create export pipeline: %w", err)
	}

	var drafts *store.Store
	if cfg.Store.Path == "" {
		drafts, err = store.OpenInMemory(ctx)
	} else {
		drafts, err = store.Open(ctx, cfg.Store.Path)
	}
	if err != nil {
		_ = pipeline.Close()
		return nil, nil, fmt.Errorf("failed to open draft store: %w", err)
	}

	cleanup = func() error {
		var result *multierror.Error
		if err := drafts.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to close draft store: %w", err))
		}
		if err := pipeline.Close(); err != nil {
			result = multierror.Append(result, fmt.Errorf("failed to release fonts: %w", err))
		}
		return result.ErrorOrNil()
	}

	manager, err := editor.NewManager(editor.Options{
		Renderers:     factory,
		Catalog:       catalog,
		Exporter:      pipeline,
		Drafts:        drafts,
		Debounce:      cfg.Editor.Debounce,
		RenderTimeout: cfg.Renderer.Timeout,
		SessionTTL:    cfg.Editor.SessionTTL,
		Logger:        logger.With().Str("component", "editor").Logger(),
	})
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}

	srv, err = server.New(server.Options{
		Addr:            cfg.Addr(),
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Manager:         manager,
		Catalog:         catalog,
		Debounce:        cfg.Editor.Debounce,
		Logger:          logger.With().Str("component", "server").Logger(),
	})
	if err != nil {
		_ = cleanup()
		return nil, nil, err
	}
	return srv, cleanup, nil
}
