package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/docfield/docfield/internal/config"
	"github.com/docfield/docfield/internal/server"
)

var (
	serveHost         string
	servePort         string
	serveOCRContainer bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the docfield server",
	Long: `Start the docfield HTTP server.

When ocr.container.enabled is set, a local PaddleOCR-VL container is
started alongside the server and stopped on shutdown (Ctrl+C or SIGTERM).
Shutdown waits for in-flight extraction tasks to deliver their callbacks.

The server provides:
  - POST /v1/tasks/extract       - Submit an extraction task
  - GET  /v1/tasks/{taskNo}/status - Inspect a task
  - GET  /health                 - Basic server health check

Examples:
  docfield serve                 # Start on default port 20001
  docfield serve --port 3000     # Start on custom port
  docfield serve --host 0.0.0.0  # Bind to all interfaces`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Set up logger
		logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))

		// Load config with hot-reload support
		cfgMgr, err := config.NewManager(cfgFile)
		if err != nil {
			return err
		}
		cfgMgr.WatchConfig()

		// Create server
		srv, err := server.New(server.Config{
			Host:             serveHost,
			Port:             servePort,
			ConfigManager:    cfgMgr,
			WithOCRContainer: serveOCRContainer,
			Logger:           logger,
		})
		if err != nil {
			return err
		}

		// Start server (blocks until shutdown)
		return srv.Start(ctx)
	},
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Host to bind to (default from config)")
	serveCmd.Flags().StringVar(&servePort, "port", "", "Port to listen on (default from config)")
	serveCmd.Flags().BoolVar(&serveOCRContainer, "with-ocr-container", false, "Run a local PaddleOCR-VL container")

	rootCmd.AddCommand(serveCmd)
}
