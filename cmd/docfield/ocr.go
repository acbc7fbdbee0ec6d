package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/docfield/docfield/internal/config"
	"github.com/docfield/docfield/internal/ocr"
)

var ocrCmd = &cobra.Command{
	Use:   "ocr",
	Short: "Manage the local PaddleOCR-VL container",
	Long: `Manage the local PaddleOCR-VL container lifecycle.

Deployments without an external OCR endpoint can run recognition in a
local Docker container. The serve command starts it automatically when
ocr.container.enabled is set; these commands manage it by hand.

Examples:
  docfield ocr start   # Start the OCR container
  docfield ocr stop    # Stop the container
  docfield ocr status  # Check container status
  docfield ocr logs    # View container logs`,
}

var ocrStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the OCR container",
	Long: `Start the PaddleOCR-VL container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting OCR container...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start OCR container: %w", err)
		}

		fmt.Printf("OCR server is running at %s\n", mgr.URL())
		return nil
	},
}

var ocrStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the OCR container",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping OCR container...")
		if err := mgr.Stop(ctx); err != nil {
			return fmt.Errorf("failed to stop OCR container: %w", err)
		}

		fmt.Println("OCR container stopped")
		return nil
	},
}

var ocrStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show OCR container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(ctx)
		if err != nil {
			return fmt.Errorf("failed to get status: %w", err)
		}

		switch status {
		case ocr.StatusRunning:
			fmt.Printf("Status: %s\n", status)
			fmt.Printf("URL: %s\n", mgr.URL())
		case ocr.StatusStopped:
			fmt.Printf("Status: %s (use 'docfield ocr start' to start)\n", status)
		case ocr.StatusNotFound:
			fmt.Printf("Status: %s (use 'docfield ocr start' to create)\n", status)
		default:
			fmt.Printf("Status: %s\n", status)
		}

		return nil
	},
}

var ocrLogsTail string

var ocrLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show OCR container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(ctx, ocrLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get logs: %w", err)
		}

		fmt.Print(logs)
		return nil
	},
}

var ocrRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the OCR container",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getOCRManager()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing OCR container...")
		if err := mgr.Remove(ctx); err != nil {
			return fmt.Errorf("failed to remove container: %w", err)
		}

		fmt.Println("OCR container removed")
		return nil
	},
}

func init() {
	ocrCmd.AddCommand(ocrStartCmd)
	ocrCmd.AddCommand(ocrStopCmd)
	ocrCmd.AddCommand(ocrStatusCmd)
	ocrCmd.AddCommand(ocrLogsCmd)
	ocrCmd.AddCommand(ocrRemoveCmd)

	ocrLogsCmd.Flags().StringVar(&ocrLogsTail, "tail", "100", "Number of lines to show from the end")

	rootCmd.AddCommand(ocrCmd)
}

// getOCRManager creates a DockerManager from the current configuration.
func getOCRManager() (*ocr.DockerManager, error) {
	cfgMgr, err := config.NewManager(cfgFile)
	if err != nil {
		return nil, err
	}
	c := cfgMgr.Get().OCR.Container

	return ocr.NewDockerManager(ocr.DockerConfig{
		ContainerName: c.Name,
		Image:         c.Image,
		HostPort:      c.Port,
	})
}
