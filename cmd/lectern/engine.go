package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lecternaudio/lectern/internal/home"
	"github.com/lecternaudio/lectern/internal/synth"
)

var (
	engineLogsTail    string
	engineWaitTimeout time.Duration
)

var engineCmd = &cobra.Command{
	Use:   "engine",
	Short: "Manage the TTS engine container",
	Long: `Manage the piper-http TTS engine container lifecycle.

The engine runs in a Docker container serving synthesis over HTTP, with
voice models mounted from ~/.lectern/voices/. Use it with the "http"
synthesis engine:

  lectern engine start
  lectern convert book.epub --engine http

Examples:
  lectern engine start    # Start the engine container
  lectern engine stop     # Stop the container
  lectern engine status   # Check container status
  lectern engine logs     # View container logs`,
}

var engineStartCmd = &cobra.Command{
	Use:   "start",
	Short: "Start the engine container",
	Long: `Start the TTS engine container.

If the container doesn't exist, it will be created and started.
If it exists but is stopped, it will be started.
If it's already running, this is a no-op.

Voice models are mounted from ~/.lectern/voices/.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		mgr, err := getEngineContainer()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Starting TTS engine...")
		if err := mgr.Start(ctx); err != nil {
			return fmt.Errorf("failed to start engine: %w", err)
		}

		fmt.Printf("Engine is running at %s\n", mgr.URL())
		return nil
	},
}

var engineStopCmd = &cobra.Command{
	Use:   "stop",
	Short: "Stop the engine container",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getEngineContainer()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Stopping TTS engine...")
		if err := mgr.Stop(cmd.Context()); err != nil {
			return fmt.Errorf("failed to stop engine: %w", err)
		}
		fmt.Println("Engine stopped")
		return nil
	},
}

var engineStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show engine container status",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getEngineContainer()
		if err != nil {
			return err
		}
		defer mgr.Close()

		status, err := mgr.Status(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to get engine status: %w", err)
		}

		fmt.Printf("Engine: %s\n", status)
		if status == synth.StatusRunning {
			fmt.Printf("URL:    %s\n", mgr.URL())
		}
		return nil
	},
}

var engineLogsCmd = &cobra.Command{
	Use:   "logs",
	Short: "Show engine container logs",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getEngineContainer()
		if err != nil {
			return err
		}
		defer mgr.Close()

		logs, err := mgr.Logs(cmd.Context(), engineLogsTail)
		if err != nil {
			return fmt.Errorf("failed to get engine logs: %w", err)
		}
		fmt.Print(logs)
		return nil
	},
}

var engineRemoveCmd = &cobra.Command{
	Use:   "remove",
	Short: "Remove the engine container",
	Long: `Remove the TTS engine container.

The container is stopped first if running. Voice models under
~/.lectern/voices/ are untouched.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getEngineContainer()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Println("Removing TTS engine container...")
		if err := mgr.Remove(cmd.Context()); err != nil {
			return fmt.Errorf("failed to remove engine: %w", err)
		}
		fmt.Println("Engine container removed")
		return nil
	},
}

var engineWaitCmd = &cobra.Command{
	Use:   "wait",
	Short: "Wait for the engine to become ready",
	RunE: func(cmd *cobra.Command, args []string) error {
		mgr, err := getEngineContainer()
		if err != nil {
			return err
		}
		defer mgr.Close()

		fmt.Printf("Waiting up to %s for the engine...\n", engineWaitTimeout)
		if err := mgr.WaitReady(cmd.Context(), engineWaitTimeout); err != nil {
			return fmt.Errorf("engine did not become ready: %w", err)
		}
		fmt.Printf("Engine is ready at %s\n", mgr.URL())
		return nil
	},
}

// getEngineContainer wires the container manager from home and config.
func getEngineContainer() (*synth.EngineContainer, error) {
	h, err := getHome()
	if err != nil {
		return nil, err
	}
	cfg, err := getConfig(h)
	if err != nil {
		return nil, err
	}
	return newEngineContainer(h, cfg.Engine.ContainerName, cfg.Engine.Image, cfg.Engine.Port, cfg.Synthesis.Voice)
}

func newEngineContainer(h *home.Dir, name, image, port, voice string) (*synth.EngineContainer, error) {
	return synth.NewEngineContainer(synth.EngineContainerConfig{
		ContainerName: name,
		Image:         image,
		VoicesPath:    h.VoicesPath(),
		Voice:         voice,
		Port:          port,
	})
}

func init() {
	engineLogsCmd.Flags().StringVar(&engineLogsTail, "tail", "100", "number of log lines to show")
	engineWaitCmd.Flags().DurationVar(&engineWaitTimeout, "timeout", 60*time.Second, "how long to wait")

	engineCmd.AddCommand(engineStartCmd)
	engineCmd.AddCommand(engineStopCmd)
	engineCmd.AddCommand(engineStatusCmd)
	engineCmd.AddCommand(engineLogsCmd)
	engineCmd.AddCommand(engineRemoveCmd)
	engineCmd.AddCommand(engineWaitCmd)

	rootCmd.AddCommand(engineCmd)
}
