package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/lecternaudio/lectern/internal/synth"
)

var voicesCmd = &cobra.Command{
	Use:   "voices",
	Short: "List available voices",
	Long: `List available voices.

Local voices are .onnx model files under ~/.lectern/voices/ (or the
configured voices directory), served by both the piper and http engines.
The OpenAI engine's built-in voices are listed alongside.

Download piper voices from https://huggingface.co/rhasspy/piper-voices
and place the .onnx and .onnx.json files in the voices directory.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		h, err := getHome()
		if err != nil {
			return err
		}
		cfg, err := getConfig(h)
		if err != nil {
			return err
		}

		voicesDir := cfg.Synthesis.Piper.VoicesDir
		if voicesDir == "" {
			voicesDir = h.VoicesPath()
		}

		local, err := localVoices(voicesDir)
		if err != nil {
			return err
		}

		fmt.Printf("Local voices (%s):\n", voicesDir)
		if len(local) == 0 {
			fmt.Println("  (none installed)")
		}
		for _, v := range local {
			marker := " "
			if v == cfg.Synthesis.Voice {
				marker = "*"
			}
			fmt.Printf("  %s %s\n", marker, v)
		}

		fmt.Println("\nOpenAI voices (engine openai):")
		oa := synth.NewOpenAI(synth.OpenAIConfig{APIKey: "-"}, nil)
		fmt.Printf("  %s\n", strings.Join(oa.Voices(), ", "))
		return nil
	},
}

// localVoices lists installed .onnx voice models by name.
func localVoices(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read voices directory: %w", err)
	}

	var voices []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || filepath.Ext(name) != ".onnx" {
			continue
		}
		voices = append(voices, strings.TrimSuffix(name, ".onnx"))
	}
	return voices, nil
}

func init() {
	rootCmd.AddCommand(voicesCmd)
}
