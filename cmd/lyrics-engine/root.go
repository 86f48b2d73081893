package main

import (
	"fmt"

	"github.com/snarg/lyrics-engine/internal/config"
	"github.com/spf13/cobra"
)

func newRootCommand() *cobra.Command {
	var overrides config.Overrides

	rootCmd := &cobra.Command{
		Use:           "lyrics-engine",
		Short:         "Lyrics transcription, alignment and translation service",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), overrides)
		},
	}

	flags := rootCmd.PersistentFlags()
	flags.StringVar(&overrides.EnvFile, "env-file", "", "Path to .env file (default .env)")
	flags.StringVar(&overrides.HTTPAddr, "listen", "", "HTTP listen address (overrides HTTP_ADDR)")
	flags.StringVar(&overrides.LogLevel, "log-level", "", "Log level (overrides LOG_LEVEL)")
	flags.StringVar(&overrides.TranscribeProvider, "provider", "", "Transcription provider: whisper or deepinfra")
	flags.StringVar(&overrides.WhisperURL, "whisper-url", "", "Whisper-compatible transcription endpoint")
	flags.StringVar(&overrides.TempDir, "temp-dir", "", "Directory for uploaded and converted audio")

	rootCmd.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server (default)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd.Context(), overrides)
		},
	})
	rootCmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := fmt.Fprintln(cmd.OutOrStdout(), version)
			return err
		},
	})

	return rootCmd
}
