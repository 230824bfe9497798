package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"idscan/internal/logger"
)

var version = "1.0.0"

var rootCmd = &cobra.Command{
	Use:   "idscan",
	Short: "idscan - extract structured fields from Aadhaar card scans",
	Long: `idscan reads a scanned Aadhaar card, recognizes its text and extracts
name, date of birth, gender, Aadhaar number, VID and issue date.

Use "idscan serve" to run the HTTP API, or the extract, ocr and scan
commands to work on single files from the command line.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() {
	log := logger.WithComponent("cmd")

	if err := rootCmd.Execute(); err != nil {
		log.Error().
			Err(err).
			Msg("Command execution failed")
		fmt.Fprintf(os.Stderr, "Error executing command: %v\n", err)
		os.Exit(1)
	}
}
