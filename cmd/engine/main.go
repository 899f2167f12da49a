package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var (
	dataDir    string
	configPath string
)

var rootCmd = &cobra.Command{
	Use:           "engine",
	Short:         "engine collects job postings from a job site into a local database.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	def := os.Getenv("JOBCOLLECT_DATA_DIR")
	if def == "" {
		def = "."
	}
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", def, "Directory holding config.yml, the database and the run lock.")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default <data-dir>/config.yml).")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
