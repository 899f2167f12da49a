package main

import (
	"fmt"
	"path/filepath"

	"jobcollect-engine/internal/config"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Creates and checks the engine config.",
}

var configInitBaseURL string

var configInitCmd = &cobra.Command{
	Use:   "init [--base-url https://jobs.example.com]",
	Short: "Writes a default config.yml into the data dir.",
	RunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			path = filepath.Join(dataDir, "config.yml")
		}
		cfg := config.Default()
		cfg.App.DataDir = dataDir
		cfg.Site.BaseURL = configInitBaseURL
		if err := config.SaveAtomic(path, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", path)
		return nil
	},
}

var configCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Loads the config and prints validation warnings.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(logrus.NewEntry(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "ok: %s, strategies %v, max %d results\n",
			cfg.Site.BaseURL, cfg.Collect.Strategies, cfg.Collect.MaxResults)
		return nil
	},
}

func init() {
	configInitCmd.Flags().StringVar(&configInitBaseURL, "base-url", "", "Job site root URL.")
	configCmd.AddCommand(configInitCmd, configCheckCmd)
	rootCmd.AddCommand(configCmd)
}
