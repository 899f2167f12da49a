package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"jobcollect-engine/internal/secrets"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var secretsCmd = &cobra.Command{
	Use:   "secrets",
	Short: "Manages secrets held in the OS keychain.",
}

var setProxyCmd = &cobra.Command{
	Use:   "set-proxy",
	Short: "Reads the proxy password from stdin and stores it in the keychain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(logrus.NewEntry(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		if cfg.HTTP.ProxyURL == "" || cfg.HTTP.ProxyUser == "" {
			return errors.New("set http.proxy_url and http.proxy_user first")
		}

		line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if err != nil && line == "" {
			return fmt.Errorf("read password: %w", err)
		}
		account := secrets.ProxyKeyringAccount(cfg)
		if err := secrets.SetProxyPassword(account, strings.TrimRight(line, "\r\n")); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored proxy password for %s\n", account)
		return nil
	},
}

var deleteProxyCmd = &cobra.Command{
	Use:   "delete-proxy",
	Short: "Removes the proxy password from the keychain.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(logrus.NewEntry(logrus.StandardLogger()))
		if err != nil {
			return err
		}
		return secrets.DeleteProxyPassword(secrets.ProxyKeyringAccount(cfg))
	},
}

func init() {
	secretsCmd.AddCommand(setProxyCmd, deleteProxyCmd)
	rootCmd.AddCommand(secretsCmd)
}
