package secrets

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"jobcollect-engine/internal/config"

	"github.com/zalando/go-keyring"
)

const (
	// “Service” groups the app’s secrets in the OS keychain.
	KeyringService = "jobcollect"
)

var ErrNoProxyPassword = errors.New("proxy password not found in keychain")

func GetProxyPassword(keyringAccount string) (string, error) {
	if strings.TrimSpace(keyringAccount) == "" {
		return "", errors.New("keyring account name is empty")
	}
	pw, err := keyring.Get(KeyringService, keyringAccount)
	if errors.Is(err, keyring.ErrNotFound) || (err == nil && strings.TrimSpace(pw) == "") {
		return "", ErrNoProxyPassword
	}
	if err != nil {
		return "", err
	}
	return pw, nil
}

func SetProxyPassword(keyringAccount string, password string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("password is empty")
	}
	return keyring.Set(KeyringService, keyringAccount, password)
}

func DeleteProxyPassword(keyringAccount string) error {
	if strings.TrimSpace(keyringAccount) == "" {
		return errors.New("keyring account name is empty")
	}
	return keyring.Delete(KeyringService, keyringAccount)
}

func ProxyKeyringAccount(cfg config.Config) string {
	host := cfg.HTTP.ProxyURL
	if u, err := url.Parse(cfg.HTTP.ProxyURL); err == nil && u.Host != "" {
		host = u.Host
	}
	return fmt.Sprintf("jobcollect:proxy:%s@%s", cfg.HTTP.ProxyUser, host)
}

// ProxyURL returns http.proxy_url with the configured user and the keychain
// password filled in. Without a proxy user the URL is returned unchanged.
func ProxyURL(cfg config.Config) (string, error) {
	raw := strings.TrimSpace(cfg.HTTP.ProxyURL)
	if raw == "" || cfg.HTTP.ProxyUser == "" {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("proxy url: %w", err)
	}
	pw, err := GetProxyPassword(ProxyKeyringAccount(cfg))
	if err != nil {
		return "", err
	}
	u.User = url.UserPassword(cfg.HTTP.ProxyUser, pw)
	return u.String(), nil
}
