package secrets

import (
	"net/url"
	"testing"

	"jobcollect-engine/internal/config"

	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestProxyURLWithKeychainPassword(t *testing.T) {
	keyring.MockInit()

	cfg := config.Default()
	cfg.HTTP.ProxyURL = "http://proxy.test:3128"
	cfg.HTTP.ProxyUser = "scraper"

	_, err := ProxyURL(cfg)
	require.ErrorIs(t, err, ErrNoProxyPassword)

	account := ProxyKeyringAccount(cfg)
	require.Equal(t, "jobcollect:proxy:scraper@proxy.test:3128", account)
	require.NoError(t, SetProxyPassword(account, "p@ss"))

	raw, err := ProxyURL(cfg)
	require.NoError(t, err)
	u, err := url.Parse(raw)
	require.NoError(t, err)
	pw, _ := u.User.Password()
	require.Equal(t, "scraper", u.User.Username())
	require.Equal(t, "p@ss", pw)

	require.NoError(t, DeleteProxyPassword(account))
	_, err = GetProxyPassword(account)
	require.ErrorIs(t, err, ErrNoProxyPassword)
}

func TestProxyURLWithoutUser(t *testing.T) {
	cfg := config.Default()
	cfg.HTTP.ProxyURL = "http://proxy.test:3128"
	raw, err := ProxyURL(cfg)
	require.NoError(t, err)
	require.Equal(t, "http://proxy.test:3128", raw)

	require.Error(t, SetProxyPassword("acct", " "))
}
