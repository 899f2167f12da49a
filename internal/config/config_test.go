package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
}

func TestDefaultIsValid(t *testing.T) {
	_, res := NormalizeAndValidate(Default())
	require.True(t, res.OK(), res.Errors)
	// no site yet
	require.NotEmpty(t, res.Warnings)
}

func TestLoadKeepsDefaultsAndAppliesLocalOverlay(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yml")
	writeFile(t, path, `
site:
  base_url: https://jobs.test
collect:
  max_results: 25
search:
  keywords: analyst
`)
	writeFile(t, filepath.Join(dir, "config.local.yml"), `
collect:
  max_results: 5
http:
  proxy_url: http://proxy.test:8080
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "https://jobs.test", cfg.Site.BaseURL)
	require.Equal(t, 5, cfg.Collect.MaxResults)
	require.Equal(t, "analyst", cfg.Search.Keywords)
	require.Equal(t, "http://proxy.test:8080", cfg.HTTP.ProxyURL)
	// untouched defaults survive both files
	require.Equal(t, 3, cfg.Retry.MaxAttempts)
	require.Equal(t, []string{"api", "sitemap", "walk"}, cfg.Collect.Strategies)
	require.Equal(t, "/api/v1/jobs/search", cfg.Site.Routes.Listing.Default)
}

func TestLoadWithoutLocalFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	writeFile(t, path, "log:\n  level: debug\n")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "debug", cfg.Log.Level)
}

func TestLocalPath(t *testing.T) {
	require.Equal(t, "/etc/jc/config.local.yml", LocalPath("/etc/jc/config.yml"))
	require.Equal(t, "cfg.local", LocalPath("cfg"))
}

func TestNormalizeAndValidate(t *testing.T) {
	cfg := Default()
	cfg.Site.BaseURL = " https://jobs.test/ "
	cfg.Collect.Strategies = []string{" API ", "sitemap", "api", "crawl"}
	cfg.Site.JobPattern = "("
	cfg.Log.Level = "loud"

	out, res := NormalizeAndValidate(cfg)
	require.Equal(t, "https://jobs.test", out.Site.BaseURL)
	require.Equal(t, []string{"api", "sitemap", "crawl"}, out.Collect.Strategies)
	require.False(t, res.OK())
	require.Len(t, res.Errors, 3)
	require.Contains(t, res.Errors[0], "site.job_pattern")
}

func TestEnsureUserConfigWritesDefaults(t *testing.T) {
	dir := t.TempDir()
	path, err := EnsureUserConfig(dir, filepath.Join(dir, "missing.yml"))
	require.NoError(t, err)
	require.Equal(t, filepath.Join(dir, "config.yml"), path)

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, dir, cfg.App.DataDir)
	require.Equal(t, 100, cfg.Collect.MaxResults)

	// an existing file is left alone
	writeFile(t, path, "collect:\n  max_results: 7\n")
	_, err = EnsureUserConfig(dir, "")
	require.NoError(t, err)
	cfg, err = Load(path)
	require.NoError(t, err)
	require.Equal(t, 7, cfg.Collect.MaxResults)
}

func TestSaveAtomicKeepsBackup(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yml")
	cfg := Default()
	require.NoError(t, SaveAtomic(path, cfg))

	cfg.Collect.MaxResults = 9
	require.NoError(t, SaveAtomic(path, cfg))
	_, err := os.Stat(path + ".bak")
	require.NoError(t, err)

	got, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, 9, got.Collect.MaxResults)

	cfg.Collect.MaxResults = 0
	require.Error(t, SaveAtomic(path, cfg))
}
