package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"jobcollect-engine/internal/config"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/sitetest"
	"jobcollect-engine/internal/store"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestBuildStrategiesFollowsConfiguredOrder(t *testing.T) {
	cfg := config.Default()
	cfg.Site.BaseURL = "https://jobs.test"
	cfg.Collect.Strategies = []string{"walk", "api"}

	client := fetch.NewClient(fetch.NewRestyFetcher(fetch.RestyOptions{}), fetch.ClientOptions{})
	got, err := buildStrategies(cfg, client, logrus.NewEntry(logrus.New()))
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "walk", got[0].Name())
	require.Equal(t, "api", got[1].Name())

	cfg.Collect.Strategies = []string{"crawl"}
	_, err = buildStrategies(cfg, client, nil)
	require.Error(t, err)

	cfg.Site.BaseURL = ""
	_, err = buildStrategies(cfg, client, nil)
	require.Error(t, err)
}

func TestCollectThenList(t *testing.T) {
	site := sitetest.New()
	defer site.Close()
	var page []sitetest.Job
	for i := 1; i <= 4; i++ {
		page = append(page, sitetest.Job{
			ID:          fmt.Sprintf("%d", i),
			Title:       fmt.Sprintf("Engineer %d", i),
			Company:     "Acme",
			Location:    "Reston, VA",
			Clearance:   "Secret",
			JobType:     "Full-Time",
			Description: strings.Repeat("Build things. ", 30),
		})
	}
	site.Pages = [][]sitetest.Job{page}

	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yml"), []byte(fmt.Sprintf(`
app:
  data_dir: %s
site:
  base_url: %s
retry:
  max_attempts: 1
http:
  rate_per_second: 100
  burst: 100
log:
  level: error
`, dir, site.URL)), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"--data-dir", dir, "collect", "--max", "3"})
	require.NoError(t, rootCmd.Execute())
	require.Contains(t, out.String(), "api")
	require.Zero(t, site.FallbackHits())

	db, err := store.Open(filepath.Join(dir, "jobcollect.db"))
	require.NoError(t, err)
	jobs, err := store.ListJobs(t.Context(), db.Pool, store.ListJobsOpts{Window: "all"})
	require.NoError(t, err)
	require.Len(t, jobs, 3)
	require.NoError(t, db.Close())

	out.Reset()
	rootCmd.SetArgs([]string{"--data-dir", dir, "list", "--window", "all", "--json"})
	require.NoError(t, rootCmd.Execute())

	var listed []store.StoredJob
	require.NoError(t, json.Unmarshal(out.Bytes(), &listed))
	require.Len(t, listed, 3)
	require.Equal(t, "Acme", listed[0].Company)
}
