package config

import (
	"fmt"
	"net/url"
	"regexp"
	"slices"
	"strings"

	"github.com/sirupsen/logrus"
)

type Validation struct {
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

func (v *Validation) addErr(format string, args ...any) {
	v.Errors = append(v.Errors, fmt.Sprintf(format, args...))
}
func (v *Validation) addWarn(format string, args ...any) {
	v.Warnings = append(v.Warnings, fmt.Sprintf(format, args...))
}
func (v Validation) OK() bool { return len(v.Errors) == 0 }

// NormalizeAndValidate returns a normalized copy of cfg and the problems found.
func NormalizeAndValidate(cfg Config) (Config, Validation) {
	var out = cfg
	var res Validation

	trimList := func(xs []string, lower bool) []string {
		seen := map[string]bool{}
		var ys []string
		for _, x := range xs {
			x = strings.TrimSpace(x)
			if x == "" {
				continue
			}
			key := strings.ToLower(x)
			if lower {
				x = key
			}
			if seen[key] {
				continue
			}
			seen[key] = true
			ys = append(ys, x)
		}
		return ys
	}

	out.Site.BaseURL = strings.TrimRight(strings.TrimSpace(out.Site.BaseURL), "/")
	out.Collect.Strategies = trimList(out.Collect.Strategies, true)
	out.HTTP.UserAgents = trimList(out.HTTP.UserAgents, false)
	out.Log.Level = strings.ToLower(strings.TrimSpace(out.Log.Level))
	out.Log.Format = strings.ToLower(strings.TrimSpace(out.Log.Format))

	// ---- Validation rules ----

	// site
	if out.Site.BaseURL == "" {
		res.addWarn("site.base_url is empty; set it before running collect.")
	} else if u, err := url.Parse(out.Site.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		res.addErr("site.base_url must be an absolute http(s) URL, got %q", out.Site.BaseURL)
	}
	for name, p := range map[string]string{
		"site.active_pattern":    out.Site.ActivePattern,
		"site.directory_pattern": out.Site.DirectoryPattern,
		"site.company_pattern":   out.Site.CompanyPattern,
		"site.job_pattern":       out.Site.JobPattern,
	} {
		if p == "" {
			continue
		}
		if _, err := regexp.Compile(p); err != nil {
			res.addErr("%s is not a valid regexp: %v", name, err)
		}
	}

	// collect
	if out.Collect.MaxResults <= 0 {
		res.addErr("collect.max_results must be > 0")
	}
	if out.Collect.MaxPages < 0 {
		res.addErr("collect.max_pages must be >= 0 (0 means no limit)")
	} else if out.Collect.MaxPages == 0 {
		res.addWarn("collect.max_pages is 0; listing pagination is unbounded.")
	}
	if out.Collect.WalkMaxPages <= 0 {
		res.addErr("collect.walk_max_pages must be > 0")
	}
	if out.Collect.BatchSize <= 0 {
		res.addErr("collect.batch_size must be > 0")
	} else if out.Collect.BatchSize > 50 {
		res.addWarn("collect.batch_size is high (%d) and may trigger rate limits.", out.Collect.BatchSize)
	}
	if out.Collect.MinDescriptionChars < 0 {
		res.addErr("collect.min_description_chars must be >= 0")
	}
	if len(out.Collect.Strategies) == 0 {
		res.addErr("collect.strategies must name at least one of %s", strings.Join(KnownStrategies, ", "))
	}
	for _, s := range out.Collect.Strategies {
		if !slices.Contains(KnownStrategies, s) {
			res.addErr("collect.strategies: unknown strategy %q", s)
		}
	}

	// retry
	if out.Retry.MaxAttempts <= 0 {
		res.addErr("retry.max_attempts must be > 0")
	}
	if out.Retry.BaseDelayMS < 0 || out.Retry.JitterMS < 0 {
		res.addErr("retry delays must be >= 0")
	}

	// http
	if out.HTTP.TimeoutSeconds <= 0 {
		res.addErr("http.timeout_seconds must be > 0")
	}
	if out.HTTP.RatePerSecond <= 0 {
		res.addErr("http.rate_per_second must be > 0")
	} else if out.HTTP.RatePerSecond > 10 {
		res.addWarn("http.rate_per_second is very high (%.1f); the site may block you.", out.HTTP.RatePerSecond)
	}
	if out.HTTP.Burst <= 0 {
		res.addErr("http.burst must be > 0")
	}
	if out.HTTP.ProxyURL != "" {
		if u, err := url.Parse(out.HTTP.ProxyURL); err != nil || u.Host == "" {
			res.addErr("http.proxy_url is not a valid URL: %q", out.HTTP.ProxyURL)
		}
	}
	// proxy password is not stored here; it's in the keychain
	if out.HTTP.ProxyUser != "" && out.HTTP.ProxyURL == "" {
		res.addWarn("http.proxy_user is set but http.proxy_url is empty; the proxy is not used.")
	}

	// output
	if strings.TrimSpace(out.Output.DBFile) == "" {
		res.addErr("output.db_file is required")
	}
	if out.Output.RetentionDays < 0 {
		res.addErr("output.retention_days must be >= 0 (0 keeps everything)")
	}

	// log
	if _, err := logrus.ParseLevel(out.Log.Level); err != nil {
		res.addErr("log.level: %v", err)
	}
	if out.Log.Format != "text" && out.Log.Format != "json" {
		res.addErr("log.format must be text or json, got %q", out.Log.Format)
	}

	return out, res
}
