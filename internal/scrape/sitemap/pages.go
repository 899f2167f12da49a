// Package sitemap holds the fallback strategies: candidate job pages found
// through the sitemap, or through a directory → company → job walk.
package sitemap

import (
	"context"

	"jobcollect-engine/internal/collect"
	"jobcollect-engine/internal/domain"
	"jobcollect-engine/internal/scrape/fetch"
	"jobcollect-engine/internal/scrape/jobpage"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// pageRunner fetches job pages in concurrent batches and persists the
// results in candidate order.
type pageRunner struct {
	client    *fetch.Client
	batchSize int
	strategy  domain.SourceStrategy
	log       *logrus.Entry
}

// run processes urls until they are exhausted or want records are saved.
func (p pageRunner) run(ctx context.Context, st *collect.State, urls []string, want int) (int, error) {
	saved := 0
	for start := 0; start < len(urls); start += p.batchSize {
		if saved >= want || st.Done() {
			return saved, nil
		}
		if err := ctx.Err(); err != nil {
			return saved, err
		}
		batch := urls[start:min(start+p.batchSize, len(urls))]

		results := make([]*domain.JobRecord, len(batch))
		var g errgroup.Group
		g.SetLimit(p.batchSize)
		for i, u := range batch {
			g.Go(func() error {
				res, err := jobpage.Fetch(ctx, p.client, u)
				if err != nil {
					p.log.WithField("url", u).WithError(err).Debug("job page unavailable")
					return nil
				}
				rec := res.Record
				rec.SourceStrategy = res.Strategy(p.strategy)
				results[i] = &rec
				return nil
			})
		}
		_ = g.Wait()

		n, done, err := st.PersistBatch(ctx, results, want-saved)
		saved += n
		if err != nil || done {
			return saved, err
		}
	}
	return saved, nil
}

// fresh drops urls whose record was already persisted.
func fresh(st *collect.State, urls []string) []string {
	out := urls[:0:0]
	for _, u := range urls {
		if !st.Seen(domain.JobRecord{URL: u}) {
			out = append(out, u)
		}
	}
	return out
}
