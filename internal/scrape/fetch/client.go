package fetch

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"jobcollect-engine/internal/scrape/util"

	"github.com/PuerkitoBio/goquery"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = otel.Tracer("jobcollect/scrape/fetch")

type ClientOptions struct {
	Headers HeaderProvider
	Limiter *util.HostLimiter
	Policy  Policy
	// Timeout bounds each attempt. A timed-out attempt is a transient error.
	Timeout time.Duration
	Log     *logrus.Entry
}

// Client is the retrying, rate-limited front of a Fetcher. It is safe for
// concurrent use.
type Client struct {
	fetcher Fetcher
	opts    ClientOptions
	log     *logrus.Entry
}

func NewClient(f Fetcher, opts ClientOptions) *Client {
	if opts.Policy.MaxAttempts < 1 {
		opts.Policy.MaxAttempts = 1
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 20 * time.Second
	}
	log := opts.Log
	if log == nil {
		log = logrus.NewEntry(logrus.StandardLogger())
	}
	return &Client{fetcher: f, opts: opts, log: log.WithField("component", "fetch")}
}

// Get fetches url with retries. Non-2xx/3xx statuses surface as *StatusError
// after the retry policy is exhausted.
func (c *Client) Get(ctx context.Context, kind Kind, url string, extra http.Header) (*Response, error) {
	ctx, span := tracer.Start(ctx, "fetch:"+string(kind))
	defer span.End()
	span.SetAttributes(attribute.String("url", url))

	policy := c.opts.Policy
	policy.OnRetry = func(attempt int, delay time.Duration, err error) {
		c.log.WithFields(logrus.Fields{
			"kind":    kind,
			"url":     url,
			"attempt": attempt,
			"delay":   delay,
		}).WithError(err).Debug("retrying request")
	}

	res, err := Retry(ctx, policy, func(ctx context.Context, attempt int) (*Response, error) {
		return c.once(ctx, kind, url, extra)
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		return nil, fmt.Errorf("get %s %s: %w", kind, url, err)
	}
	span.SetAttributes(attribute.Int("status", res.StatusCode))
	return res, nil
}

func (c *Client) once(ctx context.Context, kind Kind, url string, extra http.Header) (*Response, error) {
	if err := c.opts.Limiter.WaitURL(ctx, url); err != nil {
		return nil, err
	}

	header := http.Header{}
	if c.opts.Headers != nil {
		header = c.opts.Headers.Headers(kind)
		if header == nil {
			header = http.Header{}
		}
	}
	for k, vs := range extra {
		header.Del(k)
		for _, v := range vs {
			header.Add(k, v)
		}
	}

	actx, cancel := context.WithTimeout(ctx, c.opts.Timeout)
	defer cancel()

	res, err := c.fetcher.Fetch(actx, Request{Method: http.MethodGet, URL: url, Header: header})
	if err != nil {
		// the caller gave up; that is never transient
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, classifyTransport(err)
	}
	if res.StatusCode >= 400 {
		return nil, &StatusError{Code: res.StatusCode, URL: url, Body: string(res.Body)}
	}
	return res, nil
}

// GetJSON fetches url and decodes the body into v. Numbers decode as
// json.Number so numeric fields keep their original text.
func (c *Client) GetJSON(ctx context.Context, kind Kind, url string, extra http.Header, v any) error {
	res, err := c.Get(ctx, kind, url, extra)
	if err != nil {
		return err
	}
	return DecodeJSON(res.Body, v)
}

// DecodeJSON decodes body into v, mapping syntax errors to ErrMalformedResponse.
func DecodeJSON(body []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("%w: %v (body=%s)", ErrMalformedResponse, err, truncate(string(body), 120))
	}
	return nil
}

// GetDocument fetches url and parses it as HTML.
func (c *Client) GetDocument(ctx context.Context, kind Kind, url string, extra http.Header) (*goquery.Document, *Response, error) {
	res, err := c.Get(ctx, kind, url, extra)
	if err != nil {
		return nil, nil, err
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(res.Body))
	if err != nil {
		return nil, res, errors.Join(ErrMalformedResponse, err)
	}
	return doc, res, nil
}
