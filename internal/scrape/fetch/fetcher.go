package fetch

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
)

// Kind labels what a request is for; header providers and logs use it.
type Kind string

const (
	KindBootstrap  Kind = "bootstrap"
	KindListing    Kind = "listing"
	KindDetail     Kind = "detail"
	KindAdditional Kind = "additional"
	KindPage       Kind = "page"
	KindSitemap    Kind = "sitemap"
)

type Request struct {
	Method string
	URL    string
	Header http.Header
}

// Response is a fully read HTTP response. Any status is a Response; only
// transport failures are errors.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	URL        string
}

// Fetcher issues a single HTTP request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Response, error)
}

type FetcherFunc func(ctx context.Context, req Request) (*Response, error)

func (f FetcherFunc) Fetch(ctx context.Context, req Request) (*Response, error) { return f(ctx, req) }

// HeaderProvider supplies per-request identity headers (user agent etc).
type HeaderProvider interface {
	Headers(kind Kind) http.Header
}

// StaticHeaders sends the same headers on every request.
type StaticHeaders http.Header

func (s StaticHeaders) Headers(Kind) http.Header { return http.Header(s).Clone() }

// RotatingHeaders cycles through user agents round-robin.
type RotatingHeaders struct {
	mu     sync.Mutex
	agents []string
	next   int
	Base   http.Header
}

func NewRotatingHeaders(agents []string, base http.Header) *RotatingHeaders {
	return &RotatingHeaders{agents: agents, Base: base}
}

func (r *RotatingHeaders) Headers(Kind) http.Header {
	h := r.Base.Clone()
	if h == nil {
		h = http.Header{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.agents) > 0 {
		h.Set("User-Agent", r.agents[r.next%len(r.agents)])
		r.next++
	}
	return h
}

type RestyOptions struct {
	Timeout  time.Duration
	ProxyURL string
}

// RestyFetcher is the production Fetcher.
type RestyFetcher struct {
	client *resty.Client
}

func NewRestyFetcher(opts RestyOptions) *RestyFetcher {
	client := resty.New()
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}
	if opts.ProxyURL != "" {
		client.SetProxy(opts.ProxyURL)
	}
	client.SetRedirectPolicy(resty.FlexibleRedirectPolicy(10))
	return &RestyFetcher{client: client}
}

func (f *RestyFetcher) Fetch(ctx context.Context, req Request) (*Response, error) {
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}

	r := f.client.R().SetContext(ctx)
	for k, vs := range req.Header {
		for _, v := range vs {
			r.Header.Add(k, v)
		}
	}

	res, err := r.Execute(method, req.URL)
	if err != nil {
		return nil, err
	}

	finalURL := req.URL
	if res.RawResponse != nil && res.RawResponse.Request != nil && res.RawResponse.Request.URL != nil {
		finalURL = res.RawResponse.Request.URL.String()
	}
	return &Response{
		StatusCode: res.StatusCode(),
		Header:     res.Header(),
		Body:       res.Body(),
		URL:        finalURL,
	}, nil
}
