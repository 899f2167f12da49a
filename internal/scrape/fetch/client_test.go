package fetch

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func testClient(f Fetcher, attempts int) *Client {
	return NewClient(f, ClientOptions{
		Policy:  Policy{MaxAttempts: attempts},
		Timeout: 2 * time.Second,
	})
}

func TestClientRetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		fmt.Fprint(w, `{"ok":true}`)
	}))
	defer srv.Close()

	c := testClient(NewRestyFetcher(RestyOptions{Timeout: time.Second}), 3)
	var out struct {
		OK bool `json:"ok"`
	}
	require.NoError(t, c.GetJSON(context.Background(), KindListing, srv.URL, nil, &out))
	require.True(t, out.OK)
	require.EqualValues(t, 3, hits.Load())
}

func TestClientExhaustsAttempts(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c := testClient(NewRestyFetcher(RestyOptions{Timeout: time.Second}), 3)
	_, err := c.Get(context.Background(), KindListing, srv.URL, nil)
	require.Error(t, err)

	var se *StatusError
	require.True(t, errors.As(err, &se))
	require.Equal(t, http.StatusServiceUnavailable, se.Code)
	require.EqualValues(t, 3, hits.Load())
}

func TestClientDoesNotRetryClientRejection(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := testClient(NewRestyFetcher(RestyOptions{Timeout: time.Second}), 5)
	_, err := c.Get(context.Background(), KindDetail, srv.URL, nil)
	require.Error(t, err)
	require.True(t, IsClientRejection(err))
	require.EqualValues(t, 1, hits.Load())
}

func TestClientTransportClassification(t *testing.T) {
	testCases := []struct {
		name     string
		err      error
		expected int32
	}{
		{name: "connection reset", err: fmt.Errorf("read tcp: %w", syscall.ECONNRESET), expected: 3},
		{name: "proxy handshake", err: errors.New("proxyconnect tcp: proxy handshake failed"), expected: 3},
		{name: "other transport error", err: errors.New("x509: certificate signed by unknown authority"), expected: 3},
		{name: "malformed", err: fmt.Errorf("decode: %w", ErrMalformedResponse), expected: 1},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var calls atomic.Int32
			f := FetcherFunc(func(ctx context.Context, req Request) (*Response, error) {
				calls.Add(1)
				return nil, tc.err
			})
			_, err := testClient(f, 3).Get(context.Background(), KindPage, "http://example.test/x", nil)
			require.Error(t, err)
			require.Equal(t, tc.expected, calls.Load())
		})
	}
}

func TestClientTimeoutIsTransient(t *testing.T) {
	var calls atomic.Int32
	f := FetcherFunc(func(ctx context.Context, req Request) (*Response, error) {
		if calls.Add(1) == 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return &Response{StatusCode: 200, Body: []byte("ok")}, nil
	})
	c := NewClient(f, ClientOptions{Policy: Policy{MaxAttempts: 2}, Timeout: 20 * time.Millisecond})

	res, err := c.Get(context.Background(), KindPage, "http://example.test/slow", nil)
	require.NoError(t, err)
	require.Equal(t, "ok", string(res.Body))
	require.EqualValues(t, 2, calls.Load())
}

func TestClientStopsOnCallerCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls atomic.Int32
	f := FetcherFunc(func(rctx context.Context, req Request) (*Response, error) {
		calls.Add(1)
		cancel()
		return nil, context.Canceled
	})
	_, err := testClient(f, 5).Get(ctx, KindPage, "http://example.test/", nil)
	require.ErrorIs(t, err, context.Canceled)
	require.EqualValues(t, 1, calls.Load())
}

func TestGetJSONMalformed(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<html>not json</html>")
	}))
	defer srv.Close()

	var v map[string]any
	err := testClient(NewRestyFetcher(RestyOptions{}), 2).GetJSON(context.Background(), KindListing, srv.URL, nil, &v)
	require.ErrorIs(t, err, ErrMalformedResponse)
}

func TestClientHeaders(t *testing.T) {
	var mu sync.Mutex
	var gotUA, gotToken []string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		defer mu.Unlock()
		gotUA = append(gotUA, r.Header.Get("User-Agent"))
		gotToken = append(gotToken, r.Header.Get("X-CSRF-TOKEN"))
	}))
	defer srv.Close()

	c := NewClient(NewRestyFetcher(RestyOptions{}), ClientOptions{
		Headers: NewRotatingHeaders([]string{"ua-1", "ua-2"}, http.Header{"Accept": {"*/*"}}),
		Policy:  Policy{MaxAttempts: 1},
	})
	ctx := context.Background()
	_, err := c.Get(ctx, KindListing, srv.URL, http.Header{"X-CSRF-TOKEN": {"tok"}})
	require.NoError(t, err)
	_, err = c.Get(ctx, KindListing, srv.URL, nil)
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	require.Equal(t, []string{"ua-1", "ua-2"}, gotUA)
	require.Equal(t, []string{"tok", ""}, gotToken)
}
