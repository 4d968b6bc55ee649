package monitors

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"

	"github.com/monocle-dev/keywatch/internal/types"
	"golang.org/x/net/html/charset"
)

type FetchErrorKind string

const (
	FetchTimeout    FetchErrorKind = "timeout"
	FetchConnection FetchErrorKind = "connection"
	FetchHTTPStatus FetchErrorKind = "http_status"
	FetchParse      FetchErrorKind = "parse"
)

// FetchError is the typed failure of a check attempt. StatusCode is zero unless a response arrived.
type FetchError struct {
	Kind       FetchErrorKind
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("%s error: %v", e.Kind, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Page is a successfully fetched response body, already decoded to UTF-8
type Page struct {
	StatusCode int
	FinalURL   string
	Body       []byte
}

type Fetcher struct {
	client *http.Client
	config types.CheckConfig
}

// NewFetcher builds a Fetcher with a shared client bound to the configured timeout
func NewFetcher(config types.CheckConfig) *Fetcher {
	defaults := types.DefaultCheckConfig()

	if config.Timeout <= 0 {
		config.Timeout = defaults.Timeout
	}

	if config.UserAgent == "" {
		config.UserAgent = defaults.UserAgent
	}

	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaults.MaxBodyBytes
	}

	if config.MaxRedirects <= 0 {
		config.MaxRedirects = defaults.MaxRedirects
	}

	maxRedirects := config.MaxRedirects

	client := &http.Client{
		Timeout: config.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return fmt.Errorf("stopped after %d redirects", maxRedirects)
			}
			return nil
		},
	}

	return &Fetcher{client: client, config: config}
}

// Fetch issues a GET for url. Any final status outside 2xx/3xx is a failure.
func (f *Fetcher) Fetch(ctx context.Context, url string) (*Page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)

	if err != nil {
		return nil, &FetchError{Kind: FetchConnection, Err: err}
	}

	req.Header.Set("User-Agent", f.config.UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := f.client.Do(req)

	if err != nil {
		return nil, &FetchError{Kind: classify(err), Err: err}
	}

	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, &FetchError{
			Kind:       FetchHTTPStatus,
			StatusCode: resp.StatusCode,
			Err:        errors.New("unexpected status code: " + resp.Status),
		}
	}

	var reader io.Reader = resp.Body

	if decoded, err := charset.NewReader(resp.Body, resp.Header.Get("Content-Type")); err == nil {
		reader = decoded
	}

	body, err := io.ReadAll(io.LimitReader(reader, f.config.MaxBodyBytes))

	if err != nil {
		return nil, &FetchError{Kind: classify(err), StatusCode: resp.StatusCode, Err: err}
	}

	return &Page{
		StatusCode: resp.StatusCode,
		FinalURL:   resp.Request.URL.String(),
		Body:       body,
	}, nil
}

func classify(err error) FetchErrorKind {
	if errors.Is(err, context.DeadlineExceeded) {
		return FetchTimeout
	}

	var netErr net.Error

	if errors.As(err, &netErr) && netErr.Timeout() {
		return FetchTimeout
	}

	return FetchConnection
}
