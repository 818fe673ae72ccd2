// Package providers holds the pieces shared by the telemetry snapshot fetchers:
// the Fetcher interface, region bounds, authenticated HTTP clients and record decoding.
package providers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/chrissnell/flightkml/internal/aircraft"
	"golang.org/x/oauth2"
)

// maxBodyBytes caps how much of a provider response we are willing to buffer.
const maxBodyBytes = 64 << 20

// Fetcher pulls one fresh snapshot of raw records for a region.
type Fetcher interface {
	Fetch(ctx context.Context, bounds Bounds) (*aircraft.Snapshot, error)
	Name() string
	Schema() aircraft.Schema
}

// FetchError wraps every failure to obtain a snapshot: transport errors,
// non-success statuses, authentication failures and undecodable bodies.
type FetchError struct {
	Provider   string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch from %s failed (status %d): %v", e.Provider, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch from %s failed: %v", e.Provider, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Get issues a GET and returns the body of a 2xx response. Every failure comes
// back as *FetchError.
func Get(ctx context.Context, client *http.Client, provider, rawURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &FetchError{Provider: provider, Err: fmt.Errorf("error creating HTTP request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return nil, &FetchError{Provider: provider, StatusCode: status, Err: fmt.Errorf("authentication failed: %w", err)}
		}
		return nil, &FetchError{Provider: provider, Err: fmt.Errorf("error sending HTTP request: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &FetchError{Provider: provider, StatusCode: resp.StatusCode, Err: fmt.Errorf("error reading response body: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &FetchError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Err:        fmt.Errorf("bad response from server: %s", truncate(body, 200)),
		}
	}

	if len(body) == 0 {
		return nil, &FetchError{Provider: provider, StatusCode: resp.StatusCode, Err: errors.New("empty response from server")}
	}

	return body, nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
