// Package acquire downloads raw forcing data over HTTP with bounded,
// per-attempt-timed retries.
package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/vk/oceanbaselines/internal/ctxlog"
)

// Policy bounds how hard an operation is retried.
type Policy struct {
	// Attempts is the total number of tries, including the first.
	Attempts        int
	AttemptTimeout  time.Duration
	InitialInterval time.Duration
	MaxInterval     time.Duration
}

// DefaultPolicy suits reanalysis servers that are slow but mostly available.
func DefaultPolicy() Policy {
	return Policy{
		Attempts:        4,
		AttemptTimeout:  2 * time.Minute,
		InitialInterval: 2 * time.Second,
		MaxInterval:     30 * time.Second,
	}
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = p.InitialInterval
	eb.MaxInterval = p.MaxInterval
	eb.MaxElapsedTime = 0
	retries := p.Attempts - 1
	if retries < 0 {
		retries = 0
	}
	return backoff.WithContext(backoff.WithMaxRetries(eb, uint64(retries)), ctx)
}

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("GET %s: unexpected status %d %s", e.URL, e.StatusCode, http.StatusText(e.StatusCode))
}

// Temporary reports whether retrying the request may succeed.
func (e *StatusError) Temporary() bool {
	switch {
	case e.StatusCode == http.StatusRequestTimeout, e.StatusCode == http.StatusTooManyRequests:
		return true
	case e.StatusCode >= 400 && e.StatusCode < 500:
		return false
	default:
		return true
	}
}

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	return backoff.Permanent(err)
}

// Retrying runs op until it succeeds, returns a permanent error, or the
// policy is exhausted. Each attempt gets its own timeout derived from ctx.
func Retrying(ctx context.Context, policy Policy, name string, op func(ctx context.Context) error) error {
	logger := ctxlog.FromContext(ctx)
	attempt := 0

	operation := func() error {
		attempt++
		attemptCtx := ctx
		if policy.AttemptTimeout > 0 {
			var cancel context.CancelFunc
			attemptCtx, cancel = context.WithTimeout(ctx, policy.AttemptTimeout)
			defer cancel()
		}
		err := op(attemptCtx)
		if err != nil && ctx.Err() != nil {
			return backoff.Permanent(ctx.Err())
		}
		return err
	}
	notify := func(err error, wait time.Duration) {
		logger.Warn("Attempt failed, retrying.", "operation", name, "attempt", attempt, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(operation, policy.backOff(ctx), notify); err != nil {
		return fmt.Errorf("%s failed after %d attempt(s): %w", name, attempt, err)
	}
	if attempt > 1 {
		logger.Info("Operation succeeded after retrying.", "operation", name, "attempts", attempt)
	}
	return nil
}

// Client downloads files.
type Client struct {
	http   *http.Client
	policy Policy
}

// NewClient creates a download client. A nil httpClient uses http.DefaultClient.
func NewClient(httpClient *http.Client, policy Policy) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{http: httpClient, policy: policy}
}

// Download fetches url into dest. dest only appears once the body has been
// fully received.
func (c *Client) Download(ctx context.Context, url, dest string) error {
	return Retrying(ctx, c.policy, "download "+url, func(ctx context.Context) error {
		return c.downloadOnce(ctx, url, dest)
	})
}

func (c *Client) downloadOnce(ctx context.Context, url, dest string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return Permanent(err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		_, _ = io.Copy(io.Discard, resp.Body)
		statusErr := &StatusError{URL: url, StatusCode: resp.StatusCode}
		if !statusErr.Temporary() {
			return Permanent(statusErr)
		}
		return statusErr
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return Permanent(err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(dest), "."+filepath.Base(dest)+".part.*")
	if err != nil {
		return Permanent(err)
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), dest)
}

// IsStatus reports whether err carries an HTTP status error with code.
func IsStatus(err error, code int) bool {
	var statusErr *StatusError
	return errors.As(err, &statusErr) && statusErr.StatusCode == code
}
