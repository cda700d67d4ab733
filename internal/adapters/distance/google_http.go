package distance

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"
)

// HTTPStatusError is returned for any non-2xx response from the matrix API.
type HTTPStatusError struct {
	Code int
	Body string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("Code %d: %s", e.Code, e.Body)
}

func (g *GoogleMatrixClient) newRequest(ctx context.Context, endpoint string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")

	return req, nil
}

func (g *GoogleMatrixClient) do(req *http.Request) (*http.Response, error) {
	resp, err := g.session.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode >= 400 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, &HTTPStatusError{
			Code: resp.StatusCode,
			Body: strings.TrimSpace(string(b)),
		}
	}
	return resp, nil
}

// doWithRetry sends the request built by makeReq up to maxAttempts times.
// Network errors and 429/5xx responses are retried after a doubling pause;
// every attempt first takes a token from the limiter.
func (g *GoogleMatrixClient) doWithRetry(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	for attempt, pause := 1, g.initialBackoff; ; attempt, pause = attempt+1, pause*2 {
		resp, err := g.attempt(ctx, makeReq)
		if err == nil {
			return resp, nil
		}
		if attempt >= g.maxAttempts || !transient(ctx, err) {
			return nil, err
		}
		if werr := sleepCtx(ctx, pause); werr != nil {
			return nil, werr
		}
	}
}

func (g *GoogleMatrixClient) attempt(
	ctx context.Context,
	makeReq func() (*http.Request, error),
) (*http.Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limit wait: %w", err)
		}
	}

	req, err := makeReq()
	if err != nil {
		return nil, fmt.Errorf("make request: %w", err)
	}
	return g.do(req)
}

// transient reports whether a failed attempt is worth repeating.
func transient(ctx context.Context, err error) bool {
	var he *HTTPStatusError
	if errors.As(err, &he) {
		switch he.Code {
		case http.StatusTooManyRequests, http.StatusInternalServerError, http.StatusBadGateway,
			http.StatusServiceUnavailable, http.StatusGatewayTimeout:
			return true
		}
		return false
	}
	var netErr net.Error
	return errors.As(err, &netErr) && ctx.Err() == nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
