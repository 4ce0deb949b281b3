package platform

import (
	"context"
	"io"
	"log/slog"
	"math/rand"
	"net/http"
	"time"
)

const (
	requestTimeout = 15 * time.Second
	maxAttempts    = 3
	backoffBase    = 500 * time.Millisecond
	backoffCap     = 8 * time.Second
)

var httpClient = &http.Client{Timeout: requestTimeout}

// Backoff returns the delay before retry attempt n (0-based): exponential
// growth from backoffBase, capped, with up to 25% jitter.
func Backoff(attempt int) time.Duration {
	d := backoffBase << uint(attempt)
	if d > backoffCap {
		d = backoffCap
	}
	jitter := time.Duration(rand.Int63n(int64(d) / 4))
	return d + jitter
}

func retryableStatus(statusCode int) bool {
	return statusCode == 429 || statusCode >= 500
}

// doWithRetry sends the request built by newReq, retrying transport errors,
// 5xx and 429 responses with bounded exponential backoff. Auth and content
// errors (other 4xx) are returned to the caller on the first attempt. The
// request body must be rebuildable, hence the constructor instead of a
// ready *http.Request.
func doWithRetry(ctx context.Context, newReq func() (*http.Request, error)) (*http.Response, error) {
	var lastErr error

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(Backoff(attempt - 1)):
			}
		}

		req, err := newReq()
		if err != nil {
			return nil, err
		}

		resp, err := httpClient.Do(req.WithContext(ctx))
		if err != nil {
			lastErr = err
			slog.Info("platform request failed", "attempt", attempt+1, "error", err.Error())
			continue
		}

		if retryableStatus(resp.StatusCode) && attempt < maxAttempts-1 {
			io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
			slog.Info("platform request retrying", "attempt", attempt+1, "status", resp.StatusCode)
			continue
		}

		return resp, nil
	}

	return nil, lastErr
}

func readBody(resp *http.Response) string {
	b, err := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if err != nil {
		return ""
	}
	return string(b)
}
