package panoptes

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog/log"
)

// Retry policy for subject saves. Proxy hiccups in front of the API resolve
// within a few seconds, so a fixed delay beats an exponential one here.
const (
	saveAttempts  = 10
	saveRetryWait = 5 * time.Second
)

// DefaultSaveBackoff returns the save retry policy: a fixed 5s delay,
// giving up after 10 attempts.
func DefaultSaveBackoff() backoff.BackOff {
	return backoff.WithMaxRetries(backoff.NewConstantBackOff(saveRetryWait), saveAttempts-1)
}

// SaveWithRetry saves the subject, retrying transient failures (connection
// errors, proxy 502/503/504, API 429/5xx) per DefaultSaveBackoff. The last
// transient error is returned once attempts are exhausted; non-transient
// errors abort immediately.
func (c *Client) SaveWithRetry(ctx context.Context, subj Subject) (string, error) {
	return c.SaveWithBackoff(ctx, subj, DefaultSaveBackoff())
}

// SaveWithBackoff is SaveWithRetry with a caller-supplied policy.
func (c *Client) SaveWithBackoff(ctx context.Context, subj Subject, policy backoff.BackOff) (string, error) {
	var subjectID string
	attempt := 0

	op := func() error {
		attempt++
		id, err := c.SaveSubject(ctx, subj)
		if err != nil {
			if !IsTransient(err) {
				return backoff.Permanent(err)
			}
			log.Warn().Err(err).Int("attempt", attempt).Msg("Transient subject save failure, will retry")
			return err
		}
		subjectID = id
		return nil
	}

	if err := backoff.Retry(op, backoff.WithContext(policy, ctx)); err != nil {
		return "", err
	}
	return subjectID, nil
}

// IsTransient reports whether an error is worth retrying: network-level
// failures and API responses that indicate overload or proxy trouble.
func IsTransient(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case http.StatusTooManyRequests,
			http.StatusBadGateway,
			http.StatusServiceUnavailable,
			http.StatusGatewayTimeout:
			return true
		}
		return apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}

	var opErr *net.OpError
	return errors.As(err, &opErr)
}
