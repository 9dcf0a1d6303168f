package sandbox

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"io"
	"math"
	"math/rand"
	"net"
	"syscall"
	"time"
)

// RetryPolicy bounds the facade's retry wrapper.
type RetryPolicy struct {
	MaxAttempts int
	Initial     time.Duration
	Max         time.Duration
	Factor      float64
	Jitter      float64 // 0.0 – 1.0 randomization applied on top of the base delay
}

// DefaultRetryPolicy returns the standard bounds: 3 attempts, 100ms base,
// doubling, capped at 2s with 10% jitter.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Initial:     100 * time.Millisecond,
		Max:         2 * time.Second,
		Factor:      2,
		Jitter:      0.1,
	}
}

// backoff computes the delay before the next attempt. Attempts start at 1.
func (p RetryPolicy) backoff(attempt int) time.Duration {
	exp := math.Max(float64(attempt-1), 0)
	base := float64(p.Initial) * math.Pow(p.Factor, exp)
	jitter := base * p.Jitter * rand.Float64() // #nosec G404 -- jitter needs no crypto randomness
	total := math.Min(float64(p.Max), base+jitter)
	return time.Duration(total)
}

// isTransient reports whether an error looks like a connection hiccup
// worth retrying. Anything classified by the taxonomy has already been
// filtered by the caller; this judges raw driver and network failures.
func isTransient(err error) bool {
	if errors.Is(err, driver.ErrBadConn) ||
		errors.Is(err, sql.ErrConnDone) ||
		errors.Is(err, io.EOF) ||
		errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}
