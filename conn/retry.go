package conn

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/nahmadov/dapperforge/dfconfig"
)

// transientMarkers are substrings of driver error text recognized as safe to
// retry: SqlServer deadlock 1205, Oracle ORA-00060 deadlock, Azure SQL
// throttling/failover codes, and generic transport failures. Best-effort:
// different drivers format their error text differently, so this matches on
// the numeric codes and phrases spec §4.12 names rather than driver-specific
// error types.
var transientMarkers = []string{
	"1205",     // SqlServer: deadlock victim
	"ora-00060", // Oracle: deadlock detected
	"40197", "40501", "40613", "49918", "49919", "49920", "4221", // Azure SQL transient codes
	"connection reset", "connection refused", "broken pipe",
	"i/o timeout", "bad connection", "context deadline exceeded",
}

// nonTransientMarkers are checked before transientMarkers: an error whose
// text contains any of them is never retried, even if it also contains a
// transient marker (spec's "never retry on" list).
var nonTransientMarkers = []string{
	"login failed", "invalid object name", "invalid column name",
	"permission denied", "syntax error", "instance-specific error",
}

// DefaultTransientClassifier implements spec §4.12's retry/no-retry policy
// from driver error text. Supplying dfconfig.Config.TransientClassifier
// overrides this.
func DefaultTransientClassifier(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, bad := range nonTransientMarkers {
		if strings.Contains(msg, bad) {
			return false
		}
	}
	for _, ok := range transientMarkers {
		if strings.Contains(msg, ok) {
			return true
		}
	}
	return false
}

// RetryRead runs op, retrying only when the classifier recognizes the error
// as transient, up to cfg.MaxRetryCount additional attempts with exponential
// backoff starting at cfg.BaseRetryDelay. Never call this around a mutation
// (spec invariant 8: "no retry ever occurs for an Execute call").
func RetryRead(ctx context.Context, cfg dfconfig.Config, op func() error) error {
	cfg = cfg.WithDefaults()
	classify := cfg.TransientClassifier
	if classify == nil {
		classify = DefaultTransientClassifier
	}

	var lastErr error
	delay := cfg.BaseRetryDelay
	for attempt := 0; attempt <= cfg.MaxRetryCount; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if attempt == cfg.MaxRetryCount || !classify(lastErr) {
			return lastErr
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	return lastErr
}
