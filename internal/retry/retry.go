// Package retry wraps catalog queries in the retry envelope spec §4.4
// describes: up to three attempts, linear backoff of attempt×1000ms, with a
// dialect-specific predicate deciding which faults are retryable.
package retry

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// MaxAttempts is the hard cap spec §4.4 sets on retry attempts.
const MaxAttempts = 3

// linearBackOff implements backoff.BackOff with the attempt×1000ms schedule
// spec §4.4 requires. cenkalti/backoff/v4 ships constant and exponential
// schedules only, so this small adapter supplies the linear one; everything
// else (the retry loop, context cancellation, max-attempt bookkeeping) comes
// from the library via backoff.Retry / backoff.WithMaxRetries.
type linearBackOff struct {
	attempt int
}

func (l *linearBackOff) NextBackOff() time.Duration {
	l.attempt++
	return time.Duration(l.attempt) * time.Second
}

func (l *linearBackOff) Reset() {
	l.attempt = 0
}

var _ backoff.BackOff = (*linearBackOff)(nil)

// Predicate reports whether an error from a catalog query is transient and
// worth retrying.
type Predicate func(err error) bool

// FatalError marks an error that must not be retried even if the predicate
// says otherwise — used to signal context cancellation during backoff,
// which spec §7 treats as an immediate fatal extraction error.
type FatalError struct{ Err error }

func (f *FatalError) Error() string { return f.Err.Error() }
func (f *FatalError) Unwrap() error { return f.Err }

// Do runs fn at most MaxAttempts times in all (the first call included),
// with linear backoff between attempts, while predicate(err) is true. Queries always carry the 300s timeout from
// spec §4.4; it is the caller's responsibility to derive a context with
// that deadline, since Do itself is dialect-agnostic.
func Do(ctx context.Context, predicate Predicate, fn func(ctx context.Context) error) error {
	attempts := 0
	op := func() error {
		attempts++
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if ctx.Err() != nil {
			return backoff.Permanent(&FatalError{Err: ctx.Err()})
		}
		if attempts >= MaxAttempts || !predicate(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	b := backoff.WithContext(backoff.WithMaxRetries(&linearBackOff{}, MaxAttempts-1), ctx)
	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	var fatal *FatalError
	if errors.As(err, &fatal) {
		return fatal
	}
	return err
}

// MySQLRetryable matches spec §4.4's MySQL predicate: error codes 1213
// (deadlock), 1205 (lock timeout), 2006 (server gone), 2013 (connection
// lost), or any SQLSTATE beginning "40".
func MySQLRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range []string{"1213", "1205", "2006", "2013"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return sqlStateStartsWith40(msg)
}

// PostgreSQLRetryable matches spec §4.4: any SQLSTATE beginning "40"
// (serialization_failure, deadlock_detected, and siblings).
func PostgreSQLRetryable(err error) bool {
	if err == nil {
		return false
	}
	return sqlStateStartsWith40(err.Error())
}

// MSSQLRetryable matches spec §4.4: 1205 (deadlock), 1204 (lock issue), -2
// (timeout), or SQLSTATE "40*".
func MSSQLRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range []string{"1205", "1204", "-2"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return sqlStateStartsWith40(msg)
}

// OracleRetryable matches spec §4.4's ORA codes: 60 (deadlock), 8177
// (serialisation), 1013 (cancel), 1089 (shutdown).
func OracleRetryable(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	for _, code := range []string{"ORA-00060", "ORA-08177", "ORA-01013", "ORA-01089"} {
		if strings.Contains(msg, code) {
			return true
		}
	}
	return false
}

// DB2Retryable matches spec §4.4: any SQLSTATE beginning "40".
func DB2Retryable(err error) bool {
	if err == nil {
		return false
	}
	return sqlStateStartsWith40(err.Error())
}

// ForDialect resolves the predicate for a named dialect.
func ForDialect(dialect string) Predicate {
	switch dialect {
	case "mysql":
		return MySQLRetryable
	case "postgres":
		return PostgreSQLRetryable
	case "mssql":
		return MSSQLRetryable
	case "oracle":
		return OracleRetryable
	case "db2":
		return DB2Retryable
	default:
		return func(error) bool { return false }
	}
}

func sqlStateStartsWith40(msg string) bool {
	idx := strings.Index(msg, "SQLSTATE")
	if idx < 0 {
		return false
	}
	rest := strings.TrimSpace(msg[idx+len("SQLSTATE"):])
	rest = strings.TrimPrefix(rest, "=")
	rest = strings.TrimSpace(rest)
	rest = strings.Trim(rest, "\"'")
	return strings.HasPrefix(rest, "40") && isDigitsOrLetters(rest)
}

func isDigitsOrLetters(s string) bool {
	if len(s) < 2 {
		return false
	}
	_, err := strconv.Atoi(s[:2])
	return err == nil
}
