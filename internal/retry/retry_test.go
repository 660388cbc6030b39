package retry

import (
	"context"
	"errors"
	"testing"
)

func TestDoRetriesUpToMaxAttempts(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(error) bool { return true }, func(context.Context) error {
		attempts++
		return errors.New("deadlock")
	})
	if err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if attempts != MaxAttempts {
		t.Fatalf("expected %d attempts, got %d", MaxAttempts, attempts)
	}
}

func TestDoSucceedsWithoutRetryingFurther(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(error) bool { return true }, func(context.Context) error {
		attempts++
		if attempts < 2 {
			return errors.New("transient")
		}
		return nil
	})
	if err != nil {
		t.Fatalf("expected eventual success, got %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
}

func TestDoDoesNotRetryNonRetryableFault(t *testing.T) {
	attempts := 0
	err := Do(context.Background(), func(error) bool { return false }, func(context.Context) error {
		attempts++
		return errors.New("syntax error")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if attempts != 1 {
		t.Fatalf("expected a single attempt for a non-retryable fault, got %d", attempts)
	}
}

func TestDoCancellationDuringBackoffIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	err := Do(ctx, func(error) bool { return true }, func(context.Context) error {
		attempts++
		cancel()
		return errors.New("deadlock")
	})
	if err == nil {
		t.Fatal("expected error")
	}
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected a FatalError after cancellation, got %T: %v", err, err)
	}
}

func TestMySQLRetryablePredicate(t *testing.T) {
	cases := map[string]bool{
		"Error 1213: Deadlock found":            true,
		"Error 1205: Lock wait timeout exceeded": true,
		"Error 2006: MySQL server has gone away": true,
		"Error 1046: No database selected":       false,
	}
	for msg, want := range cases {
		got := MySQLRetryable(errors.New(msg))
		if got != want {
			t.Errorf("MySQLRetryable(%q) = %v, want %v", msg, got, want)
		}
	}
}

func TestPostgreSQLRetryableSQLState(t *testing.T) {
	if !PostgreSQLRetryable(errors.New("pq: deadlock_detected (SQLSTATE 40P01)")) {
		t.Fatal("expected SQLSTATE 40P01 to be retryable")
	}
	if PostgreSQLRetryable(errors.New("pq: syntax error (SQLSTATE 42601)")) {
		t.Fatal("expected SQLSTATE 42601 to not be retryable")
	}
}

func TestOracleRetryableCodes(t *testing.T) {
	if !OracleRetryable(errors.New("ORA-00060: deadlock detected while waiting for resource")) {
		t.Fatal("expected ORA-00060 to be retryable")
	}
	if OracleRetryable(errors.New("ORA-00942: table or view does not exist")) {
		t.Fatal("expected ORA-00942 to not be retryable")
	}
}

func TestForDialectUnknownIsNeverRetryable(t *testing.T) {
	p := ForDialect("made-up-dialect")
	if p(errors.New("anything")) {
		t.Fatal("expected unknown dialect predicate to never retry")
	}
}
