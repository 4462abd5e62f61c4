package resilience

import (
	"context"
	"database/sql/driver"
	"errors"
	"io"
	"net"
	"strings"
	"syscall"

	"github.com/go-redis/redis/v8"
	"github.com/lib/pq"
)

// Recoverable Postgres SQLSTATEs outside connection-exception class 08:
// too many connections, and the admin/crash shutdown family.
var transientSQLStates = map[string]bool{
	"53300": true, // too_many_connections
	"57P01": true, // admin_shutdown
	"57P02": true, // crash_shutdown
	"57P03": true, // cannot_connect_now
}

// IsTransient reports whether an error is a transient infrastructure fault
// worth retrying. Constraint violations, malformed input, authorization
// failures and other business errors are permanent and never retried.
//
// A cancelled context is permanent: the caller is gone, so retrying is
// useless. A deadline exceeded is a timeout fault and is transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}

	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, ErrTimeout) {
		return true
	}

	// Driver-level connection faults.
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}

	// Redis client closed, or its connection pool timed out waiting for a
	// free connection. go-redis does not export the pool-timeout sentinel,
	// so the latter is matched by message.
	if errors.Is(err, redis.ErrClosed) {
		return true
	}
	if strings.Contains(err.Error(), "connection pool timeout") {
		return true
	}

	// OS-level connection faults.
	if errors.Is(err, syscall.ECONNREFUSED) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ETIMEDOUT) {
		return true
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return true
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		if pqErr.Code.Class() == "08" { // connection_exception
			return true
		}
		return transientSQLStates[string(pqErr.Code)]
	}

	return false
}
