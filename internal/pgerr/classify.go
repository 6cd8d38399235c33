package pgerr

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
)

// ErrExtensionNotLoaded is the sentinel returned/wrapped when pg_cron is
// installed as an extension but missing from shared_preload_libraries.
var ErrExtensionNotLoaded = errors.New("pg_cron extension present but not loaded via shared_preload_libraries")

// notLoadedSubstring is the exact fragment Postgres emits for this
// condition; classification is a substring match, not a SQLSTATE check,
// because pg_cron raises it as a plain ERROR with no dedicated code.
const notLoadedSubstring = `must be loaded via "shared_preload_libraries"`

// IsExtensionNotLoaded reports whether err indicates pg_cron exists but
// was not loaded via shared_preload_libraries.
func IsExtensionNotLoaded(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrExtensionNotLoaded) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.Contains(pgErr.Message, notLoadedSubstring)
	}
	return strings.Contains(err.Error(), notLoadedSubstring)
}

// IsTransientIO reports whether err looks like a connection/IO fault
// (closed connection, timeout, network error, EOF) rather than a
// validation or logic error. Used to pick the DEBUG vs WARN log level for
// errors during unschedule/purge, which are never rethrown either way.
func IsTransientIO(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) || errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		// Class 08 = Connection Exception.
		return strings.HasPrefix(pgErr.Code, "08")
	}
	return strings.Contains(err.Error(), "conn closed") || strings.Contains(err.Error(), "connection reset")
}
