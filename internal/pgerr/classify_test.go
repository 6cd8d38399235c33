package pgerr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
)

func TestIsExtensionNotLoaded(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "sentinel", err: ErrExtensionNotLoaded, want: true},
		{name: "wrapped sentinel", err: fmt.Errorf("schedule: %w", ErrExtensionNotLoaded), want: true},
		{name: "plain message match", err: errors.New(`extension "pg_cron" must be loaded via "shared_preload_libraries"`), want: true},
		{name: "pgconn error match", err: &pgconn.PgError{Message: `must be loaded via "shared_preload_libraries"`}, want: true},
		{name: "unrelated error", err: errors.New("connection refused"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsExtensionNotLoaded(tt.err); got != tt.want {
				t.Errorf("IsExtensionNotLoaded(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func TestIsTransientIO(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection exception class", err: &pgconn.PgError{Code: "08006"}, want: true},
		{name: "syntax error class", err: &pgconn.PgError{Code: "42601"}, want: false},
		{name: "conn closed message", err: errors.New("conn closed"), want: true},
		{name: "unrelated", err: errors.New("invalid identifier"), want: false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsTransientIO(tt.err); got != tt.want {
				t.Errorf("IsTransientIO(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
