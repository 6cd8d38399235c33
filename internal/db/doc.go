// Package db bootstraps the pgxpool connection pool and provides the
// UnitOfWorkFactory abstraction the TTL manager uses for its
// transactional DDL and deletes.
package db
