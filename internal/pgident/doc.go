// Package pgident validates PostgreSQL table, column and function
// identifiers before they are spliced into DDL/DML by string substitution.
//
// This is a first-line defense against SQL injection, not an exhaustive
// one: callers remain responsible for sanitizing anything that isn't an
// identifier (predicates, literals, ...).
package pgident
