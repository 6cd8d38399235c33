package ttl

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"fmt"

	"github.com/trustworks/essentials-scheduler/internal/db"
	"github.com/trustworks/essentials-scheduler/internal/pgident"
)

// JobAction is what a TTLJobDefinition schedules. The default
// implementation below covers the common "delete rows matching a
// predicate" case; callers needing something more exotic can implement
// the interface directly.
type JobAction interface {
	JobName() string
	// FunctionCall returns the function name and literal SQL arguments
	// used when this action is installed as a pg_cron job.
	FunctionCall() (functionName string, args []string)
	// ExecuteDirectly runs the action's effect inline, used when the
	// action is installed as an in-process fixed-delay job.
	ExecuteDirectly(ctx context.Context, factory db.UnitOfWorkFactory) error
}

// DefaultAction deletes rows from TableName matching WhereClause: via the
// TTL manager's installed delete function when installed as a pg_cron
// job, or by a direct DELETE inside a unit of work when run in-process
// (ExecuteDirectly). TableName is validated
// through pgident; WhereClause is NOT validated — splicing untrusted
// input into it is the caller's responsibility, same as the original
// this is modeled on.
type DefaultAction struct {
	TableName       string
	WhereClause     string
	TTLFunctionName string
}

// NewDefaultAction validates tableName and returns a DefaultAction.
func NewDefaultAction(tableName, whereClause, ttlFunctionName string) (*DefaultAction, error) {
	if err := pgident.CheckIsValidTableOrColumnName(tableName, "TTL job table name"); err != nil {
		return nil, err
	}
	return &DefaultAction{TableName: tableName, WhereClause: whereClause, TTLFunctionName: ttlFunctionName}, nil
}

func (a *DefaultAction) JobName() string {
	return fmt.Sprintf("ttl-%s-%s", a.TableName, shortHash(a.TableName+a.WhereClause))
}

func (a *DefaultAction) FunctionCall() (string, []string) {
	return a.TTLFunctionName, []string{quoteLiteral(a.TableName), quoteLiteral(a.WhereClause)}
}

func (a *DefaultAction) ExecuteDirectly(ctx context.Context, factory db.UnitOfWorkFactory) error {
	return factory.UsingUnitOfWork(ctx, func(uow db.UnitOfWork) error {
		_, err := uow.Tx().Exec(ctx, fmt.Sprintf("delete from %s where %s", quoteIdent(a.TableName), a.WhereClause))
		return err
	})
}

// shortHash is the MD5-first-4-bytes-hex scheme used throughout this
// codebase for short, stable, non-security-sensitive identifiers.
func shortHash(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:4])
}

// quoteIdent wraps an already-validated identifier in double quotes, the
// same protection %I gives it inside the PL/pgSQL delete function.
func quoteIdent(name string) string {
	return `"` + name + `"`
}

// quoteLiteral produces a SQL string literal, doubling embedded single
// quotes. Used only for the two arguments passed to the TTL delete
// function when installed as a pg_cron job, where bound parameters
// aren't available because the command text is composed ahead of time.
func quoteLiteral(s string) string {
	out := make([]byte, 0, len(s)+2)
	out = append(out, '\'')
	for i := 0; i < len(s); i++ {
		if s[i] == '\'' {
			out = append(out, '\'', '\'')
			continue
		}
		out = append(out, s[i])
	}
	out = append(out, '\'')
	return string(out)
}
