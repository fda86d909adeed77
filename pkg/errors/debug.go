package errors

import (
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
)

const (
	pgForeignKeyViolation = "23503"
	pgUniqueViolation     = "23505"
)

// ErrorDump is the log-only view of an error: its typed code, the unwrap
// chain and any Postgres diagnostics found along it.
type ErrorDump struct {
	TopMessage string `json:"top_message"`
	Code       Code   `json:"code,omitempty"`

	Chain []string `json:"chain,omitempty"`

	PGCode       string `json:"pg_code,omitempty"`
	PGConstraint string `json:"pg_constraint,omitempty"`
	PGTable      string `json:"pg_table,omitempty"`
	PGColumn     string `json:"pg_column,omitempty"`
	PGDetail     string `json:"pg_detail,omitempty"`
	PGMessage    string `json:"pg_message,omitempty"`
}

// Dump inspects err for logging. An untyped or internal error caused by an
// integrity violation reports CodeConflict, matching what Surface returns.
func Dump(err error) ErrorDump {
	if err == nil {
		return ErrorDump{}
	}

	d := ErrorDump{TopMessage: err.Error()}
	if te := As(err); te != nil {
		d.Code = te.Code()
	}
	for e := err; e != nil; e = errors.Unwrap(e) {
		d.Chain = append(d.Chain, fmt.Sprintf("%T: %v", e, e))
	}

	if pg, ok := pgDiagnostics(err); ok {
		d.PGCode = pg.code
		d.PGConstraint = pg.constraint
		d.PGTable = pg.table
		d.PGColumn = pg.column
		d.PGDetail = pg.detail
		d.PGMessage = pg.message
		if reclassifiable(d.Code) && isIntegrityViolation(pg.code) {
			d.Code = CodeConflict
		}
	}
	return d
}

// Surface returns err as a typed error for the response writer. Foreign key
// and unique violations that reach the boundary as internal or dependency
// errors become conflicts carrying the constraint name.
func Surface(err error) *Error {
	if err == nil {
		return nil
	}
	typed := As(err)
	if typed != nil && !reclassifiable(typed.Code()) {
		return typed
	}

	pg, ok := pgDiagnostics(err)
	if !ok || !isIntegrityViolation(pg.code) {
		if typed != nil {
			return typed
		}
		return Wrap(CodeInternal, err, "unexpected error")
	}

	details := map[string]any{"reason": "foreign_key"}
	if pg.code == pgUniqueViolation {
		details["reason"] = "duplicate"
	}
	if pg.constraint != "" {
		details["constraint"] = pg.constraint
	}
	return Wrap(CodeConflict, err, "request conflicts with related records").WithDetails(details)
}

func reclassifiable(code Code) bool {
	return code == "" || code == CodeInternal || code == CodeDependency
}

func isIntegrityViolation(sqlState string) bool {
	return sqlState == pgForeignKeyViolation || sqlState == pgUniqueViolation
}

type pgFields struct {
	code, constraint, table, column, detail, message string
}

func pgDiagnostics(err error) (pgFields, bool) {
	var pgxErr *pgconn.PgError
	if errors.As(err, &pgxErr) {
		return pgFields{
			code:       pgxErr.Code,
			constraint: pgxErr.ConstraintName,
			table:      pgxErr.TableName,
			column:     pgxErr.ColumnName,
			detail:     pgxErr.Detail,
			message:    pgxErr.Message,
		}, true
	}

	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pgFields{
			code:       string(pqErr.Code),
			constraint: pqErr.Constraint,
			table:      pqErr.Table,
			column:     pqErr.Column,
			detail:     pqErr.Detail,
			message:    pqErr.Message,
		}, true
	}
	return pgFields{}, false
}
