// Package repositories provides the PostgreSQL implementations of the domain
// repository interfaces.
package repositories

import (
	stderrors "errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/landlordcomply/landlordcomply/pkg/errors"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
	pgCheckViolation      = "23514"
)

// scanner abstracts pgx.Row and pgx.Rows.
type scanner interface {
	Scan(dest ...any) error
}

// mapError turns driver errors into AppErrors. notFound is the code used
// when the query matched no row.
func mapError(err error, notFound errors.ErrorCode, message string) error {
	if err == nil {
		return nil
	}
	if stderrors.Is(err, pgx.ErrNoRows) {
		return errors.New(notFound, errors.DefaultMessageForCode(notFound))
	}
	var pgErr *pgconn.PgError
	if stderrors.As(err, &pgErr) {
		switch pgErr.Code {
		case pgUniqueViolation:
			return errors.Wrap(err, errors.ErrCodeConflict, message).WithDetail(pgErr.ConstraintName)
		case pgForeignKeyViolation:
			return errors.Wrap(err, errors.ErrCodeValidation, message).WithDetail(pgErr.ConstraintName)
		case pgCheckViolation:
			return errors.Wrap(err, errors.ErrCodeValidation, message).WithDetail(pgErr.ConstraintName)
		}
	}
	return errors.Wrap(err, errors.CodeDBQueryError, message)
}

// emptyIfNil keeps NOT NULL array columns from receiving SQL NULL.
func emptyIfNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}


const (
	defaultPageSize = 50
	maxPageSize     = 200
)

// pageBounds defaults a non-positive limit and clamps a large one to the
// maximum page size.
func pageBounds(limit, offset int) (int, int) {
	switch {
	case limit <= 0:
		limit = defaultPageSize
	case limit > maxPageSize:
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
