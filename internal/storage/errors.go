package storage

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"

	"nedwiyt/internal/core"
)

// mapError converts a database/sql or SQLite failure into a core.Error.
func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, sql.ErrNoRows) {
		return &core.Error{Kind: core.KindNotFound, Op: op, Message: "record not found", Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{Kind: core.KindUnavailable, Op: op, Err: err}
	}

	var se *sqlite.Error
	if errors.As(err, &se) {
		return &core.Error{Kind: kindForCode(se.Code(), se.Error()), Op: op, Message: constraintMessage(se.Code(), se.Error()), Err: err}
	}
	return &core.Error{Kind: core.KindUnknown, Op: op, Err: err}
}

func kindForCode(code int, msg string) core.Kind {
	switch code {
	case sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
		return core.KindReferential
	case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL,
		sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
		return core.KindValidation
	case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
		return core.KindUnavailable
	case sqlite3.SQLITE_READONLY, sqlite3.SQLITE_PERM, sqlite3.SQLITE_AUTH:
		return core.KindPermission
	}
	// Without extended result codes only the primary code is set.
	switch code & 0xff {
	case sqlite3.SQLITE_CONSTRAINT:
		if strings.Contains(msg, "FOREIGN KEY") {
			return core.KindReferential
		}
		return core.KindValidation
	case sqlite3.SQLITE_ERROR:
		if strings.Contains(msg, "no such column") || strings.Contains(msg, "has no column") {
			return core.KindSchema
		}
	}
	return core.KindUnknown
}

func constraintMessage(code int, msg string) string {
	switch {
	case code == sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY || strings.Contains(msg, "FOREIGN KEY"):
		return "the referenced category does not exist or is still in use"
	case code == sqlite3.SQLITE_CONSTRAINT_UNIQUE || strings.Contains(msg, "UNIQUE"):
		return "a record with the same value already exists"
	case code&0xff == sqlite3.SQLITE_CONSTRAINT:
		return "the record violates a database constraint"
	}
	return ""
}
