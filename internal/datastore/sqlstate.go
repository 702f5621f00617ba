package datastore

import (
	"strings"

	"nedwiyt/internal/core"
)

// SQLSTATE codes surfaced to users. PostgREST forwards the same codes as
// Postgres, so every SQL-backed adapter shares this table.
const (
	SQLStateInsufficientPrivilege = "42501"
	SQLStateForeignKeyViolation   = "23503"
	SQLStateUndefinedColumn       = "42703"
	SQLStateUniqueViolation       = "23505"
	SQLStateCheckViolation        = "23514"
	SQLStateNotNullViolation      = "23502"
)

// KindForSQLState maps a SQLSTATE to an error kind.
func KindForSQLState(code string) core.Kind {
	switch code {
	case SQLStateInsufficientPrivilege:
		return core.KindPermission
	case SQLStateForeignKeyViolation:
		return core.KindReferential
	case SQLStateUndefinedColumn:
		return core.KindSchema
	case SQLStateUniqueViolation, SQLStateCheckViolation, SQLStateNotNullViolation:
		return core.KindValidation
	}
	// class 08: connection exception
	if strings.HasPrefix(code, "08") {
		return core.KindUnavailable
	}
	return core.KindUnknown
}
