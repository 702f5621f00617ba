package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"

	"nedwiyt/internal/core"
	"nedwiyt/internal/datastore"
)

func mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	var ce *core.Error
	if errors.As(err, &ce) {
		return err
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return &core.Error{Kind: core.KindNotFound, Op: op, Message: "record not found", Err: err}
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return &core.Error{Kind: core.KindUnavailable, Op: op, Err: err}
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return &core.Error{Kind: datastore.KindForSQLState(pgErr.Code), Op: op, Message: pgErr.Message, Err: err}
	}
	var connErr *pgconn.ConnectError
	if errors.As(err, &connErr) {
		return &core.Error{Kind: core.KindUnavailable, Op: op, Err: err}
	}
	return &core.Error{Kind: core.KindUnknown, Op: op, Err: err}
}
