package store

import (
	"context"

	"github.com/jmoiron/sqlx"
)

type Datastorer[T any] interface {
	QueryRow(ctx context.Context, query string, args ...any) (any, error)
	Get(ctx context.Context, query string, args ...any) (*T, error)
	Select(ctx context.Context, query string, args ...any) ([]T, error)

	// Runs fn inside a transaction, committing when fn returns nil.
	WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error

	DeleteWhere(ctx context.Context, column string, value any) error
}
