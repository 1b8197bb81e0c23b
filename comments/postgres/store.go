package postgres

import (
	"context"
	"database/sql"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	"github.com/ellemouton/lndboard/comments"

	_ "github.com/jackc/pgx/v4/stdlib"
)

type store struct {
	db *sqlx.DB
}

// New returns a new postgres-backed comments.Store
func New(db *sql.DB) comments.Store {
	return &store{
		db: sqlx.NewDb(db, "pgx"),
	}
}

// Open connects to the database at dsn and makes sure the comment table
// exists.
func Open(ctx context.Context, dsn string) (comments.Store, *sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, nil, err
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "failed to connect to postgres")
	}

	if _, err := db.ExecContext(ctx, Schema); err != nil {
		db.Close()
		return nil, nil, errors.Wrap(err, "failed to create comment table")
	}

	return New(db), db, nil
}

// Append implements comments.Store.Append
func (s *store) Append(ctx context.Context, record *comments.Comment) error {
	obj, err := toModel(record)
	if err != nil {
		return err
	}

	err = obj.dbAppend(ctx, s.db)
	if err != nil {
		return err
	}

	res := fromModel(obj)
	res.CopyTo(record)

	return nil
}

// GetRecent implements comments.Store.GetRecent
func (s *store) GetRecent(ctx context.Context, limit uint64) ([]*comments.Comment, error) {
	models, err := dbGetRecent(ctx, s.db, limit)
	if err != nil {
		return nil, err
	}

	res := make([]*comments.Comment, 0, len(models))
	for _, model := range models {
		res = append(res, fromModel(model))
	}
	return res, nil
}
