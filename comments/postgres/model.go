package postgres

import (
	"context"
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/ellemouton/lndboard/comments"
)

const (
	tableName = "lndboard__comment"

	// Schema creates the comment table if it does not exist.
	Schema = `
	CREATE TABLE IF NOT EXISTS ` + tableName + ` (
		id BIGSERIAL NOT NULL PRIMARY KEY,

		text TEXT NOT NULL,

		created_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT now()
	);
	`
)

type model struct {
	Id sql.NullInt64 `db:"id"`

	Text string `db:"text"`

	CreatedAt time.Time `db:"created_at"`
}

func toModel(obj *comments.Comment) (*model, error) {
	if err := obj.Validate(); err != nil {
		return nil, err
	}

	return &model{
		Text: obj.Text,
	}, nil
}

func fromModel(obj *model) *comments.Comment {
	return &comments.Comment{
		Id:        uint64(obj.Id.Int64),
		Text:      obj.Text,
		CreatedAt: obj.CreatedAt,
	}
}

// dbAppend inserts m. The id and timestamp are assigned by the database.
func (m *model) dbAppend(ctx context.Context, db *sqlx.DB) error {
	query := `INSERT INTO ` + tableName + `
		(text)
		VALUES ($1)
		RETURNING id, text, created_at
	`

	return db.QueryRowxContext(
		ctx,
		query,
		m.Text,
	).StructScan(m)
}

func dbGetRecent(ctx context.Context, db *sqlx.DB, limit uint64) ([]*model, error) {
	res := []*model{}

	query := `SELECT id, text, created_at FROM (
			SELECT id, text, created_at FROM ` + tableName + `
			ORDER BY id DESC
			LIMIT $1
		) AS recent
		ORDER BY id ASC
	`

	err := db.SelectContext(ctx, &res, query, limit)
	if err != nil && err != sql.ErrNoRows {
		return nil, err
	}
	return res, nil
}
