package main

import (
	"context"
	"strings"

	"github.com/ellemouton/lndboard/comments"
	"github.com/ellemouton/lndboard/comments/memory"
	"github.com/ellemouton/lndboard/comments/postgres"
	"github.com/ellemouton/lndboard/comments/sqlite"
)

// openStore picks the comments.Store backend from dsn.
func openStore(ctx context.Context, dsn string) (comments.Store, func(),
	error) {

	switch {
	case dsn == "" || dsn == "memory":
		return memory.New(), func() {}, nil

	case strings.HasPrefix(dsn, "postgres://"),
		strings.HasPrefix(dsn, "postgresql://"):

		store, db, err := postgres.Open(ctx, dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil

	default:
		store, db, err := sqlite.Open(dsn)
		if err != nil {
			return nil, nil, err
		}
		return store, func() { db.Close() }, nil
	}
}
