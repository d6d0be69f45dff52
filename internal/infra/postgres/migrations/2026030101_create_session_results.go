package migrations

import (
	"context"
	_ "embed"

	"github.com/uptrace/bun"
)

//go:embed sql/0002_create_session_results.up.sql
var createSessionResultsSQL string

func init() {
	Migrations.MustRegister(
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, createSessionResultsSQL)
		},
		func(ctx context.Context, db *bun.DB) error {
			return execScript(ctx, db, `
DROP TABLE IF EXISTS answer_results;
DROP TABLE IF EXISTS player_results;
DROP TABLE IF EXISTS session_results;`)
		},
	)
}
