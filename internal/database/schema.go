package database

import "context"

// schemaSQL creates the course table and its index on a fresh database.
const schemaSQL = `
CREATE TABLE IF NOT EXISTS courses (
    course_title       text PRIMARY KEY,
    course_link        text NOT NULL,
    course_description text NOT NULL,
    course_image       text NOT NULL DEFAULT '',
    synced_at          timestamptz,
    created_at         timestamptz NOT NULL DEFAULT now(),
    updated_at         timestamptz NOT NULL DEFAULT now()
);

CREATE INDEX IF NOT EXISTS idx_courses_updated_at ON courses (updated_at DESC);
`

// InitSchema applies the base schema on a fresh database.
// It checks whether the "courses" table exists; if missing, it creates it.
// If present, it's a no-op.
func (db *DB) InitSchema(ctx context.Context) error {
	var exists bool
	err := db.Pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT FROM pg_tables WHERE schemaname = 'public' AND tablename = 'courses')`,
	).Scan(&exists)
	if err != nil {
		return err
	}

	if exists {
		db.log.Debug().Msg("schema already initialized, skipping")
		return nil
	}

	db.log.Info().Msg("fresh database detected, applying schema")
	if _, err := db.Pool.Exec(ctx, schemaSQL); err != nil {
		return err
	}
	db.log.Info().Msg("schema applied successfully")
	return nil
}
