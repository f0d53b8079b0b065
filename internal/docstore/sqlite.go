package docstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/domain"
	_ "modernc.org/sqlite"
)

// SQLiteStore keeps courses in a local SQLite file. Intended for local
// development and tests where no Postgres or Firestore is available.
type SQLiteStore struct {
	db  *sql.DB
	log zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path. The special
// path ":memory:" opens a private in-memory database.
func OpenSQLite(ctx context.Context, path string, log zerolog.Logger) (*SQLiteStore, error) {
	dsn := ":memory:"
	if path != ":memory:" {
		dir := filepath.Dir(path)
		if dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("create data dir: %w", err)
			}
		}
		dsn = fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	s := &SQLiteStore{db: db, log: log}
	if err := s.initSchema(ctx); err != nil {
		db.Close()
		return nil, err
	}
	log.Info().Str("path", path).Msg("sqlite course store opened")
	return s, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS courses (
			course_title       TEXT PRIMARY KEY,
			course_link        TEXT NOT NULL,
			course_description TEXT NOT NULL,
			course_image       TEXT NOT NULL DEFAULT '',
			updated_at         INTEGER NOT NULL
		)`)
	if err != nil {
		return fmt.Errorf("init sqlite schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) PutCourse(ctx context.Context, c domain.Course) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO courses (course_title, course_link, course_description, course_image, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (course_title) DO UPDATE SET
			course_link        = excluded.course_link,
			course_description = excluded.course_description,
			course_image       = excluded.course_image,
			updated_at         = excluded.updated_at
	`, c.Title, c.Link, c.Description, c.Image, time.Now().UnixMilli())
	return err
}

func (s *SQLiteStore) GetCourse(ctx context.Context, title string) (domain.Course, error) {
	var c domain.Course
	err := s.db.QueryRowContext(ctx, `
		SELECT course_title, course_link, course_description, course_image
		FROM courses WHERE course_title = ?
	`, title).Scan(&c.Title, &c.Link, &c.Description, &c.Image)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return c, err
}

func (s *SQLiteStore) ListCourses(ctx context.Context, limit, offset int) ([]domain.Course, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT course_title, course_link, course_description, course_image
		FROM courses ORDER BY course_title LIMIT ? OFFSET ?
	`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Course
	for rows.Next() {
		var c domain.Course
		if err := rows.Scan(&c.Title, &c.Link, &c.Description, &c.Image); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	return s.db.PingContext(ctx)
}

// Close releases the database handle.
func (s *SQLiteStore) Close() {
	if err := s.db.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing sqlite store")
	}
}
