package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/snarg/spacecareer-api/internal/domain"
)

// PutCourse upserts a course keyed by title. The last write wins.
func (db *DB) PutCourse(ctx context.Context, c domain.Course) error {
	_, err := db.Pool.Exec(ctx, `
		INSERT INTO courses (course_title, course_link, course_description, course_image, synced_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (course_title) DO UPDATE SET
			course_link        = EXCLUDED.course_link,
			course_description = EXCLUDED.course_description,
			course_image       = EXCLUDED.course_image,
			synced_at          = now(),
			updated_at         = now()
	`, c.Title, c.Link, c.Description, c.Image)
	return err
}

// GetCourse returns the course stored under title.
func (db *DB) GetCourse(ctx context.Context, title string) (domain.Course, error) {
	var c domain.Course
	err := db.Pool.QueryRow(ctx, `
		SELECT course_title, course_link, course_description, course_image
		FROM courses WHERE course_title = $1
	`, title).Scan(&c.Title, &c.Link, &c.Description, &c.Image)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	return c, err
}

// ListCourses returns up to limit courses ordered by title.
func (db *DB) ListCourses(ctx context.Context, limit, offset int) ([]domain.Course, error) {
	rows, err := db.Pool.Query(ctx, `
		SELECT course_title, course_link, course_description, course_image
		FROM courses ORDER BY course_title LIMIT $1 OFFSET $2
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
