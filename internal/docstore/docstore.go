// Package docstore selects and opens the document store that holds synced
// courses. Every backend keys courses by title and overwrites on write.
package docstore

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/config"
	"github.com/snarg/spacecareer-api/internal/database"
	"github.com/snarg/spacecareer-api/internal/domain"
)

// Store is the course persistence contract shared by all backends.
type Store interface {
	PutCourse(ctx context.Context, c domain.Course) error
	GetCourse(ctx context.Context, title string) (domain.Course, error)
	ListCourses(ctx context.Context, limit, offset int) ([]domain.Course, error)
	HealthCheck(ctx context.Context) error
}

// Open connects the backend named by cfg.StoreBackend and prepares its
// schema. The returned close func releases the backend's resources.
func Open(ctx context.Context, cfg *config.Config, log zerolog.Logger) (Store, func(), error) {
	switch cfg.StoreBackend {
	case "postgres":
		db, err := database.Connect(ctx, cfg.DatabaseURL, log)
		if err != nil {
			return nil, nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.InitSchema(ctx); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("init schema: %w", err)
		}
		return db, db.Close, nil

	case "sqlite":
		s, err := OpenSQLite(ctx, cfg.SQLitePath, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil

	case "firestore":
		s, err := OpenFirestore(ctx, cfg.FirebaseProject, cfg.FirebaseCreds, log)
		if err != nil {
			return nil, nil, err
		}
		return s, s.Close, nil
	}
	return nil, nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
}
