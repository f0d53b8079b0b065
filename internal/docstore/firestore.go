package docstore

import (
	"context"
	"fmt"
	"strings"
	"time"

	"cloud.google.com/go/firestore"
	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/domain"
	"google.golang.org/api/iterator"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// FirestoreStore keeps courses in the Firestore "courses" collection with
// the course title as document ID.
type FirestoreStore struct {
	client *firestore.Client
	log    zerolog.Logger
}

// OpenFirestore creates a Firestore client from a service-account key file.
func OpenFirestore(ctx context.Context, projectID, credentialsFile string, log zerolog.Logger) (*FirestoreStore, error) {
	client, err := firestore.NewClient(ctx, projectID, option.WithCredentialsFile(credentialsFile))
	if err != nil {
		return nil, fmt.Errorf("firestore client: %w", err)
	}
	log.Info().Str("project", projectID).Msg("firestore course store opened")
	return &FirestoreStore{client: client, log: log}, nil
}

func (s *FirestoreStore) courses() *firestore.CollectionRef {
	return s.client.Collection(domain.CoursesCollection)
}

// maxDocIDBytes is Firestore's limit on a document ID.
const maxDocIDBytes = 1500

// validDocID applies Firestore's document ID rules to a course title.
func validDocID(title string) error {
	switch {
	case title == "":
		return fmt.Errorf("%w: empty", domain.ErrInvalidTitle)
	case strings.Contains(title, "/"):
		return fmt.Errorf("%w: contains \"/\"", domain.ErrInvalidTitle)
	case title == "." || title == "..":
		return fmt.Errorf("%w: %q is reserved", domain.ErrInvalidTitle, title)
	case len(title) > 4 && strings.HasPrefix(title, "__") && strings.HasSuffix(title, "__"):
		return fmt.Errorf("%w: matches __.*__", domain.ErrInvalidTitle)
	case len(title) > maxDocIDBytes:
		return fmt.Errorf("%w: longer than %d bytes", domain.ErrInvalidTitle, maxDocIDBytes)
	}
	return nil
}

// doc returns the document for title, or an ErrInvalidTitle error when the
// title cannot be a document ID.
func (s *FirestoreStore) doc(title string) (*firestore.DocumentRef, error) {
	if err := validDocID(title); err != nil {
		return nil, err
	}
	return s.courses().Doc(title), nil
}

func (s *FirestoreStore) PutCourse(ctx context.Context, c domain.Course) error {
	ref, err := s.doc(c.Title)
	if err != nil {
		return err
	}
	_, err = ref.Set(ctx, c)
	return err
}

func (s *FirestoreStore) GetCourse(ctx context.Context, title string) (domain.Course, error) {
	ref, err := s.doc(title)
	if err != nil {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	snap, err := ref.Get(ctx)
	if status.Code(err) == codes.NotFound {
		return domain.Course{}, domain.ErrCourseNotFound
	}
	if err != nil {
		return domain.Course{}, err
	}
	var c domain.Course
	if err := snap.DataTo(&c); err != nil {
		return domain.Course{}, fmt.Errorf("decode course %q: %w", title, err)
	}
	return c, nil
}

func (s *FirestoreStore) ListCourses(ctx context.Context, limit, offset int) ([]domain.Course, error) {
	it := s.courses().OrderBy("course_title", firestore.Asc).Offset(offset).Limit(limit).Documents(ctx)
	defer it.Stop()

	var out []domain.Course
	for {
		snap, err := it.Next()
		if err == iterator.Done {
			break
		}
		if err != nil {
			return nil, err
		}
		var c domain.Course
		if err := snap.DataTo(&c); err != nil {
			return nil, fmt.Errorf("decode course %q: %w", snap.Ref.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

// HealthCheck reads a single document to confirm credentials and reachability.
func (s *FirestoreStore) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	it := s.courses().Limit(1).Documents(ctx)
	defer it.Stop()
	if _, err := it.Next(); err != nil && err != iterator.Done {
		return err
	}
	return nil
}

// Close releases the Firestore client.
func (s *FirestoreStore) Close() {
	if err := s.client.Close(); err != nil {
		s.log.Warn().Err(err).Msg("closing firestore client")
	}
}
