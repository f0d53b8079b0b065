package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/snarg/spacecareer-api/internal/domain"
	"github.com/snarg/spacecareer-api/internal/metrics"
)

var (
	// ErrFetch wraps failures to read or parse the catalog page.
	ErrFetch = errors.New("catalog fetch failed")
	// ErrStore wraps failures to write a course to the document store.
	ErrStore = errors.New("course store write failed")
)

// SyncMessage is the summary message reported after a successful sync.
const SyncMessage = "Courses uploaded successfully"

// CourseWriter stores courses keyed by title, overwriting existing ones.
type CourseWriter interface {
	PutCourse(ctx context.Context, c domain.Course) error
}

// PageFetcher returns one page of catalog elements.
type PageFetcher interface {
	FetchPage(ctx context.Context) (*Page, error)
}

// Summary is the result of a sync run.
type Summary struct {
	Message string        `json:"message"`
	Count   int           `json:"count"`
	Skipped []SkippedItem `json:"skipped,omitempty"`
}

// SkippedItem describes a catalog element that could not be stored.
type SkippedItem struct {
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Slug   string `json:"slug,omitempty"`
	Reason string `json:"reason"`
}

// EventPublishFunc is a callback for publishing domain events.
type EventPublishFunc func(eventType string, payload map[string]any)

// Syncer copies one catalog page into the course store.
type Syncer struct {
	fetcher PageFetcher
	store   CourseWriter
	log     zerolog.Logger
	publish EventPublishFunc
}

// NewSyncer creates a syncer.
func NewSyncer(fetcher PageFetcher, store CourseWriter, log zerolog.Logger) *Syncer {
	return &Syncer{fetcher: fetcher, store: store, log: log}
}

// SetEventPublisher sets the callback invoked after each successful sync.
func (s *Syncer) SetEventPublisher(fn EventPublishFunc) {
	s.publish = fn
}

// Sync fetches a page and upserts every element in order, so a later element
// with the same title overwrites an earlier one. Elements without a title, or
// whose title the store cannot key on, are skipped and reported. A store failure stops the run; records written before
// it stay written.
func (s *Syncer) Sync(ctx context.Context) (Summary, error) {
	sum, err := s.sync(ctx)
	switch {
	case err == nil:
		metrics.CourseSyncsTotal.WithLabelValues("ok").Inc()
	case errors.Is(err, ErrFetch):
		metrics.CourseSyncsTotal.WithLabelValues("fetch_error").Inc()
	default:
		metrics.CourseSyncsTotal.WithLabelValues("store_error").Inc()
	}
	metrics.CoursesStoredTotal.Add(float64(sum.Count))
	metrics.CoursesSkippedTotal.Add(float64(len(sum.Skipped)))

	if err == nil && s.publish != nil {
		s.publish("courses.synced", map[string]any{
			"count":   sum.Count,
			"skipped": len(sum.Skipped),
		})
	}
	return sum, err
}

func (s *Syncer) sync(ctx context.Context) (Summary, error) {
	page, err := s.fetcher.FetchPage(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	sum := Summary{Message: SyncMessage}
	for i, el := range page.Elements {
		course, err := Normalize(el)
		if err != nil {
			s.log.Warn().Int("index", i).Str("id", el.ID).Str("slug", el.Slug).Err(err).Msg("skipping catalog element")
			sum.Skipped = append(sum.Skipped, SkippedItem{Index: i, ID: el.ID, Slug: el.Slug, Reason: err.Error()})
			continue
		}
		if err := s.store.PutCourse(ctx, course); err != nil {
			if errors.Is(err, domain.ErrInvalidTitle) {
				s.log.Warn().Int("index", i).Str("id", el.ID).Str("title", course.Title).Err(err).Msg("skipping catalog element")
				sum.Skipped = append(sum.Skipped, SkippedItem{Index: i, ID: el.ID, Slug: el.Slug, Reason: err.Error()})
				continue
			}
			return sum, fmt.Errorf("%w: %q: %w", ErrStore, course.Title, err)
		}
		sum.Count++
	}

	s.log.Info().
		Int("fetched", len(page.Elements)).
		Int("stored", sum.Count).
		Int("skipped", len(sum.Skipped)).
		Msg("course sync complete")
	return sum, nil
}
