package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/rs/zerolog/hlog"
	"github.com/snarg/spacecareer-api/internal/catalog"
	"github.com/snarg/spacecareer-api/internal/domain"
)

// CourseSyncer runs one catalog sync.
type CourseSyncer interface {
	Sync(ctx context.Context) (catalog.Summary, error)
}

// CourseReader reads synced courses back out of the store.
type CourseReader interface {
	GetCourse(ctx context.Context, title string) (domain.Course, error)
	ListCourses(ctx context.Context, limit, offset int) ([]domain.Course, error)
}

type CoursesHandler struct {
	syncer CourseSyncer
	store  CourseReader
}

func NewCoursesHandler(syncer CourseSyncer, store CourseReader) *CoursesHandler {
	return &CoursesHandler{syncer: syncer, store: store}
}

// Scrape handles GET /scrape_courses.
func (h *CoursesHandler) Scrape(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	sum, err := h.syncer.Sync(r.Context())
	if err != nil {
		switch {
		case errors.Is(err, catalog.ErrFetch):
			log.Error().Err(err).Msg("course sync: catalog fetch failed")
			WriteError(w, http.StatusBadGateway, catalog.ErrFetch.Error())
		default:
			log.Error().Err(err).Int("written", sum.Count).Msg("course sync: store write failed")
			WriteError(w, http.StatusInternalServerError, catalog.ErrStore.Error())
		}
		return
	}

	WriteJSON(w, http.StatusOK, sum)
}

type courseListResponse struct {
	Courses []domain.Course `json:"courses"`
	Limit   int             `json:"limit"`
	Offset  int             `json:"offset"`
}

// List handles GET /api/v1/courses.
func (h *CoursesHandler) List(w http.ResponseWriter, r *http.Request) {
	p := ParsePagination(r)
	courses, err := h.store.ListCourses(r.Context(), p.Limit, p.Offset)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("list courses failed")
		WriteError(w, http.StatusInternalServerError, "failed to list courses")
		return
	}
	if courses == nil {
		courses = []domain.Course{}
	}
	WriteJSON(w, http.StatusOK, courseListResponse{Courses: courses, Limit: p.Limit, Offset: p.Offset})
}

// Get handles GET /api/v1/courses/{title}.
func (h *CoursesHandler) Get(w http.ResponseWriter, r *http.Request) {
	title, err := PathString(r, "title")
	if err != nil {
		WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	c, err := h.store.GetCourse(r.Context(), title)
	if errors.Is(err, domain.ErrCourseNotFound) {
		WriteError(w, http.StatusNotFound, "course not found")
		return
	}
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Str("title", title).Msg("get course failed")
		WriteError(w, http.StatusInternalServerError, "failed to get course")
		return
	}
	WriteJSON(w, http.StatusOK, c)
}
