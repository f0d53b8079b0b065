package catalog

import (
	"errors"
	"strings"

	"github.com/snarg/spacecareer-api/internal/domain"
)

const (
	// CourseLinkBase prefixes every course slug to form its public link.
	CourseLinkBase = "https://www.coursera.org/learn/"

	// DefaultDescription is stored when the catalog omits a description.
	DefaultDescription = "No description available"
)

// ErrMissingTitle is returned for elements without a name; the title is the
// storage key so such elements cannot be stored.
var ErrMissingTitle = errors.New("course has no title")

// Normalize maps a catalog element to a stored course record.
func Normalize(e Element) (domain.Course, error) {
	title := strings.TrimSpace(e.Name)
	if title == "" {
		return domain.Course{}, ErrMissingTitle
	}

	c := domain.Course{
		Title:       e.Name,
		Link:        CourseLinkBase + e.Slug,
		Description: DefaultDescription,
	}
	if e.Description != nil {
		c.Description = *e.Description
	}
	if e.PhotoURL != nil {
		c.Image = *e.PhotoURL
	}
	return c, nil
}
