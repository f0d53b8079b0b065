package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/snarg/spacecareer-api/internal/httpx"
)

// DefaultPageSize is the number of courses requested per sync.
const DefaultPageSize = 20

// requestedFields are the optional course fields asked of the catalog API.
var requestedFields = []string{"description", "photoUrl", "slug"}

// Client reads course pages from the public catalog API (courses.v1).
type Client struct {
	baseURL  string
	pageSize int
	retry    httpx.RetryConfig
	client   *http.Client
}

// Page is one response from the courses.v1 endpoint.
type Page struct {
	Elements []Element `json:"elements"`
	Paging   struct {
		Next  string `json:"next"`
		Total int    `json:"total"`
	} `json:"paging"`
}

// Element is a single course entry. Optional fields are pointers so an
// absent field can be told apart from an empty one.
type Element struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	Slug        string  `json:"slug"`
	Description *string `json:"description"`
	PhotoURL    *string `json:"photoUrl"`
}

// NewClient creates a catalog client. pageSize <= 0 uses DefaultPageSize,
// maxAttempts <= 0 uses the httpx default.
func NewClient(baseURL string, pageSize, maxAttempts int, timeout time.Duration) *Client {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	retry := httpx.DefaultRetryConfig()
	if maxAttempts > 0 {
		retry.MaxAttempts = maxAttempts
	}
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		pageSize: pageSize,
		retry:    retry,
		client:   &http.Client{Timeout: timeout},
	}
}

// PageURL returns the URL fetched by FetchPage.
func (c *Client) PageURL() string {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(c.pageSize))
	q.Set("fields", strings.Join(requestedFields, ","))
	return c.baseURL + "/api/courses.v1?" + q.Encode()
}

// FetchPage requests a single page of courses.
func (c *Client) FetchPage(ctx context.Context) (*Page, error) {
	pageURL := c.PageURL()
	build := func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return req, nil
	}

	var page Page
	if err := httpx.DoJSON(ctx, c.client, build, &page, c.retry); err != nil {
		return nil, fmt.Errorf("catalog page %s: %w", pageURL, err)
	}
	return &page, nil
}
