package crowdtangle

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	// BaseURL is the CrowdTangle API root
	BaseURL = "https://api.crowdtangle.com"

	// PostsEndpoint returns posts for lists and saved searches
	PostsEndpoint = "/posts"

	// ListsEndpoint enumerates the lists visible to a token
	ListsEndpoint = "/lists"

	// DefaultCount is the page size requested when Count is zero
	DefaultCount = 100
)

// ErrMissingToken is returned when a request has no API token
var ErrMissingToken = errors.New("crowdtangle: API token is required")

// SortBy values accepted by the posts endpoint
const (
	SortByDate              = "date"
	SortByInteractionRate   = "interaction_rate"
	SortByOverperforming    = "overperforming"
	SortByTotalInteractions = "total_interactions"
	SortByUnderperforming   = "underperforming"
)

var validSortBy = map[string]bool{
	SortByDate:              true,
	SortByInteractionRate:   true,
	SortByOverperforming:    true,
	SortByTotalInteractions: true,
	SortByUnderperforming:   true,
}

// PostTypes lists the post type tags the API understands
var PostTypes = []string{
	"episode", "extra_clip", "link", "live_video", "live_video_complete",
	"live_video_scheduled", "native_video", "photo", "status", "trailer",
	"video", "vine", "youtube",
}

// dateLayouts are the accepted StartDate/EndDate forms, all UTC
var dateLayouts = []string{"2006-01-02T15:04:05", "2006-01-02"}

// Query holds the options of a first posts request. Zero values are not sent.
type Query struct {
	Token           string
	ListIDs         []string
	StartDate       string
	EndDate         string
	Count           int
	SortBy          string
	IncludeHistory  bool
	Types           []string
	SearchTerm      string
	MinInteractions int
	Offset          int
}

// Validate reports every problem with the query at once
func (q Query) Validate() error {
	var errs []error

	if q.Token == "" {
		errs = append(errs, ErrMissingToken)
	}
	if q.Count < 0 {
		errs = append(errs, fmt.Errorf("count must be positive, got %d", q.Count))
	}
	if q.SortBy != "" && !validSortBy[q.SortBy] {
		errs = append(errs, fmt.Errorf("unknown sortBy %q", q.SortBy))
	}
	for _, t := range q.Types {
		if !isPostType(t) {
			errs = append(errs, fmt.Errorf("unknown post type %q", t))
		}
	}
	if q.MinInteractions < 0 {
		errs = append(errs, fmt.Errorf("minInteractions cannot be negative, got %d", q.MinInteractions))
	}
	if q.Offset < 0 {
		errs = append(errs, fmt.Errorf("offset cannot be negative, got %d", q.Offset))
	}

	start, startErr := parseDate(q.StartDate)
	if startErr != nil {
		errs = append(errs, fmt.Errorf("startDate: %w", startErr))
	}
	end, endErr := parseDate(q.EndDate)
	if endErr != nil {
		errs = append(errs, fmt.Errorf("endDate: %w", endErr))
	}
	if startErr == nil && endErr == nil && !start.IsZero() && !end.IsZero() && end.Before(start) {
		errs = append(errs, errors.New("endDate is before startDate"))
	}

	return errors.Join(errs...)
}

// Values encodes the query parameters. Count is always present.
func (q Query) Values() url.Values {
	params := url.Values{}
	params.Set("token", q.Token)

	count := q.Count
	if count == 0 {
		count = DefaultCount
	}
	params.Set("count", strconv.Itoa(count))

	if len(q.ListIDs) > 0 {
		params.Set("listIds", strings.Join(q.ListIDs, ","))
	}
	if q.StartDate != "" {
		params.Set("startDate", q.StartDate)
	}
	if q.EndDate != "" {
		params.Set("endDate", q.EndDate)
	}
	if q.SortBy != "" {
		params.Set("sortBy", q.SortBy)
	}
	if q.IncludeHistory {
		params.Set("includeHistory", "true")
	}
	if len(q.Types) > 0 {
		params.Set("types", strings.Join(q.Types, ","))
	}
	if q.SearchTerm != "" {
		params.Set("searchTerm", q.SearchTerm)
	}
	if q.MinInteractions > 0 {
		params.Set("minInteractions", strconv.Itoa(q.MinInteractions))
	}
	if q.Offset > 0 {
		params.Set("offset", strconv.Itoa(q.Offset))
	}
	return params
}

// PostsURL builds the first-page URL for q
func PostsURL(base string, q Query) string {
	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), PostsEndpoint, q.Values().Encode())
}

// ListsURL builds the list enumeration URL
func ListsURL(base, token string) string {
	params := url.Values{}
	params.Set("token", token)
	return fmt.Sprintf("%s%s?%s", strings.TrimRight(base, "/"), ListsEndpoint, params.Encode())
}

// resolveLocator turns a next-page locator into an absolute URL
func resolveLocator(base, locator string) (string, error) {
	if locator == "" {
		return "", errors.New("empty locator")
	}
	ref, err := url.Parse(locator)
	if err != nil {
		return "", fmt.Errorf("invalid locator: %w", err)
	}
	if ref.IsAbs() {
		return ref.String(), nil
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("invalid base URL: %w", err)
	}
	return baseURL.ResolveReference(ref).String(), nil
}

func parseDate(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, value, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not YYYY-MM-DD or YYYY-MM-DDThh:mm:ss", value)
}

func isPostType(t string) bool {
	for _, known := range PostTypes {
		if t == known {
			return true
		}
	}
	return false
}
