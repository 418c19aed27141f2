package crowdtangle

import "ctpull/pkg/post"

// PostsResponse is the body of a posts page
type PostsResponse struct {
	Status int         `json:"status"`
	Result PostsResult `json:"result"`
}

// PostsResult holds the posts of one page and where to go next
type PostsResult struct {
	Posts      []post.Payload `json:"posts"`
	Pagination *Pagination    `json:"pagination,omitempty"`
}

// Pagination carries the opaque page URLs
type Pagination struct {
	NextPage     string `json:"nextPage,omitempty"`
	PreviousPage string `json:"previousPage,omitempty"`
}

// ListsResponse is the body of the lists endpoint
type ListsResponse struct {
	Status int `json:"status"`
	Result struct {
		Lists []List `json:"lists"`
	} `json:"result"`
}

// List types
const (
	ListTypeList        = "LIST"
	ListTypeSavedSearch = "SAVED_SEARCH"
	ListTypeSavedPost   = "SAVED_POST"
)

// List is a list, saved search or saved post list in the dashboard
type List struct {
	ID    int64  `json:"id"`
	Title string `json:"title"`
	Type  string `json:"type"`
}

// errorResponse is the body the API sends with non-2xx statuses
type errorResponse struct {
	Status  int    `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// Page is one fetched posts page. An empty NextLocator means there are no
// further pages.
type Page struct {
	StatusCode  int
	Records     []post.Payload
	NextLocator string
}
