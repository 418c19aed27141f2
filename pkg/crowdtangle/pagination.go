package crowdtangle

// NextLocator returns the next-page URL of resp when there is one
func NextLocator(resp *PostsResponse) (string, bool) {
	if resp == nil || resp.Result.Pagination == nil {
		return "", false
	}
	next := resp.Result.Pagination.NextPage
	if next == "" {
		return "", false
	}
	return next, true
}
