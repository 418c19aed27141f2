// Package collector drives paginated post collection.
//
// A Collector asks its PageFetcher for the first page, then follows next-page
// locators until one of these happens: a page comes back without a locator,
// MaxCalls non-empty pages have been accepted, the retry policy gives up
// after consecutive failed or empty attempts, or the context is cancelled.
// In every case the records gathered so far are returned.
//
// A courtesy delay precedes every request. Failed and empty attempts are
// followed by the policy's backoff, 5s per consecutive failure by default.
// An empty follow-up page that carries no locator ends the run at once.
//
//	c := collector.New(client, collector.DefaultOptions())
//	res, err := c.Collect(ctx, collector.NewRequest(lists, "2024-01-01", "2024-02-01", 50, token))
package collector
