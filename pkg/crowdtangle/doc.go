// Package crowdtangle is a thin client for the CrowdTangle posts and lists
// endpoints.
//
// Each Fetch call performs exactly one HTTP request. Non-2xx responses,
// network failures, unreadable bodies and bodies whose status field is not
// 200 come back as *errors.Error values that callers can classify with
// errors.TypeOf. A 2xx page without posts is not an error.
//
//	client := crowdtangle.NewClient(cfg.API, log)
//	page, err := client.FetchFirst(ctx, crowdtangle.Query{
//	    Token:   token,
//	    ListIDs: []string{"1234"},
//	    SortBy:  crowdtangle.SortByDate,
//	})
//	for err == nil && page.NextLocator != "" {
//	    page, err = client.FetchNext(ctx, page.NextLocator)
//	}
package crowdtangle
