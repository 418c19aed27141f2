package collector

import (
	"context"
	"time"

	"ctpull/pkg/crowdtangle"
)

// PageFetcher fetches one posts page per call. *crowdtangle.Client
// satisfies it.
type PageFetcher interface {
	FetchFirst(ctx context.Context, q crowdtangle.Query) (*crowdtangle.Page, error)
	FetchNext(ctx context.Context, locator string) (*crowdtangle.Page, error)
}

// SleepFunc waits for d or until ctx is done
type SleepFunc func(ctx context.Context, d time.Duration) error
