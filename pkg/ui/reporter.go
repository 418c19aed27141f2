package ui

import "ctpull/pkg/collector"

// Reporter shows the progress of a collection run
type Reporter interface {
	Page(ev collector.PageEvent)
	Retry(ev collector.RetryEvent)
	Done(res *collector.Result, err error)
}
