// Package retry holds the retry machinery used around CrowdTangle calls.
//
// Paginated collection uses Policy, a pure transition function over
// (outcome, consecutive failures), and Machine, which carries the counter
// between attempts. Empty pages and errors both spend the budget; a page
// with records resets it. The default budget is 10 with linear waits of
// 5s, 10s, 15s and so on.
//
//	m := retry.NewMachine(retry.DefaultPolicy())
//	switch d := m.Observe(retry.OutcomeEmpty); d.State {
//	case retry.RetryWait:
//	    err = retry.Wait(ctx, d.Delay)
//	case retry.Exhausted:
//	    // stop and keep what was collected
//	}
//
// One-shot calls such as list enumeration use Do or DoWithResult, which
// retry by error type:
//
//	lists, err := retry.DoWithResult(ctx, retry.DefaultConfig(),
//	    func(ctx context.Context) ([]crowdtangle.List, error) {
//	        return client.FetchLists(ctx, token)
//	    })
package retry
