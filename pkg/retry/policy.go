package retry

import (
	"time"

	"ctpull/pkg/config"
)

// State of the page retry machine
type State int

const (
	Attempting State = iota
	Succeeded
	RetryWait
	Exhausted
)

func (s State) String() string {
	switch s {
	case Attempting:
		return "attempting"
	case Succeeded:
		return "succeeded"
	case RetryWait:
		return "retry_wait"
	case Exhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome classifies one page attempt
type Outcome int

const (
	// OutcomeRecords is a successful page with at least one record
	OutcomeRecords Outcome = iota
	// OutcomeEmpty is a successful page without records
	OutcomeEmpty
	// OutcomeError is a failed request
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeRecords:
		return "records"
	case OutcomeEmpty:
		return "empty"
	case OutcomeError:
		return "error"
	default:
		return "unknown"
	}
}

// Decision is the result of a transition
type Decision struct {
	State   State
	Retries int
	Delay   time.Duration
}

// DefaultMaxRetries is the consecutive failure budget
const DefaultMaxRetries = 10

// Policy decides what happens after each page attempt. Empty pages count
// against the budget exactly like errors.
type Policy struct {
	MaxRetries int
	Backoff    BackoffStrategy
}

// DefaultPolicy allows 10 consecutive failures with 5s, 10s, 15s, ... waits
func DefaultPolicy() Policy {
	return Policy{
		MaxRetries: DefaultMaxRetries,
		Backoff:    DefaultLinearBackoff(),
	}
}

// PolicyFromConfig builds a Policy from the collector config section
func PolicyFromConfig(cfg config.CollectorConfig) Policy {
	p := Policy{
		MaxRetries: cfg.MaxRetries,
		Backoff:    BackoffFromConfig(cfg.Backoff),
	}
	if p.MaxRetries <= 0 {
		p.MaxRetries = DefaultMaxRetries
	}
	return p
}

// Next is the transition function. retries is the number of consecutive
// failures before this outcome.
func (p Policy) Next(outcome Outcome, retries int) Decision {
	if outcome == OutcomeRecords {
		return Decision{State: Succeeded}
	}

	retries++
	if retries >= p.MaxRetries {
		return Decision{State: Exhausted, Retries: retries}
	}

	var delay time.Duration
	if p.Backoff != nil {
		delay = p.Backoff.NextDelay(retries)
	}
	return Decision{State: RetryWait, Retries: retries, Delay: delay}
}

// Machine tracks the consecutive failure counter across attempts
type Machine struct {
	policy  Policy
	state   State
	retries int
}

// NewMachine starts in Attempting with no failures
func NewMachine(p Policy) *Machine {
	return &Machine{policy: p, state: Attempting}
}

// Observe applies outcome and returns the decision
func (m *Machine) Observe(outcome Outcome) Decision {
	d := m.policy.Next(outcome, m.retries)
	m.state = d.State
	m.retries = d.Retries
	if d.State == Succeeded && m.policy.Backoff != nil {
		m.policy.Backoff.Reset()
	}
	return d
}

// Resume moves from Succeeded or RetryWait back to Attempting
func (m *Machine) Resume() {
	if m.state != Exhausted {
		m.state = Attempting
	}
}

func (m *Machine) State() State { return m.state }
func (m *Machine) Retries() int { return m.retries }
