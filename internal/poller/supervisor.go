package poller

import (
	"context"
	"sync"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"farepay/internal/domain"
)

const (
	DefaultInterval = 4 * time.Second
	DefaultDeadline = 90 * time.Second
)

type StatusQuerier interface {
	QueryStatus(ctx context.Context, merchantReference string) (domain.StatusView, error)
}

type Config struct {
	Interval time.Duration
	Deadline time.Duration
}

// Supervisor polls the status endpoint for one session per Poll.
// A client timeout is local: it never changes anything on the server.
type Supervisor struct {
	querier StatusQuerier
	cfg     Config
	clock   clock.Clock
	logger  *zap.Logger
}

type Option func(*Supervisor)

func WithClock(c clock.Clock) Option {
	return func(s *Supervisor) { s.clock = c }
}

func NewSupervisor(querier StatusQuerier, cfg Config, logger *zap.Logger, opts ...Option) *Supervisor {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = DefaultDeadline
	}
	s := &Supervisor{querier: querier, cfg: cfg, clock: clock.New(), logger: logger}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Poll is one supervision. It is idle until Start. Cancel is safe to call any
// number of times, from any goroutine and in any state.
type Poll struct {
	supervisor        *Supervisor
	merchantReference string

	mu      sync.Mutex
	state   State
	outcome Outcome
	cancel  context.CancelFunc

	done chan struct{}
}

// NewPoll returns an idle poll for merchantReference.
func (s *Supervisor) NewPoll(merchantReference string) *Poll {
	return &Poll{
		supervisor:        s,
		merchantReference: merchantReference,
		state:             StateIdle,
		done:              make(chan struct{}),
	}
}

// Start creates and starts a poll in one step.
func (s *Supervisor) Start(ctx context.Context, merchantReference string) *Poll {
	p := s.NewPoll(merchantReference)
	p.Start(ctx)
	return p
}

// Start enters polling. The interval ticker and the deadline timer both exist
// when Start returns. Starting a poll that is not idle does nothing.
func (p *Poll) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.state != StateIdle {
		return
	}

	s := p.supervisor
	pollCtx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.state = StatePolling

	started := s.clock.Now()
	ticker := s.clock.Ticker(s.cfg.Interval)
	deadline := s.clock.Timer(s.cfg.Deadline)

	go s.run(pollCtx, p, ticker, deadline, started)
}

type queryResult struct {
	view domain.StatusView
	err  error
}

func (s *Supervisor) run(ctx context.Context, p *Poll, ticker *clock.Ticker, deadline *clock.Timer, started time.Time) {
	defer close(p.done)
	defer p.cancel()
	defer deadline.Stop()
	defer ticker.Stop()

	polls := 0
	finish := func(o Outcome) {
		o.MerchantReference = p.merchantReference
		o.Polls = polls
		o.Elapsed = s.clock.Since(started)
		p.finish(o)
		s.logger.Info("Polling finished",
			zap.String("merchant_reference", p.merchantReference),
			zap.String("state", string(o.State)),
			zap.Int("polls", polls),
			zap.Duration("elapsed", o.Elapsed))
	}
	timeout := func() {
		finish(Outcome{State: StateResolvedFailure, FailureReason: domain.FailureReasonTimeout, TimedOut: true})
	}
	cancelled := func() {
		finish(Outcome{State: StateCancelled})
	}

	for {
		// Cancellation and the deadline win over a tick that is ready at the same time.
		select {
		case <-ctx.Done():
			cancelled()
			return
		case <-deadline.C:
			timeout()
			return
		default:
		}

		select {
		case <-ctx.Done():
			cancelled()
			return
		case <-deadline.C:
			timeout()
			return
		case <-ticker.C:
		}

		if ctx.Err() != nil {
			cancelled()
			return
		}

		// The query races the deadline: an answer that arrives after it has
		// fired is not observed.
		polls++
		queryCtx, stopQuery := context.WithCancel(ctx)
		results := make(chan queryResult, 1)
		go func() {
			view, err := s.querier.QueryStatus(queryCtx, p.merchantReference)
			results <- queryResult{view: view, err: err}
		}()

		var res queryResult
		select {
		case <-ctx.Done():
			stopQuery()
			cancelled()
			return
		case <-deadline.C:
			stopQuery()
			timeout()
			return
		case res = <-results:
			stopQuery()
		}

		select {
		case <-deadline.C:
			timeout()
			return
		default:
		}
		if ctx.Err() != nil {
			cancelled()
			return
		}

		if res.err != nil {
			s.logger.Warn("Status query failed, will retry",
				zap.String("merchant_reference", p.merchantReference),
				zap.Int("poll", polls),
				zap.Error(res.err))
			continue
		}

		switch res.view.Status {
		case domain.QueryStatusSuccess:
			finish(Outcome{State: StateResolvedSuccess, Receipt: res.view.Receipt})
			return
		case domain.QueryStatusFailed:
			finish(Outcome{State: StateResolvedFailure, FailureReason: res.view.FailureReason, FailureDescription: res.view.FailureDescription})
			return
		}
	}
}

func (p *Poll) finish(o Outcome) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.state = o.State
	p.outcome = o
}

func (p *Poll) Cancel() {
	p.mu.Lock()
	if p.state == StateIdle {
		p.state = StateCancelled
		p.outcome = Outcome{State: StateCancelled, MerchantReference: p.merchantReference}
		close(p.done)
		p.mu.Unlock()
		return
	}
	cancel := p.cancel
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Done is closed once the poll reached a final state and released its timers.
func (p *Poll) Done() <-chan struct{} {
	return p.done
}

func (p *Poll) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Result returns the outcome so far; it is final once Done is closed.
func (p *Poll) Result() Outcome {
	p.mu.Lock()
	defer p.mu.Unlock()
	o := p.outcome
	o.State = p.state
	o.MerchantReference = p.merchantReference
	return o
}

// Wait blocks until the poll finishes or ctx ends, whichever is first.
func (p *Poll) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-p.done:
		return p.Result(), nil
	case <-ctx.Done():
		return p.Result(), ctx.Err()
	}
}
