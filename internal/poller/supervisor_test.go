package poller

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"farepay/internal/domain"
)

// scriptedQuerier answers each call from views in order, repeating the last
// entry. Every call is announced on calls before the answer is returned.
type scriptedQuerier struct {
	mu    sync.Mutex
	views []domain.StatusView
	errs  []error
	n     int
	calls chan struct{}
}

func newScriptedQuerier(views ...domain.StatusView) *scriptedQuerier {
	return &scriptedQuerier{views: views, calls: make(chan struct{}, 64)}
}

func (q *scriptedQuerier) QueryStatus(_ context.Context, ref string) (domain.StatusView, error) {
	q.mu.Lock()
	i := q.n
	q.n++
	var err error
	if i < len(q.errs) {
		err = q.errs[i]
	}
	view := q.views[len(q.views)-1]
	if i < len(q.views) {
		view = q.views[i]
	}
	q.mu.Unlock()

	q.calls <- struct{}{}
	view.MerchantReference = ref
	return view, err
}

func (q *scriptedQuerier) count() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.n
}

func pending() domain.StatusView { return domain.StatusView{Status: domain.QueryStatusPending} }

func paid(receipt string) domain.StatusView {
	return domain.StatusView{Status: domain.QueryStatusSuccess, Receipt: &domain.Receipt{ReceiptNumber: receipt}}
}

func waitCall(t *testing.T, q *scriptedQuerier) {
	t.Helper()
	select {
	case <-q.calls:
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for a status query")
	}
}

func waitDone(t *testing.T, p *Poll) Outcome {
	t.Helper()
	select {
	case <-p.Done():
		return p.Result()
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the poll to finish")
		return Outcome{}
	}
}

func newTestSupervisor(q StatusQuerier) (*Supervisor, *clock.Mock) {
	mock := clock.NewMock()
	return NewSupervisor(q, Config{}, zap.NewNop(), WithClock(mock)), mock
}

func TestSupervisor_Success(t *testing.T) {
	t.Run("Given success on the third poll When ticking every 4s Then resolves at 12s with the receipt", func(t *testing.T) {
		q := newScriptedQuerier(pending(), pending(), paid("ABC123"))
		s, mock := newTestSupervisor(q)

		p := s.Start(context.Background(), "ws_CO_1")
		if p.State() != StatePolling {
			t.Fatalf("expected polling right after Start, got %s", p.State())
		}
		for i := 0; i < 3; i++ {
			mock.Add(DefaultInterval)
			waitCall(t, q)
		}
		got := waitDone(t, p)

		if got.State != StateResolvedSuccess {
			t.Fatalf("expected resolved-success, got %s", got.State)
		}
		if got.Receipt == nil || got.Receipt.ReceiptNumber != "ABC123" {
			t.Errorf("expected receipt ABC123, got %+v", got.Receipt)
		}
		if got.Polls != 3 || got.Elapsed != 12*time.Second {
			t.Errorf("expected 3 polls in 12s, got %d in %s", got.Polls, got.Elapsed)
		}

		mock.Add(time.Minute)
		if q.count() != 3 {
			t.Errorf("expected no polls after resolution, got %d", q.count())
		}
	})

	t.Run("Given a failed status When polled Then resolves as failure with the reason", func(t *testing.T) {
		q := newScriptedQuerier(domain.StatusView{Status: domain.QueryStatusFailed, FailureReason: domain.FailureReasonUserCancelled})
		s, mock := newTestSupervisor(q)

		p := s.Start(context.Background(), "ws_CO_2")
		mock.Add(DefaultInterval)
		waitCall(t, q)
		got := waitDone(t, p)

		if got.State != StateResolvedFailure || got.FailureReason != domain.FailureReasonUserCancelled || got.TimedOut {
			t.Errorf("unexpected outcome %+v", got)
		}
	})

	t.Run("Given a query error When polled Then keeps polling", func(t *testing.T) {
		q := newScriptedQuerier(pending(), paid("XYZ"))
		q.errs = []error{errors.New("connection refused")}
		s, mock := newTestSupervisor(q)

		p := s.Start(context.Background(), "ws_CO_3")
		mock.Add(DefaultInterval)
		waitCall(t, q)
		mock.Add(DefaultInterval)
		waitCall(t, q)
		got := waitDone(t, p)

		if got.State != StateResolvedSuccess || got.Polls != 2 {
			t.Errorf("unexpected outcome %+v", got)
		}
	})
}

func TestSupervisor_Timeout(t *testing.T) {
	t.Run("Given the server stays pending When 90s elapse Then reports a local timeout after 22 polls", func(t *testing.T) {
		q := newScriptedQuerier(pending())
		s, mock := newTestSupervisor(q)

		p := s.Start(context.Background(), "ws_CO_4")
		for i := 0; i < 22; i++ {
			mock.Add(DefaultInterval)
			waitCall(t, q)
		}
		mock.Add(2 * time.Second)
		got := waitDone(t, p)

		if got.State != StateResolvedFailure || !got.TimedOut || got.FailureReason != domain.FailureReasonTimeout {
			t.Fatalf("expected a timeout failure, got %+v", got)
		}
		if got.Polls != 22 || got.Elapsed != DefaultDeadline {
			t.Errorf("expected 22 polls in 90s, got %d in %s", got.Polls, got.Elapsed)
		}

		mock.Add(time.Minute)
		if q.count() != 22 {
			t.Errorf("expected no polls after the deadline, got %d", q.count())
		}
	})
}

func TestSupervisor_Cancel(t *testing.T) {
	t.Run("Given two polls When cancelled at 10s Then stops without resolving and never polls again", func(t *testing.T) {
		q := newScriptedQuerier(pending())
		s, mock := newTestSupervisor(q)

		p := s.Start(context.Background(), "ws_CO_5")
		mock.Add(DefaultInterval)
		waitCall(t, q)
		mock.Add(DefaultInterval)
		waitCall(t, q)
		mock.Add(2 * time.Second)

		p.Cancel()
		p.Cancel()
		got := waitDone(t, p)

		if got.State != StateCancelled || got.Receipt != nil || got.FailureReason != "" {
			t.Fatalf("expected a bare cancellation, got %+v", got)
		}

		mock.Add(2 * time.Minute)
		select {
		case <-q.calls:
			t.Error("expected no polls after cancellation")
		case <-time.After(50 * time.Millisecond):
		}
		if q.count() != 2 {
			t.Errorf("expected 2 polls, got %d", q.count())
		}
	})

	t.Run("Given the parent context ends When polling Then the poll is cancelled", func(t *testing.T) {
		q := newScriptedQuerier(pending())
		s, _ := newTestSupervisor(q)
		ctx, cancel := context.WithCancel(context.Background())

		p := s.Start(ctx, "ws_CO_6")
		cancel()
		got := waitDone(t, p)

		if got.State != StateCancelled || got.Polls != 0 {
			t.Errorf("unexpected outcome %+v", got)
		}
	})
}

// stalledQuerier answers pending until the call numbered stallAt, which blocks
// until release is closed and then answers with late.
type stalledQuerier struct {
	mu       sync.Mutex
	n        int
	stallAt  int
	late     domain.StatusView
	release  chan struct{}
	calls    chan struct{}
	canceled chan struct{}
}

func (q *stalledQuerier) QueryStatus(ctx context.Context, ref string) (domain.StatusView, error) {
	q.mu.Lock()
	q.n++
	n := q.n
	q.mu.Unlock()

	q.calls <- struct{}{}
	if n < q.stallAt {
		return domain.StatusView{MerchantReference: ref, Status: domain.QueryStatusPending}, nil
	}
	go func() {
		<-ctx.Done()
		close(q.canceled)
	}()
	<-q.release
	return q.late, nil
}

func TestSupervisor_DeadlineDuringQuery(t *testing.T) {
	t.Run("Given a query in flight at the deadline When the answer arrives late Then the poll has already timed out", func(t *testing.T) {
		q := &stalledQuerier{
			stallAt:  22,
			late:     paid("LATE01"),
			release:  make(chan struct{}),
			calls:    make(chan struct{}, 64),
			canceled: make(chan struct{}),
		}
		mock := clock.NewMock()
		s := NewSupervisor(q, Config{}, zap.NewNop(), WithClock(mock))

		p := s.Start(context.Background(), "ws_CO_7")
		for i := 0; i < 22; i++ {
			mock.Add(DefaultInterval)
			select {
			case <-q.calls:
			case <-time.After(2 * time.Second):
				t.Fatalf("timed out waiting for status query %d", i+1)
			}
		}
		mock.Add(2 * time.Second)

		var got Outcome
		select {
		case <-p.Done():
			got = p.Result()
		case <-time.After(2 * time.Second):
			t.Fatalf("expected the deadline to end the poll while the query is in flight, state %s", p.State())
		}
		select {
		case <-q.canceled:
		case <-time.After(2 * time.Second):
			t.Error("expected the in-flight query to be cancelled at the deadline")
		}
		close(q.release)

		if got.State != StateResolvedFailure || !got.TimedOut || got.Receipt != nil {
			t.Errorf("expected a timeout failure, got %+v", got)
		}
		if got.Elapsed != DefaultDeadline || got.Polls != 22 {
			t.Errorf("expected 22 polls in 90s, got %d in %s", got.Polls, got.Elapsed)
		}
		mock.Add(10 * time.Second)
		if r := p.Result(); r.State != StateResolvedFailure || r.Receipt != nil {
			t.Errorf("late answer must not change the outcome, got %+v", r)
		}
	})
}

func TestPoll_Idle(t *testing.T) {
	t.Run("Given a new poll When not started Then it is idle and issues no queries", func(t *testing.T) {
		q := newScriptedQuerier(pending())
		s, mock := newTestSupervisor(q)

		p := s.NewPoll("ws_CO_8")
		mock.Add(time.Minute)

		if p.State() != StateIdle || q.count() != 0 {
			t.Errorf("expected idle with no queries, got %s after %d queries", p.State(), q.count())
		}
	})

	t.Run("Given an idle poll When cancelled Then it finishes and a later Start does nothing", func(t *testing.T) {
		q := newScriptedQuerier(pending())
		s, mock := newTestSupervisor(q)

		p := s.NewPoll("ws_CO_8")
		p.Cancel()
		p.Cancel()
		got := waitDone(t, p)
		p.Start(context.Background())
		mock.Add(time.Minute)

		if got.State != StateCancelled || p.State() != StateCancelled || q.count() != 0 {
			t.Errorf("expected a cancelled poll with no queries, got %s after %d queries", p.State(), q.count())
		}
	})

	t.Run("Given an idle poll When started Then it polls", func(t *testing.T) {
		q := newScriptedQuerier(paid("ABC123"))
		s, mock := newTestSupervisor(q)

		p := s.NewPoll("ws_CO_8")
		p.Start(context.Background())
		p.Start(context.Background())
		mock.Add(DefaultInterval)
		waitCall(t, q)
		got := waitDone(t, p)

		if got.State != StateResolvedSuccess || got.Polls != 1 {
			t.Errorf("unexpected outcome %+v", got)
		}
	})
}
