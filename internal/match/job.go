package match

import (
	"context"

	"github.com/procureos/harrier/internal/domain"
)

// Job is the handle for an asynchronous matching run. Results and Err are
// valid once Done is closed.
type Job struct {
	requestID string
	cancel    context.CancelFunc
	done      chan struct{}

	results []*domain.MatchResult
	err     error
}

// RequestID returns the request the job is matching.
func (j *Job) RequestID() string {
	return j.requestID
}

// Done is closed when the run finishes, whatever the outcome.
func (j *Job) Done() <-chan struct{} {
	return j.done
}

// Results returns the ranked results. Valid only after Done is closed.
func (j *Job) Results() []*domain.MatchResult {
	return j.results
}

// Err returns the run error, if any. Valid only after Done is closed.
func (j *Job) Err() error {
	return j.err
}

// Cancel aborts the run. The run stops at its next stage boundary;
// already-persisted results from a completed run are unaffected.
func (j *Job) Cancel() {
	j.cancel()
}

// Wait blocks until the run finishes or ctx expires.
func (j *Job) Wait(ctx context.Context) ([]*domain.MatchResult, error) {
	select {
	case <-j.done:
		return j.results, j.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Submit starts a matching run in the background and returns its handle.
// Submissions are single-flight per request: a second submit while a run is
// in flight returns the existing job instead of starting a duplicate.
//
// The run detaches from the caller's cancellation (an HTTP client hanging
// up must not abort a half-finished run) but keeps its values for tracing.
func (e *Engine) Submit(ctx context.Context, requestID string) *Job {
	e.mu.Lock()
	if j, ok := e.inflight[requestID]; ok {
		e.mu.Unlock()
		return j
	}

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	j := &Job{
		requestID: requestID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	e.inflight[requestID] = j
	e.mu.Unlock()

	go func() {
		defer cancel()

		j.results, j.err = e.Match(runCtx, requestID)

		e.mu.Lock()
		delete(e.inflight, requestID)
		e.mu.Unlock()

		close(j.done)
	}()

	return j
}

// InFlight reports the number of runs currently executing.
func (e *Engine) InFlight() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.inflight)
}
