// Package watch keeps consumers synchronized with on-disk run state. It
// owns the run-id to directory mapping, a per-run snapshot cache, recursive
// filesystem watches with debounce, a poll fallback for executing runs, and
// per-run subscriber lists.
package watch

import (
	"sync"
	"time"

	"github.com/park9140/kilroy-run-pane/internal/config"
	"github.com/park9140/kilroy-run-pane/internal/logger"
	"github.com/park9140/kilroy-run-pane/internal/observability"
	"github.com/park9140/kilroy-run-pane/internal/runstate"
)

// Registry is the per-run bookkeeping table. The snapshot cache, watcher
// handles, poll handles and subscriber lists are parallel maps keyed by run
// id, all mutated under one lock; stopLocked clears them together so a run
// is never left half torn down.
type Registry struct {
	cfg     *config.Config
	log     logger.Logger
	metrics *observability.Metrics

	mu        sync.Mutex
	dirs      map[string]string
	states    map[string]*runstate.RunState
	watchers  map[string]*dirWatcher
	polls     map[string]chan struct{}
	subs      map[string]map[int]func(*runstate.RunState)
	nextSubID int
	closed    bool
}

func NewRegistry(cfg *config.Config, log logger.Logger, metrics *observability.Metrics) *Registry {
	return &Registry{
		cfg:      cfg,
		log:      log,
		metrics:  metrics,
		dirs:     map[string]string{},
		states:   map[string]*runstate.RunState{},
		watchers: map[string]*dirWatcher{},
		polls:    map[string]chan struct{}{},
		subs:     map[string]map[int]func(*runstate.RunState){},
	}
}

// GetState returns the cached snapshot for runID, reading it from disk on
// first access. Monitoring for the run is armed as a side effect. A run id
// that resolves to no directory returns runstate.ErrNotFound.
func (r *Registry) GetState(runID string) (*runstate.RunState, error) {
	r.mu.Lock()
	if st, ok := r.states[runID]; ok {
		// Arming is idempotent; this retries a watch whose initial attach
		// failed, e.g. the directory was briefly unreadable.
		if !r.closed {
			if dir, found := r.dirs[runID]; found {
				r.armLocked(runID, dir, st)
			}
		}
		r.mu.Unlock()
		return st, nil
	}
	r.mu.Unlock()

	dir, err := r.FindDirectory(runID)
	if err != nil {
		return nil, err
	}
	st, err := runstate.ReadState(dir)
	if err != nil {
		return nil, err
	}
	r.metrics.ReloadTriggered("initial")

	r.mu.Lock()
	defer r.mu.Unlock()
	if cached, ok := r.states[runID]; ok {
		// Another caller read the same run while we were off the lock.
		return cached, nil
	}
	if r.closed {
		return st, nil
	}
	r.states[runID] = st
	r.armLocked(runID, dir, st)
	return st, nil
}

// Invalidate drops the cached snapshot and tears down any watch and poll for
// runID.
func (r *Registry) Invalidate(runID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stopLocked(runID)
}

// Shutdown tears down all watches and polls process-wide. Idempotent.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	for runID := range r.watchers {
		r.watchers[runID].close()
	}
	r.watchers = map[string]*dirWatcher{}
	for runID, stop := range r.polls {
		close(stop)
		delete(r.polls, runID)
	}
	r.states = map[string]*runstate.RunState{}
	r.subs = map[string]map[int]func(*runstate.RunState){}
}

// armLocked attaches monitoring for a run. Callers hold the lock, so the
// "already watching" check and the map insert are one atomic step; re-arming
// an armed run is a no-op.
func (r *Registry) armLocked(runID, dir string, st *runstate.RunState) {
	if r.watchers[runID] == nil {
		w, err := newDirWatcher(dir, r.cfg.Debounce(), func() { r.reload(runID, "watch") }, r.log)
		if err != nil {
			r.log.Warn("watch arm failed", logger.F("run_id", runID), logger.F("error", err))
		} else {
			r.watchers[runID] = w
		}
	}
	if st.Status == runstate.StatusExecuting {
		r.startPollLocked(runID)
	}
}

func (r *Registry) startPollLocked(runID string) {
	if r.polls[runID] != nil {
		return
	}
	stop := make(chan struct{})
	r.polls[runID] = stop
	go r.pollLoop(runID, stop)
}

func (r *Registry) stopPollLocked(runID string) {
	if stop, ok := r.polls[runID]; ok {
		close(stop)
		delete(r.polls, runID)
	}
}

// pollLoop re-reads an executing run on a timer to catch liveness flips that
// produce no file write. It is stopped once the run leaves executing.
func (r *Registry) pollLoop(runID string, stop chan struct{}) {
	ticker := time.NewTicker(r.cfg.PollInterval())
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-ticker.C:
			r.reload(runID, "poll")
		}
	}
}

// reload re-reads a run's state and, if it differs materially from the
// cached snapshot, replaces the cache and notifies subscribers.
func (r *Registry) reload(runID, trigger string) {
	r.mu.Lock()
	dir, ok := r.dirs[runID]
	prev := r.states[runID]
	r.mu.Unlock()
	// An armed run always has a cached snapshot; prev==nil means the run was
	// torn down before this reload got the lock.
	if !ok || prev == nil {
		return
	}

	st, err := runstate.ReadState(dir)
	if err != nil {
		// The directory may be mid-teardown; keep the previous snapshot.
		r.log.Debug("reload skipped", logger.F("run_id", runID), logger.F("error", err))
		return
	}
	r.metrics.ReloadTriggered(trigger)

	if !materiallyChanged(prev, st) {
		return
	}

	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return
	}
	// The run may have been invalidated while we were off the lock reading
	// the snapshot; installing it now would resurrect the watch and poll.
	if _, tracked := r.states[runID]; !tracked {
		r.mu.Unlock()
		return
	}
	r.states[runID] = st
	r.armLocked(runID, dir, st)
	if st.Status != runstate.StatusExecuting {
		r.stopPollLocked(runID)
	}
	callbacks := make([]func(*runstate.RunState), 0, len(r.subs[runID]))
	for _, fn := range r.subs[runID] {
		callbacks = append(callbacks, fn)
	}
	r.mu.Unlock()

	for _, fn := range callbacks {
		fn(st)
	}
	if len(callbacks) > 0 {
		r.metrics.ChangeNotified()
	}
}

// materiallyChanged reports whether a re-read snapshot warrants replacing
// the cache and waking subscribers.
func materiallyChanged(prev, next *runstate.RunState) bool {
	if prev.Status != next.Status || prev.ComputedStatus != next.ComputedStatus {
		return true
	}
	if prev.Alive != next.Alive {
		return true
	}
	if prev.RestartCount != next.RestartCount || len(prev.History) != len(next.History) {
		return true
	}
	if len(prev.Stages) != len(next.Stages) {
		return true
	}
	return false
}

// stopLocked clears every per-run handle at once: cached state, watcher and
// poll. The directory memo survives; run directories do not move once
// created.
func (r *Registry) stopLocked(runID string) {
	if w, ok := r.watchers[runID]; ok {
		w.close()
		delete(r.watchers, runID)
	}
	r.stopPollLocked(runID)
	delete(r.states, runID)
}
