package watch

import (
	"sync"

	"github.com/park9140/kilroy-run-pane/internal/runstate"
)

// Subscription is one consumer's registration for a run's snapshots.
type Subscription struct {
	reg   *Registry
	runID string
	id    int
	once  sync.Once
}

// Subscribe registers fn to receive every materially-changed snapshot for
// runID. Monitoring is armed if the run resolves; subscribing to an unknown
// run is allowed and simply delivers nothing until the run appears and is
// read again.
func (r *Registry) Subscribe(runID string, fn func(*runstate.RunState)) *Subscription {
	// Arm watch and poll before registering; absence is fine.
	_, _ = r.GetState(runID)

	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextSubID++
	id := r.nextSubID
	if r.subs[runID] == nil {
		r.subs[runID] = map[int]func(*runstate.RunState){}
	}
	r.subs[runID][id] = fn
	return &Subscription{reg: r, runID: runID, id: id}
}

// Cancel unregisters the subscription. When the last subscriber for a run
// leaves, the run's watch, poll and cached snapshot are torn down together.
func (s *Subscription) Cancel() {
	s.once.Do(func() {
		r := s.reg
		r.mu.Lock()
		defer r.mu.Unlock()
		if fns, ok := r.subs[s.runID]; ok {
			delete(fns, s.id)
			if len(fns) == 0 {
				delete(r.subs, s.runID)
				r.stopLocked(s.runID)
			}
		}
	})
}
