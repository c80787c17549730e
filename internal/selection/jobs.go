// Package selection tracks the two independent selection domains of the UI:
// which jobs are checked in the queue, and which cell rectangle is active in
// the editor.
package selection

import (
	"sort"
	"sync"
)

// JobSelection is a set of job identities marked for batch action.
type JobSelection struct {
	mu  sync.Mutex
	ids map[string]struct{}
}

// NewJobSelection creates an empty job selection.
func NewJobSelection() *JobSelection {
	return &JobSelection{ids: make(map[string]struct{})}
}

// Toggle flips membership of a single job id.
func (s *JobSelection) Toggle(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.ids[id]; ok {
		delete(s.ids, id)
	} else {
		s.ids[id] = struct{}{}
	}
}

// TogglePage applies the tri-state select-all over the currently visible
// page: if every visible id is already selected, exactly those are cleared;
// otherwise every visible id becomes selected. Ids on other pages are left
// untouched either way.
func (s *JobSelection) TogglePage(visible []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	allSelected := len(visible) > 0
	for _, id := range visible {
		if _, ok := s.ids[id]; !ok {
			allSelected = false
			break
		}
	}

	for _, id := range visible {
		if allSelected {
			delete(s.ids, id)
		} else {
			s.ids[id] = struct{}{}
		}
	}
}

// Reconcile drops selected ids that no longer exist in the backing
// collection. Called whenever the job collection changes.
func (s *JobSelection) Reconcile(existing map[string]struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id := range s.ids {
		if _, ok := existing[id]; !ok {
			delete(s.ids, id)
		}
	}
}

// Contains reports whether the job id is selected.
func (s *JobSelection) Contains(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.ids[id]
	return ok
}

// IDs returns the selected ids in stable order.
func (s *JobSelection) IDs() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]string, 0, len(s.ids))
	for id := range s.ids {
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}

// Len returns the number of selected jobs.
func (s *JobSelection) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.ids)
}

// Clear empties the selection.
func (s *JobSelection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ids = make(map[string]struct{})
}
