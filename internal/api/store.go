package api

import (
	"sync"

	"github.com/google/uuid"
)

// ReconstructionStore keeps completed reconstructions in memory so they
// can be fetched again by id.
type ReconstructionStore struct {
	mu      sync.Mutex
	results map[string]ReconstructionResponse
	order   []string
	limit   int
}

// NewReconstructionStore keeps at most limit results, evicting the
// oldest; limit <= 0 means unbounded.
func NewReconstructionStore(limit int) *ReconstructionStore {
	return &ReconstructionStore{
		results: make(map[string]ReconstructionResponse),
		limit:   limit,
	}
}

func (s *ReconstructionStore) Save(resp ReconstructionResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.results[resp.ID]; !exists {
		s.order = append(s.order, resp.ID)
	}
	s.results[resp.ID] = resp
	for s.limit > 0 && len(s.order) > s.limit {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.results, oldest)
	}
}

func (s *ReconstructionStore) Get(id string) (ReconstructionResponse, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resp, ok := s.results[id]
	return resp, ok
}

func (s *ReconstructionStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

func newReconstructionID() string {
	return "rec_" + uuid.NewString()
}
