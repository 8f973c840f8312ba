package store

import (
	"sync"

	"github.com/example/maintrack/internal/apperrors"
	"github.com/example/maintrack/internal/models"
)

// RequestStore holds the in-memory view of maintenance requests for one board
// instance. It is safe for concurrent use and never performs I/O.
type RequestStore struct {
	mu      sync.RWMutex
	records []models.MaintenanceRequest
	index   map[string]int
}

// NewRequestStore returns an empty store.
func NewRequestStore() *RequestStore {
	return &RequestStore{index: map[string]int{}}
}

// GetAll returns every request in insertion order.
func (s *RequestStore) GetAll() []models.MaintenanceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]models.MaintenanceRequest, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r.Clone())
	}
	return out
}

// GetByStage returns the requests currently in exactly stage, in insertion order.
func (s *RequestStore) GetByStage(stage models.Stage) []models.MaintenanceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.MaintenanceRequest{}
	for _, r := range s.records {
		if r.Stage == stage {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Filter returns the requests matching f in insertion order.
func (s *RequestStore) Filter(f models.RequestFilter) []models.MaintenanceRequest {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := []models.MaintenanceRequest{}
	for _, r := range s.records {
		if f.Match(r) {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Get returns the request with the given id.
func (s *RequestStore) Get(id string) (models.MaintenanceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	i, ok := s.index[id]
	if !ok {
		return models.MaintenanceRequest{}, apperrors.Clonef(apperrors.ErrNotFound, "request %s not found", id)
	}
	return s.records[i].Clone(), nil
}

// Len returns the number of stored requests.
func (s *RequestStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Patch merges the set fields of p into the request with the given id and returns
// the updated record.
func (s *RequestStore) Patch(id string, p models.RequestPatch) (models.MaintenanceRequest, error) {
	if err := validatePatch(p); err != nil {
		return models.MaintenanceRequest{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return models.MaintenanceRequest{}, apperrors.Clonef(apperrors.ErrNotFound, "request %s not found", id)
	}
	p.Apply(&s.records[i])
	return s.records[i].Clone(), nil
}

// Add appends a new request. The id must not already be present.
func (s *RequestStore) Add(r models.MaintenanceRequest) error {
	if r.ID == "" {
		return apperrors.Clone(apperrors.ErrValidation, "request id is required")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index[r.ID]; ok {
		return apperrors.Clonef(apperrors.ErrConflict, "request %s already exists", r.ID)
	}
	s.index[r.ID] = len(s.records)
	s.records = append(s.records, r.Clone())
	return nil
}

// Remove drops the request with the given id and reports whether it was present.
func (s *RequestStore) Remove(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, ok := s.index[id]
	if !ok {
		return false
	}
	s.records = append(s.records[:i], s.records[i+1:]...)
	s.reindex()
	return true
}

// ReplaceAll swaps the whole collection for records, keeping their order. A snapshot
// with duplicate or empty ids is rejected and the store is left as it was.
func (s *RequestStore) ReplaceAll(records []models.MaintenanceRequest) error {
	next := make([]models.MaintenanceRequest, 0, len(records))
	seen := make(map[string]struct{}, len(records))
	for _, r := range records {
		if r.ID == "" {
			return apperrors.Clone(apperrors.ErrValidation, "request id is required")
		}
		if _, dup := seen[r.ID]; dup {
			return apperrors.Clonef(apperrors.ErrConflict, "duplicate request id %s in snapshot", r.ID)
		}
		seen[r.ID] = struct{}{}
		next = append(next, r.Clone())
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.records = next
	s.reindex()
	return nil
}

func (s *RequestStore) reindex() {
	s.index = make(map[string]int, len(s.records))
	for i, r := range s.records {
		s.index[r.ID] = i
	}
}

func validatePatch(p models.RequestPatch) error {
	if p.Stage != nil && !p.Stage.Valid() {
		return apperrors.Clonef(apperrors.ErrValidation, "invalid stage %q", *p.Stage)
	}
	if p.Priority != nil && !p.Priority.Valid() {
		return apperrors.Clonef(apperrors.ErrValidation, "invalid priority %q", *p.Priority)
	}
	if p.Subject != nil && *p.Subject == "" {
		return apperrors.Clone(apperrors.ErrValidation, "subject must not be empty")
	}
	return nil
}
