package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/AnshRaj112/civicpulse-backend/internal/models"
)

// MemoryReports is an in-process report store with the same ordering as
// MongoReports. It also counts List calls so callers can assert paging.
type MemoryReports struct {
	mu        sync.Mutex
	reports   map[string]models.Report
	listCalls int
	failWith  error
}

func NewMemoryReports() *MemoryReports {
	return &MemoryReports{reports: make(map[string]models.Report)}
}

// FailWith makes every subsequent write return err. Nil restores normal behavior.
func (s *MemoryReports) FailWith(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failWith = err
}

func (s *MemoryReports) ListCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listCalls
}

func (s *MemoryReports) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.reports)
}

func (s *MemoryReports) Insert(_ context.Context, r models.Report) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return s.failWith
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}
	s.reports[r.ID] = r.Clone()
	return nil
}

func (s *MemoryReports) List(_ context.Context, orgID string, offset, limit int) ([]models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++
	if limit <= 0 || limit > MaxPageSize {
		limit = MaxPageSize
	}

	var all []models.Report
	for _, r := range s.reports {
		if r.OrganizationID == orgID {
			all = append(all, r.Clone())
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	if offset >= len(all) {
		return []models.Report{}, nil
	}
	end := offset + limit
	if end > len(all) {
		end = len(all)
	}
	return all[offset:end], nil
}

func (s *MemoryReports) Get(_ context.Context, id string) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	out := r.Clone()
	return &out, nil
}

func (s *MemoryReports) mutate(id string, fn func(*models.Report)) (*models.Report, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failWith != nil {
		return nil, s.failWith
	}
	r, ok := s.reports[id]
	if !ok {
		return nil, ErrNotFound
	}
	fn(&r)
	s.reports[id] = r
	out := r.Clone()
	return &out, nil
}

func (s *MemoryReports) UpdateStatus(_ context.Context, id string, status models.ReportStatus) (*models.Report, error) {
	return s.mutate(id, func(r *models.Report) { r.Status = status })
}

func (s *MemoryReports) AppendNote(_ context.Context, id string, note models.Note) (*models.Report, error) {
	return s.mutate(id, func(r *models.Report) { r.Notes = append(r.Notes, note) })
}

func (s *MemoryReports) Vote(_ context.Context, id string) (*models.Report, error) {
	return s.mutate(id, func(r *models.Report) { r.Votes++ })
}
