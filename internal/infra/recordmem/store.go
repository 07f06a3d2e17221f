// Package recordmem is the no-db record store.
package recordmem

import (
	"context"
	"errors"
	"sort"
	"sync"

	"recordproof/internal/domain"
)

type Store struct {
	mu      sync.RWMutex
	records map[string]domain.Record
}

func New() *Store {
	return &Store{records: make(map[string]domain.Record)}
}

func (s *Store) Create(_ context.Context, record domain.Record) error {
	if record.ID == "" {
		return errors.New("record id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; ok {
		return domain.ErrConflict
	}
	for _, existing := range s.records {
		if existing.Email == record.Email {
			return domain.ErrConflict
		}
	}
	s.records[record.ID] = record
	return nil
}

func (s *Store) GetByID(_ context.Context, id string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.records[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &record, nil
}

func (s *Store) GetByEmail(_ context.Context, email string) (*domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, record := range s.records {
		if record.Email == email {
			found := record
			return &found, nil
		}
	}
	return nil, domain.ErrNotFound
}

func (s *Store) List(_ context.Context, offset, limit int) ([]domain.Record, int64, error) {
	all := s.sorted()
	total := int64(len(all))
	if offset >= len(all) {
		return []domain.Record{}, total, nil
	}
	end := len(all)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return all[offset:end], total, nil
}

func (s *Store) ListAll(_ context.Context, limit int) ([]domain.Record, error) {
	all := s.sorted()
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *Store) Update(_ context.Context, record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[record.ID]; !ok {
		return domain.ErrNotFound
	}
	for id, existing := range s.records {
		if id != record.ID && existing.Email == record.Email {
			return domain.ErrConflict
		}
	}
	s.records[record.ID] = record
	return nil
}

func (s *Store) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.records, id)
	return nil
}

// sorted returns a copy ordered by creation time, then id.
func (s *Store) sorted() []domain.Record {
	s.mu.RLock()
	out := make([]domain.Record, 0, len(s.records))
	for _, record := range s.records {
		out = append(out, record)
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}
