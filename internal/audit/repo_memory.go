package audit

import (
	"context"
	"sort"
	"sync"

	"hr-platform/internal/tenant"
)

// MemoryRepo is an in-memory append-only repository for tests and the
// memory store driver.
type MemoryRepo struct {
	mu      sync.Mutex
	records []Record
}

func NewMemoryRepo() *MemoryRepo { return &MemoryRepo{} }

func (r *MemoryRepo) Append(ctx context.Context, rec Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec.Meta = rec.Meta.clone()
	r.records = append(r.records, rec)
	return nil
}

func (r *MemoryRepo) List(ctx context.Context, scope tenant.Scope, q Query) ([]Record, int64, error) {
	r.mu.Lock()
	matched := make([]Record, 0)
	for _, rec := range r.records {
		if !scope.Owns(rec.OrganizationID) || !matches(rec, q) {
			continue
		}
		matched = append(matched, rec)
	}
	r.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Timestamp.After(matched[j].Timestamp)
	})

	total := int64(len(matched))
	start := q.offset()
	if start < 0 || start >= len(matched) {
		return []Record{}, total, nil
	}
	end := start + q.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

// Records returns a snapshot of everything appended, in insertion order.
func (r *MemoryRepo) Records() []Record {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Record, len(r.records))
	copy(out, r.records)
	return out
}

func matches(rec Record, q Query) bool {
	if q.Action != "" && rec.Action != q.Action {
		return false
	}
	if q.UserID != "" && rec.UserID != q.UserID {
		return false
	}
	if !q.From.IsZero() && rec.Timestamp.Before(q.From) {
		return false
	}
	if !q.To.IsZero() && rec.Timestamp.After(q.To) {
		return false
	}
	return true
}
