// Package store persists catalog products.
package store

import (
	"context"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fairyhunter13/product-catalog-service/internal/catalog"
	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

type productState struct {
	p   model.Product
	seq uint64
}

// Memory is an in-process catalog store for local runs and tests. It
// enforces the same version and sku rules as Mongo.
type Memory struct {
	mu  sync.RWMutex
	m   map[string]productState
	seq uint64
	now func() time.Time
}

func NewMemory() *Memory {
	return &Memory{m: make(map[string]productState), now: func() time.Time { return time.Now().UTC() }}
}

func (s *Memory) Create(_ context.Context, p model.Product) (model.Product, error) {
	if err := checkInvariants(p); err != nil {
		return model.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.skuTaken("", p.SKU) {
		return model.Product{}, duplicateSKU(p.SKU)
	}
	s.seq++
	p.ID = strconv.FormatUint(s.seq, 10)
	p.Version = 1
	p.CreatedAt = s.now()
	p.UpdatedAt = p.CreatedAt
	s.m[p.ID] = productState{p: p, seq: s.seq}
	return p, nil
}

func (s *Memory) GetByID(_ context.Context, id string) (model.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.m[id]
	if !ok {
		return model.Product{}, catalog.ErrNoRecord
	}
	return st.p, nil
}

// Update replaces the mutable fields of p when the stored version equals
// expectedVersion. Seller and creation time never change.
func (s *Memory) Update(_ context.Context, p model.Product, expectedVersion int64) (model.Product, error) {
	if err := checkInvariants(p); err != nil {
		return model.Product{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	st, ok := s.m[p.ID]
	if !ok {
		return model.Product{}, catalog.ErrNoRecord
	}
	if st.p.Version != expectedVersion {
		return model.Product{}, catalog.ErrStaleVersion
	}
	if s.skuTaken(p.ID, p.SKU) {
		return model.Product{}, duplicateSKU(p.SKU)
	}
	p.Seller = st.p.Seller
	p.CreatedAt = st.p.CreatedAt
	p.Version = st.p.Version + 1
	p.UpdatedAt = s.now()
	st.p = p
	s.m[p.ID] = st
	return p, nil
}

func (s *Memory) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[id]; !ok {
		return catalog.ErrNoRecord
	}
	delete(s.m, id)
	return nil
}

// Search filters products in creation order. The query matches title or
// description case-insensitively.
func (s *Memory) Search(_ context.Context, f model.Filter) ([]model.Product, error) {
	f.Normalize()
	q := strings.ToLower(strings.TrimSpace(f.Query))

	s.mu.RLock()
	matched := make([]productState, 0, len(s.m))
	for _, st := range s.m {
		if matches(st.p, f, q) {
			matched = append(matched, st)
		}
	}
	s.mu.RUnlock()

	slices.SortFunc(matched, func(a, b productState) int {
		switch {
		case a.seq < b.seq:
			return -1
		case a.seq > b.seq:
			return 1
		}
		return 0
	})
	out := make([]model.Product, 0, f.Limit)
	for i := f.Skip; i < int64(len(matched)) && int64(len(out)) < f.Limit; i++ {
		out = append(out, matched[i].p)
	}
	return out, nil
}

func matches(p model.Product, f model.Filter, q string) bool {
	if f.Category != "" && p.Category != f.Category {
		return false
	}
	if f.MinPrice != nil && p.Price.Amount.LessThan(*f.MinPrice) {
		return false
	}
	if f.MaxPrice != nil && p.Price.Amount.GreaterThan(*f.MaxPrice) {
		return false
	}
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(p.Title), q) || strings.Contains(strings.ToLower(p.Description), q)
}

func (s *Memory) skuTaken(selfID, sku string) bool {
	if sku == "" {
		return false
	}
	for id, st := range s.m {
		if id != selfID && st.p.SKU == sku {
			return true
		}
	}
	return false
}
