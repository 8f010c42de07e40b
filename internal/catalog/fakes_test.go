package catalog

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

var errUnavailable = errors.New("upstream unavailable")

type fakeAssets struct {
	mu       sync.Mutex
	next     int
	live     map[string]bool
	uploads  int
	deletes  []string
	failBlob map[string]bool
	failDel  map[string]bool
	ctxErrs  []error
}

func newFakeAssets() *fakeAssets {
	return &fakeAssets{live: map[string]bool{}, failBlob: map[string]bool{}, failDel: map[string]bool{}}
}

func (f *fakeAssets) Upload(ctx context.Context, blob model.Blob) (model.Image, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploads++
	if f.failBlob[blob.Name] {
		return model.Image{}, errUnavailable
	}
	f.next++
	id := "file-" + strconv.Itoa(f.next)
	f.live[id] = true
	return model.Image{URL: "https://cdn/" + id, Thumbnail: "https://cdn/tr/" + id, FileID: id}, nil
}

func (f *fakeAssets) Delete(ctx context.Context, fileID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, fileID)
	f.ctxErrs = append(f.ctxErrs, ctx.Err())
	if f.failDel[fileID] {
		return errUnavailable
	}
	if !f.live[fileID] {
		return ErrNoAsset
	}
	delete(f.live, fileID)
	return nil
}

func (f *fakeAssets) seed(ids ...string) []model.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	images := make([]model.Image, 0, len(ids))
	for _, id := range ids {
		f.live[id] = true
		images = append(images, model.Image{URL: "https://cdn/" + id, Thumbnail: "https://cdn/" + id, FileID: id})
	}
	return images
}

func (f *fakeAssets) liveCount(ids ...string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, id := range ids {
		if f.live[id] {
			n++
		}
	}
	return n
}

type fakeStore struct {
	mu        sync.Mutex
	seq       int
	records   map[string]model.Product
	writes    int
	failWith  error
	staleNext bool
	// bumpOnGet commits a concurrent write right after the next read.
	bumpOnGet bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{records: map[string]model.Product{}}
}

func (f *fakeStore) Create(ctx context.Context, p model.Product) (model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWith != nil {
		return model.Product{}, f.failWith
	}
	if err := f.checkSKU("", p.SKU); err != nil {
		return model.Product{}, err
	}
	f.seq++
	p.ID = fmt.Sprintf("p%d", f.seq)
	p.Version = 1
	p.CreatedAt = time.Unix(1700000000, 0).UTC()
	p.UpdatedAt = p.CreatedAt
	f.records[p.ID] = p
	return p, nil
}

func (f *fakeStore) GetByID(ctx context.Context, id string) (model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.records[id]
	if !ok {
		return model.Product{}, ErrNoRecord
	}
	if f.bumpOnGet {
		f.bumpOnGet = false
		bumped := p
		bumped.Version++
		f.records[id] = bumped
	}
	return p, nil
}

func (f *fakeStore) Update(ctx context.Context, p model.Product, expectedVersion int64) (model.Product, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWith != nil {
		return model.Product{}, f.failWith
	}
	cur, ok := f.records[p.ID]
	if !ok {
		return model.Product{}, ErrNoRecord
	}
	if f.staleNext || cur.Version != expectedVersion {
		return model.Product{}, ErrStaleVersion
	}
	if err := f.checkSKU(p.ID, p.SKU); err != nil {
		return model.Product{}, err
	}
	p.Seller = cur.Seller
	p.CreatedAt = cur.CreatedAt
	p.Version = cur.Version + 1
	f.records[p.ID] = p
	return p, nil
}

func (f *fakeStore) Delete(ctx context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writes++
	if f.failWith != nil {
		return f.failWith
	}
	if _, ok := f.records[id]; !ok {
		return ErrNoRecord
	}
	delete(f.records, id)
	return nil
}

func (f *fakeStore) checkSKU(selfID, sku string) error {
	if sku == "" {
		return nil
	}
	for id, r := range f.records {
		if id != selfID && r.SKU == sku {
			return errors.Wrap(ErrDuplicateKey, "sku")
		}
	}
	return nil
}

func (f *fakeStore) put(p model.Product) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.records[p.ID] = p
}

type fakePublisher struct {
	mu        sync.Mutex
	events    []model.DomainEvent
	failTopic map[string]bool
}

func newFakePublisher() *fakePublisher {
	return &fakePublisher{failTopic: map[string]bool{}}
}

func (f *fakePublisher) Publish(ctx context.Context, ev model.DomainEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failTopic[ev.Topic] {
		return errUnavailable
	}
	f.events = append(f.events, ev)
	return nil
}

func (f *fakePublisher) topics() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.events))
	for _, ev := range f.events {
		out = append(out, ev.Topic)
	}
	return out
}
