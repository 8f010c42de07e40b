// Package catalog implements the mutation orchestrator of the product
// catalog: it sequences the asset store, the catalog store and the event
// publisher for create, update and delete, compensating uploads when a
// later stage fails before the record is committed.
package catalog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
)

// Result is the outcome of a committed mutation. FailedTopics lists events
// whose delivery failed after the record was committed.
type Result struct {
	Product      model.Product
	FailedTopics []string
}

// Degraded reports whether the record was committed but some notification
// may not have been delivered.
func (r Result) Degraded() bool { return len(r.FailedTopics) > 0 }

// Service is the mutation orchestrator. It keeps no state between calls and
// is safe for concurrent use.
type Service struct {
	assets AssetStore
	store  CatalogStore
	pub    Publisher

	uploadConcurrency int
	now               func() time.Time
	newID             func() string
	log               *slog.Logger
}

// Option customises a Service.
type Option func(*Service)

// WithUploadConcurrency bounds how many images of one request upload at once.
func WithUploadConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.uploadConcurrency = n
		}
	}
}

// WithClock overrides the event timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger overrides obs.Logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// New wires the orchestrator to its three collaborators.
func New(assets AssetStore, store CatalogStore, pub Publisher, opts ...Option) *Service {
	s := &Service{
		assets:            assets,
		store:             store,
		pub:               pub,
		uploadConcurrency: model.MaxImages,
		now:               func() time.Time { return time.Now().UTC() },
		newID:             uuid.NewString,
	}
	for _, o := range opts {
		o(s)
	}
	if s.log == nil {
		s.log = obs.Logger
	}
	return s
}

// Create validates in, uploads blobs, persists the product owned by actor
// and announces it. Failures before the record is committed leave no
// uploaded image behind.
func (s *Service) Create(ctx context.Context, actor model.Actor, in model.ProductInput, blobs []model.Blob) (Result, error) {
	const op = "catalog.Create"
	if err := requireSeller(actor); err != nil {
		return Result{}, &Error{Kind: KindForbidden, Op: op, Err: err}
	}
	in.Normalize()
	if err := in.Validate(len(blobs)); err != nil {
		return Result{}, &Error{Kind: KindValidation, Op: op, Err: err}
	}

	images, err := s.uploadAll(ctx, blobs)
	if err != nil {
		return Result{}, &Error{Kind: KindAssetStore, Op: op, Err: err}
	}

	p, err := s.store.Create(ctx, in.Product(actor.ID, images))
	if err != nil {
		s.compensate(ctx, "", images)
		return Result{}, s.persistError(op, err)
	}
	obs.ProductsCreated.Add(1)
	s.log.Info("product_created",
		"request_id", obs.RequestID(ctx),
		"product_id", p.ID,
		"seller", p.Seller,
		"images", len(p.Images),
	)

	failed := s.publish(ctx,
		model.DomainEvent{Topic: model.TopicProductCreated, Key: p.ID, Payload: p},
		model.DomainEvent{Topic: model.TopicNotificationCreated, Key: p.ID, Payload: model.ProductCreatedNotification{
			Username: actor.Username,
			Title:    p.Title,
			Price:    p.Price.Amount,
			Email:    actor.Email,
		}},
	)
	return s.result(p, failed), nil
}

// Update merges patch over the product owned by actor. When blobs are
// supplied the current images are released first and replaced by the new
// upload batch; if that batch fails the record is left untouched and may
// reference released assets until the seller retries.
func (s *Service) Update(ctx context.Context, actor model.Actor, id string, patch model.ProductPatch, blobs []model.Blob) (Result, error) {
	const op = "catalog.Update"
	if err := requireSeller(actor); err != nil {
		return Result{}, &Error{Kind: KindForbidden, Op: op, Err: err}
	}
	cur, err := s.load(ctx, op, id, actor)
	if err != nil {
		return Result{}, err
	}
	patch.Normalize()
	if err := patch.Validate(len(blobs)); err != nil {
		return Result{}, &Error{Kind: KindValidation, Op: op, Err: err}
	}

	next := patch.Apply(cur)
	var uploaded []model.Image
	if len(blobs) > 0 {
		if err := s.checkVersion(ctx, cur); err != nil {
			return Result{}, s.persistError(op, err)
		}
		s.release(ctx, cur.ID, cur.Images)
		uploaded, err = s.uploadAll(ctx, blobs)
		if err != nil {
			s.log.Warn("product_images_released_without_replacement",
				"request_id", obs.RequestID(ctx),
				"product_id", cur.ID,
				"stale_file_ids", cur.FileIDs(),
				"error", err,
			)
			return Result{}, &Error{Kind: KindAssetStore, Op: op, Err: err}
		}
		next.Images = uploaded
	}

	saved, err := s.store.Update(ctx, next, cur.Version)
	if err != nil {
		s.compensate(ctx, cur.ID, uploaded)
		if len(blobs) > 0 && errors.Is(err, ErrStaleVersion) {
			s.reportReleasedInUse(ctx, cur)
		}
		return Result{}, s.persistError(op, err)
	}
	obs.ProductsUpdated.Add(1)
	s.log.Info("product_updated",
		"request_id", obs.RequestID(ctx),
		"product_id", saved.ID,
		"version", saved.Version,
		"images_replaced", len(blobs) > 0,
	)

	failed := s.publish(ctx, model.DomainEvent{Topic: model.TopicProductUpdated, Key: saved.ID, Payload: saved})
	return s.result(saved, failed), nil
}

// Delete removes the product owned by actor. Image cleanup is best-effort
// and never blocks removal of the record. The deleted event is published
// before the record is removed so consumers racing the delete can still
// resolve the id.
func (s *Service) Delete(ctx context.Context, actor model.Actor, id string) (Result, error) {
	const op = "catalog.Delete"
	if err := requireSeller(actor); err != nil {
		return Result{}, &Error{Kind: KindForbidden, Op: op, Err: err}
	}
	cur, err := s.load(ctx, op, id, actor)
	if err != nil {
		return Result{}, err
	}

	s.release(ctx, cur.ID, cur.Images)
	failed := s.publish(ctx, model.DomainEvent{
		Topic:   model.TopicProductDeleted,
		Key:     cur.ID,
		Payload: model.ProductDeleted{ID: cur.ID},
	})

	if err := s.store.Delete(ctx, cur.ID); err != nil {
		return Result{}, s.persistError(op, err)
	}
	obs.ProductsDeleted.Add(1)
	s.log.Info("product_deleted", "request_id", obs.RequestID(ctx), "product_id", cur.ID)
	return s.result(cur, failed), nil
}

// load fetches id and checks that actor owns it.
func (s *Service) load(ctx context.Context, op, id string, actor model.Actor) (model.Product, error) {
	cur, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, ErrNoRecord) {
			return model.Product{}, &Error{Kind: KindNotFound, Op: op, Err: err}
		}
		return model.Product{}, &Error{Kind: KindPersistence, Op: op, Err: err}
	}
	if cur.Seller != actor.ID {
		return model.Product{}, &Error{Kind: KindForbidden, Op: op, Err: errNotOwner}
	}
	return cur, nil
}

// checkVersion fails with ErrStaleVersion when the stored record moved past
// cur since it was loaded.
func (s *Service) checkVersion(ctx context.Context, cur model.Product) error {
	latest, err := s.store.GetByID(ctx, cur.ID)
	if err != nil {
		return err
	}
	if latest.Version != cur.Version {
		return errors.Wrapf(ErrStaleVersion, "loaded %d, stored %d", cur.Version, latest.Version)
	}
	return nil
}

// reportReleasedInUse logs the released images the committed record still
// references after this update lost the version race.
func (s *Service) reportReleasedInUse(ctx context.Context, cur model.Product) {
	latest, err := s.store.GetByID(context.WithoutCancel(ctx), cur.ID)
	if err != nil {
		return
	}
	released := make(map[string]bool, len(cur.Images))
	for _, id := range cur.FileIDs() {
		released[id] = true
	}
	var stale []string
	for _, id := range latest.FileIDs() {
		if released[id] {
			stale = append(stale, id)
		}
	}
	if len(stale) == 0 {
		return
	}
	s.log.Warn("product_images_released_by_stale_update",
		"request_id", obs.RequestID(ctx),
		"product_id", cur.ID,
		"version", latest.Version,
		"stale_file_ids", stale,
	)
}

func (s *Service) persistError(op string, err error) error {
	switch {
	case errors.Is(err, ErrInvariant):
		return &Error{Kind: KindValidation, Op: op, Err: err}
	case errors.Is(err, ErrNoRecord):
		return &Error{Kind: KindNotFound, Op: op, Err: err}
	case errors.Is(err, ErrStaleVersion):
		return &Error{Kind: KindConflict, Op: op, Err: err}
	default:
		return &Error{Kind: KindPersistence, Op: op, Err: err}
	}
}

// uploadAll uploads blobs concurrently and returns the images in blob
// order. It waits for every upload to settle; if any failed, the ones that
// succeeded are deleted in reverse order of completion.
func (s *Service) uploadAll(ctx context.Context, blobs []model.Blob) ([]model.Image, error) {
	images := make([]model.Image, len(blobs))
	if len(blobs) == 0 {
		return images, nil
	}

	var (
		mu   sync.Mutex
		done []model.Image
		g    errgroup.Group
	)
	g.SetLimit(s.uploadConcurrency)
	for i, b := range blobs {
		i, b := i, b
		g.Go(func() error {
			im, err := s.assets.Upload(ctx, b)
			if err != nil {
				return errors.Wrapf(err, "upload image %d", i)
			}
			images[i] = im
			mu.Lock()
			done = append(done, im)
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		s.compensate(ctx, "", done)
		return nil, err
	}
	return images, nil
}

// compensate deletes images uploaded by the current invocation, newest
// first. Failures are logged and swallowed.
func (s *Service) compensate(ctx context.Context, productID string, images []model.Image) {
	if len(images) == 0 {
		return
	}
	ctx = context.WithoutCancel(ctx)
	for i := len(images) - 1; i >= 0; i-- {
		fileID := images[i].FileID
		err := s.assets.Delete(ctx, fileID)
		if err != nil && !errors.Is(err, ErrNoAsset) {
			obs.CompensationFailures.Add(1)
			s.log.Error("compensation_delete_failed",
				"request_id", obs.RequestID(ctx),
				"product_id", productID,
				"file_id", fileID,
				"error", err,
			)
			continue
		}
		obs.Compensations.Add(1)
	}
}

// release deletes images the product no longer needs. Failures leave the
// asset orphaned and are only logged.
func (s *Service) release(ctx context.Context, productID string, images []model.Image) {
	ctx = context.WithoutCancel(ctx)
	for _, im := range images {
		err := s.assets.Delete(ctx, im.FileID)
		if err == nil {
			continue
		}
		if errors.Is(err, ErrNoAsset) {
			s.log.Debug("asset_already_deleted", "product_id", productID, "file_id", im.FileID)
			continue
		}
		s.log.Warn("asset_release_failed",
			"request_id", obs.RequestID(ctx),
			"product_id", productID,
			"file_id", im.FileID,
			"error", err,
		)
	}
}

// publish emits events in order and returns the topics that failed. The
// record is already committed, so publishing is detached from request
// cancellation and never fails the request.
func (s *Service) publish(ctx context.Context, events ...model.DomainEvent) []string {
	ctx = context.WithoutCancel(ctx)
	var failed []string
	for _, ev := range events {
		ev.ID = s.newID()
		ev.ProducedAt = s.now()
		if err := s.pub.Publish(ctx, ev); err != nil {
			obs.PublishFailures.Add(1)
			s.log.Error("publish_failed",
				"request_id", obs.RequestID(ctx),
				"topic", ev.Topic,
				"key", ev.Key,
				"event_id", ev.ID,
				"error", err,
			)
			failed = append(failed, ev.Topic)
		}
	}
	return failed
}

func (s *Service) result(p model.Product, failed []string) Result {
	r := Result{Product: p, FailedTopics: failed}
	if r.Degraded() {
		obs.DegradedResults.Add(1)
	}
	return r
}

func requireSeller(actor model.Actor) error {
	if actor.ID == "" || !actor.HasRole(model.RoleSeller) {
		return errNotSeller
	}
	return nil
}
