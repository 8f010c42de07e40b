// Package indexer projects catalog events into the search index.
package indexer

import (
	"context"
	"log/slog"

	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/eventbus"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
	"github.com/fairyhunter13/product-catalog-service/internal/queue"
	"github.com/fairyhunter13/product-catalog-service/internal/search"
)

// Applier applies one event to a projection.
type Applier interface {
	Apply(ctx context.Context, env eventbus.Envelope) (search.Outcome, error)
}

type Indexer struct {
	apply Applier
	log   *slog.Logger
}

func New(apply Applier) *Indexer {
	return &Indexer{apply: apply, log: obs.Logger}
}

// Handle is a queue.Handler. Workers do not keep per-product order, so two
// events for one product may be applied in either order; the document's
// external version, taken from the record version, is what orders them.
func (ix *Indexer) Handle(ctx context.Context, job queue.Job) error {
	env := job.Envelope
	out, err := ix.apply.Apply(ctx, env)
	if err != nil {
		ix.log.Error("index_failed", "seq", job.Seq, "event_id", env.ID, "topic", env.Topic, "error", err)
		return err
	}
	switch out {
	case search.Applied:
		obs.EventsIndexed.Add(1)
	default:
		obs.EventsSkipped.Add(1)
	}
	ix.log.Debug("event_indexed", "seq", job.Seq, "event_id", env.ID, "topic", env.Topic, "outcome", out.String())
	return nil
}

// Delivery is a message that can be settled with the broker.
type Delivery interface {
	Ack() error
	Requeue() error
}

// Settle returns the Job.Done for d. Successful and malformed events are
// acked, anything else goes back to the queue.
func Settle(d Delivery) func(error) {
	return func(err error) {
		var serr error
		if err == nil || errors.Is(err, eventbus.ErrMalformed) {
			serr = d.Ack()
		} else {
			serr = d.Requeue()
		}
		if serr != nil {
			obs.Logger.Error("settle_failed", "error", serr)
		}
	}
}

// Feed queues every message from the consumer until ctx is done. Messages
// refused by a closing queue are requeued on the broker.
func Feed(ctx context.Context, c *eventbus.RabbitConsumer, mgr *queue.Manager) error {
	return c.Run(ctx, func(m eventbus.Message) {
		if !mgr.Enqueue(queue.Job{Envelope: m.Envelope, Done: Settle(m)}) {
			_ = m.Requeue()
		}
	})
}
