package eventbus

import (
	"context"
	"log/slog"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
	"github.com/fairyhunter13/product-catalog-service/internal/obs"
)

// LogPublisher writes events to the log instead of a broker. It is used
// when no bus is configured.
type LogPublisher struct {
	log *slog.Logger
}

func NewLogPublisher() *LogPublisher { return &LogPublisher{log: obs.Logger} }

func (p *LogPublisher) Publish(ctx context.Context, ev model.DomainEvent) error {
	body, err := Encode(ev)
	if err != nil {
		return err
	}
	p.log.Info("event_logged", "topic", ev.Topic, "key", ev.Key, "event_id", ev.ID, "body", string(body))
	return nil
}
