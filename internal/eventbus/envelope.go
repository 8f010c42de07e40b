// Package eventbus delivers catalog domain events to RabbitMQ or Kafka and
// consumes them back for downstream projections.
package eventbus

import (
	"encoding/json"
	"time"

	"github.com/go-faster/errors"

	"github.com/fairyhunter13/product-catalog-service/internal/model"
)

// Envelope is the wire form of a domain event.
type Envelope struct {
	ID         string          `json:"id"`
	Topic      string          `json:"topic"`
	Key        string          `json:"key"`
	Payload    json.RawMessage `json:"payload"`
	ProducedAt time.Time       `json:"producedAt"`
}

// Encode renders ev as an Envelope body.
func Encode(ev model.DomainEvent) ([]byte, error) {
	payload, err := json.Marshal(ev.Payload)
	if err != nil {
		return nil, errors.Wrapf(err, "encode %s payload", ev.Topic)
	}
	return json.Marshal(Envelope{
		ID:         ev.ID,
		Topic:      ev.Topic,
		Key:        ev.Key,
		Payload:    payload,
		ProducedAt: ev.ProducedAt,
	})
}

// ErrMalformed marks a body that can never be decoded.
var ErrMalformed = errors.New("malformed event")

func Decode(body []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Envelope{}, errors.Wrap(ErrMalformed, err.Error())
	}
	if env.Topic == "" || len(env.Payload) == 0 {
		return Envelope{}, errors.Wrap(ErrMalformed, "missing topic or payload")
	}
	return env, nil
}
