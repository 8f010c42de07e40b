package queue

import (
	"context"

	"github.com/fairyhunter13/product-catalog-service/internal/eventbus"
)

// Job is one event awaiting projection. Done, when set, settles the
// delivery the job came from with the handler's result.
type Job struct {
	Seq      uint64
	Envelope eventbus.Envelope
	Done     func(err error)
}

// Handler processes a job. Returned errors are passed to Job.Done.
type Handler func(ctx context.Context, job Job) error
