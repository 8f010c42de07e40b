package obs

import "expvar"

// Counters published under /debug/vars.
var (
	ProductsCreated      = expvar.NewInt("products_created")
	ProductsUpdated      = expvar.NewInt("products_updated")
	ProductsDeleted      = expvar.NewInt("products_deleted")
	DegradedResults      = expvar.NewInt("degraded_results")
	PublishFailures      = expvar.NewInt("publish_failures")
	Compensations        = expvar.NewInt("compensations")
	CompensationFailures = expvar.NewInt("compensation_failures")
	EventsIndexed        = expvar.NewInt("events_indexed")
	EventsSkipped        = expvar.NewInt("events_skipped")
)
