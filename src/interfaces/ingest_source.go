package interfaces

import (
	"context"
	"sync"

	"transit-observer/src/models"
)

// -----------------------------------------------------------------------------
// IIngestSource produces vehicle position batches for the ingest driver.
// -----------------------------------------------------------------------------

type IIngestSource interface {

	// Name returns the unique identifier of the source
	Name() string

	// -----------------------------------------------------------------------------

	// Start begins producing batches.
	// ctx: controls the lifecycle (cancellation stops the source)
	// positions: channel to push vehicle state batches to
	// traffic: channel to push route traffic signals to
	// wg: WaitGroup the source's goroutine signals on full stop. On an error
	// return the source must leave wg untouched; the caller owns the
	// compensating Done.
	Start(ctx context.Context, positions chan<- []models.MVehicleState, traffic chan<- models.MTrafficSignal, wg *sync.WaitGroup) error

	// -----------------------------------------------------------------------------

	// Stop terminates the source (cancelling the context passed to Start is
	// usually enough; Stop exists for manual teardown).
	Stop() error
}
