package interfaces

import "transit-observer/src/models"

// -----------------------------------------------------------------------------
// IRouteCatalog is the external route-catalog collaborator. Slowly-changing,
// read-only to the core.
// -----------------------------------------------------------------------------

type IRouteCatalog interface {

	// GetSegments returns the ordered segment list for a route. An unknown
	// route yields an empty slice and no error.
	GetSegments(routeID int) ([]models.MRouteSegment, error)

	// -----------------------------------------------------------------------------

	// RouteIDs lists every route the catalog knows about.
	RouteIDs() ([]int, error)

	// -----------------------------------------------------------------------------

	// Close releases the underlying connection or handle.
	Close() error
}
