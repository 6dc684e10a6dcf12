package routemodel

import (
	"sort"
	"sync"

	"transit-observer/src/geo"
	"transit-observer/src/interfaces"
	"transit-observer/src/logger"
	"transit-observer/src/models"
)

// -----------------------------------------------------------------------------
// RouteModel caches the ordered segment list per route on top of the external
// route catalog. Routes are slowly-changing: segments are fetched once per
// route and kept until an explicit Refresh.
// -----------------------------------------------------------------------------

type RouteModel struct {
	catalog interfaces.IRouteCatalog
	Logger  *logger.Logger

	mu     sync.RWMutex
	routes map[int][]models.MRouteSegment
}

// -----------------------------------------------------------------------------

func NewRouteModel(catalog interfaces.IRouteCatalog) *RouteModel {
	return &RouteModel{
		catalog: catalog,
		Logger:  logger.NewLogger("RouteModel"),
		routes:  make(map[int][]models.MRouteSegment),
	}
}

// -----------------------------------------------------------------------------

// Segments returns the ordered segment list for a route, fetching from the
// catalog on first use. Unknown routes yield an empty slice.
func (m *RouteModel) Segments(routeID int) []models.MRouteSegment {
	m.mu.RLock()
	segs, ok := m.routes[routeID]
	m.mu.RUnlock()
	if ok {
		return segs
	}
	return m.Refresh(routeID)
}

// -----------------------------------------------------------------------------

// Refresh re-fetches a route from the catalog and replaces the cached copy.
// Segments are normalized to ascending sequence order.
func (m *RouteModel) Refresh(routeID int) []models.MRouteSegment {
	segs, err := m.catalog.GetSegments(routeID)
	if err != nil {
		m.Logger.Error("catalog fetch for route %d failed: %v", routeID, err)
		return nil
	}
	sort.Slice(segs, func(i, j int) bool {
		return segs[i].SequenceOrder < segs[j].SequenceOrder
	})
	m.mu.Lock()
	m.routes[routeID] = segs
	m.mu.Unlock()
	return segs
}

// -----------------------------------------------------------------------------

// Routes lists the route IDs the catalog knows about.
func (m *RouteModel) Routes() []int {
	ids, err := m.catalog.RouteIDs()
	if err != nil {
		m.Logger.Error("catalog route listing failed: %v", err)
		return nil
	}
	return ids
}

// -----------------------------------------------------------------------------

// NearestStop scans the route's segments for the one closest to the position.
// Strictly smaller distance wins; an exact distance tie resolves to the
// smaller sequence order, so repeated calls are deterministic.
func (m *RouteModel) NearestStop(routeID int, lat, lon float64) (models.MRouteSegment, float64, bool) {
	segs := m.Segments(routeID)
	if len(segs) == 0 {
		return models.MRouteSegment{}, 0, false
	}

	best := segs[0]
	bestDist := geo.Distance(lat, lon, segs[0].Latitude, segs[0].Longitude)
	for _, seg := range segs[1:] {
		d := geo.Distance(lat, lon, seg.Latitude, seg.Longitude)
		if d < bestDist {
			best = seg
			bestDist = d
		}
	}
	return best, bestDist, true
}

// -----------------------------------------------------------------------------

// SegmentsFrom returns the ordered suffix starting at (and including) the
// given sequence order.
func (m *RouteModel) SegmentsFrom(routeID, startSequenceOrder int) []models.MRouteSegment {
	segs := m.Segments(routeID)
	for i, seg := range segs {
		if seg.SequenceOrder >= startSequenceOrder {
			return segs[i:]
		}
	}
	return nil
}
