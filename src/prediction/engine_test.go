package prediction

import (
	"fmt"
	"testing"
	"time"

	"transit-observer/src/models"
	"transit-observer/src/routemodel"
	"transit-observer/src/store"
)

// fakeCatalog feeds the route model a fixed three-stop line where the leg
// from stop 2 to stop 3 takes 600 nominal seconds.
type fakeCatalog struct {
	routes map[int][]models.MRouteSegment
}

func (f *fakeCatalog) GetSegments(routeID int) ([]models.MRouteSegment, error) {
	segs, ok := f.routes[routeID]
	if !ok {
		return nil, fmt.Errorf("unknown route %d", routeID)
	}
	return segs, nil
}

func (f *fakeCatalog) RouteIDs() ([]int, error) {
	ids := make([]int, 0, len(f.routes))
	for id := range f.routes {
		ids = append(ids, id)
	}
	return ids, nil
}

func (f *fakeCatalog) Close() error { return nil }

func threeStopCatalog() *fakeCatalog {
	return &fakeCatalog{routes: map[int][]models.MRouteSegment{
		1: {
			{RouteID: 1, StopID: 101, SequenceOrder: 1, Latitude: 19.4326, Longitude: -99.1332, NominalTravelTimeToNextSeconds: 420},
			{RouteID: 1, StopID: 102, SequenceOrder: 2, Latitude: 19.4410, Longitude: -99.1285, NominalTravelTimeToNextSeconds: 600},
			{RouteID: 1, StopID: 103, SequenceOrder: 3, Latitude: 19.4500, Longitude: -99.1200, NominalTravelTimeToNextSeconds: 0},
		},
	}}
}

func newTestEngine(t *testing.T) (*Engine, *store.LiveLocationStore, *store.TrafficSignalStore, time.Time) {
	t.Helper()
	locations := store.NewLiveLocationStore()
	traffic := store.NewTrafficSignalStore()
	routes := routemodel.NewRouteModel(threeStopCatalog())

	e := NewEngine(locations, routes, traffic, nil, nil, Options{})
	base := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	e.now = func() time.Time { return base }
	return e, locations, traffic, base
}

func TestPredictMissingVehicleYieldsEmpty(t *testing.T) {
	e, _, _, _ := newTestEngine(t)

	preds := e.Predict(1, 99)
	if len(preds) != 0 {
		t.Errorf("expected no predictions for an unknown vehicle, got %d", len(preds))
	}
}

func TestPredictAtStopAccumulatesNominalTimes(t *testing.T) {
	e, locations, _, base := newTestEngine(t)

	// Vehicle parked exactly on stop 102
	locations.Set(models.MVehicleState{
		VehicleID: 5, RouteID: 1,
		Latitude: 19.4410, Longitude: -99.1285,
		Speed: 30, ObservedAt: base,
	}, time.Hour)

	preds := e.Predict(1, 5)
	if len(preds) != 2 {
		t.Fatalf("expected predictions for stops 102 and 103, got %d", len(preds))
	}

	if preds[0].StopID != 102 || preds[1].StopID != 103 {
		t.Fatalf("unexpected stop order: %d, %d", preds[0].StopID, preds[1].StopID)
	}
	// At the stop itself the arrival is immediate
	if !preds[0].PredictedArrivalTime.Equal(base) {
		t.Errorf("stop 102 arrival = %v, expected now", preds[0].PredictedArrivalTime)
	}
	// The next stop inherits the 600 s nominal leg
	if !preds[1].PredictedArrivalTime.Equal(base.Add(600 * time.Second)) {
		t.Errorf("stop 103 arrival = %v, expected now+600s", preds[1].PredictedArrivalTime)
	}

	for _, p := range preds {
		if p.PredictedArrivalTime.Before(p.ComputedAt) {
			t.Errorf("arrival %v precedes computation %v", p.PredictedArrivalTime, p.ComputedAt)
		}
	}
}

func TestPredictHonorsHorizon(t *testing.T) {
	locations := store.NewLiveLocationStore()
	routes := routemodel.NewRouteModel(threeStopCatalog())
	e := NewEngine(locations, routes, store.NewTrafficSignalStore(), nil, nil, Options{HorizonStops: 1})

	locations.Set(models.MVehicleState{
		VehicleID: 5, RouteID: 1, Latitude: 19.4326, Longitude: -99.1332, Speed: 30,
	}, time.Hour)

	preds := e.Predict(1, 5)
	if len(preds) != 1 {
		t.Errorf("horizon 1 should yield a single prediction, got %d", len(preds))
	}
}

func TestPredictCachesWithinTTL(t *testing.T) {
	e, locations, _, base := newTestEngine(t)

	locations.Set(models.MVehicleState{
		VehicleID: 5, RouteID: 1, Latitude: 19.4400, Longitude: -99.1290, Speed: 30,
	}, time.Hour)

	first := e.Predict(1, 5)
	if len(first) == 0 {
		t.Fatal("expected predictions")
	}

	// Thirty seconds later, still within the 60 s cache TTL
	e.now = func() time.Time { return base.Add(30 * time.Second) }
	second := e.Predict(1, 5)

	if !second[0].ComputedAt.Equal(first[0].ComputedAt) {
		t.Error("cached result was recomputed within the TTL")
	}

	// Past the TTL the engine recomputes
	e.now = func() time.Time { return base.Add(61 * time.Second) }
	third := e.Predict(1, 5)
	if third[0].ComputedAt.Equal(first[0].ComputedAt) {
		t.Error("stale cache entry served past the TTL")
	}
}

type countingEngineMetrics struct {
	cacheHits int
}

func (m *countingEngineMetrics) PredictionCacheHitInc() { m.cacheHits++ }

func TestPredictCountsCacheHits(t *testing.T) {
	counter := &countingEngineMetrics{}
	e, locations, _, base := newTestEngine(t)
	e.opts.Metrics = counter

	locations.Set(models.MVehicleState{
		VehicleID: 5, RouteID: 1, Latitude: 19.4400, Longitude: -99.1290, Speed: 30,
	}, time.Hour)

	e.Predict(1, 5)
	if counter.cacheHits != 0 {
		t.Fatalf("first Predict is a compute, not a hit; got %d hits", counter.cacheHits)
	}

	e.now = func() time.Time { return base.Add(10 * time.Second) }
	e.Predict(1, 5)
	e.Predict(1, 5)
	if counter.cacheHits != 2 {
		t.Errorf("cache hits = %d, want 2", counter.cacheHits)
	}

	// Past the TTL the next Predict recomputes instead of hitting
	e.now = func() time.Time { return base.Add(61 * time.Second) }
	e.Predict(1, 5)
	if counter.cacheHits != 2 {
		t.Errorf("expired entry counted as a hit; hits = %d, want 2", counter.cacheHits)
	}
}

func TestInvalidateForcesRecompute(t *testing.T) {
	e, locations, _, base := newTestEngine(t)

	locations.Set(models.MVehicleState{
		VehicleID: 5, RouteID: 1, Latitude: 19.4400, Longitude: -99.1290, Speed: 30,
	}, time.Hour)

	first := e.Predict(1, 5)

	e.now = func() time.Time { return base.Add(5 * time.Second) }
	e.Invalidate(1, 5)
	second := e.Predict(1, 5)

	if second[0].ComputedAt.Equal(first[0].ComputedAt) {
		t.Error("Invalidate did not drop the cached result")
	}
}

func TestPredictUsesTrafficSignal(t *testing.T) {
	e, locations, traffic, _ := newTestEngine(t)

	// Away from stop 102 so the first leg is non-trivial
	locations.Set(models.MVehicleState{
		VehicleID: 5, RouteID: 1, Latitude: 19.4400, Longitude: -99.1290, Speed: 30,
	}, time.Hour)

	noSignal := e.Predict(1, 5)

	// Severe congestion halves the effective speed, pushing arrivals out
	traffic.Set(models.MTrafficSignal{RouteID: 1, Level: models.TrafficSevere, AverageSpeedKmh: 5}, time.Hour)
	e.Invalidate(1, 5)
	congested := e.Predict(1, 5)

	if !congested[0].PredictedArrivalTime.After(noSignal[0].PredictedArrivalTime) {
		t.Errorf("congestion should delay the arrival: %v vs %v",
			congested[0].PredictedArrivalTime, noSignal[0].PredictedArrivalTime)
	}
}

func TestPredictAllSweepsActiveVehicles(t *testing.T) {
	e, locations, _, _ := newTestEngine(t)

	locations.Set(models.MVehicleState{VehicleID: 1, RouteID: 1, Latitude: 19.4400, Longitude: -99.1290, Speed: 30}, time.Hour)
	locations.Set(models.MVehicleState{VehicleID: 2, RouteID: 1, Latitude: 19.4490, Longitude: -99.1210, Speed: 25}, time.Hour)

	if n := e.PredictAll(); n == 0 {
		t.Error("sweep over active vehicles produced nothing")
	}

	snap := e.CachedSnapshot()
	if len(snap) == 0 {
		t.Error("sweep results missing from the cached snapshot")
	}
	for _, p := range snap {
		if p.VehicleID != 1 && p.VehicleID != 2 {
			t.Errorf("unexpected vehicle %d in snapshot", p.VehicleID)
		}
	}
}

func TestCachedSnapshotDropsPastArrivals(t *testing.T) {
	e, locations, _, base := newTestEngine(t)

	// Parked on stop 102: that stop's arrival equals now and must not be
	// broadcast, while stop 103 (now+600s) must be.
	locations.Set(models.MVehicleState{
		VehicleID: 5, RouteID: 1, Latitude: 19.4410, Longitude: -99.1285, Speed: 30,
	}, time.Hour)
	e.Predict(1, 5)

	snap := e.CachedSnapshot()
	for _, p := range snap {
		if !p.PredictedArrivalTime.After(base) {
			t.Errorf("snapshot contains a non-future arrival: %+v", p)
		}
	}
	if len(snap) != 1 || snap[0].StopID != 103 {
		t.Errorf("expected only stop 103 in the snapshot, got %+v", snap)
	}
}
