package server

import (
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"transit-observer/src/models"
	"transit-observer/src/prediction"
	"transit-observer/src/routemodel"
	"transit-observer/src/store"
)

// -----------------------------------------------------------------------------
// Fakes
// -----------------------------------------------------------------------------

// recordingSink captures everything the hub pushes at it.
type recordingSink struct {
	payloads []interface{}
	fail     bool
}

func (r *recordingSink) Send(v interface{}) error {
	if r.fail {
		return fmt.Errorf("boom")
	}
	r.payloads = append(r.payloads, v)
	return nil
}

func (r *recordingSink) lastData(t *testing.T) *models.MLatestData {
	t.Helper()
	if len(r.payloads) == 0 {
		t.Fatal("sink received nothing")
	}
	data, ok := r.payloads[len(r.payloads)-1].(*models.MLatestData)
	if !ok {
		t.Fatalf("last payload is %T, expected *MLatestData", r.payloads[len(r.payloads)-1])
	}
	return data
}

type hubCatalog struct{}

func (hubCatalog) GetSegments(routeID int) ([]models.MRouteSegment, error) {
	if routeID != 1 && routeID != 2 {
		return nil, fmt.Errorf("unknown route %d", routeID)
	}
	base := routeID * 100
	return []models.MRouteSegment{
		{RouteID: routeID, StopID: base + 1, SequenceOrder: 1, Latitude: 19.43, Longitude: -99.13, NominalTravelTimeToNextSeconds: 300},
		{RouteID: routeID, StopID: base + 2, SequenceOrder: 2, Latitude: 19.45, Longitude: -99.12, NominalTravelTimeToNextSeconds: 0},
	}, nil
}

func (hubCatalog) RouteIDs() ([]int, error) { return []int{1, 2}, nil }
func (hubCatalog) Close() error             { return nil }

// -----------------------------------------------------------------------------

func newTestHub(t *testing.T) (*BroadcastHub, *store.LiveLocationStore) {
	t.Helper()
	locations := store.NewLiveLocationStore()
	routes := routemodel.NewRouteModel(hubCatalog{})
	engine := prediction.NewEngine(locations, routes, store.NewTrafficSignalStore(), nil, nil, prediction.Options{})
	return NewBroadcastHub(locations, engine, nil), locations
}

func seedVehicles(locations *store.LiveLocationStore) {
	locations.Set(models.MVehicleState{VehicleID: 11, RouteID: 1, Latitude: 19.44, Longitude: -99.125, Speed: 30}, time.Hour)
	locations.Set(models.MVehicleState{VehicleID: 22, RouteID: 2, Latitude: 19.44, Longitude: -99.125, Speed: 30}, time.Hour)
}

// -----------------------------------------------------------------------------

func TestRegisterSendsInitialSnapshot(t *testing.T) {
	hub, locations := newTestHub(t)
	seedVehicles(locations)

	sink := &recordingSink{}
	hub.Register(sink)

	data := sink.lastData(t)
	if data.Type != "update" {
		t.Errorf("initial payload type = %q, expected update", data.Type)
	}
	if len(data.BusLocations) != 2 {
		t.Errorf("initial payload carries %d vehicles, expected 2", len(data.BusLocations))
	}
	if hub.SubscriberCount() != 1 {
		t.Errorf("subscriber count = %d", hub.SubscriberCount())
	}
}

func TestTickFansOutToAllSubscribers(t *testing.T) {
	hub, locations := newTestHub(t)
	seedVehicles(locations)

	a := &recordingSink{}
	b := &recordingSink{}
	hub.Register(a)
	hub.Register(b)

	before := len(a.payloads)
	hub.Tick()

	if len(a.payloads) != before+1 || len(b.payloads) != before+1 {
		t.Errorf("tick did not reach every subscriber: %d / %d", len(a.payloads), len(b.payloads))
	}
}

func TestTickDropsFailingSubscriberButNotOthers(t *testing.T) {
	hub, locations := newTestHub(t)
	seedVehicles(locations)

	healthy := &recordingSink{}
	broken := &recordingSink{}

	hub.Register(healthy)
	// Register would already drop a failing sink, so break it afterwards
	hub.Register(broken)
	broken.fail = true

	if hub.SubscriberCount() != 2 {
		t.Fatalf("precondition: want 2 subscribers, got %d", hub.SubscriberCount())
	}

	hub.Tick()

	if hub.SubscriberCount() != 1 {
		t.Errorf("failing subscriber not pruned, count = %d", hub.SubscriberCount())
	}

	// The healthy subscriber keeps receiving on later ticks
	before := len(healthy.payloads)
	hub.Tick()
	if len(healthy.payloads) != before+1 {
		t.Error("healthy subscriber stopped receiving after a peer failed")
	}
}

func TestTickWithNoSubscribersIsANoOp(t *testing.T) {
	hub, locations := newTestHub(t)
	seedVehicles(locations)

	// Nothing to assert on directly; it must simply not panic and not
	// change state.
	hub.Tick()
	if hub.SubscriberCount() != 0 {
		t.Errorf("subscriber count = %d", hub.SubscriberCount())
	}
}

// -----------------------------------------------------------------------------
// Subscription filters
// -----------------------------------------------------------------------------

func subscribeMsg(t *testing.T, subType string, routeID, stopID int) []byte {
	t.Helper()
	raw, err := json.Marshal(models.MClientCommand{
		Type: "subscribe", SubscriptionType: subType, RouteID: routeID, StopID: stopID,
	})
	if err != nil {
		t.Fatal(err)
	}
	return raw
}

func TestRouteSubscriptionFiltersBothSections(t *testing.T) {
	hub, locations := newTestHub(t)
	seedVehicles(locations)
	hub.engine.PredictAll()

	sink := &recordingSink{}
	hub.Register(sink)
	hub.HandleClientMessage(sink, subscribeMsg(t, SubscribeRoute, 1, 0))

	data := sink.lastData(t)
	if data.Type != "route_data" {
		t.Errorf("payload type = %q, expected route_data", data.Type)
	}
	for _, loc := range data.BusLocations {
		if loc.RouteID != 1 {
			t.Errorf("foreign route vehicle %d in route view", loc.VehicleID)
		}
	}
	if len(data.BusLocations) != 1 {
		t.Errorf("route view carries %d vehicles, expected 1", len(data.BusLocations))
	}
	for _, p := range data.Predictions {
		if p.RouteID != 1 {
			t.Errorf("foreign route prediction in route view: %+v", p)
		}
	}
}

func TestStopSubscriptionCarriesOnlyPredictions(t *testing.T) {
	hub, locations := newTestHub(t)
	seedVehicles(locations)
	hub.engine.PredictAll()

	sink := &recordingSink{}
	hub.Register(sink)
	hub.HandleClientMessage(sink, subscribeMsg(t, SubscribeStop, 0, 102))

	data := sink.lastData(t)
	if data.Type != "stop_data" {
		t.Errorf("payload type = %q, expected stop_data", data.Type)
	}
	if len(data.BusLocations) != 0 {
		t.Errorf("stop view must not carry vehicle positions, got %d", len(data.BusLocations))
	}
	for _, p := range data.Predictions {
		if p.StopID != 102 {
			t.Errorf("foreign stop prediction in stop view: %+v", p)
		}
	}
}

func TestPingAnswersPong(t *testing.T) {
	hub, _ := newTestHub(t)
	sink := &recordingSink{}
	hub.Register(sink)

	hub.HandleClientMessage(sink, []byte(`{"type":"ping"}`))

	last := sink.payloads[len(sink.payloads)-1]
	pong, ok := last.(models.MPong)
	if !ok {
		t.Fatalf("expected MPong, got %T", last)
	}
	if pong.Type != "pong" {
		t.Errorf("pong type = %q", pong.Type)
	}
}

func TestMalformedCommandIsIgnored(t *testing.T) {
	hub, _ := newTestHub(t)
	sink := &recordingSink{}
	hub.Register(sink)

	before := len(sink.payloads)
	hub.HandleClientMessage(sink, []byte(`{not json`))
	hub.HandleClientMessage(sink, []byte(`{"type":"mystery"}`))

	if len(sink.payloads) != before {
		t.Error("ignored commands must not produce payloads")
	}
	if hub.SubscriberCount() != 1 {
		t.Error("ignored commands must not disconnect the subscriber")
	}
}
