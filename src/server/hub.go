package server

import (
	"encoding/json"
	"sync"
	"time"

	"transit-observer/src/logger"
	"transit-observer/src/models"
	"transit-observer/src/prediction"
	"transit-observer/src/store"
)

// -----------------------------------------------------------------------------
// Hub Pattern Implementation
//
// BroadcastHub owns the subscriber set and the fan-out. Every broadcast tick
// it assembles one snapshot from the live stores and pushes each subscriber
// the view its filter asks for. A subscriber whose send fails (buffer full,
// connection gone) is dropped so the hub never blocks on a slow consumer.
// -----------------------------------------------------------------------------

// ISnapshotSink is where the hub pushes payloads. The websocket Client
// implements it with a buffered channel; tests implement it directly.
type ISnapshotSink interface {
	Send(v interface{}) error
}

// Subscription filter modes
const (
	SubscribeAll   = "all"
	SubscribeRoute = "route"
	SubscribeStop  = "stop"
)

type subscription struct {
	mode    string
	routeID int
	stopID  int
}

// HubMetrics is the slice of the metrics surface the hub touches.
type HubMetrics interface {
	SetSubscribers(n int)
	SetActiveVehicles(n int)
	BroadcastInc()
}

type BroadcastHub struct {
	Logger  *logger.Logger
	Metrics HubMetrics

	locations *store.LiveLocationStore
	engine    *prediction.Engine

	mu   sync.RWMutex
	subs map[ISnapshotSink]subscription
}

// -----------------------------------------------------------------------------

func NewBroadcastHub(locations *store.LiveLocationStore, engine *prediction.Engine, m HubMetrics) *BroadcastHub {
	return &BroadcastHub{
		Logger:    logger.NewLogger("BroadcastHub"),
		Metrics:   m,
		locations: locations,
		engine:    engine,
		subs:      make(map[ISnapshotSink]subscription),
	}
}

// -----------------------------------------------------------------------------

// Register adds a subscriber with the default "all" filter and sends it the
// current snapshot so it does not wait a full tick for its first payload.
func (h *BroadcastHub) Register(sink ISnapshotSink) {
	h.mu.Lock()
	h.subs[sink] = subscription{mode: SubscribeAll}
	count := len(h.subs)
	h.mu.Unlock()

	if h.Metrics != nil {
		h.Metrics.SetSubscribers(count)
	}

	initial := h.fullSnapshot(time.Now())
	if err := sink.Send(initial); err != nil {
		h.Unregister(sink)
	}
}

// -----------------------------------------------------------------------------

func (h *BroadcastHub) Unregister(sink ISnapshotSink) {
	h.mu.Lock()
	delete(h.subs, sink)
	count := len(h.subs)
	h.mu.Unlock()

	if h.Metrics != nil {
		h.Metrics.SetSubscribers(count)
	}
}

// -----------------------------------------------------------------------------

func (h *BroadcastHub) SubscriberCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

// -----------------------------------------------------------------------------
// Client Message Handling
// -----------------------------------------------------------------------------

// HandleClientMessage processes one inbound control message. Malformed JSON
// and unknown types are ignored; the connection stays up.
func (h *BroadcastHub) HandleClientMessage(sink ISnapshotSink, message []byte) {
	var cmd models.MClientCommand
	if err := json.Unmarshal(message, &cmd); err != nil {
		h.Logger.Debug("Ignoring malformed client command: %v", err)
		return
	}

	switch cmd.Type {
	case "ping":
		_ = sink.Send(models.MPong{Type: "pong", Timestamp: time.Now()})

	case "subscribe":
		sub := subscription{mode: cmd.SubscriptionType, routeID: cmd.RouteID, stopID: cmd.StopID}
		switch sub.mode {
		case SubscribeRoute, SubscribeStop:
		default:
			sub = subscription{mode: SubscribeAll}
		}

		h.mu.Lock()
		if _, ok := h.subs[sink]; ok {
			h.subs[sink] = sub
		}
		h.mu.Unlock()

		// Answer with one targeted snapshot right away
		if err := sink.Send(h.viewFor(sub, h.fullSnapshot(time.Now()))); err != nil {
			h.Unregister(sink)
		}

	default:
		// Unknown message types are ignored on purpose
	}
}

// -----------------------------------------------------------------------------
// Fan-out
// -----------------------------------------------------------------------------

// Tick assembles one snapshot and fans it out. With no subscribers it does
// nothing at all, not even the snapshot assembly.
func (h *BroadcastHub) Tick() {
	h.mu.RLock()
	targets := make(map[ISnapshotSink]subscription, len(h.subs))
	for sink, sub := range h.subs {
		targets[sink] = sub
	}
	h.mu.RUnlock()

	if len(targets) == 0 {
		return
	}

	full := h.fullSnapshot(time.Now())
	if h.Metrics != nil {
		h.Metrics.SetActiveVehicles(len(full.BusLocations))
	}

	for sink, sub := range targets {
		if err := sink.Send(h.viewFor(sub, full)); err != nil {
			// Slow or dead consumer, prune it so the hub keeps moving
			h.Logger.Info("Dropping subscriber: %v", err)
			h.Unregister(sink)
		}
	}

	if h.Metrics != nil {
		h.Metrics.BroadcastInc()
	}
}

// -----------------------------------------------------------------------------

// fullSnapshot is the unfiltered view: every live vehicle and every cached,
// still-future prediction.
func (h *BroadcastHub) fullSnapshot(now time.Time) *models.MLatestData {
	return &models.MLatestData{
		Type:         "update",
		Timestamp:    now,
		BusLocations: h.locations.ActiveSnapshot(),
		Predictions:  h.engine.CachedSnapshot(),
	}
}

// -----------------------------------------------------------------------------

// viewFor derives a subscriber's payload from the full snapshot.
func (h *BroadcastHub) viewFor(sub subscription, full *models.MLatestData) *models.MLatestData {
	switch sub.mode {
	case SubscribeRoute:
		view := &models.MLatestData{
			Type:         "route_data",
			Timestamp:    full.Timestamp,
			BusLocations: []models.MVehicleState{},
			Predictions:  []models.MArrivalPrediction{},
		}
		for _, loc := range full.BusLocations {
			if loc.RouteID == sub.routeID {
				view.BusLocations = append(view.BusLocations, loc)
			}
		}
		for _, p := range full.Predictions {
			if p.RouteID == sub.routeID {
				view.Predictions = append(view.Predictions, p)
			}
		}
		return view

	case SubscribeStop:
		// Stop watchers only care about arrivals, not the whole fleet
		view := &models.MLatestData{
			Type:        "stop_data",
			Timestamp:   full.Timestamp,
			Predictions: []models.MArrivalPrediction{},
		}
		for _, p := range full.Predictions {
			if p.StopID == sub.stopID {
				view.Predictions = append(view.Predictions, p)
			}
		}
		return view
	}

	return full
}
