package interfaces

// -----------------------------------------------------------------------------
// IDataExchanger is the surface the broadcast driver talks to.
// -----------------------------------------------------------------------------

type IDataExchanger interface {
	// Tick composes one snapshot and fans it out to every open subscription.
	Tick()

	// -----------------------------------------------------------------------------
	// SubscriberCount reports how many subscriptions are open.
	SubscriberCount() int
}
