package network

import "time"

// EventType represents the type of network change.
type EventType string

const (
	EventTowerAdded   EventType = "TOWER_ADDED"
	EventTowerUpdated EventType = "TOWER_UPDATED"
	EventTowerDeleted EventType = "TOWER_DELETED"
	EventLinkCreated  EventType = "LINK_CREATED"
	EventLinkDeleted  EventType = "LINK_DELETED"
	EventLinkDropped  EventType = "LINK_DROPPED"
)

// Event records one change to the network.
type Event struct {
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
	TowerID   string    `json:"tower_id,omitempty"`
	LinkID    string    `json:"link_id,omitempty"`
	Detail    string    `json:"detail,omitempty"`
}

// addEvent stamps e and stores it in the ring buffer. Caller holds mu.
func (n *Network) addEvent(e Event) Event {
	e.Timestamp = n.now()
	if len(n.events) < n.maxEvents {
		n.events = append(n.events, e)
	} else {
		n.events[n.eventWriteAt] = e
		n.eventWriteAt = (n.eventWriteAt + 1) % n.maxEvents
	}
	return e
}

// getEventsOrdered returns events oldest first. Caller holds mu.
func (n *Network) getEventsOrdered() []Event {
	if len(n.events) == 0 {
		return nil
	}

	if len(n.events) < n.maxEvents {
		result := make([]Event, len(n.events))
		copy(result, n.events)
		return result
	}

	result := make([]Event, n.maxEvents)
	for i := 0; i < n.maxEvents; i++ {
		result[i] = n.events[(n.eventWriteAt+i)%n.maxEvents]
	}
	return result
}

// RecentEvents returns the last count events. A count of zero or less
// returns nil.
func (n *Network) RecentEvents(count int) []Event {
	if count <= 0 {
		return nil
	}

	n.mu.RLock()
	defer n.mu.RUnlock()

	all := n.getEventsOrdered()
	if len(all) <= count {
		return all
	}
	return all[len(all)-count:]
}
