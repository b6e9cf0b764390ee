// Package network owns the tower/link model: commands, validation, cascades,
// and an event log of every change.
package network

import (
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/litescript/ls-fresnel/internal/geo"
)

// frequencyEpsilon absorbs float noise from parsed user input when comparing
// two tower frequencies.
const frequencyEpsilon = 1e-9

// Tower is a radio site.
type Tower struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Position     geo.Coord `json:"position"`
	FrequencyGHz float64   `json:"frequency_ghz"`
}

// Link connects two towers on the same frequency. Towers are referenced by id.
type Link struct {
	ID           string  `json:"id"`
	TowerA       string  `json:"tower_a"`
	TowerB       string  `json:"tower_b"`
	FrequencyGHz float64 `json:"frequency_ghz"`
	DistanceKm   float64 `json:"distance_km"`
}

// Touches reports whether the link references tower id.
func (l Link) Touches(id string) bool {
	return l.TowerA == id || l.TowerB == id
}

// Other returns the endpoint that is not id.
func (l Link) Other(id string) string {
	if l.TowerA == id {
		return l.TowerB
	}
	return l.TowerA
}

// CountsRecorder receives tower and link totals after every change.
type CountsRecorder interface {
	SetNetworkCounts(towers, links int)
}

// Config holds configuration for the network.
type Config struct {
	DefaultFrequencyGHz float64
	MaxEvents           int
}

// DefaultConfig returns the stock configuration.
func DefaultConfig() Config {
	return Config{
		DefaultFrequencyGHz: 2.4,
		MaxEvents:           100,
	}
}

// Network is the single owner of towers and links.
type Network struct {
	mu sync.RWMutex

	cfg Config

	towers     map[string]*Tower
	towerOrder []string
	links      map[string]*Link
	linkOrder  []string

	// Ids are never reused, so a deleted T2 cannot come back as a new tower.
	nextTower int
	nextLink  int

	// Event log (ring buffer)
	events       []Event
	maxEvents    int
	eventWriteAt int

	recorder CountsRecorder
	now      func() time.Time
}

// New creates an empty network.
func New(cfg Config) *Network {
	if cfg.DefaultFrequencyGHz <= 0 {
		cfg.DefaultFrequencyGHz = DefaultConfig().DefaultFrequencyGHz
	}
	maxEvents := cfg.MaxEvents
	if maxEvents <= 0 {
		maxEvents = DefaultConfig().MaxEvents
	}
	return &Network{
		cfg:       cfg,
		towers:    make(map[string]*Tower),
		links:     make(map[string]*Link),
		maxEvents: maxEvents,
		events:    make([]Event, 0, maxEvents),
		now:       time.Now,
	}
}

// SetRecorder installs a recorder for tower/link counts.
func (n *Network) SetRecorder(r CountsRecorder) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.recorder = r
	n.recordCounts()
}

// DefaultFrequency returns the frequency given to new towers.
func (n *Network) DefaultFrequency() float64 {
	return n.cfg.DefaultFrequencyGHz
}

// Result describes what a command changed.
type Result struct {
	Tower         *Tower
	Link          *Link
	RemovedTowers []string
	RemovedLinks  []string
	Events        []Event
}

// Changed reports whether the command modified state.
func (r Result) Changed() bool {
	return len(r.Events) > 0
}

// AddTower places a tower at pos. freqGHz <= 0 selects the configured default.
func (n *Network) AddTower(pos geo.Coord, freqGHz float64) (Result, error) {
	if !pos.Valid() {
		return Result{}, invalid(ReasonInvalidPosition, "position %v is out of range", pos)
	}
	if math.IsNaN(freqGHz) || math.IsInf(freqGHz, 0) {
		return Result{}, invalid(ReasonInvalidFrequency, "frequency must be a positive number of GHz")
	}
	if freqGHz <= 0 {
		freqGHz = n.cfg.DefaultFrequencyGHz
	}

	n.mu.Lock()
	defer n.mu.Unlock()

	n.nextTower++
	t := &Tower{
		ID:           fmt.Sprintf("T%d", n.nextTower),
		Name:         fmt.Sprintf("Tower %d", n.nextTower),
		Position:     pos,
		FrequencyGHz: freqGHz,
	}
	n.towers[t.ID] = t
	n.towerOrder = append(n.towerOrder, t.ID)

	res := Result{Tower: copyTower(t)}
	res.Events = append(res.Events, n.addEvent(Event{Type: EventTowerAdded, TowerID: t.ID}))
	n.recordCounts()
	return res, nil
}

// UpdateTower rewrites a tower's name and frequency. Links whose partner no
// longer shares the new frequency are dropped. Unknown ids are a no-op.
func (n *Network) UpdateTower(id, name string, freqGHz float64) (Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	t, ok := n.towers[id]
	if !ok {
		return Result{}, nil
	}

	name = strings.TrimSpace(name)
	if name == "" {
		return Result{}, invalid(ReasonEmptyName, "tower name must not be empty")
	}
	if freqGHz <= 0 || math.IsNaN(freqGHz) || math.IsInf(freqGHz, 0) {
		return Result{}, invalid(ReasonInvalidFrequency, "frequency must be a positive number of GHz")
	}

	t.Name = name
	t.FrequencyGHz = freqGHz

	res := Result{Tower: copyTower(t)}
	res.Events = append(res.Events, n.addEvent(Event{Type: EventTowerUpdated, TowerID: id}))

	for _, lid := range n.linkIDsTouching(id) {
		l := n.links[lid]
		partner, ok := n.towers[l.Other(id)]
		if ok && sameFrequency(partner.FrequencyGHz, freqGHz) {
			l.FrequencyGHz = freqGHz
			continue
		}
		n.removeLink(lid)
		res.RemovedLinks = append(res.RemovedLinks, lid)
		res.Events = append(res.Events, n.addEvent(Event{
			Type:    EventLinkDropped,
			LinkID:  lid,
			TowerID: id,
			Detail:  "frequency mismatch after edit",
		}))
	}

	n.recordCounts()
	return res, nil
}

// DeleteTower removes a tower and every link referencing it.
// Unknown ids are a no-op.
func (n *Network) DeleteTower(id string) Result {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.towers[id]; !ok {
		return Result{}
	}

	var res Result
	for _, lid := range n.linkIDsTouching(id) {
		n.removeLink(lid)
		res.RemovedLinks = append(res.RemovedLinks, lid)
		res.Events = append(res.Events, n.addEvent(Event{Type: EventLinkDeleted, LinkID: lid, TowerID: id}))
	}

	delete(n.towers, id)
	n.towerOrder = removeID(n.towerOrder, id)
	res.RemovedTowers = []string{id}
	res.Events = append(res.Events, n.addEvent(Event{Type: EventTowerDeleted, TowerID: id}))

	n.recordCounts()
	return res
}

// CreateLink links two distinct towers that share a frequency.
func (n *Network) CreateLink(a, b string) (Result, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ta, okA := n.towers[a]
	tb, okB := n.towers[b]
	if !okA || !okB {
		return Result{}, nil
	}
	if a == b {
		return Result{}, invalid(ReasonSameTower, "a tower cannot link to itself")
	}
	if !sameFrequency(ta.FrequencyGHz, tb.FrequencyGHz) {
		return Result{}, invalid(ReasonFrequencyMismatch,
			"Towers must have the same frequency to form a link (%s %g GHz, %s %g GHz)",
			ta.Name, ta.FrequencyGHz, tb.Name, tb.FrequencyGHz)
	}
	for _, lid := range n.linkOrder {
		l := n.links[lid]
		if l.Touches(a) && l.Touches(b) {
			return Result{}, invalid(ReasonDuplicateLink, "%s already links %s and %s", l.ID, ta.Name, tb.Name)
		}
	}

	n.nextLink++
	l := &Link{
		ID:           fmt.Sprintf("L%d", n.nextLink),
		TowerA:       a,
		TowerB:       b,
		FrequencyGHz: ta.FrequencyGHz,
		DistanceKm:   geo.DistanceKm(ta.Position, tb.Position),
	}
	n.links[l.ID] = l
	n.linkOrder = append(n.linkOrder, l.ID)

	res := Result{Link: copyLink(l)}
	res.Events = append(res.Events, n.addEvent(Event{Type: EventLinkCreated, LinkID: l.ID}))
	n.recordCounts()
	return res, nil
}

// DeleteLink removes one link. Unknown ids are a no-op.
func (n *Network) DeleteLink(id string) Result {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, ok := n.links[id]; !ok {
		return Result{}
	}
	n.removeLink(id)

	res := Result{RemovedLinks: []string{id}}
	res.Events = append(res.Events, n.addEvent(Event{Type: EventLinkDeleted, LinkID: id}))
	n.recordCounts()
	return res
}

// Tower returns a copy of the tower with the given id.
func (n *Network) Tower(id string) (Tower, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	t, ok := n.towers[id]
	if !ok {
		return Tower{}, false
	}
	return *t, true
}

// Link returns a copy of the link with the given id.
func (n *Network) Link(id string) (Link, bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	l, ok := n.links[id]
	if !ok {
		return Link{}, false
	}
	return *l, true
}

// Endpoints returns both towers of a link. ok is false if the link or
// either tower is gone.
func (n *Network) Endpoints(linkID string) (a, b Tower, ok bool) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	l, found := n.links[linkID]
	if !found {
		return Tower{}, Tower{}, false
	}
	ta, okA := n.towers[l.TowerA]
	tb, okB := n.towers[l.TowerB]
	if !okA || !okB {
		return Tower{}, Tower{}, false
	}
	return *ta, *tb, true
}

// Snapshot is an immutable copy of the network.
type Snapshot struct {
	Towers []Tower
	Links  []Link
	Events []Event
}

// Snapshot returns towers and links in creation order and events oldest first.
func (n *Network) Snapshot() Snapshot {
	n.mu.RLock()
	defer n.mu.RUnlock()

	snap := Snapshot{
		Towers: make([]Tower, 0, len(n.towerOrder)),
		Links:  make([]Link, 0, len(n.linkOrder)),
		Events: n.getEventsOrdered(),
	}
	for _, id := range n.towerOrder {
		snap.Towers = append(snap.Towers, *n.towers[id])
	}
	for _, id := range n.linkOrder {
		snap.Links = append(snap.Links, *n.links[id])
	}
	return snap
}

// Counts returns the number of towers and links.
func (n *Network) Counts() (towers, links int) {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return len(n.towers), len(n.links)
}

func (n *Network) linkIDsTouching(towerID string) []string {
	var ids []string
	for _, lid := range n.linkOrder {
		if n.links[lid].Touches(towerID) {
			ids = append(ids, lid)
		}
	}
	return ids
}

func (n *Network) removeLink(id string) {
	delete(n.links, id)
	n.linkOrder = removeID(n.linkOrder, id)
}

func (n *Network) recordCounts() {
	if n.recorder != nil {
		n.recorder.SetNetworkCounts(len(n.towers), len(n.links))
	}
}

func removeID(ids []string, id string) []string {
	for i, v := range ids {
		if v == id {
			return append(ids[:i], ids[i+1:]...)
		}
	}
	return ids
}

func sameFrequency(a, b float64) bool {
	return math.Abs(a-b) <= frequencyEpsilon
}

func copyTower(t *Tower) *Tower {
	c := *t
	return &c
}

func copyLink(l *Link) *Link {
	c := *l
	return &c
}
