// Package controller turns user gestures into network commands. It owns the
// interaction mode, the link selection, and the single active Fresnel zone.
//
// A Controller is not safe for concurrent use; callers drive it from one
// event loop. Only Inspection.Run may execute elsewhere.
package controller

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/litescript/ls-fresnel/internal/elevation"
	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/logging"
	"github.com/litescript/ls-fresnel/internal/metrics"
	"github.com/litescript/ls-fresnel/internal/network"
	"github.com/litescript/ls-fresnel/internal/projection"
)

// Mode is the active interaction mode.
type Mode int

const (
	ModeNone Mode = iota
	ModeAdd
	ModeEdit
	ModeLink
	ModeDelete
)

func (m Mode) String() string {
	switch m {
	case ModeAdd:
		return "add"
	case ModeEdit:
		return "edit"
	case ModeLink:
		return "link"
	case ModeDelete:
		return "delete"
	default:
		return "none"
	}
}

// maxSelection is the number of towers that completes a link gesture.
const maxSelection = 2

// NoticeKind is the tone of a user-facing notice.
type NoticeKind string

const (
	NoticeSuccess NoticeKind = "success"
	NoticeError   NoticeKind = "error"
)

// Notice is a transient message for the user.
type Notice struct {
	Kind    NoticeKind
	Message string
}

func success(format string, args ...any) *Notice {
	return &Notice{Kind: NoticeSuccess, Message: fmt.Sprintf(format, args...)}
}

func failure(msg string) *Notice {
	return &Notice{Kind: NoticeError, Message: msg}
}

// Outcome is what a gesture asks the host to show.
type Outcome struct {
	Notice *Notice

	// EditTarget is set when the edit form should open for a tower.
	EditTarget *network.Tower

	// CloseEdit is set when an open edit form should close.
	CloseEdit bool

	// Inspection is set when a link inspection must be run. The host runs
	// it off the event loop and hands the result to Complete.
	Inspection *Inspection
}

// Zone is the Fresnel zone currently on screen.
type Zone struct {
	LinkID       string
	FrequencyGHz float64
	DistanceKm   float64
	RadiusMeters float64
	Elevations   elevation.Pair
	Overlay      *projection.Overlay
}

// Controller maps gestures to commands on a network.
type Controller struct {
	net     *network.Network
	surface projection.Surface
	source  elevation.Source
	logger  *logging.Logger
	metrics *metrics.Collector

	mode      Mode
	selection []string
	editing   string

	// generation increases every time the active or pending inspection is
	// invalidated. Results carrying an older generation are dropped.
	generation uint64
	pending    string
	zone       *Zone
}

// Option configures a Controller.
type Option func(*Controller)

// WithLogger sets the logger.
func WithLogger(l *logging.Logger) Option {
	return func(c *Controller) {
		c.logger = l
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Collector) Option {
	return func(c *Controller) {
		c.metrics = m
	}
}

// New creates a controller over net that draws Fresnel zones on surface and
// samples terrain from source.
func New(net *network.Network, surface projection.Surface, source elevation.Source, opts ...Option) *Controller {
	c := &Controller{
		net:     net,
		surface: surface,
		source:  source,
		logger:  logging.Discard(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Network returns the underlying network.
func (c *Controller) Network() *network.Network {
	return c.net
}

// Mode returns the active mode.
func (c *Controller) Mode() Mode {
	return c.mode
}

// Selection returns the selected tower ids in click order.
func (c *Controller) Selection() []string {
	out := make([]string, len(c.selection))
	copy(out, c.selection)
	return out
}

// Editing returns the id of the tower whose form is open, if any.
func (c *Controller) Editing() string {
	return c.editing
}

// Pending returns the link id of an in-flight inspection, if any.
func (c *Controller) Pending() string {
	return c.pending
}

// Zone returns the active Fresnel zone.
func (c *Controller) Zone() (Zone, bool) {
	if c.zone == nil {
		return Zone{}, false
	}
	return *c.zone, true
}

// ToggleMode activates m, or turns it off if it is already active.
// Any mode change clears the selection and closes the edit form.
func (c *Controller) ToggleMode(m Mode) Outcome {
	prev := c.mode
	if c.mode == m {
		c.mode = ModeNone
	} else {
		c.mode = m
	}
	c.selection = nil

	out := Outcome{CloseEdit: c.editing != ""}
	c.editing = ""
	c.logger.Debug("mode changed", "from", prev.String(), "to", c.mode.String())
	return out
}

// ClearMode returns to ModeNone.
func (c *Controller) ClearMode() Outcome {
	if c.mode == ModeNone {
		return Outcome{}
	}
	return c.ToggleMode(c.mode)
}

// MapClick handles a click on empty map at pos.
func (c *Controller) MapClick(pos geo.Coord) Outcome {
	if c.mode != ModeAdd {
		return Outcome{}
	}

	res, err := c.net.AddTower(pos, 0)
	if err != nil {
		return Outcome{Notice: noticeFor(err)}
	}
	c.logger.Info("tower added", "id", res.Tower.ID, "pos", pos.String(), "freq_ghz", res.Tower.FrequencyGHz)
	return Outcome{Notice: success("Tower %s added", res.Tower.ID)}
}

// TowerClick handles a click on a tower.
func (c *Controller) TowerClick(id string) Outcome {
	switch c.mode {
	case ModeEdit:
		t, ok := c.net.Tower(id)
		if !ok {
			return Outcome{}
		}
		c.editing = id
		return Outcome{EditTarget: &t}

	case ModeLink:
		return c.toggleSelection(id)

	case ModeDelete:
		return c.deleteTower(id)
	}
	return Outcome{}
}

func (c *Controller) toggleSelection(id string) Outcome {
	for i, sel := range c.selection {
		if sel == id {
			c.selection = append(c.selection[:i], c.selection[i+1:]...)
			return Outcome{}
		}
	}
	if _, ok := c.net.Tower(id); !ok || len(c.selection) >= maxSelection {
		return Outcome{}
	}

	c.selection = append(c.selection, id)
	if len(c.selection) < maxSelection {
		return Outcome{}
	}

	a, b := c.selection[0], c.selection[1]
	c.selection = nil

	res, err := c.net.CreateLink(a, b)
	if err != nil {
		c.logger.Debug("link rejected", "a", a, "b", b, "err", err)
		return Outcome{Notice: noticeFor(err)}
	}
	if res.Link == nil {
		return Outcome{}
	}
	c.logger.Info("link created", "id", res.Link.ID, "a", a, "b", b, "distance_km", res.Link.DistanceKm)
	return Outcome{Notice: success("Link %s created", res.Link.ID)}
}

// LinkClick deletes the link in delete mode and inspects it otherwise.
func (c *Controller) LinkClick(id string) Outcome {
	if c.mode == ModeDelete {
		res := c.net.DeleteLink(id)
		if !res.Changed() {
			return Outcome{}
		}
		c.afterRemoval(res)
		c.logger.Info("link deleted", "id", id)
		return Outcome{Notice: success("Link %s deleted", id)}
	}
	return c.inspect(id)
}

// SaveTower applies the edit form. Validation failures keep the form open.
func (c *Controller) SaveTower(id, name string, freqGHz float64) Outcome {
	res, err := c.net.UpdateTower(id, name, freqGHz)
	if err != nil {
		return Outcome{Notice: noticeFor(err)}
	}

	c.editing = ""
	if !res.Changed() {
		return Outcome{CloseEdit: true}
	}
	c.afterRemoval(res)
	c.logger.Info("tower updated", "id", id, "name", res.Tower.Name,
		"freq_ghz", res.Tower.FrequencyGHz, "links_dropped", len(res.RemovedLinks))

	n := success("Tower %s updated", id)
	switch len(res.RemovedLinks) {
	case 0:
	case 1:
		n.Message += " (1 link dropped)"
	default:
		n.Message += fmt.Sprintf(" (%d links dropped)", len(res.RemovedLinks))
	}
	return Outcome{Notice: n, CloseEdit: true}
}

// DeleteTowerFromForm deletes the tower being edited and closes the form.
func (c *Controller) DeleteTowerFromForm(id string) Outcome {
	out := c.deleteTower(id)
	c.editing = ""
	out.CloseEdit = true
	return out
}

// CancelEdit closes the edit form without changes.
func (c *Controller) CancelEdit() Outcome {
	c.editing = ""
	return Outcome{CloseEdit: true}
}

func (c *Controller) deleteTower(id string) Outcome {
	res := c.net.DeleteTower(id)
	if !res.Changed() {
		return Outcome{}
	}
	c.afterRemoval(res)
	c.logger.Info("tower deleted", "id", id, "links_removed", len(res.RemovedLinks))
	return Outcome{Notice: success("Tower %s deleted", id)}
}

// afterRemoval drops selection entries, the edit form, and the Fresnel zone
// when a command removed what they refer to.
func (c *Controller) afterRemoval(res network.Result) {
	for _, tid := range res.RemovedTowers {
		for i, sel := range c.selection {
			if sel == tid {
				c.selection = append(c.selection[:i], c.selection[i+1:]...)
				break
			}
		}
		if c.editing == tid {
			c.editing = ""
		}
	}

	for _, lid := range res.RemovedLinks {
		if c.pending == lid || (c.zone != nil && c.zone.LinkID == lid) {
			c.logger.Debug("fresnel zone invalidated", "link", lid)
			c.invalidate()
			return
		}
	}
}

// invalidate releases the active overlay and orphans any pending inspection.
func (c *Controller) invalidate() {
	c.generation++
	c.pending = ""
	if c.zone != nil {
		c.zone.Overlay.Release()
		c.zone = nil
	}
}

// Shutdown releases the active overlay and ignores every later completion.
func (c *Controller) Shutdown() {
	c.invalidate()
	c.selection = nil
	c.editing = ""
}

func noticeFor(err error) *Notice {
	var ve *network.ValidationError
	if !errors.As(err, &ve) {
		return failure(err.Error())
	}
	switch ve.Reason {
	case network.ReasonFrequencyMismatch:
		return failure("Towers must have the same frequency to form a link.")
	case network.ReasonInvalidFrequency:
		return failure("Frequency must be a positive number of GHz.")
	case network.ReasonEmptyName:
		return failure("Tower name must not be empty.")
	case network.ReasonDuplicateLink:
		return failure("These towers are already linked.")
	case network.ReasonSameTower:
		return failure("A tower cannot link to itself.")
	case network.ReasonInvalidPosition:
		return failure("Towers must be placed within valid coordinates.")
	}
	return failure(ve.Message)
}

func formatMeters(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
