// Package ui provides the terminal map interface using Bubble Tea.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/litescript/ls-fresnel/internal/controller"
	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/logging"
	"github.com/litescript/ls-fresnel/internal/projection"
	"github.com/litescript/ls-fresnel/internal/version"
)

// Layout: header and status above the map; panel, toast and help below.
const (
	headerLines = 2
	panelLines  = 6
	footerLines = 2
	chromeLines = headerLines + panelLines + footerLines

	minZoom = 1.0
	maxZoom = 19.0
)

// MapConfig holds configuration for the map view.
type MapConfig struct {
	Center     geo.Coord
	Zoom       float64
	CellAspect float64       // cell height over cell width
	PanStep    int           // cells per pan key press
	ToastTTL   time.Duration // how long a notice stays up
	Labels     bool
}

// DefaultMapConfig returns the stock map configuration.
func DefaultMapConfig() MapConfig {
	return MapConfig{
		Center:     geo.Coord{Lat: 37.05, Lng: -122.05},
		Zoom:       11,
		CellAspect: 2,
		PanStep:    4,
		ToastTTL:   4 * time.Second,
		Labels:     true,
	}
}

// Msg types for Bubble Tea
type (
	// inspectionDoneMsg carries a finished Fresnel inspection.
	inspectionDoneMsg struct {
		result controller.InspectionResult
	}

	// toastExpiredMsg clears the toast with the given sequence number.
	toastExpiredMsg struct {
		seq int
	}
)

type toast struct {
	notice controller.Notice
	seq    int
}

// Model is the root Bubble Tea model.
type Model struct {
	// Dependencies
	ctx    context.Context
	ctl    *controller.Controller
	vp     *projection.Viewport
	cfg    MapConfig
	logger *logging.Logger

	// UI state
	width  int
	height int
	ready  bool
	view   mapView
	cursor cell
	form   *EditForm
	toast  *toast
	seq    int
}

// New creates the root model. ctx bounds every inspection started from the
// UI; vp must be the surface ctl draws on.
func New(ctx context.Context, ctl *controller.Controller, vp *projection.Viewport, cfg MapConfig, logger *logging.Logger) Model {
	if cfg.CellAspect <= 0 {
		cfg.CellAspect = DefaultMapConfig().CellAspect
	}
	if cfg.PanStep <= 0 {
		cfg.PanStep = DefaultMapConfig().PanStep
	}
	if cfg.ToastTTL <= 0 {
		cfg.ToastTTL = DefaultMapConfig().ToastTTL
	}
	if logger == nil {
		logger = logging.Discard()
	}
	return Model{
		ctx:    ctx,
		ctl:    ctl,
		vp:     vp,
		cfg:    cfg,
		logger: logger,
		view:   mapView{vp: vp, aspect: cfg.CellAspect},
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.resize(msg.Width, msg.Height)
		return m, nil

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			return m.quit()
		}
		if m.form != nil {
			return m.updateForm(msg)
		}
		return m.updateMap(msg)

	case tea.MouseMsg:
		if m.form != nil || msg.Action != tea.MouseActionPress || msg.Button != tea.MouseButtonLeft {
			return m, nil
		}
		c := cell{X: msg.X, Y: msg.Y - headerLines}
		if !m.view.contains(c) {
			return m, nil
		}
		m.cursor = c
		cmd := m.click()
		return m, cmd

	case inspectionDoneMsg:
		m.logger.Debug("inspection finished", "link", msg.result.LinkID,
			"fallback", msg.result.Elevations.Fallback)
		cmd := m.apply(m.ctl.Complete(msg.result))
		return m, cmd

	case toastExpiredMsg:
		if m.toast != nil && m.toast.seq == msg.seq {
			m.toast = nil
		}
	}

	return m, nil
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.ctl.Shutdown()
	return m, tea.Quit
}

// resize keeps the geographic map center fixed while the terminal changes.
func (m *Model) resize(width, height int) {
	center := m.cfg.Center
	if m.ready {
		center = m.vp.PixelToLatLng(m.view.center())
	}

	m.width = width
	m.height = height
	m.view.width = width
	m.view.height = maxInt(height-chromeLines, 1)

	view := m.vp.View()
	if !m.ready {
		view = geo.NewMercator(m.cfg.Zoom)
	}
	pc := m.view.center()
	m.vp.SetView(view.CenteredOn(center, pc.X, pc.Y))

	if !m.ready {
		m.cursor = m.view.pixelCell(pc)
	}
	m.clampCursor()
	m.ready = true
}

func (m Model) updateMap(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	step := m.cfg.PanStep
	panX := float64(step)
	panY := float64(step) * m.cfg.CellAspect

	switch msg.String() {
	case "q":
		return m.quit()

	case "a":
		cmd := m.apply(m.ctl.ToggleMode(controller.ModeAdd))
		return m, cmd
	case "e":
		cmd := m.apply(m.ctl.ToggleMode(controller.ModeEdit))
		return m, cmd
	case "l":
		cmd := m.apply(m.ctl.ToggleMode(controller.ModeLink))
		return m, cmd
	case "x":
		cmd := m.apply(m.ctl.ToggleMode(controller.ModeDelete))
		return m, cmd
	case "esc":
		cmd := m.apply(m.ctl.ClearMode())
		return m, cmd
	case "n":
		m.cfg.Labels = !m.cfg.Labels

	case "up":
		m.cursor.Y--
	case "down":
		m.cursor.Y++
	case "left":
		m.cursor.X--
	case "right":
		m.cursor.X++

	case "H", "shift+left":
		m.vp.Pan(-panX, 0)
	case "L", "shift+right":
		m.vp.Pan(panX, 0)
	case "K", "shift+up":
		m.vp.Pan(0, -panY)
	case "J", "shift+down":
		m.vp.Pan(0, panY)

	case "+", "=":
		m.zoom(1)
	case "-", "_":
		m.zoom(-1)

	case "enter", " ":
		cmd := m.click()
		return m, cmd
	}

	m.clampCursor()
	return m, nil
}

// zoom changes the zoom level around the cursor.
func (m *Model) zoom(delta float64) {
	z := m.vp.View().Zoom + delta
	if z < minZoom || z > maxZoom {
		return
	}
	m.vp.ZoomAround(delta, m.view.cellCenter(m.cursor))
}

func (m *Model) clampCursor() {
	m.cursor.X = maxInt(0, minInt(m.cursor.X, m.view.width-1))
	m.cursor.Y = maxInt(0, minInt(m.cursor.Y, m.view.height-1))
}

// click resolves the cursor cell to a tower, then a link, then the map.
func (m *Model) click() tea.Cmd {
	snap := m.ctl.Network().Snapshot()
	if t, ok := m.view.towerAt(snap.Towers, m.cursor); ok {
		return m.apply(m.ctl.TowerClick(t.ID))
	}
	if l, ok := m.view.linkAt(snap, m.cursor); ok {
		return m.apply(m.ctl.LinkClick(l.ID))
	}
	pos := m.vp.PixelToLatLng(m.view.cellCenter(m.cursor))
	return m.apply(m.ctl.MapClick(pos))
}

func (m Model) updateForm(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch m.form.HandleKey(msg) {
	case formSave:
		cmd := m.apply(m.ctl.SaveTower(m.form.TowerID(), m.form.Name(), m.form.Frequency()))
		return m, cmd
	case formDelete:
		cmd := m.apply(m.ctl.DeleteTowerFromForm(m.form.TowerID()))
		return m, cmd
	case formCancel:
		cmd := m.apply(m.ctl.CancelEdit())
		return m, cmd
	}
	return m, nil
}

// apply turns a controller outcome into UI state and commands.
func (m *Model) apply(out controller.Outcome) tea.Cmd {
	var cmds []tea.Cmd

	if out.CloseEdit {
		m.form = nil
	}
	if out.EditTarget != nil {
		m.form = newEditForm(*out.EditTarget)
	}
	if out.Notice != nil {
		m.seq++
		m.toast = &toast{notice: *out.Notice, seq: m.seq}
		cmds = append(cmds, toastExpireCmd(m.seq, m.cfg.ToastTTL))
	}
	if out.Inspection != nil {
		cmds = append(cmds, inspectCmd(m.ctx, out.Inspection))
	}
	return tea.Batch(cmds...)
}

func inspectCmd(ctx context.Context, job *controller.Inspection) tea.Cmd {
	return func() tea.Msg {
		return inspectionDoneMsg{result: job.Run(ctx)}
	}
}

func toastExpireCmd(seq int, ttl time.Duration) tea.Cmd {
	return tea.Tick(ttl, func(time.Time) tea.Msg {
		return toastExpiredMsg{seq: seq}
	})
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Initializing..."
	}

	var b strings.Builder
	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderStatus())
	b.WriteString("\n")
	b.WriteString(m.renderMap())
	b.WriteString("\n")
	b.WriteString(m.renderPanel())
	b.WriteString("\n")
	b.WriteString(m.renderToast())
	b.WriteString("\n")
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderMap() string {
	scene := mapScene{
		snap:      m.ctl.Network().Snapshot(),
		selection: m.ctl.Selection(),
		pending:   m.ctl.Pending(),
		cursor:    m.cursor,
		labels:    m.cfg.Labels,
	}
	if z, ok := m.ctl.Zone(); ok {
		e := z.Overlay.Ellipse()
		scene.zone = &e
	}
	return m.view.render(scene)
}

func (m Model) renderHeader() string {
	tabs := []struct {
		mode  controller.Mode
		label string
	}{
		{controller.ModeAdd, "[a] Add Tower"},
		{controller.ModeEdit, "[e] Edit"},
		{controller.ModeLink, "[l] Draw Link"},
		{controller.ModeDelete, "[x] Delete"},
	}

	parts := []string{titleStyle.Render("ls-fresnel") + dimStyle.Render(" v"+version.Version)}
	for _, tab := range tabs {
		if tab.mode == m.ctl.Mode() {
			parts = append(parts, activeStyle.Render("▶ "+tab.label))
		} else {
			parts = append(parts, dimStyle.Render("  "+tab.label))
		}
	}
	return " " + strings.Join(parts, "  ")
}

func (m Model) renderStatus() string {
	pos := m.vp.PixelToLatLng(m.view.cellCenter(m.cursor))
	towers, links := m.ctl.Network().Counts()
	status := fmt.Sprintf(" cursor %s | zoom %.0f | %d towers | %d links",
		pos.String(), m.vp.View().Zoom, towers, links)
	return dimStyle.Render(status)
}

func (m Model) renderPanel() string {
	if m.form != nil {
		return padLines(m.form.View(), panelLines)
	}

	var lines []string

	switch z, ok := m.ctl.Zone(); {
	case m.ctl.Pending() != "":
		lines = append(lines, activeStyle.Render(" Inspecting "+m.ctl.Pending()+"..."))
	case ok:
		fallback := ""
		if z.Elevations.Fallback {
			fallback = dimStyle.Render(" (elevation unavailable)")
		}
		lines = append(lines,
			zoneStyle.Render(fmt.Sprintf(" Fresnel %s | %g GHz | %.2f km | r = %.2f m",
				z.LinkID, z.FrequencyGHz, z.DistanceKm, z.RadiusMeters)),
			dimStyle.Render(fmt.Sprintf(" Elevation A %gm | B %gm",
				z.Elevations.A.ElevationM, z.Elevations.B.ElevationM))+fallback,
		)
	default:
		lines = append(lines, dimStyle.Render(" No Fresnel zone. Select a link to inspect it."))
	}

	if sel := m.ctl.Selection(); len(sel) > 0 {
		lines = append(lines, goldStyle.Render(" Selected: "+strings.Join(sel, ", ")))
	}

	events := m.ctl.Network().RecentEvents(panelLines - len(lines))
	for i := len(events) - 1; i >= 0; i-- {
		e := events[i]
		subject := e.TowerID
		if e.LinkID != "" {
			subject = e.LinkID
		}
		lines = append(lines, dimStyle.Render(fmt.Sprintf(" %s %-13s %s",
			e.Timestamp.Format("15:04:05"), e.Type, subject)))
	}

	return padLines(strings.Join(lines, "\n"), panelLines)
}

func (m Model) renderToast() string {
	if m.toast == nil {
		return ""
	}
	if m.toast.notice.Kind == controller.NoticeError {
		return errorStyle.Render(" ✗ " + m.toast.notice.Message)
	}
	return successStyle.Render(" ✓ " + m.toast.notice.Message)
}

func (m Model) renderHelp() string {
	if m.form != nil {
		return dimStyle.Render(" editing tower | esc: cancel")
	}
	return dimStyle.Render(" arrows: cursor | enter: click | H/J/K/L: pan | +/-: zoom | n: labels | esc: clear mode | q: quit")
}

// padLines pads or truncates s to exactly n lines.
func padLines(s string, n int) string {
	lines := strings.Split(s, "\n")
	if len(lines) > n {
		lines = lines[:n]
	}
	for len(lines) < n {
		lines = append(lines, "")
	}
	return strings.Join(lines, "\n")
}
