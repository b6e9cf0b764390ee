package ui

import (
	"math"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/network"
	"github.com/litescript/ls-fresnel/internal/projection"
	"github.com/litescript/ls-fresnel/internal/rf"
)

// gridSpacing is the distance in cells between background grid dots.
const (
	gridSpacingX = 8
	gridSpacingY = 4
)

// mapView rasterizes the network onto a grid of terminal cells. One cell is
// one viewport pixel wide and aspect pixels tall, so the viewport keeps
// square pixels while cells stay roughly square on screen.
type mapView struct {
	vp     *projection.Viewport
	aspect float64
	width  int
	height int
}

// cell is a terminal cell position on the map.
type cell struct {
	X, Y int
}

// cellCenter returns the viewport pixel at the center of c.
func (v mapView) cellCenter(c cell) geo.Point {
	return geo.Point{X: float64(c.X) + 0.5, Y: (float64(c.Y) + 0.5) * v.aspect}
}

// pixelCell returns the cell containing viewport pixel p.
func (v mapView) pixelCell(p geo.Point) cell {
	return cell{X: int(math.Floor(p.X)), Y: int(math.Floor(p.Y / v.aspect))}
}

func (v mapView) contains(c cell) bool {
	return c.X >= 0 && c.X < v.width && c.Y >= 0 && c.Y < v.height
}

// center returns the viewport pixel at the middle of the map.
func (v mapView) center() geo.Point {
	return geo.Point{X: float64(v.width) / 2, Y: float64(v.height) * v.aspect / 2}
}

func (v mapView) towerCell(t network.Tower) cell {
	return v.pixelCell(v.vp.LatLngToPixel(t.Position))
}

// towerAt returns the topmost tower drawn at c.
func (v mapView) towerAt(towers []network.Tower, c cell) (network.Tower, bool) {
	for i := len(towers) - 1; i >= 0; i-- {
		if v.towerCell(towers[i]) == c {
			return towers[i], true
		}
	}
	return network.Tower{}, false
}

// linkAt returns the topmost link whose drawn line passes through c.
func (v mapView) linkAt(snap network.Snapshot, c cell) (network.Link, bool) {
	byID := towerIndex(snap.Towers)
	for i := len(snap.Links) - 1; i >= 0; i-- {
		l := snap.Links[i]
		a, okA := byID[l.TowerA]
		b, okB := byID[l.TowerB]
		if !okA || !okB {
			continue
		}
		for _, lc := range v.visibleLine(v.towerCell(a), v.towerCell(b)) {
			if lc == c {
				return l, true
			}
		}
	}
	return network.Link{}, false
}

func towerIndex(towers []network.Tower) map[string]network.Tower {
	m := make(map[string]network.Tower, len(towers))
	for _, t := range towers {
		m[t.ID] = t
	}
	return m
}

// lineCells returns the cells on the segment a..b, endpoints included.
// Bresenham over the integer grid.
func lineCells(a, b cell) []cell {
	dx := absInt(b.X - a.X)
	dy := -absInt(b.Y - a.Y)
	sx, sy := 1, 1
	if a.X > b.X {
		sx = -1
	}
	if a.Y > b.Y {
		sy = -1
	}

	cells := make([]cell, 0, maxInt(dx, -dy)+1)
	err := dx + dy
	x, y := a.X, a.Y
	for {
		cells = append(cells, cell{x, y})
		if x == b.X && y == b.Y {
			return cells
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x += sx
		}
		if e2 <= dx {
			err += dx
			y += sy
		}
	}
}

// visibleLine clips a..b to the map before rasterizing, so links between
// far off-screen towers cost no more than one screen width.
func (v mapView) visibleLine(a, b cell) []cell {
	x0, y0 := float64(a.X), float64(a.Y)
	dx, dy := float64(b.X-a.X), float64(b.Y-a.Y)
	t0, t1 := 0.0, 1.0

	// Liang-Barsky against [0, width-1] x [0, height-1].
	edges := []struct{ p, q float64 }{
		{-dx, x0},
		{dx, float64(v.width-1) - x0},
		{-dy, y0},
		{dy, float64(v.height-1) - y0},
	}
	for _, e := range edges {
		if e.p == 0 {
			if e.q < 0 {
				return nil
			}
			continue
		}
		r := e.q / e.p
		if e.p < 0 {
			t0 = math.Max(t0, r)
		} else {
			t1 = math.Min(t1, r)
		}
		if t0 > t1 {
			return nil
		}
	}

	from := cell{int(math.Round(x0 + t0*dx)), int(math.Round(y0 + t0*dy))}
	to := cell{int(math.Round(x0 + t1*dx)), int(math.Round(y0 + t1*dy))}
	return lineCells(from, to)
}

// lineGlyph picks a box-drawing character for a segment's on-screen slope.
func (v mapView) lineGlyph(a, b cell) rune {
	dx := float64(b.X - a.X)
	dy := float64(b.Y - a.Y)
	if dx == 0 && dy == 0 {
		return '•'
	}
	angle := math.Atan2(-dy*v.aspect, dx) * 180 / math.Pi
	if angle < 0 {
		angle += 180
	}
	switch {
	case angle < 22.5 || angle >= 157.5:
		return '─'
	case angle < 67.5:
		return '╱'
	case angle < 112.5:
		return '│'
	default:
		return '╲'
	}
}

// mapScene is everything drawn in one frame.
type mapScene struct {
	snap      network.Snapshot
	zone      *projection.Ellipse
	selection []string
	pending   string
	cursor    cell
	labels    bool
}

// render draws the scene as styled text, one line per row.
func (v mapView) render(s mapScene) string {
	if v.width <= 0 || v.height <= 0 {
		return ""
	}

	canvas := make([][]rune, v.height)
	colors := make([][]lipgloss.Color, v.height)
	for y := 0; y < v.height; y++ {
		canvas[y] = make([]rune, v.width)
		colors[y] = make([]lipgloss.Color, v.width)
		for x := 0; x < v.width; x++ {
			canvas[y][x] = ' '
			colors[y][x] = colorBackground
			if x%gridSpacingX == 0 && y%gridSpacingY == 0 {
				canvas[y][x] = glyphGrid
				colors[y][x] = colorGrid
			}
		}
	}

	if s.zone != nil {
		v.drawZone(canvas, colors, *s.zone)
	}

	byID := towerIndex(s.snap.Towers)
	for _, l := range s.snap.Links {
		a, okA := byID[l.TowerA]
		b, okB := byID[l.TowerB]
		if !okA || !okB {
			continue
		}
		ca, cb := v.towerCell(a), v.towerCell(b)
		glyph := v.lineGlyph(ca, cb)
		color := lipgloss.Color(rf.BandFor(l.FrequencyGHz).Color())
		if l.ID == s.pending {
			color = colorPending
		}
		for _, c := range v.visibleLine(ca, cb) {
			if v.contains(c) {
				canvas[c.Y][c.X] = glyph
				colors[c.Y][c.X] = color
			}
		}
	}

	selected := make(map[string]bool, len(s.selection))
	for _, id := range s.selection {
		selected[id] = true
	}

	for _, t := range s.snap.Towers {
		c := v.towerCell(t)
		if !v.contains(c) {
			continue
		}
		glyph := glyphTower
		color := lipgloss.Color(rf.BandFor(t.FrequencyGHz).Color())
		if selected[t.ID] {
			glyph = glyphTowerSelected
			color = colorSelected
		}
		canvas[c.Y][c.X] = glyph
		colors[c.Y][c.X] = color

		if s.labels {
			v.drawLabel(canvas, colors, c, t.Name)
		}
	}

	var b strings.Builder
	for y := 0; y < v.height; y++ {
		for x := 0; x < v.width; x++ {
			style := lipgloss.NewStyle().Foreground(colors[y][x])
			if s.cursor.X == x && s.cursor.Y == y {
				style = style.Reverse(true)
			}
			b.WriteString(style.Render(string(canvas[y][x])))
		}
		if y < v.height-1 {
			b.WriteString("\n")
		}
	}
	return b.String()
}

// drawZone fills every cell whose center lies inside the ellipse. The minor
// axis is widened to half a row so zones thinner than a cell stay visible.
func (v mapView) drawZone(canvas [][]rune, colors [][]lipgloss.Color, e projection.Ellipse) {
	if e.SemiMajor <= 0 {
		return
	}
	if minMinor := v.aspect / 2; e.SemiMinor < minMinor {
		e.SemiMinor = minMinor
	}

	minX, minY, maxX, maxY := e.Bounds()
	from := v.pixelCell(geo.Point{X: minX, Y: minY})
	to := v.pixelCell(geo.Point{X: maxX, Y: maxY})
	for y := maxInt(from.Y, 0); y <= minInt(to.Y, v.height-1); y++ {
		for x := maxInt(from.X, 0); x <= minInt(to.X, v.width-1); x++ {
			if e.Contains(v.cellCenter(cell{x, y})) {
				canvas[y][x] = glyphZone
				colors[y][x] = colorZone
			}
		}
	}
}

// drawLabel writes name to the right of c, skipping cells already used by
// towers so labels never hide a marker.
func (v mapView) drawLabel(canvas [][]rune, colors [][]lipgloss.Color, c cell, name string) {
	x := c.X + 2
	for _, r := range name {
		if x >= v.width {
			return
		}
		if canvas[c.Y][x] == glyphTower || canvas[c.Y][x] == glyphTowerSelected {
			return
		}
		canvas[c.Y][x] = r
		colors[c.Y][x] = colorLabel
		x++
	}
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}
