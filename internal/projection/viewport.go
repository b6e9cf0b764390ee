package projection

import (
	"sync"

	"github.com/litescript/ls-fresnel/internal/geo"
)

// Viewport is a Surface backed by a Web Mercator view. Pixels are square;
// hosts with non-square cells scale rows themselves.
type Viewport struct {
	mu        sync.RWMutex
	view      geo.Mercator
	nextID    int
	listeners map[int]func()
	overlays  []Shape
}

// NewViewport creates a viewport with the given view.
func NewViewport(view geo.Mercator) *Viewport {
	return &Viewport{
		view:      view,
		listeners: make(map[int]func()),
	}
}

// LatLngToPixel implements Transform.
func (v *Viewport) LatLngToPixel(c geo.Coord) geo.Point {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view.Project(c)
}

// PixelToLatLng implements Transform.
func (v *Viewport) PixelToLatLng(p geo.Point) geo.Coord {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view.Unproject(p)
}

// View returns the current Mercator view.
func (v *Viewport) View() geo.Mercator {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.view
}

// SetView replaces the view and notifies subscribers.
func (v *Viewport) SetView(view geo.Mercator) {
	v.mu.Lock()
	v.view = view
	fns := make([]func(), 0, len(v.listeners))
	for id := 0; id < v.nextID; id++ {
		if fn, ok := v.listeners[id]; ok {
			fns = append(fns, fn)
		}
	}
	v.mu.Unlock()

	// Listeners read the transform, so they run without the lock held.
	for _, fn := range fns {
		fn()
	}
}

// Pan shifts the view by dx, dy pixels.
func (v *Viewport) Pan(dx, dy float64) {
	view := v.View()
	view.Origin.X += dx
	view.Origin.Y += dy
	v.SetView(view)
}

// ZoomAround changes zoom by delta while keeping the pixel at anchor fixed.
func (v *Viewport) ZoomAround(delta float64, anchor geo.Point) {
	view := v.View()
	c := view.Unproject(anchor)
	view.Zoom += delta
	v.SetView(view.CenteredOn(c, anchor.X, anchor.Y))
}

// OnViewChange implements Surface.
func (v *Viewport) OnViewChange(fn func()) func() {
	v.mu.Lock()
	id := v.nextID
	v.nextID++
	v.listeners[id] = fn
	v.mu.Unlock()

	return func() {
		v.mu.Lock()
		delete(v.listeners, id)
		v.mu.Unlock()
	}
}

// AttachOverlay implements Surface.
func (v *Viewport) AttachOverlay(s Shape) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.overlays = append(v.overlays, s)
}

// RemoveOverlay implements Surface.
func (v *Viewport) RemoveOverlay(s Shape) {
	v.mu.Lock()
	defer v.mu.Unlock()
	for i, o := range v.overlays {
		if o == s {
			v.overlays = append(v.overlays[:i], v.overlays[i+1:]...)
			return
		}
	}
}

// Overlays returns a copy of the attached shapes.
func (v *Viewport) Overlays() []Shape {
	v.mu.RLock()
	defer v.mu.RUnlock()
	out := make([]Shape, len(v.overlays))
	copy(out, v.overlays)
	return out
}

// Subscribers returns the number of live view-change registrations.
func (v *Viewport) Subscribers() int {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return len(v.listeners)
}
