package projection

import (
	"sync"

	"github.com/litescript/ls-fresnel/internal/geo"
)

// Shape is something a Surface can draw.
type Shape interface {
	Ellipse() Ellipse
}

// Surface is the set of rendering capabilities the overlay needs: a
// transform, view-change notifications, and a layer to attach shapes to.
type Surface interface {
	Transform
	// OnViewChange registers fn to run after every pan or zoom and returns
	// a function that removes the registration.
	OnViewChange(fn func()) (unsubscribe func())
	AttachOverlay(s Shape)
	RemoveOverlay(s Shape)
}

// Overlay is the live screen artifact for one Fresnel zone. It owns a layer
// attachment and a view-change subscription until Release is called.
type Overlay struct {
	surface      Surface
	a, b         geo.Coord
	radiusMeters float64

	mu          sync.Mutex
	ellipse     Ellipse
	unsubscribe func()
	released    bool
}

// Attach computes the ellipse for a..b, attaches it to the surface, and
// subscribes to view changes.
func Attach(s Surface, a, b geo.Coord, radiusMeters float64) *Overlay {
	o := &Overlay{
		surface:      s,
		a:            a,
		b:            b,
		radiusMeters: radiusMeters,
	}
	o.ellipse = ComputeEllipse(s, a, b, radiusMeters)
	s.AttachOverlay(o)
	o.unsubscribe = s.OnViewChange(o.Recompute)
	return o
}

// Recompute refreshes the ellipse from the fixed geographic inputs using
// the surface's current transform. No-op after Release.
func (o *Overlay) Recompute() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.released {
		return
	}
	o.ellipse = ComputeEllipse(o.surface, o.a, o.b, o.radiusMeters)
}

// Ellipse returns the most recently computed screen ellipse.
func (o *Overlay) Ellipse() Ellipse {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.ellipse
}

// Endpoints returns the geographic inputs.
func (o *Overlay) Endpoints() (geo.Coord, geo.Coord) {
	return o.a, o.b
}

// RadiusMeters returns the physical Fresnel radius.
func (o *Overlay) RadiusMeters() float64 {
	return o.radiusMeters
}

// Release detaches the shape and drops the view-change subscription.
// Safe to call more than once.
func (o *Overlay) Release() {
	o.mu.Lock()
	if o.released {
		o.mu.Unlock()
		return
	}
	o.released = true
	unsub := o.unsubscribe
	o.unsubscribe = nil
	o.mu.Unlock()

	if unsub != nil {
		unsub()
	}
	o.surface.RemoveOverlay(o)
}

// Released reports whether Release has run.
func (o *Overlay) Released() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.released
}
