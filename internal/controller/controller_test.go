package controller

import (
	"context"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/litescript/ls-fresnel/internal/elevation"
	"github.com/litescript/ls-fresnel/internal/geo"
	"github.com/litescript/ls-fresnel/internal/metrics"
	"github.com/litescript/ls-fresnel/internal/network"
	"github.com/litescript/ls-fresnel/internal/projection"
)

var (
	posA = geo.Coord{Lat: 37.0, Lng: -122.0}
	posB = geo.Coord{Lat: 37.1, Lng: -122.1}
	posC = geo.Coord{Lat: 37.2, Lng: -122.0}
)

// fixedSource returns canned elevations and counts calls.
type fixedSource struct {
	mu    sync.Mutex
	a, b  float64
	calls int
}

func (f *fixedSource) Lookup(_ context.Context, a, b geo.Coord) elevation.Pair {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return elevation.Pair{
		A: elevation.Sample{Lat: a.Lat, Lng: a.Lng, ElevationM: f.a},
		B: elevation.Sample{Lat: b.Lat, Lng: b.Lng, ElevationM: f.b},
	}
}

func newViewport() *projection.Viewport {
	return projection.NewViewport(geo.NewMercator(11).CenteredOn(geo.Midpoint(posA, posB), 100, 50))
}

type fixture struct {
	ctl *Controller
	net *network.Network
	vp  *projection.Viewport
	src *fixedSource
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	net := network.New(network.DefaultConfig())
	vp := newViewport()
	src := &fixedSource{a: 120, b: 85.5}
	return &fixture{ctl: New(net, vp, src), net: net, vp: vp, src: src}
}

// addTower places a tower in add mode and sets its frequency.
func (f *fixture) addTower(t *testing.T, pos geo.Coord, freq float64) string {
	t.Helper()
	prev := f.ctl.Mode()
	if prev != ModeAdd {
		f.ctl.ToggleMode(ModeAdd)
	}
	out := f.ctl.MapClick(pos)
	if out.Notice == nil || out.Notice.Kind != NoticeSuccess {
		t.Fatalf("MapClick notice = %+v, want success", out.Notice)
	}
	snap := f.net.Snapshot()
	id := snap.Towers[len(snap.Towers)-1].ID
	if freq != f.net.DefaultFrequency() {
		tw, _ := f.net.Tower(id)
		if _, err := f.net.UpdateTower(id, tw.Name, freq); err != nil {
			t.Fatalf("UpdateTower error = %v", err)
		}
	}
	if prev != ModeAdd {
		f.ctl.ToggleMode(ModeAdd)
	}
	return id
}

func (f *fixture) link(t *testing.T, a, b string) string {
	t.Helper()
	if f.ctl.Mode() != ModeLink {
		f.ctl.ToggleMode(ModeLink)
	}
	f.ctl.TowerClick(a)
	out := f.ctl.TowerClick(b)
	if out.Notice == nil || out.Notice.Kind != NoticeSuccess {
		t.Fatalf("link notice = %+v, want success", out.Notice)
	}
	f.ctl.ToggleMode(ModeLink)
	links := f.net.Snapshot().Links
	return links[len(links)-1].ID
}

// inspect clicks a link and runs the job to completion.
func (f *fixture) inspect(t *testing.T, linkID string) Outcome {
	t.Helper()
	out := f.ctl.LinkClick(linkID)
	if out.Inspection == nil {
		t.Fatalf("LinkClick(%s) returned no inspection", linkID)
	}
	return f.ctl.Complete(out.Inspection.Run(context.Background()))
}

func TestToggleMode(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		toggle Mode
		want   Mode
	}{
		{ModeAdd, ModeAdd},
		{ModeLink, ModeLink},
		{ModeLink, ModeNone},
		{ModeDelete, ModeDelete},
		{ModeEdit, ModeEdit},
		{ModeEdit, ModeNone},
	}

	for _, tt := range tests {
		f.ctl.ToggleMode(tt.toggle)
		if f.ctl.Mode() != tt.want {
			t.Errorf("after toggle %v: Mode = %v, want %v", tt.toggle, f.ctl.Mode(), tt.want)
		}
	}
}

func TestModeChange_ClearsSelection(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)

	f.ctl.ToggleMode(ModeLink)
	f.ctl.TowerClick(a)
	if len(f.ctl.Selection()) != 1 {
		t.Fatalf("Selection = %v, want [%s]", f.ctl.Selection(), a)
	}

	f.ctl.ToggleMode(ModeDelete)
	if len(f.ctl.Selection()) != 0 {
		t.Errorf("Selection after mode change = %v, want empty", f.ctl.Selection())
	}
}

func TestMapClick_OnlyInAddMode(t *testing.T) {
	f := newFixture(t)

	if out := f.ctl.MapClick(posA); out.Notice != nil {
		t.Errorf("MapClick in none mode = %+v, want nothing", out.Notice)
	}

	f.ctl.ToggleMode(ModeAdd)
	out := f.ctl.MapClick(posA)
	if out.Notice == nil || out.Notice.Message != "Tower T1 added" {
		t.Errorf("Notice = %+v, want \"Tower T1 added\"", out.Notice)
	}
	tw, ok := f.net.Tower("T1")
	if !ok || tw.FrequencyGHz != 2.4 || tw.Position != posA {
		t.Errorf("tower = %+v, want T1 at %v with 2.4 GHz", tw, posA)
	}
}

func TestLink_SelectionToggle(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)

	f.ctl.ToggleMode(ModeLink)
	f.ctl.TowerClick(a)
	f.ctl.TowerClick(a)
	if len(f.ctl.Selection()) != 0 {
		t.Errorf("Selection = %v, want empty after deselect", f.ctl.Selection())
	}

	f.ctl.TowerClick("T99")
	if len(f.ctl.Selection()) != 0 {
		t.Errorf("Selection = %v, unknown tower should be ignored", f.ctl.Selection())
	}
}

func TestLink_Created(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)

	f.ctl.ToggleMode(ModeLink)
	f.ctl.TowerClick(a)
	out := f.ctl.TowerClick(b)

	if out.Notice == nil || out.Notice.Message != "Link L1 created" {
		t.Errorf("Notice = %+v, want \"Link L1 created\"", out.Notice)
	}
	if len(f.ctl.Selection()) != 0 {
		t.Errorf("Selection = %v, want cleared", f.ctl.Selection())
	}
	l, ok := f.net.Link("L1")
	if !ok {
		t.Fatal("link L1 missing")
	}
	if l.FrequencyGHz != 5 || math.Abs(l.DistanceKm-14.226777573326189) > 1e-9 {
		t.Errorf("link = %+v, want 5 GHz and 14.2268 km", l)
	}
}

func TestLink_MismatchClearsSelection(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	c := f.addTower(t, posC, 2.4)

	f.ctl.ToggleMode(ModeLink)
	f.ctl.TowerClick(a)
	out := f.ctl.TowerClick(c)

	if out.Notice == nil || out.Notice.Kind != NoticeError {
		t.Fatalf("Notice = %+v, want error", out.Notice)
	}
	if out.Notice.Message != "Towers must have the same frequency to form a link." {
		t.Errorf("Message = %q", out.Notice.Message)
	}
	if len(f.ctl.Selection()) != 0 {
		t.Errorf("Selection = %v, want cleared", f.ctl.Selection())
	}
	if _, links := f.net.Counts(); links != 0 {
		t.Errorf("links = %d, want 0", links)
	}
	if f.ctl.Mode() != ModeLink {
		t.Errorf("Mode = %v, want link", f.ctl.Mode())
	}
}

func TestEdit_OpensForm(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)

	f.ctl.ToggleMode(ModeEdit)
	out := f.ctl.TowerClick(a)
	if out.EditTarget == nil || out.EditTarget.ID != a {
		t.Fatalf("EditTarget = %+v, want %s", out.EditTarget, a)
	}
	if f.ctl.Editing() != a {
		t.Errorf("Editing = %q, want %q", f.ctl.Editing(), a)
	}

	out = f.ctl.CancelEdit()
	if !out.CloseEdit || f.ctl.Editing() != "" {
		t.Errorf("CancelEdit = %+v, Editing = %q", out, f.ctl.Editing())
	}
}

func TestSaveTower_ValidationKeepsForm(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	f.ctl.ToggleMode(ModeEdit)
	f.ctl.TowerClick(a)

	tests := []struct {
		name string
		nm   string
		freq float64
		want string
	}{
		{"empty name", " ", 5, "Tower name must not be empty."},
		{"zero freq", "Peak", 0, "Frequency must be a positive number of GHz."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := f.ctl.SaveTower(a, tt.nm, tt.freq)
			if out.Notice == nil || out.Notice.Kind != NoticeError || out.Notice.Message != tt.want {
				t.Errorf("Notice = %+v, want error %q", out.Notice, tt.want)
			}
			if out.CloseEdit || f.ctl.Editing() != a {
				t.Error("form closed on validation failure")
			}
		})
	}
}

func TestSaveTower_PrunesExactlyOneLink(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	c := f.addTower(t, posC, 2.4)
	d := f.addTower(t, geo.Coord{Lat: 37.3, Lng: -122.2}, 2.4)
	ab := f.link(t, a, b)
	cd := f.link(t, c, d)

	f.ctl.ToggleMode(ModeEdit)
	f.ctl.TowerClick(b)
	out := f.ctl.SaveTower(b, "Relay", 2.4)

	if out.Notice == nil || out.Notice.Message != "Tower T2 updated (1 link dropped)" {
		t.Errorf("Notice = %+v", out.Notice)
	}
	if !out.CloseEdit {
		t.Error("CloseEdit = false after save")
	}
	if _, ok := f.net.Link(ab); ok {
		t.Errorf("link %s should be dropped", ab)
	}
	if _, ok := f.net.Link(cd); !ok {
		t.Errorf("unrelated link %s was removed", cd)
	}
	tw, _ := f.net.Tower(b)
	if tw.Name != "Relay" || tw.FrequencyGHz != 2.4 {
		t.Errorf("tower = %+v", tw)
	}
}

func TestSaveTower_FrequencyChangeReleasesZone(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	l := f.link(t, a, b)
	f.inspect(t, l)

	z, ok := f.ctl.Zone()
	if !ok {
		t.Fatal("no zone after inspection")
	}

	f.ctl.ToggleMode(ModeEdit)
	f.ctl.TowerClick(b)
	f.ctl.SaveTower(b, "B", 2.4)

	if _, ok := f.ctl.Zone(); ok {
		t.Error("zone still displayed after its link was pruned")
	}
	if !z.Overlay.Released() {
		t.Error("overlay not released")
	}
	if f.vp.Subscribers() != 0 || len(f.vp.Overlays()) != 0 {
		t.Errorf("subscribers=%d overlays=%d, want 0, 0", f.vp.Subscribers(), len(f.vp.Overlays()))
	}
}

func TestSaveTower_RenameKeepsZone(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	l := f.link(t, a, b)
	f.inspect(t, l)

	f.ctl.ToggleMode(ModeEdit)
	f.ctl.TowerClick(b)
	f.ctl.SaveTower(b, "Renamed", 5)

	z, ok := f.ctl.Zone()
	if !ok || z.LinkID != l {
		t.Fatalf("Zone() = %+v, %v, want %s", z, ok, l)
	}
	if z.Overlay.Released() || f.vp.Subscribers() != 1 {
		t.Errorf("released=%v subscribers=%d, want false, 1", z.Overlay.Released(), f.vp.Subscribers())
	}
}

func TestSaveTower_PruneDropsPendingInspection(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	l := f.link(t, a, b)

	job := f.ctl.LinkClick(l).Inspection
	if job == nil {
		t.Fatal("no inspection")
	}
	if f.ctl.Pending() != l {
		t.Fatalf("Pending() = %q, want %q", f.ctl.Pending(), l)
	}

	f.ctl.ToggleMode(ModeEdit)
	f.ctl.TowerClick(a)
	f.ctl.SaveTower(a, "A", 2.4)

	if f.ctl.Pending() != "" {
		t.Errorf("Pending() = %q after prune, want empty", f.ctl.Pending())
	}

	out := f.ctl.Complete(job.Run(context.Background()))
	if out.Notice != nil {
		t.Errorf("Notice = %+v, want none", out.Notice)
	}
	if _, ok := f.ctl.Zone(); ok {
		t.Error("late completion displayed a zone")
	}
	if f.vp.Subscribers() != 0 || len(f.vp.Overlays()) != 0 {
		t.Errorf("subscribers=%d overlays=%d, want 0, 0", f.vp.Subscribers(), len(f.vp.Overlays()))
	}
}

func TestDeleteTowerFromForm(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	f.ctl.ToggleMode(ModeEdit)
	f.ctl.TowerClick(a)

	out := f.ctl.DeleteTowerFromForm(a)
	if !out.CloseEdit || out.Notice == nil || out.Notice.Message != "Tower T1 deleted" {
		t.Errorf("Outcome = %+v", out)
	}
	if towers, _ := f.net.Counts(); towers != 0 {
		t.Errorf("towers = %d, want 0", towers)
	}
}

func TestInspect_DisplaysZone(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	l := f.link(t, a, b)

	out := f.inspect(t, l)

	if out.Notice == nil || out.Notice.Message != "Fresnel zone displayed. Elevation: 120m - 85.5m" {
		t.Errorf("Notice = %+v", out.Notice)
	}
	z, ok := f.ctl.Zone()
	if !ok {
		t.Fatal("no zone after inspection")
	}
	if z.LinkID != l || math.Abs(z.RadiusMeters-14.608273806302126) > 0.01 {
		t.Errorf("zone = %s radius %v, want %s radius 14.608", z.LinkID, z.RadiusMeters, l)
	}
	if f.vp.Subscribers() != 1 || len(f.vp.Overlays()) != 1 {
		t.Errorf("subscribers=%d overlays=%d, want 1, 1", f.vp.Subscribers(), len(f.vp.Overlays()))
	}
	if f.ctl.Pending() != "" {
		t.Errorf("Pending = %q after completion", f.ctl.Pending())
	}
}

func TestInspect_ElevationServerErrorFallsBack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	net := network.New(network.DefaultConfig())
	ctl := New(net, newViewport(), elevation.NewClient(elevation.WithURL(srv.URL)))

	ctl.ToggleMode(ModeAdd)
	ctl.MapClick(posA)
	ctl.MapClick(posB)
	ctl.ToggleMode(ModeLink)
	ctl.TowerClick("T1")
	ctl.TowerClick("T2")
	ctl.ToggleMode(ModeLink)

	job := ctl.LinkClick("L1").Inspection
	if job == nil {
		t.Fatal("no inspection")
	}
	res := job.Run(context.Background())
	if !res.Elevations.Fallback {
		t.Error("Fallback = false, want true")
	}

	out := ctl.Complete(res)
	if out.Notice == nil || out.Notice.Message != "Fresnel zone displayed. Elevation: 0m - 0m" {
		t.Errorf("Notice = %+v, want 0m - 0m", out.Notice)
	}
	if _, ok := ctl.Zone(); !ok {
		t.Error("zone not displayed after fallback")
	}
}

func TestInspect_RapidDoubleClickLeavesOneOverlay(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	c := f.addTower(t, posC, 5)
	first := f.link(t, a, b)
	second := f.link(t, b, c)

	job1 := f.ctl.LinkClick(first).Inspection
	job2 := f.ctl.LinkClick(second).Inspection
	if job1 == nil || job2 == nil {
		t.Fatal("missing inspection jobs")
	}

	// Results arrive out of order.
	out2 := f.ctl.Complete(job2.Run(context.Background()))
	out1 := f.ctl.Complete(job1.Run(context.Background()))

	if out2.Notice == nil {
		t.Error("current inspection produced no notice")
	}
	if out1.Notice != nil {
		t.Errorf("stale inspection notice = %+v", out1.Notice)
	}
	z, ok := f.ctl.Zone()
	if !ok || z.LinkID != second {
		t.Errorf("zone = %+v, want link %s", z, second)
	}
	if f.vp.Subscribers() != 1 || len(f.vp.Overlays()) != 1 {
		t.Errorf("subscribers=%d overlays=%d, want 1, 1", f.vp.Subscribers(), len(f.vp.Overlays()))
	}

	// A third inspection replaces the active overlay.
	old := z.Overlay
	f.inspect(t, first)
	if !old.Released() {
		t.Error("previous overlay not released")
	}
	if f.vp.Subscribers() != 1 || len(f.vp.Overlays()) != 1 {
		t.Errorf("after replace: subscribers=%d overlays=%d, want 1, 1", f.vp.Subscribers(), len(f.vp.Overlays()))
	}
}

func TestInspect_StaleAfterLinkDelete(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	l := f.link(t, a, b)

	job := f.ctl.LinkClick(l).Inspection
	if job == nil {
		t.Fatal("no inspection")
	}

	f.ctl.ToggleMode(ModeDelete)
	f.ctl.LinkClick(l)

	out := f.ctl.Complete(job.Run(context.Background()))
	if out.Notice != nil {
		t.Errorf("Notice = %+v, want none", out.Notice)
	}
	if _, ok := f.ctl.Zone(); ok {
		t.Error("stale completion resurrected a zone")
	}
	if f.vp.Subscribers() != 0 || len(f.vp.Overlays()) != 0 {
		t.Errorf("subscribers=%d overlays=%d, want 0, 0", f.vp.Subscribers(), len(f.vp.Overlays()))
	}
}

func TestDeleteTower_CascadeClearsZone(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	c := f.addTower(t, posC, 5)
	l := f.link(t, a, b)
	other := f.link(t, a, c)
	f.inspect(t, l)

	f.ctl.ToggleMode(ModeDelete)
	out := f.ctl.TowerClick(b)

	if out.Notice == nil || out.Notice.Message != "Tower T2 deleted" {
		t.Errorf("Notice = %+v", out.Notice)
	}
	if _, ok := f.ctl.Zone(); ok {
		t.Error("zone survived deletion of its tower")
	}
	if f.vp.Subscribers() != 0 || len(f.vp.Overlays()) != 0 {
		t.Errorf("subscribers=%d overlays=%d, want 0, 0", f.vp.Subscribers(), len(f.vp.Overlays()))
	}
	if _, ok := f.net.Link(other); !ok {
		t.Errorf("unrelated link %s removed", other)
	}
}

func TestDeleteLink_UnrelatedKeepsZone(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	c := f.addTower(t, posC, 5)
	shown := f.link(t, a, b)
	other := f.link(t, b, c)
	f.inspect(t, shown)

	f.ctl.ToggleMode(ModeDelete)
	out := f.ctl.LinkClick(other)

	if out.Notice == nil || out.Notice.Message != "Link L2 deleted" {
		t.Errorf("Notice = %+v", out.Notice)
	}
	if z, ok := f.ctl.Zone(); !ok || z.LinkID != shown {
		t.Error("zone cleared by deleting an unrelated link")
	}
}

func TestUnknownIDs_AreSilent(t *testing.T) {
	f := newFixture(t)

	for _, m := range []Mode{ModeEdit, ModeLink, ModeDelete} {
		f.ctl.ToggleMode(m)
		if out := f.ctl.TowerClick("T9"); out != (Outcome{}) {
			t.Errorf("%v TowerClick(unknown) = %+v", m, out)
		}
		if out := f.ctl.LinkClick("L9"); out != (Outcome{}) {
			t.Errorf("%v LinkClick(unknown) = %+v", m, out)
		}
	}
}

func TestShutdown_ReleasesOverlayAndIgnoresLateResults(t *testing.T) {
	f := newFixture(t)
	a := f.addTower(t, posA, 5)
	b := f.addTower(t, posB, 5)
	l := f.link(t, a, b)
	f.inspect(t, l)

	job := f.ctl.LinkClick(l).Inspection
	f.ctl.Shutdown()

	if f.vp.Subscribers() != 0 || len(f.vp.Overlays()) != 0 {
		t.Errorf("subscribers=%d overlays=%d, want 0, 0", f.vp.Subscribers(), len(f.vp.Overlays()))
	}
	f.ctl.Complete(job.Run(context.Background()))
	if _, ok := f.ctl.Zone(); ok {
		t.Error("completion after Shutdown displayed a zone")
	}
}

func TestComplete_RecordsMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := metrics.New(reg)
	if err != nil {
		t.Fatalf("metrics.New error = %v", err)
	}

	net := network.New(network.DefaultConfig())
	ctl := New(net, newViewport(), &fixedSource{}, WithMetrics(m))
	ctl.ToggleMode(ModeAdd)
	ctl.MapClick(posA)
	ctl.MapClick(posB)
	ctl.ToggleMode(ModeLink)
	ctl.TowerClick("T1")
	ctl.TowerClick("T2")
	ctl.ToggleMode(ModeLink)

	stale := ctl.LinkClick("L1").Inspection
	current := ctl.LinkClick("L1").Inspection
	ctl.Complete(current.Run(context.Background()))
	ctl.Complete(stale.Run(context.Background()))

	if got := testutil.ToFloat64(m.Inspections.WithLabelValues(metrics.InspectionApplied)); got != 1 {
		t.Errorf("applied = %v, want 1", got)
	}
	if got := testutil.ToFloat64(m.Inspections.WithLabelValues(metrics.InspectionStale)); got != 1 {
		t.Errorf("stale = %v, want 1", got)
	}
}

func TestNoticeFor_NonValidationError(t *testing.T) {
	n := noticeFor(errTest("boom"))
	if n.Kind != NoticeError || !strings.Contains(n.Message, "boom") {
		t.Errorf("notice = %+v", n)
	}
}

type errTest string

func (e errTest) Error() string { return string(e) }

func TestMode_String(t *testing.T) {
	if ModeNone.String() != "none" || ModeDelete.String() != "delete" {
		t.Errorf("String = %q, %q", ModeNone.String(), ModeDelete.String())
	}
}
