package recognition

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/attendance"
	"github.com/matheuscascao/attendance-registry/internal/enrollment"
	"github.com/matheuscascao/attendance-registry/internal/facematch"
)

// --- stubs ---

type stubFrame struct{}

func (f *stubFrame) Clone() Frame                { return &stubFrame{} }
func (f *stubFrame) EncodeJPEG() ([]byte, error) { return []byte("frame"), nil }
func (f *stubFrame) Close()                      {}

type stubSource struct {
	openErr error
	grabErr error
	opened  bool
	closed  int
	grabbed int
}

func (s *stubSource) Open() error {
	if s.openErr != nil {
		return s.openErr
	}
	s.opened = true
	return nil
}

func (s *stubSource) Grab() (Frame, error) {
	s.grabbed++
	if s.grabErr != nil {
		return nil, s.grabErr
	}
	return &stubFrame{}, nil
}

func (s *stubSource) Close() error {
	s.closed++
	return nil
}

type stubDisplay struct {
	banners []string
	closed  int
}

func (d *stubDisplay) Show(frame Frame, banner string) error {
	d.banners = append(d.banners, banner)
	return nil
}

func (d *stubDisplay) Close() error {
	d.closed++
	return nil
}

// stubComparator matches the references whose bytes are listed in
// matching, and errors for those in failing.
type stubComparator struct {
	matching map[string]float64
	failing  map[string]bool
	calls    []string
}

func (c *stubComparator) Name() facematch.ProviderType { return "stub" }

func (c *stubComparator) Compare(ctx context.Context, source, target []byte) ([]facematch.Match, error) {
	c.calls = append(c.calls, string(target))
	if c.failing[string(target)] {
		return nil, errors.New("comparator unavailable")
	}
	if similarity, ok := c.matching[string(target)]; ok {
		return []facematch.Match{{Similarity: similarity}}, nil
	}
	return nil, nil
}

type recordingSink struct {
	events []attendance.Event
}

func (s *recordingSink) Publish(event attendance.Event) error {
	s.events = append(s.events, event)
	return nil
}

// --- helpers ---

func facesDir(t *testing.T, files map[string]string) *enrollment.Store {
	t.Helper()
	dir := t.TempDir()
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0644); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
	}
	store, err := enrollment.NewStore(dir)
	if err != nil {
		t.Fatalf("NewStore(): %v", err)
	}
	return store
}

func testConfig() config.RecognitionConfig {
	return config.RecognitionConfig{
		Provider:              "rekognition",
		DeviceID:              "device-01",
		IntervalSeconds:       5,
		OverlaySeconds:        2,
		SimilarityThreshold:   80,
		CompareTimeoutSeconds: 1,
		CooldownPruneMinutes:  60,
	}
}

// fakeClock lets tests drive the processor's notion of time.
type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time          { return c.t }
func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestProcessor(t *testing.T, store *enrollment.Store, comparator facematch.Comparator, sink attendance.Sink) (*Processor, *stubSource, *stubDisplay, *fakeClock) {
	t.Helper()
	source := &stubSource{}
	display := &stubDisplay{}
	clock := &fakeClock{t: time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)}

	p := NewProcessor(testConfig(), source, display, comparator, store, sink)
	p.now = clock.now
	p.sleep = func(time.Duration) {}

	if err := p.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}
	return p, source, display, clock
}

// --- tests ---

func TestStart_DeviceOpenFailureIsFatal(t *testing.T) {
	source := &stubSource{openErr: errors.New("no such device")}
	p := NewProcessor(testConfig(), source, nil, &stubComparator{}, facesDir(t, nil), &recordingSink{})

	if err := p.Start(); err == nil {
		t.Fatal("Start() err = nil, want device error")
	}
	if err := p.Run(); err == nil {
		t.Fatal("Run() err = nil without successful Start")
	}
}

func TestMatch_EmitsEventAndSetsOverlay(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	comparator := &stubComparator{matching: map[string]float64{"refE100": 92.0}}
	sink := &recordingSink{}
	p, _, display, clock := newTestProcessor(t, store, comparator, sink)

	p.iterate()

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	event := sink.events[0]
	if event.IdentityCode != "E100" {
		t.Errorf("IdentityCode = %q, want E100", event.IdentityCode)
	}
	if event.Confidence != 92.0 {
		t.Errorf("Confidence = %v, want 92.0", event.Confidence)
	}
	if event.DeviceID != "device-01" {
		t.Errorf("DeviceID = %q, want device-01", event.DeviceID)
	}
	if !event.CapturedAt.Equal(clock.t) {
		t.Errorf("CapturedAt = %v, want %v", event.CapturedAt, clock.t)
	}
	if event.ID == "" {
		t.Error("event ID is empty")
	}

	if len(display.banners) != 1 || display.banners[0] != "Face Recognized: E100" {
		t.Errorf("banners = %v, want overlay text for E100", display.banners)
	}
}

func TestMatch_CooldownSuppressesRepeats(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	comparator := &stubComparator{matching: map[string]float64{"refE100": 92.0}}
	sink := &recordingSink{}
	p, _, _, clock := newTestProcessor(t, store, comparator, sink)

	// t=0: match accepted.
	p.iterate()
	// t=5s: next match cycle runs but the identity is still cooling down
	// (accepted at t=0, interval 5s, 5s >= 5s so it is accepted again).
	clock.advance(5 * time.Second)
	p.iterate()
	// t=8s: within cooldown of the t=5s acceptance, suppressed. The
	// match cycle itself is also gated to every 5s, so force one.
	clock.advance(3 * time.Second)
	frame := &stubFrame{}
	p.matchCycle(frame, clock.t)

	if len(sink.events) != 2 {
		t.Fatalf("events = %d, want 2 (t=0 and t=5s; t=8s suppressed)", len(sink.events))
	}
}

func TestMatch_SuppressedMatchDoesNotUpdateOverlay(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	comparator := &stubComparator{matching: map[string]float64{"refE100": 92.0}}
	sink := &recordingSink{}
	p, _, _, clock := newTestProcessor(t, store, comparator, sink)

	p.matchCycle(&stubFrame{}, clock.t)
	overlaySetAt := p.overlay.displayedAt

	clock.advance(3 * time.Second)
	p.matchCycle(&stubFrame{}, clock.t)

	if !p.overlay.displayedAt.Equal(overlaySetAt) {
		t.Error("suppressed match updated the overlay timestamp")
	}
	if len(sink.events) != 1 {
		t.Errorf("events = %d, want 1", len(sink.events))
	}
}

func TestMatch_FirstMatchWinsInLexicographicOrder(t *testing.T) {
	store := facesDir(t, map[string]string{
		"E200.jpg": "refE200",
		"E100.jpg": "refE100",
	})
	// Both references would match; E200 with the higher similarity.
	comparator := &stubComparator{matching: map[string]float64{
		"refE100": 85.0,
		"refE200": 99.0,
	}}
	sink := &recordingSink{}
	p, _, _, clock := newTestProcessor(t, store, comparator, sink)

	p.matchCycle(&stubFrame{}, clock.t)

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}
	if sink.events[0].IdentityCode != "E100" {
		t.Errorf("IdentityCode = %q, want E100 (first in scan order, not best similarity)", sink.events[0].IdentityCode)
	}
	// E200 must not have been compared at all.
	if len(comparator.calls) != 1 {
		t.Errorf("comparator calls = %d, want 1 (scan stops at first match)", len(comparator.calls))
	}
}

func TestMatch_ComparisonErrorSkipsToNextReference(t *testing.T) {
	store := facesDir(t, map[string]string{
		"E100.jpg": "refE100",
		"E200.jpg": "refE200",
	})
	comparator := &stubComparator{
		failing:  map[string]bool{"refE100": true},
		matching: map[string]float64{"refE200": 88.0},
	}
	sink := &recordingSink{}
	p, _, _, clock := newTestProcessor(t, store, comparator, sink)

	p.matchCycle(&stubFrame{}, clock.t)

	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1 (failure on E100 must not stop the scan)", len(sink.events))
	}
	if sink.events[0].IdentityCode != "E200" {
		t.Errorf("IdentityCode = %q, want E200", sink.events[0].IdentityCode)
	}
}

func TestMatch_TotalScanFailureIsNoMatch(t *testing.T) {
	store := facesDir(t, map[string]string{
		"E100.jpg": "refE100",
		"E200.jpg": "refE200",
	})
	comparator := &stubComparator{failing: map[string]bool{"refE100": true, "refE200": true}}
	sink := &recordingSink{}
	p, _, _, clock := newTestProcessor(t, store, comparator, sink)

	p.matchCycle(&stubFrame{}, clock.t)

	if len(sink.events) != 0 {
		t.Errorf("events = %d, want 0", len(sink.events))
	}
}

func TestIterate_CaptureFailureIsNonFatal(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	sink := &recordingSink{}
	p, source, _, _ := newTestProcessor(t, store, &stubComparator{}, sink)
	source.grabErr = errors.New("frame dropped")

	p.iterate() // must not panic
	if len(sink.events) != 0 {
		t.Errorf("events = %d, want 0", len(sink.events))
	}
}

func TestIterate_MatchCycleGatedByInterval(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	comparator := &stubComparator{}
	p, _, _, clock := newTestProcessor(t, store, comparator, &recordingSink{})

	p.iterate()
	clock.advance(time.Second)
	p.iterate() // 1s < 5s interval, no new cycle
	if len(comparator.calls) != 1 {
		t.Errorf("comparator calls = %d, want 1 (second iteration within interval)", len(comparator.calls))
	}

	clock.advance(4 * time.Second)
	p.iterate()
	if len(comparator.calls) != 2 {
		t.Errorf("comparator calls = %d, want 2 after interval elapsed", len(comparator.calls))
	}
}

func TestOverlayBanner_ClearsAfterDuration(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	comparator := &stubComparator{matching: map[string]float64{"refE100": 92.0}}
	p, _, display, clock := newTestProcessor(t, store, comparator, &recordingSink{})

	p.iterate()
	if display.banners[0] == "" {
		t.Fatal("banner empty right after match")
	}

	// Within the 2s window the banner persists. Clear the matcher so a
	// new cycle does not re-arm the overlay.
	comparator.matching = nil
	clock.advance(1 * time.Second)
	p.iterate()
	if display.banners[1] == "" {
		t.Error("banner empty at T+1s, want visible")
	}

	clock.advance(5 * time.Second)
	p.iterate()
	if display.banners[2] != "" {
		t.Errorf("banner = %q at T+6s, want cleared", display.banners[2])
	}
}

// blockingSource parks Grab until the test releases it, pinning the
// loop goroutine mid-iteration.
type blockingSource struct {
	grabStarted chan struct{}
	unblock     chan struct{}
	closed      int
}

func (s *blockingSource) Open() error { return nil }

func (s *blockingSource) Grab() (Frame, error) {
	s.grabStarted <- struct{}{}
	<-s.unblock
	return &stubFrame{}, nil
}

func (s *blockingSource) Close() error {
	s.closed++
	return nil
}

// seqDisplay records the order of Show and Close calls.
type seqDisplay struct {
	events []string
}

func (d *seqDisplay) Show(frame Frame, banner string) error {
	d.events = append(d.events, "show")
	return nil
}

func (d *seqDisplay) Close() error {
	d.events = append(d.events, "close")
	return nil
}

func TestStop_WhileRunningDefersReleaseToLoop(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	source := &blockingSource{
		grabStarted: make(chan struct{}),
		unblock:     make(chan struct{}),
	}
	display := &seqDisplay{}
	p := NewProcessor(testConfig(), source, display, &stubComparator{}, store, &recordingSink{})
	p.sleep = func(time.Duration) {}
	if err := p.Start(); err != nil {
		t.Fatalf("Start(): %v", err)
	}

	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	// The loop is now inside Grab, mid-iteration.
	<-source.grabStarted

	p.Stop()
	if source.closed != 0 {
		t.Error("Stop() closed the capture device while the loop was mid-iteration")
	}
	if len(display.events) != 0 {
		t.Errorf("Stop() touched the display while the loop was mid-iteration: %v", display.events)
	}

	close(source.unblock)
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run(): %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not exit after Stop")
	}

	if source.closed != 1 {
		t.Errorf("source.closed = %d, want 1", source.closed)
	}
	// The in-flight frame is rendered before the display goes away.
	if len(display.events) != 2 || display.events[0] != "show" || display.events[1] != "close" {
		t.Errorf("display events = %v, want [show close]", display.events)
	}
}

func TestStop_ReleasesResourcesAndIsIdempotent(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	p, source, display, _ := newTestProcessor(t, store, &stubComparator{}, &recordingSink{})

	p.Stop()
	p.Stop()

	if source.closed != 1 {
		t.Errorf("source.closed = %d, want 1", source.closed)
	}
	if display.closed != 1 {
		t.Errorf("display.closed = %d, want 1", display.closed)
	}
	if p.IsRunning() {
		t.Error("IsRunning() = true after Stop")
	}
}

func TestStopStart_CooldownPersistsOverlayCleared(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	comparator := &stubComparator{matching: map[string]float64{"refE100": 92.0}}
	sink := &recordingSink{}
	p, _, _, clock := newTestProcessor(t, store, comparator, sink)

	p.matchCycle(&stubFrame{}, clock.t)
	if len(sink.events) != 1 {
		t.Fatalf("events = %d, want 1", len(sink.events))
	}

	p.Stop()
	if p.overlay.visible(clock.t) {
		t.Error("overlay still visible after Stop")
	}

	if err := p.Start(); err != nil {
		t.Fatalf("restart Start(): %v", err)
	}
	// Still within the original cooldown window: suppressed.
	clock.advance(2 * time.Second)
	p.matchCycle(&stubFrame{}, clock.t)
	if len(sink.events) != 1 {
		t.Errorf("events = %d after restart within cooldown, want 1 (cooldown persists across restart)", len(sink.events))
	}
}

func TestRun_StopsWhenRequested(t *testing.T) {
	store := facesDir(t, map[string]string{"E100.jpg": "refE100"})
	p, _, _, _ := newTestProcessor(t, store, &stubComparator{}, &recordingSink{})

	iterations := 0
	p.sleep = func(time.Duration) {
		iterations++
		if iterations >= 3 {
			p.Stop()
		}
	}

	done := make(chan error, 1)
	go func() { done <- p.Run() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run(): %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run() did not exit after stop request")
	}
}
