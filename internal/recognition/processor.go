// Package recognition drives the capture/match/notify cycle: it owns
// the camera source, periodically submits frames to a remote face
// comparator for matching against the enrolled reference images, and
// delivers an attendance event when a match passes the cooldown gate.
package recognition

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/matheuscascao/attendance-registry/config"
	"github.com/matheuscascao/attendance-registry/internal/attendance"
	"github.com/matheuscascao/attendance-registry/internal/enrollment"
	"github.com/matheuscascao/attendance-registry/internal/facematch"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

// loopDelay bounds CPU usage between iterations. It also bounds how
// quickly Stop is observed.
const loopDelay = 100 * time.Millisecond

// Frame is one captured camera frame.
type Frame interface {
	// Clone returns an independent copy of the frame.
	Clone() Frame

	// EncodeJPEG encodes the frame to a JPEG byte buffer.
	EncodeJPEG() ([]byte, error)

	// Close releases the frame's resources.
	Close()
}

// Source yields frames from a capture device.
type Source interface {
	// Open acquires the capture device.
	Open() error

	// Grab captures one frame. The caller owns the returned frame.
	Grab() (Frame, error)

	// Close releases the capture device. Must be idempotent.
	Close() error
}

// Display renders the live feed. A non-empty banner means a recent
// recognition should be indicated on the frame.
type Display interface {
	Show(frame Frame, banner string) error
	Close() error
}

// Processor owns the recognition loop and its running state.
type Processor struct {
	cfg        config.RecognitionConfig
	source     Source
	display    Display
	comparator facematch.Comparator
	store      *enrollment.Store
	sink       attendance.Sink

	cooldowns *cooldownTable
	overlay   overlayState
	lastCycle time.Time
	running   atomic.Bool
	started   atomic.Bool
	stopped   atomic.Bool

	// now is swapped out in tests.
	now func() time.Time
	// sleep is swapped out in tests.
	sleep func(d time.Duration)
}

// NewProcessor creates a recognition processor. The display may be nil
// for headless operation.
func NewProcessor(cfg config.RecognitionConfig, source Source, display Display, comparator facematch.Comparator, store *enrollment.Store, sink attendance.Sink) *Processor {
	return &Processor{
		cfg:        cfg,
		source:     source,
		display:    display,
		comparator: comparator,
		store:      store,
		sink:       sink,
		cooldowns:  newCooldownTable(cfg.Interval(), cfg.CooldownPruneHorizon()),
		overlay:    overlayState{duration: cfg.OverlayDuration()},
		now:        time.Now,
		sleep:      time.Sleep,
	}
}

// Start acquires the capture device. A device that cannot be opened is
// fatal; everything after Start is transient and survivable.
func (p *Processor) Start() error {
	if err := p.source.Open(); err != nil {
		return fmt.Errorf("failed to open capture device: %w", err)
	}
	p.started.Store(true)
	log.WithField("device", p.cfg.DeviceID).Info("Capture device started")
	return nil
}

// Run enters the blocking capture/match/notify loop until Stop is
// called. Start must have succeeded first.
func (p *Processor) Run() error {
	if !p.started.Load() {
		return fmt.Errorf("processor not started")
	}
	p.stopped.Store(false)
	p.running.Store(true)
	p.lastCycle = time.Time{}

	log.WithFields(log.Fields{
		"interval":  p.cfg.Interval(),
		"provider":  p.comparator.Name(),
		"faces_dir": p.store.Dir(),
	}).Info("Recognition loop running")

	for !p.stopped.Load() {
		p.iterate()
		p.sleep(loopDelay)
	}

	// The device and display are owned by this goroutine; releasing
	// them here keeps Stop from closing them mid-iteration.
	p.release()
	p.running.Store(false)

	log.Info("Recognition loop exited")
	return nil
}

// Stop requests the loop to exit. While the loop is running, the
// capture device and display are released by the loop goroutine once
// Run returns; otherwise they are released here. Idempotent. The
// cooldown table survives for a later Start; the overlay does not.
func (p *Processor) Stop() {
	p.stopped.Store(true)
	if p.running.Load() {
		return
	}
	p.release()
}

func (p *Processor) release() {
	if !p.started.Swap(false) {
		return
	}

	if err := p.source.Close(); err != nil {
		log.WithError(err).Warn("Failed to close capture device")
	}
	if p.display != nil {
		if err := p.display.Close(); err != nil {
			log.WithError(err).Warn("Failed to close display")
		}
	}
	p.overlay.clear()
	log.Info("Capture device stopped and display closed")
}

// iterate runs one loop iteration: capture, maybe match, render.
func (p *Processor) iterate() {
	frame, err := p.source.Grab()
	if err != nil {
		log.WithError(err).Error("Failed to capture frame")
		return
	}
	defer frame.Close()

	now := p.now()
	if p.lastCycle.IsZero() || now.Sub(p.lastCycle) >= p.cfg.Interval() {
		clone := frame.Clone()
		p.matchCycle(clone, now)
		clone.Close()
		p.lastCycle = now
	}

	banner := ""
	if p.overlay.visible(p.now()) {
		banner = p.overlay.text
	} else {
		p.overlay.clear()
	}

	if p.display != nil {
		if err := p.display.Show(frame, banner); err != nil {
			log.WithError(err).Warn("Failed to render frame")
		}
	}
}

// matchCycle scans the reference images against the captured frame and
// handles the first match. Per-reference failures are skipped; a total
// scan failure is "no match", never fatal.
func (p *Processor) matchCycle(frame Frame, capturedAt time.Time) {
	frameBytes, err := frame.EncodeJPEG()
	if err != nil {
		log.WithError(err).Error("Failed to encode frame")
		return
	}

	refs, err := p.store.List()
	if err != nil {
		log.WithError(err).Error("Failed to list reference images")
		return
	}

	for _, ref := range refs {
		refBytes, err := ref.Bytes()
		if err != nil {
			log.WithError(err).WithField("identity", ref.Code).Warn("Skipping unreadable reference image")
			continue
		}

		ctx, cancel := context.WithTimeout(context.Background(), p.cfg.CompareTimeout())
		matches, err := p.comparator.Compare(ctx, frameBytes, refBytes)
		cancel()
		if err != nil {
			log.WithError(err).WithField("identity", ref.Code).Warn("Comparison failed, continuing with next reference")
			continue
		}
		if len(matches) == 0 {
			continue
		}

		// First reference with a match wins; remaining references are
		// not scanned. Scan order is lexicographic by identity code.
		best := matches[0]
		log.WithFields(log.Fields{
			"identity":   ref.Code,
			"similarity": fmt.Sprintf("%.2f", best.Similarity),
		}).Info("Match found")
		p.handleMatch(ref.Code, best, capturedAt)
		return
	}
}

// handleMatch applies the cooldown gate and, if the match is accepted,
// emits the attendance event and arms the overlay.
func (p *Processor) handleMatch(identityCode string, match facematch.Match, capturedAt time.Time) {
	if !p.cooldowns.Accept(identityCode, capturedAt) {
		log.WithField("identity", identityCode).Debug("Recognition suppressed by cooldown")
		return
	}

	event := attendance.Event{
		ID:           uuid.New().String(),
		IdentityCode: identityCode,
		DeviceID:     p.cfg.DeviceID,
		CapturedAt:   capturedAt,
		Confidence:   match.Similarity,
		Provider:     string(p.comparator.Name()),
		Raw:          match.Raw,
	}

	if err := p.sink.Publish(event); err != nil {
		log.WithError(err).WithField("identity", identityCode).Error("Failed to deliver attendance event")
	}

	p.overlay.set(fmt.Sprintf("Face Recognized: %s", identityCode), p.now())
}

// CooldownSize returns the number of identities currently tracked by
// the cooldown table. Exposed for the system stats endpoint.
func (p *Processor) CooldownSize() int {
	return p.cooldowns.Len()
}

// IsRunning reports whether the loop is active.
func (p *Processor) IsRunning() bool {
	return p.running.Load()
}
