package recognition

import "time"

// overlayState is the transient on-screen notification shown after an
// accepted recognition. It is visible iff now - displayedAt is within
// the configured duration.
type overlayState struct {
	text        string
	displayedAt time.Time
	duration    time.Duration
}

func (o *overlayState) set(text string, now time.Time) {
	o.text = text
	o.displayedAt = now
}

func (o *overlayState) visible(now time.Time) bool {
	if o.text == "" {
		return false
	}
	return now.Sub(o.displayedAt) <= o.duration
}

func (o *overlayState) clear() {
	o.text = ""
	o.displayedAt = time.Time{}
}
