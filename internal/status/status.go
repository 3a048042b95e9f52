package status

import (
	"fmt"
	"time"
)

// Class is the severity bucket a battery percentage maps to. It drives the
// tray icon badge color.
type Class int

const (
	ClassUnknown Class = iota
	ClassCritical
	ClassWarning
	ClassNormal
)

func (c Class) String() string {
	switch c {
	case ClassCritical:
		return "critical"
	case ClassWarning:
		return "warning"
	case ClassNormal:
		return "normal"
	default:
		return "unknown"
	}
}

// Availability describes whether a battery reading could be obtained at all.
type Availability int

const (
	// Available means the helper reported a device with battery status.
	Available Availability = iota
	// Unavailable means the helper ran fine but the device reported no
	// battery (disconnected, powered off, or unsupported).
	Unavailable
	// HelperDown means the helper itself could not be invoked or its
	// output could not be parsed.
	HelperDown
)

func (a Availability) String() string {
	switch a {
	case Available:
		return "available"
	case Unavailable:
		return "unavailable"
	default:
		return "helper-down"
	}
}

// Thresholds holds the battery percentages that separate the severity
// buckets. Below Low is critical, below Medium is warning.
type Thresholds struct {
	Low    int
	Medium int
}

func (t Thresholds) Validate() error {
	if t.Low < 1 || t.Low > 99 {
		return fmt.Errorf("low threshold must be between 1 and 99, got %d", t.Low)
	}
	if t.Medium < 2 || t.Medium > 100 {
		return fmt.Errorf("medium threshold must be between 2 and 100, got %d", t.Medium)
	}
	if t.Low >= t.Medium {
		return fmt.Errorf("low threshold (%d) must be below medium threshold (%d)", t.Low, t.Medium)
	}
	return nil
}

// Classify maps a battery percentage to a severity bucket. A percentage
// exactly equal to a threshold lands in the better bucket.
func Classify(pct int, t Thresholds) Class {
	switch {
	case pct < t.Low:
		return ClassCritical
	case pct < t.Medium:
		return ClassWarning
	default:
		return ClassNormal
	}
}

// Snapshot is one poll cycle's normalized reading. It is a value type;
// each poll produces a fresh one and the previous one is discarded.
type Snapshot struct {
	TakenAt      time.Time
	Availability Availability
	Level        int // battery percent, meaningful only when LevelKnown
	LevelKnown   bool
	Charging     bool
	ChatMix      *int
	Sidetone     *int  // last value applied through the helper, if any
	LED          *bool // last value applied through the helper, if any
	Device       string
}

// Classification returns the severity bucket for this snapshot, or
// ClassUnknown when no usable percentage was reported.
func (s Snapshot) Classification(t Thresholds) Class {
	if s.Availability != Available || !s.LevelKnown {
		return ClassUnknown
	}
	return Classify(s.Level, t)
}

// Transition describes what changed between two consecutive snapshots.
type Transition struct {
	PrevClass        Class
	Class            Class
	PrevCharging     bool
	Charging         bool
	PrevAvailability Availability
	Availability     Availability
}

// Tracker compares each snapshot against the previous one and reports
// whether anything notification-worthy changed. The first snapshot primes
// the tracker without reporting a change, so starting the app next to an
// already-low battery does not immediately notify.
type Tracker struct {
	thresholds Thresholds
	primed     bool
	last       Transition // only the non-Prev fields are meaningful
}

func NewTracker(t Thresholds) *Tracker {
	return &Tracker{thresholds: t}
}

// Observe records a snapshot. It returns the transition and true when the
// classification, charging flag, or availability differs from the previous
// snapshot. Unchanged snapshots return false.
func (tr *Tracker) Observe(s Snapshot) (Transition, bool) {
	cur := Transition{
		Class:        s.Classification(tr.thresholds),
		Charging:     s.Charging,
		Availability: s.Availability,
	}

	if !tr.primed {
		tr.primed = true
		tr.last = cur
		return Transition{}, false
	}

	cur.PrevClass = tr.last.Class
	cur.PrevCharging = tr.last.Charging
	cur.PrevAvailability = tr.last.Availability

	changed := cur.Class != cur.PrevClass ||
		cur.Charging != cur.PrevCharging ||
		cur.Availability != cur.PrevAvailability

	tr.last = cur
	if !changed {
		return Transition{}, false
	}
	return cur, true
}
