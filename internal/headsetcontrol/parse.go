package headsetcontrol

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

// ErrNoDevice is returned when the helper ran but reported no devices.
var ErrNoDevice = errors.New("no headset device reported")

// ErrMalformedOutput wraps JSON decode failures of helper output.
var ErrMalformedOutput = errors.New("malformed helper output")

func parseReport(data []byte) (*device, error) {
	var rep report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedOutput, err)
	}
	if len(rep.Devices) == 0 {
		return nil, ErrNoDevice
	}
	// Multiple headsets are rare; follow the first device like the
	// indicator always has.
	return &rep.Devices[0], nil
}

// snapshotFromDevice normalizes one device report into a status snapshot.
func snapshotFromDevice(dev *device, now time.Time) status.Snapshot {
	s := status.Snapshot{TakenAt: now, Device: dev.Device}

	if dev.Battery == nil {
		s.Availability = status.Unavailable
		return s
	}

	switch dev.Battery.Status {
	case batteryCharging:
		s.Availability = status.Available
		s.Charging = true
		// Some devices report a level while charging, others report 0.
		if dev.Battery.Level > 0 {
			s.Level = dev.Battery.Level
			s.LevelKnown = true
		}
	case batteryUnavailable:
		s.Availability = status.Unavailable
	case batteryAvailable:
		s.Availability = status.Available
		s.Level = dev.Battery.Level
		s.LevelKnown = true
	default:
		// Unknown status strings (timeouts, HID errors) degrade to
		// unavailable rather than guessing a level.
		s.Availability = status.Unavailable
	}

	if dev.ChatMix != nil {
		lvl := dev.ChatMix.Level
		s.ChatMix = &lvl
	}
	return s
}

func capabilitiesFromDevice(dev *device) Capabilities {
	var caps Capabilities
	for _, c := range dev.Capabilities {
		switch c {
		case capBattery:
			caps.Battery = true
		case capChatMix:
			caps.ChatMix = true
		case capSidetone:
			caps.Sidetone = true
		case capLED:
			caps.LED = true
		case capInactiveTime:
			caps.InactiveTime = true
		}
	}
	return caps
}
