// Package notify sends desktop notifications for headset status changes.
package notify

import (
	"fmt"
	"os"
	"runtime"

	"github.com/gen2brain/beeep"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

// Notifier delivers a desktop notification.
type Notifier interface {
	Notify(title, body string) error
}

type desktopNotifier struct{}

func (desktopNotifier) Notify(title, body string) error {
	// Skip on headless Linux without a display; beeep would error.
	if runtime.GOOS == "linux" && os.Getenv("DISPLAY") == "" && os.Getenv("WAYLAND_DISPLAY") == "" {
		return nil
	}
	return beeep.Notify(title, body, "")
}

type noopNotifier struct{}

func (noopNotifier) Notify(string, string) error { return nil }

// New returns a desktop notifier, or a no-op one when notifications are
// disabled by configuration.
func New(enabled bool) Notifier {
	if !enabled {
		return noopNotifier{}
	}
	return desktopNotifier{}
}

// Message builds the notification text for a status transition. ok is
// false when the transition does not warrant a notification on its own.
// Availability changes win over charging changes, which win over
// classification changes.
func Message(tr status.Transition, s status.Snapshot, th status.Thresholds) (title, body string, ok bool) {
	if tr.Availability != tr.PrevAvailability {
		switch tr.Availability {
		case status.HelperDown:
			return "Headset Status Unavailable", "Unable to query HeadsetControl", true
		case status.Unavailable:
			return "Headset Disconnected", "Headset battery unavailable", true
		case status.Available:
			if s.LevelKnown {
				return "Headset Connected", fmt.Sprintf("Battery at %d%%", s.Level), true
			}
			return "Headset Connected", "Battery status available again", true
		}
	}

	if tr.Charging != tr.PrevCharging {
		if tr.Charging {
			return "Headset Charging", "Headset is now charging", true
		}
		if s.LevelKnown {
			return "Headset On Battery", fmt.Sprintf("Battery at %d%%", s.Level), true
		}
		return "Headset On Battery", "No longer charging", true
	}

	switch {
	case tr.Class == status.ClassCritical && tr.PrevClass != status.ClassCritical:
		return "Headset Battery Low",
			fmt.Sprintf("Battery level dropped to %d%% (below %d%%)", s.Level, th.Low), true
	case tr.Class == status.ClassWarning && tr.PrevClass == status.ClassNormal:
		return "Headset Battery Medium",
			fmt.Sprintf("Battery level dropped to %d%% (below %d%%)", s.Level, th.Medium), true
	case tr.Class == status.ClassNormal && (tr.PrevClass == status.ClassWarning || tr.PrevClass == status.ClassCritical):
		return "Headset Battery Recovered",
			fmt.Sprintf("Battery level increased to %d%%", s.Level), true
	case tr.Class == status.ClassWarning && tr.PrevClass == status.ClassCritical:
		return "Headset Battery Recovering",
			fmt.Sprintf("Battery level increased to %d%%", s.Level), true
	}

	return "", "", false
}
