package notify

import (
	"strings"
	"testing"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

func TestMessage(t *testing.T) {
	th := status.Thresholds{Low: 20, Medium: 50}

	tests := []struct {
		name      string
		tr        status.Transition
		snap      status.Snapshot
		wantTitle string
		wantBody  string
		wantOK    bool
	}{
		{
			name: "dropped to critical",
			tr: status.Transition{
				PrevClass: status.ClassWarning, Class: status.ClassCritical,
				PrevAvailability: status.Available, Availability: status.Available,
			},
			snap:      status.Snapshot{Availability: status.Available, Level: 15, LevelKnown: true},
			wantTitle: "Headset Battery Low",
			wantBody:  "dropped to 15% (below 20%)",
			wantOK:    true,
		},
		{
			name: "dropped to warning",
			tr: status.Transition{
				PrevClass: status.ClassNormal, Class: status.ClassWarning,
				PrevAvailability: status.Available, Availability: status.Available,
			},
			snap:      status.Snapshot{Availability: status.Available, Level: 45, LevelKnown: true},
			wantTitle: "Headset Battery Medium",
			wantBody:  "dropped to 45% (below 50%)",
			wantOK:    true,
		},
		{
			name: "recovered to normal",
			tr: status.Transition{
				PrevClass: status.ClassCritical, Class: status.ClassNormal,
				PrevAvailability: status.Available, Availability: status.Available,
			},
			snap:      status.Snapshot{Availability: status.Available, Level: 60, LevelKnown: true},
			wantTitle: "Headset Battery Recovered",
			wantBody:  "increased to 60%",
			wantOK:    true,
		},
		{
			name: "charging started",
			tr: status.Transition{
				PrevClass: status.ClassNormal, Class: status.ClassNormal,
				PrevAvailability: status.Available, Availability: status.Available,
				PrevCharging: false, Charging: true,
			},
			snap:      status.Snapshot{Availability: status.Available, Charging: true, Level: 60, LevelKnown: true},
			wantTitle: "Headset Charging",
			wantBody:  "now charging",
			wantOK:    true,
		},
		{
			name: "helper down",
			tr: status.Transition{
				PrevAvailability: status.Available, Availability: status.HelperDown,
				PrevClass: status.ClassNormal, Class: status.ClassUnknown,
			},
			snap:      status.Snapshot{Availability: status.HelperDown},
			wantTitle: "Headset Status Unavailable",
			wantBody:  "HeadsetControl",
			wantOK:    true,
		},
		{
			name: "device unavailable",
			tr: status.Transition{
				PrevAvailability: status.Available, Availability: status.Unavailable,
				PrevClass: status.ClassNormal, Class: status.ClassUnknown,
			},
			snap:      status.Snapshot{Availability: status.Unavailable},
			wantTitle: "Headset Disconnected",
			wantBody:  "battery unavailable",
			wantOK:    true,
		},
		{
			name: "availability change wins over class change",
			tr: status.Transition{
				PrevAvailability: status.HelperDown, Availability: status.Available,
				PrevClass: status.ClassUnknown, Class: status.ClassNormal,
			},
			snap:      status.Snapshot{Availability: status.Available, Level: 80, LevelKnown: true},
			wantTitle: "Headset Connected",
			wantBody:  "80%",
			wantOK:    true,
		},
		{
			name: "no material change",
			tr: status.Transition{
				PrevClass: status.ClassNormal, Class: status.ClassNormal,
				PrevAvailability: status.Available, Availability: status.Available,
			},
			snap:   status.Snapshot{Availability: status.Available, Level: 70, LevelKnown: true},
			wantOK: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			title, body, ok := Message(tt.tr, tt.snap, th)
			if ok != tt.wantOK {
				t.Fatalf("Message() ok = %v, want %v", ok, tt.wantOK)
			}
			if !ok {
				return
			}
			if title != tt.wantTitle {
				t.Fatalf("Message() title = %q, want %q", title, tt.wantTitle)
			}
			if !strings.Contains(body, tt.wantBody) {
				t.Fatalf("Message() body = %q, want contains %q", body, tt.wantBody)
			}
		})
	}
}

func TestNew_DisabledIsNoop(t *testing.T) {
	n := New(false)
	if err := n.Notify("title", "body"); err != nil {
		t.Fatalf("Notify() on disabled notifier error = %v", err)
	}
}
