package dbus

import (
	"encoding/json"
	"path/filepath"
	"testing"
	"time"

	godbus "github.com/godbus/dbus/v5"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/storage"
)

type fakeRefresher struct {
	calls int
}

func (f *fakeRefresher) Refresh() { f.calls++ }

func newTestService(t *testing.T) (*Service, *storage.DB, *fakeRefresher) {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := storage.Open(path)
	if err != nil {
		t.Fatalf("storage.Open() error = %v", err)
	}
	t.Cleanup(func() {
		if err := db.Close(); err != nil {
			t.Fatalf("db.Close() error = %v", err)
		}
	})

	ref := &fakeRefresher{}
	return NewService(db, status.Thresholds{Low: 20, Medium: 50}, ref), db, ref
}

func TestService_InvalidTimeRanges(t *testing.T) {
	svc, _, _ := newTestService(t)

	tests := []struct {
		name string
		call func() *godbus.Error
	}{
		{
			name: "GetHistory negative from",
			call: func() *godbus.Error {
				_, err := svc.GetHistory(-1, 0)
				return err
			},
		},
		{
			name: "GetHistory to before from",
			call: func() *godbus.Error {
				_, err := svc.GetHistory(10, 9)
				return err
			},
		},
		{
			name: "GetHistory range too large",
			call: func() *godbus.Error {
				_, err := svc.GetHistory(0, 86400*366)
				return err
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.call(); err == nil {
				t.Fatal("expected D-Bus error, got nil")
			}
		})
	}
}

func TestService_GetStatusJSONShape(t *testing.T) {
	svc, _, _ := newTestService(t)

	// Before the first poll, GetStatus reports unavailability rather than
	// erroring.
	emptyJSON, dbusErr := svc.GetStatus()
	if dbusErr != nil {
		t.Fatalf("GetStatus() before update error = %v", dbusErr)
	}
	var empty map[string]any
	if err := json.Unmarshal([]byte(emptyJSON), &empty); err != nil {
		t.Fatalf("unmarshal status JSON: %v", err)
	}
	if avail, ok := empty["available"].(bool); !ok || avail {
		t.Fatalf("pre-update status = %s, want available=false", emptyJSON)
	}

	mix := 64
	svc.Update(status.Snapshot{
		TakenAt:      time.Unix(1000, 0),
		Availability: status.Available,
		Level:        55,
		LevelKnown:   true,
		ChatMix:      &mix,
		Device:       "Test Headset",
	})

	statusJSON, dbusErr := svc.GetStatus()
	if dbusErr != nil {
		t.Fatalf("GetStatus() error = %v", dbusErr)
	}
	var got map[string]any
	if err := json.Unmarshal([]byte(statusJSON), &got); err != nil {
		t.Fatalf("unmarshal status JSON: %v", err)
	}
	if got["classification"] != "normal" {
		t.Fatalf("classification = %v, want normal: %s", got["classification"], statusJSON)
	}
	if got["level"].(float64) != 55 {
		t.Fatalf("level = %v, want 55", got["level"])
	}
	if got["chatmix"].(float64) != 64 {
		t.Fatalf("chatmix = %v, want 64", got["chatmix"])
	}
	if got["device"] != "Test Headset" {
		t.Fatalf("device = %v", got["device"])
	}
}

func TestService_GetHistoryJSONShape(t *testing.T) {
	svc, db, _ := newTestService(t)

	if err := db.InsertSample(storage.HistorySample{Timestamp: 100, Level: 80}); err != nil {
		t.Fatalf("InsertSample() error = %v", err)
	}

	historyJSON, dbusErr := svc.GetHistory(0, 200)
	if dbusErr != nil {
		t.Fatalf("GetHistory() error = %v", dbusErr)
	}
	var history map[string]json.RawMessage
	if err := json.Unmarshal([]byte(historyJSON), &history); err != nil {
		t.Fatalf("unmarshal history JSON: %v", err)
	}
	if _, ok := history["battery"]; !ok {
		t.Fatalf("history JSON missing key %q: %s", "battery", historyJSON)
	}
}

func TestService_RefreshForwards(t *testing.T) {
	svc, _, ref := newTestService(t)

	if err := svc.Refresh(); err != nil {
		t.Fatalf("Refresh() error = %v", err)
	}
	if ref.calls != 1 {
		t.Fatalf("refresher calls = %d, want 1", ref.calls)
	}
}
