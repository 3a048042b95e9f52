package dbus

import (
	"encoding/json"
	"fmt"
	"sync"

	godbus "github.com/godbus/dbus/v5"
	"github.com/godbus/dbus/v5/introspect"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/storage"
)

const (
	busName   = "org.headsetcharge.Indicator"
	objPath   = "/org/headsetcharge/Indicator"
	ifaceName = "org.headsetcharge.Indicator"
)

// maxRangeSeconds caps history queries at one year.
const maxRangeSeconds = 86400 * 365

const introspectXML = `
<node>
  <interface name="` + ifaceName + `">
    <method name="GetStatus">
      <arg direction="out" type="s" name="json"/>
    </method>
    <method name="GetHistory">
      <arg direction="in" type="x" name="from_epoch"/>
      <arg direction="in" type="x" name="to_epoch"/>
      <arg direction="out" type="s" name="json"/>
    </method>
    <method name="Refresh"/>
  </interface>
` + introspect.IntrospectDataString + `
</node>`

// Refresher requests an immediate poll.
type Refresher interface {
	Refresh()
}

// Service exposes the indicator's current status and battery history over
// the session bus, so scripts and status bars can query it without
// scraping the tray.
type Service struct {
	store      *storage.DB
	thresholds status.Thresholds
	refresher  Refresher

	mu   sync.Mutex
	last *status.Snapshot
}

// NewService creates a new D-Bus service.
func NewService(store *storage.DB, thresholds status.Thresholds, refresher Refresher) *Service {
	return &Service{store: store, thresholds: thresholds, refresher: refresher}
}

// Export registers the service on the session bus.
func (s *Service) Export() (*godbus.Conn, error) {
	conn, err := godbus.SessionBus()
	if err != nil {
		return nil, fmt.Errorf("connect session bus: %w", err)
	}

	conn.Export(s, objPath, ifaceName)
	conn.Export(introspect.Introspectable(introspectXML), objPath, "org.freedesktop.DBus.Introspectable")

	reply, err := conn.RequestName(busName, godbus.NameFlagDoNotQueue)
	if err != nil {
		return nil, fmt.Errorf("request name: %w", err)
	}
	if reply != godbus.RequestNameReplyPrimaryOwner {
		return nil, fmt.Errorf("name %s already taken", busName)
	}

	return conn, nil
}

// Update records the latest snapshot for GetStatus.
func (s *Service) Update(snap status.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = &snap
}

// GetStatus returns the latest snapshot and its classification as JSON.
func (s *Service) GetStatus() (string, *godbus.Error) {
	s.mu.Lock()
	last := s.last
	s.mu.Unlock()

	result := map[string]any{"available": false}
	if last != nil {
		result = map[string]any{
			"available":      last.Availability == status.Available,
			"availability":   last.Availability.String(),
			"classification": last.Classification(s.thresholds).String(),
			"charging":       last.Charging,
			"taken_at":       last.TakenAt.Unix(),
		}
		if last.LevelKnown {
			result["level"] = last.Level
		}
		if last.ChatMix != nil {
			result["chatmix"] = *last.ChatMix
		}
		if last.Sidetone != nil {
			result["sidetone"] = *last.Sidetone
		}
		if last.LED != nil {
			result["led"] = *last.LED
		}
		if last.Device != "" {
			result["device"] = last.Device
		}
	}

	data, err := json.Marshal(result)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

// GetHistory returns battery readings in a time range as JSON.
func (s *Service) GetHistory(fromEpoch, toEpoch int64) (string, *godbus.Error) {
	if err := validateRange(fromEpoch, toEpoch); err != nil {
		return "", godbus.MakeFailedError(err)
	}

	samples, err := s.store.SamplesInRange(fromEpoch, toEpoch)
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	data, err := json.Marshal(map[string]any{"battery": samples})
	if err != nil {
		return "", godbus.MakeFailedError(err)
	}
	return string(data), nil
}

// Refresh requests an immediate poll.
func (s *Service) Refresh() *godbus.Error {
	if s.refresher != nil {
		s.refresher.Refresh()
	}
	return nil
}

func validateRange(from, to int64) error {
	if from < 0 || to < 0 {
		return fmt.Errorf("epoch must not be negative")
	}
	if to < from {
		return fmt.Errorf("to (%d) must not be before from (%d)", to, from)
	}
	if to-from > maxRangeSeconds {
		return fmt.Errorf("range must not exceed %d seconds", int64(maxRangeSeconds))
	}
	return nil
}
