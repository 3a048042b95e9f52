package headsetcontrol

import (
	"errors"
	"testing"
	"time"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

const reportAvailable = `{
  "name": "HeadsetControl",
  "version": "3.0.0",
  "device_count": 1,
  "devices": [
    {
      "status": "success",
      "device": "SteelSeries Arctis Nova 7",
      "vendor": "0x1038",
      "product": "0x2202",
      "capabilities": ["CAP_BATTERY_STATUS", "CAP_SIDETONE", "CAP_INACTIVE_TIME", "CAP_CHATMIX"],
      "battery": {"status": "BATTERY_AVAILABLE", "level": 75},
      "chatmix": 64
    }
  ]
}`

const reportCharging = `{
  "device_count": 1,
  "devices": [
    {
      "device": "HyperX Cloud Flight",
      "battery": {"status": "BATTERY_CHARGING", "level": 0}
    }
  ]
}`

const reportUnavailable = `{
  "device_count": 1,
  "devices": [
    {
      "device": "Corsair Void Pro",
      "battery": {"status": "BATTERY_UNAVAILABLE", "level": 0}
    }
  ]
}`

const reportChatMixObject = `{
  "device_count": 1,
  "devices": [
    {
      "device": "SteelSeries Arctis 7",
      "battery": {"status": "BATTERY_AVAILABLE", "level": 40},
      "chatmix": {"level": 32}
    }
  ]
}`

const reportNoDevices = `{"device_count": 0, "devices": []}`

func TestParseReport_Available(t *testing.T) {
	dev, err := parseReport([]byte(reportAvailable))
	if err != nil {
		t.Fatalf("parseReport() error = %v", err)
	}

	now := time.Now()
	snap := snapshotFromDevice(dev, now)
	if snap.Availability != status.Available {
		t.Fatalf("availability = %v, want available", snap.Availability)
	}
	if !snap.LevelKnown || snap.Level != 75 {
		t.Fatalf("level = %d (known=%v), want 75", snap.Level, snap.LevelKnown)
	}
	if snap.Charging {
		t.Fatal("charging = true, want false")
	}
	if snap.ChatMix == nil || *snap.ChatMix != 64 {
		t.Fatalf("chatmix = %v, want 64", snap.ChatMix)
	}
	if snap.Device != "SteelSeries Arctis Nova 7" {
		t.Fatalf("device = %q", snap.Device)
	}
	if !snap.TakenAt.Equal(now) {
		t.Fatal("TakenAt not set from poll time")
	}
}

func TestParseReport_Charging(t *testing.T) {
	dev, err := parseReport([]byte(reportCharging))
	if err != nil {
		t.Fatalf("parseReport() error = %v", err)
	}

	snap := snapshotFromDevice(dev, time.Now())
	if snap.Availability != status.Available || !snap.Charging {
		t.Fatalf("got availability=%v charging=%v, want available+charging", snap.Availability, snap.Charging)
	}
	// Level 0 while charging means "not reported", not an empty battery.
	if snap.LevelKnown {
		t.Fatal("LevelKnown = true for zero charging level")
	}
}

func TestParseReport_Unavailable(t *testing.T) {
	dev, err := parseReport([]byte(reportUnavailable))
	if err != nil {
		t.Fatalf("parseReport() error = %v", err)
	}

	snap := snapshotFromDevice(dev, time.Now())
	if snap.Availability != status.Unavailable {
		t.Fatalf("availability = %v, want unavailable", snap.Availability)
	}
	if snap.LevelKnown {
		t.Fatal("LevelKnown = true for unavailable battery")
	}
}

func TestParseReport_ChatMixObjectShape(t *testing.T) {
	dev, err := parseReport([]byte(reportChatMixObject))
	if err != nil {
		t.Fatalf("parseReport() error = %v", err)
	}

	snap := snapshotFromDevice(dev, time.Now())
	if snap.ChatMix == nil || *snap.ChatMix != 32 {
		t.Fatalf("chatmix = %v, want 32", snap.ChatMix)
	}
}

func TestParseReport_NoDevices(t *testing.T) {
	_, err := parseReport([]byte(reportNoDevices))
	if !errors.Is(err, ErrNoDevice) {
		t.Fatalf("parseReport() error = %v, want ErrNoDevice", err)
	}
}

func TestParseReport_MalformedJSON(t *testing.T) {
	for _, input := range []string{"", "not json", `{"devices": "nope"}`} {
		_, err := parseReport([]byte(input))
		if !errors.Is(err, ErrMalformedOutput) {
			t.Errorf("parseReport(%q) error = %v, want ErrMalformedOutput", input, err)
		}
	}
}

func TestCapabilitiesFromDevice(t *testing.T) {
	dev, err := parseReport([]byte(reportAvailable))
	if err != nil {
		t.Fatalf("parseReport() error = %v", err)
	}

	caps := capabilitiesFromDevice(dev)
	if !caps.Battery || !caps.ChatMix || !caps.Sidetone || !caps.InactiveTime {
		t.Fatalf("caps = %+v, want battery+chatmix+sidetone+inactive", caps)
	}
	if caps.LED {
		t.Fatal("caps.LED = true, not in report")
	}
}

func TestMissingBatteryObject(t *testing.T) {
	dev, err := parseReport([]byte(`{"device_count":1,"devices":[{"device":"x"}]}`))
	if err != nil {
		t.Fatalf("parseReport() error = %v", err)
	}
	snap := snapshotFromDevice(dev, time.Now())
	if snap.Availability != status.Unavailable {
		t.Fatalf("availability = %v, want unavailable when battery object missing", snap.Availability)
	}
}
