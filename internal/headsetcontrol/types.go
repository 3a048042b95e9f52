package headsetcontrol

import (
	"encoding/json"
	"fmt"
)

// Battery status strings emitted by HeadsetControl's JSON output.
const (
	batteryAvailable   = "BATTERY_AVAILABLE"
	batteryCharging    = "BATTERY_CHARGING"
	batteryUnavailable = "BATTERY_UNAVAILABLE"
)

// Capability strings from `headsetcontrol -? -o JSON`.
const (
	capBattery      = "CAP_BATTERY_STATUS"
	capChatMix      = "CAP_CHATMIX"
	capSidetone     = "CAP_SIDETONE"
	capLED          = "CAP_LED"
	capInactiveTime = "CAP_INACTIVE_TIME"
)

// Capabilities lists which features the connected headset supports.
type Capabilities struct {
	Battery      bool
	ChatMix      bool
	Sidetone     bool
	LED          bool
	InactiveTime bool
}

// All returns capabilities with every feature enabled. Used when the probe
// fails, so the UI does not hide features it cannot rule out.
func AllCapabilities() Capabilities {
	return Capabilities{Battery: true, ChatMix: true, Sidetone: true, LED: true, InactiveTime: true}
}

// report mirrors the top level of HeadsetControl's -o JSON output. Only the
// fields this program consumes are declared; the contract is owned by the
// HeadsetControl project.
type report struct {
	Name        string   `json:"name"`
	Version     string   `json:"version"`
	DeviceCount int      `json:"device_count"`
	Devices     []device `json:"devices"`
}

type device struct {
	Status       string            `json:"status"`
	Device       string            `json:"device"`
	Vendor       string            `json:"vendor"`
	Product      string            `json:"product"`
	Capabilities []string          `json:"capabilities"`
	Battery      *batteryInfo      `json:"battery"`
	ChatMix      *chatMixValue     `json:"chatmix"`
	Errors       map[string]string `json:"errors"`
}

type batteryInfo struct {
	Status string `json:"status"`
	Level  int    `json:"level"`
}

// chatMixValue accepts both shapes HeadsetControl has emitted over time:
// a bare number and an object with a "level" field.
type chatMixValue struct {
	Level int
}

func (c *chatMixValue) UnmarshalJSON(data []byte) error {
	var n int
	if err := json.Unmarshal(data, &n); err == nil {
		c.Level = n
		return nil
	}
	var obj struct {
		Level int `json:"level"`
	}
	if err := json.Unmarshal(data, &obj); err != nil {
		return fmt.Errorf("chatmix is neither a number nor an object: %w", err)
	}
	c.Level = obj.Level
	return nil
}
