// Package desktop probes the session bus to pick a tray backend.
package desktop

import (
	"log/slog"

	godbus "github.com/godbus/dbus/v5"
)

// Backend names the tray surface variant in use.
type Backend string

const (
	// BackendSNI means a StatusNotifierItem host is present (KDE Plasma,
	// GNOME with the appindicator extension). These hosts show the item
	// title next to the icon.
	BackendSNI Backend = "sni"
	// BackendLegacy is the XEmbed fallback; tooltip only.
	BackendLegacy Backend = "legacy"
)

const watcherName = "org.kde.StatusNotifierWatcher"

// Detect checks whether a StatusNotifierWatcher owns its well-known name
// on the session bus. Any bus failure falls back to legacy.
func Detect(log *slog.Logger) Backend {
	conn, err := godbus.SessionBus()
	if err != nil {
		log.Debug("session bus unavailable, assuming legacy tray", "err", err)
		return BackendLegacy
	}

	var has bool
	err = conn.BusObject().Call("org.freedesktop.DBus.NameHasOwner", 0, watcherName).Store(&has)
	if err != nil {
		log.Debug("StatusNotifierWatcher probe failed, assuming legacy tray", "err", err)
		return BackendLegacy
	}
	if !has {
		return BackendLegacy
	}
	return BackendSNI
}

// Resolve applies the force override from configuration or flags, falling
// back to detection when no override is set.
func Resolve(force string, log *slog.Logger) Backend {
	switch force {
	case string(BackendSNI):
		return BackendSNI
	case string(BackendLegacy):
		return BackendLegacy
	}
	return Detect(log)
}
