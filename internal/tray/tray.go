// Package tray renders headset status as a system tray icon with a
// context menu for the headset's tunable settings.
package tray

import (
	"fmt"
	"image"
	"log/slog"
	"sync/atomic"

	"fyne.io/systray"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/desktop"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/headsetcontrol"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

// App is the tray's view of the rest of the program. Apply methods run the
// helper setter and persist the chosen value; they are expected to be
// non-blocking or fast.
type App interface {
	RefreshNow()
	ApplySidetone(level int)
	ApplyLED(on bool)
	ApplyInactiveTime(minutes int)
	SavedSidetone() (int, bool)
	SavedLED() (bool, bool)
	SavedInactiveTime() (int, bool)
	RequestShutdown()
}

// Options configures the tray at startup. Menu rows for features the
// headset does not support are omitted, per the capability probe.
type Options struct {
	Caps     headsetcontrol.Capabilities
	Backend  desktop.Backend
	BaseIcon image.Image
	Log      *slog.Logger
}

// Sidetone menu levels map to the helper's 0-128 range.
var sidetoneOptions = []struct {
	name  string
	level int
}{
	{"off", 0},
	{"low", 32},
	{"medium", 64},
	{"high", 96},
	{"max", 128},
}

var inactiveOptions = []struct {
	name    string
	minutes int
}{
	{"off", 0},
	{"5 min", 5},
	{"15 min", 15},
	{"30 min", 30},
	{"60 min", 60},
	{"90 min", 90},
}

var (
	app  App
	opts Options

	ready atomic.Bool

	refreshItem *systray.MenuItem
	chargeItem  *systray.MenuItem
	chatmixItem *systray.MenuItem
	quitItem    *systray.MenuItem

	sidetoneItems []*systray.MenuItem
	ledOnItem     *systray.MenuItem
	ledOffItem    *systray.MenuItem
	inactiveItems []*systray.MenuItem

	onReadyHook func()
)

// Run starts the tray event loop. It blocks the calling goroutine (must be
// main). onReady runs once the menu exists; launch the poller there.
// onExit runs when the tray shuts down.
func Run(a App, o Options, onReady, onExit func()) {
	app = a
	opts = o
	onReadyHook = onReady
	systray.Run(trayReady, onExit)
}

// Quit signals the tray to exit.
func Quit() {
	systray.Quit()
}

func trayReady() {
	icon, err := Render(status.Snapshot{}, status.ClassUnknown, opts.BaseIcon)
	if err != nil {
		opts.Log.Error("render initial icon", "err", err)
	} else {
		systray.SetIcon(icon)
	}
	systray.SetTooltip("Headset\nInitializing...")

	refreshItem = systray.AddMenuItem("Refresh", "Poll the headset now")

	if opts.Caps.Battery {
		chargeItem = systray.AddMenuItem("Charge: N/A", "")
		chargeItem.Disable()
	}
	if opts.Caps.ChatMix {
		chatmixItem = systray.AddMenuItem("ChatMix: N/A", "")
		chatmixItem.Disable()
	}

	if opts.Caps.Sidetone {
		menu := systray.AddMenuItem("Sidetone", "Microphone feedback level")
		saved, haveSaved := app.SavedSidetone()
		for _, opt := range sidetoneOptions {
			checked := haveSaved && saved == opt.level
			sidetoneItems = append(sidetoneItems, menu.AddSubMenuItemCheckbox(opt.name, "", checked))
		}
	}
	if opts.Caps.LED {
		menu := systray.AddMenuItem("LED", "Headset lights")
		saved, haveSaved := app.SavedLED()
		ledOffItem = menu.AddSubMenuItemCheckbox("off", "", haveSaved && !saved)
		ledOnItem = menu.AddSubMenuItemCheckbox("on", "", haveSaved && saved)
	}
	if opts.Caps.InactiveTime {
		menu := systray.AddMenuItem("Inactive time", "Auto-off idle timeout")
		saved, haveSaved := app.SavedInactiveTime()
		for _, opt := range inactiveOptions {
			checked := haveSaved && saved == opt.minutes
			inactiveItems = append(inactiveItems, menu.AddSubMenuItemCheckbox(opt.name, "", checked))
		}
	}

	systray.AddSeparator()
	quitItem = systray.AddMenuItem("Quit", "Stop the headset indicator")

	go handleClicks()
	for i, item := range sidetoneItems {
		go handleSidetoneClicks(item, i)
	}
	for i, item := range inactiveItems {
		go handleInactiveClicks(item, i)
	}
	if ledOnItem != nil {
		go handleLEDClicks()
	}

	ready.Store(true)
	if onReadyHook != nil {
		onReadyHook()
	}
}

func handleClicks() {
	for {
		select {
		case <-refreshItem.ClickedCh:
			app.RefreshNow()
		case <-quitItem.ClickedCh:
			app.RequestShutdown()
		}
	}
}

func handleSidetoneClicks(item *systray.MenuItem, idx int) {
	for range item.ClickedCh {
		app.ApplySidetone(sidetoneOptions[idx].level)
		for i, it := range sidetoneItems {
			if i == idx {
				it.Check()
			} else {
				it.Uncheck()
			}
		}
	}
}

func handleInactiveClicks(item *systray.MenuItem, idx int) {
	for range item.ClickedCh {
		app.ApplyInactiveTime(inactiveOptions[idx].minutes)
		for i, it := range inactiveItems {
			if i == idx {
				it.Check()
			} else {
				it.Uncheck()
			}
		}
	}
}

func handleLEDClicks() {
	for {
		select {
		case <-ledOnItem.ClickedCh:
			app.ApplyLED(true)
			ledOnItem.Check()
			ledOffItem.Uncheck()
		case <-ledOffItem.ClickedCh:
			app.ApplyLED(false)
			ledOffItem.Check()
			ledOnItem.Uncheck()
		}
	}
}

// Update refreshes the icon, tooltip, and info rows for a new snapshot.
// Safe to call from any goroutine once the tray is ready.
func Update(snap status.Snapshot, class status.Class) {
	if !ready.Load() {
		return
	}

	icon, err := Render(snap, class, opts.BaseIcon)
	if err != nil {
		opts.Log.Error("render icon", "err", err)
	} else {
		systray.SetIcon(icon)
	}

	text, tooltip := statusText(snap)
	systray.SetTooltip("Headset\n" + tooltip)
	if opts.Backend == desktop.BackendSNI {
		// SNI hosts show the title next to the icon.
		systray.SetTitle(text)
	}

	if chargeItem != nil {
		chargeItem.SetTitle("Charge: " + text)
	}
	if chatmixItem != nil {
		if snap.ChatMix != nil {
			chatmixItem.SetTitle(fmt.Sprintf("ChatMix: %d", *snap.ChatMix))
		} else {
			chatmixItem.SetTitle("ChatMix: N/A")
		}
	}
}

func statusText(snap status.Snapshot) (short, tooltip string) {
	switch snap.Availability {
	case status.HelperDown:
		return "N/A", "Connection Error"
	case status.Unavailable:
		return "Off", "Battery Unavailable"
	}
	if snap.Charging && !snap.LevelKnown {
		return "Chg", "Charging"
	}
	if !snap.LevelKnown {
		return "N/A", "Battery Unknown"
	}
	pct := fmt.Sprintf("%d%%", snap.Level)
	if snap.Charging {
		return pct, "Charging: " + pct
	}
	return pct, "Battery: " + pct
}
