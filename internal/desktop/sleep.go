package desktop

import (
	"log/slog"

	"github.com/godbus/dbus/v5"
)

// ResumeMonitor watches systemd-logind for suspend/resume signals. Wireless
// headsets usually drop off the dongle around a suspend, so polling right
// after resume gets the tray back to a truthful state instead of waiting out
// the remainder of the poll interval.
type ResumeMonitor struct {
	conn   *dbus.Conn
	done   chan struct{}
	resume chan struct{}
	log    *slog.Logger
}

// NewResumeMonitor connects to the system bus and subscribes to
// PrepareForSleep. Returns an error when there is no system bus, which is
// fine to treat as non-fatal; the poller ticker still runs.
func NewResumeMonitor(logger *slog.Logger) (*ResumeMonitor, error) {
	conn, err := dbus.SystemBus()
	if err != nil {
		return nil, err
	}
	err = conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.login1.Manager"),
		dbus.WithMatchMember("PrepareForSleep"),
	)
	if err != nil {
		return nil, err
	}

	m := &ResumeMonitor{
		conn:   conn,
		done:   make(chan struct{}),
		resume: make(chan struct{}, 1),
		log:    logger,
	}
	go m.listen()
	return m, nil
}

// Resume returns a channel that receives a value each time the system wakes
// from sleep. Signals are coalesced, never buffered beyond one.
func (m *ResumeMonitor) Resume() <-chan struct{} {
	return m.resume
}

// Close stops the monitor.
func (m *ResumeMonitor) Close() {
	close(m.done)
}

func (m *ResumeMonitor) listen() {
	ch := make(chan *dbus.Signal, 16)
	m.conn.Signal(ch)
	defer m.conn.RemoveSignal(ch)

	for {
		select {
		case sig := <-ch:
			if sig.Name != "org.freedesktop.login1.Manager.PrepareForSleep" || len(sig.Body) < 1 {
				continue
			}
			entering, ok := sig.Body[0].(bool)
			if !ok || entering {
				continue
			}
			m.log.Info("system resumed, refreshing headset status")
			select {
			case m.resume <- struct{}{}:
			default:
			}
		case <-m.done:
			return
		}
	}
}
