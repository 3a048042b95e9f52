package main

import (
	"context"
	"flag"
	"image"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/config"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/desktop"
	dbussvc "github.com/jpsutton/headset-charge-indicator-qt/internal/dbus"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/headsetcontrol"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/notify"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/poller"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/storage"
	"github.com/jpsutton/headset-charge-indicator-qt/internal/tray"
)

// Settings keys persisted between runs.
const (
	keySidetone     = "sidetone_level"
	keyLED          = "led_state"
	keyInactiveTime = "inactive_time"
)

// topicHandler wraps an slog.Handler and filters records by a "topic" attribute.
// Records without a topic attribute always pass through (startup messages, errors).
// Records with a topic only pass if that topic is enabled.
type topicHandler struct {
	inner  slog.Handler
	topics map[string]bool
	topic  string // set when WithAttrs includes a "topic" key
}

func (h *topicHandler) Enabled(_ context.Context, level slog.Level) bool {
	return h.inner.Enabled(context.Background(), level)
}

func (h *topicHandler) Handle(ctx context.Context, r slog.Record) error {
	if h.topics["all"] {
		return h.inner.Handle(ctx, r)
	}
	topic := h.topic
	if topic == "" {
		// Check record-level attrs as fallback.
		r.Attrs(func(a slog.Attr) bool {
			if a.Key == "topic" {
				topic = a.Value.String()
				return false
			}
			return true
		})
	}
	if topic != "" && !h.topics[topic] {
		return nil
	}
	return h.inner.Handle(ctx, r)
}

func (h *topicHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	topic := h.topic
	for _, a := range attrs {
		if a.Key == "topic" {
			topic = a.Value.String()
		}
	}
	return &topicHandler{inner: h.inner.WithAttrs(attrs), topics: h.topics, topic: topic}
}

func (h *topicHandler) WithGroup(name string) slog.Handler {
	return &topicHandler{inner: h.inner.WithGroup(name), topics: h.topics, topic: h.topic}
}

func main() {
	configPath := flag.String("config", "", "path to config file (default: $XDG_CONFIG_HOME/headset-indicator/config.toml)")
	helperFlag := flag.String("helper", "", "path to the headsetcontrol binary")
	pollInterval := flag.Int("poll-interval", 0, "polling interval in seconds")
	lowFlag := flag.Int("low", 0, "battery percentage threshold for the red icon")
	mediumFlag := flag.Int("medium", 0, "battery percentage threshold for the orange icon")
	noNotifications := flag.Bool("no-notifications", false, "disable desktop notifications")
	iconFlag := flag.String("icon", "", "path to a PNG to use as the base tray icon")
	forceTray := flag.String("force-tray", "", "force tray backend: sni or legacy")
	verbose := flag.Bool("verbose", false, "enable all verbose logging (equivalent to -log=all)")
	logFlag := flag.String("log", "", "comma-separated log topics: helper,battery,tray,storage,dbus (or 'all')")
	resetDB := flag.Bool("reset-db", false, "delete the history database and start fresh")
	flag.Parse()

	topics := make(map[string]bool)
	if *verbose {
		topics["all"] = true
	}
	if *logFlag != "" {
		for _, t := range strings.Split(*logFlag, ",") {
			topics[strings.TrimSpace(t)] = true
		}
	}

	handler := &topicHandler{
		inner:  slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}),
		topics: topics,
	}
	logger := slog.New(handler)

	cfg, err := loadConfig(*configPath)
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	// Flag values beat config file values.
	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "helper":
			cfg.Helper.Binary = *helperFlag
		case "poll-interval":
			cfg.Poll.IntervalSeconds = *pollInterval
		case "low":
			cfg.Battery.LowThreshold = *lowFlag
		case "medium":
			cfg.Battery.MediumThreshold = *mediumFlag
		case "no-notifications":
			cfg.Notifications.Enabled = !*noNotifications
		case "icon":
			cfg.Tray.IconPath = *iconFlag
		case "force-tray":
			cfg.Tray.ForceBackend = *forceTray
		}
	})
	cfg, err = config.NormalizeAndValidate(cfg)
	if err != nil {
		logger.Error("invalid configuration", "err", err)
		os.Exit(1)
	}

	if *resetDB {
		for _, suffix := range []string{"", "-wal", "-shm"} {
			if err := os.Remove(cfg.Storage.DBPath + suffix); err != nil && !os.IsNotExist(err) {
				logger.Error("delete database", "err", err)
				os.Exit(1)
			}
		}
		logger.Info("database deleted", "path", cfg.Storage.DBPath)
		return
	}

	if err := os.MkdirAll(filepath.Dir(cfg.Storage.DBPath), 0o755); err != nil {
		logger.Error("create data dir", "err", err)
		os.Exit(1)
	}
	store, err := storage.Open(cfg.Storage.DBPath)
	if err != nil {
		logger.Error("open database", "err", err)
		os.Exit(1)
	}
	defer store.Close()

	helperTimeout := time.Duration(cfg.Helper.TimeoutSeconds) * time.Second
	client, err := headsetcontrol.New(cfg.Helper.Binary, helperTimeout, logger.With("topic", "helper"))
	if err != nil {
		logger.Error("locate headsetcontrol binary", "err", err)
		os.Exit(2)
	}
	logger.Info("using helper", "path", client.Binary())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	caps := client.Capabilities(ctx)
	logger.Info("headset capabilities",
		"battery", caps.Battery,
		"chatmix", caps.ChatMix,
		"sidetone", caps.Sidetone,
		"led", caps.LED,
		"inactive_time", caps.InactiveTime)

	backend := desktop.Resolve(cfg.Tray.ForceBackend, logger)
	logger.Info("tray backend selected", "backend", string(backend))

	var baseIcon image.Image
	if cfg.Tray.IconPath != "" {
		baseIcon, err = tray.LoadBaseIcon(cfg.Tray.IconPath)
		if err != nil {
			logger.Warn("custom icon unusable, using built-in glyph", "path", cfg.Tray.IconPath, "err", err)
		}
	}

	thresholds := cfg.Thresholds()
	notifier := notify.New(cfg.Notifications.Enabled)
	tracker := status.NewTracker(thresholds)
	interval := time.Duration(cfg.Poll.IntervalSeconds) * time.Second

	app := &appState{
		cancel:  cancel,
		client:  client,
		caps:    caps,
		store:   store,
		timeout: helperTimeout,
		log:     logger,
	}
	pol := poller.New(app, tracker, interval, logger.With("topic", "battery"))
	app.pol = pol

	svc := dbussvc.NewService(store, thresholds, pol)
	conn, err := svc.Export()
	if err != nil {
		// Likely a second running instance or a session without a bus.
		// The tray still works, so keep going without the D-Bus surface.
		logger.Warn("D-Bus service unavailable", "err", err)
	} else {
		defer conn.Close()
		logger.Info("D-Bus service registered", "name", "org.headsetcharge.Indicator", "topic", "dbus")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("shutting down")
		cancel()
		tray.Quit()
	}()

	onUpdate := func(snap status.Snapshot, tr status.Transition, changed bool) {
		class := snap.Classification(thresholds)
		tray.Update(snap, class)
		svc.Update(snap)

		if snap.Availability == status.Available {
			level := -1
			if snap.LevelKnown {
				level = snap.Level
			}
			sample := storage.HistorySample{
				Timestamp: snap.TakenAt.Unix(),
				Level:     level,
				Charging:  snap.Charging,
				ChatMix:   snap.ChatMix,
			}
			if err := store.InsertSample(sample); err != nil {
				logger.Error("store battery sample", "err", err, "topic", "storage")
			}
		}

		if changed {
			logger.Info("status changed",
				"class", class.String(),
				"availability", snap.Availability.String(),
				"charging", snap.Charging,
				"topic", "battery")
			if title, body, ok := notify.Message(tr, snap, thresholds); ok {
				if err := notifier.Notify(title, body); err != nil {
					logger.Warn("desktop notification failed", "err", err)
				}
			}
		}
	}

	logger.Info("headset indicator started", "interval", interval.String())
	tray.Run(app,
		tray.Options{Caps: caps, Backend: backend, BaseIcon: baseIcon, Log: logger.With("topic", "tray")},
		func() {
			app.restoreSavedSettings(ctx)
			go pol.Run(ctx, onUpdate)
			go runCleanup(ctx, store, cfg.Storage, logger.With("topic", "storage"))
			go watchResume(ctx, pol, logger)
		},
		func() {
			cancel()
		})
}

// loadConfig reads the config file if one exists, falling back to defaults
// when running without any configuration at all.
func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.Load(path)
	}
	def := config.DefaultPath()
	if def != "" {
		if _, err := os.Stat(def); err == nil {
			return config.Load(def)
		}
	}
	return config.DefaultConfig(), nil
}

// watchResume refreshes the headset status as soon as the machine wakes from
// suspend instead of waiting for the next poll tick.
func watchResume(ctx context.Context, pol *poller.Poller, log *slog.Logger) {
	mon, err := desktop.NewResumeMonitor(log)
	if err != nil {
		log.Warn("suspend/resume monitoring unavailable", "err", err)
		return
	}
	defer mon.Close()

	for {
		select {
		case <-ctx.Done():
			return
		case <-mon.Resume():
			pol.Refresh()
		}
	}
}

func runCleanup(ctx context.Context, store *storage.DB, cfg config.StorageConfig, log *slog.Logger) {
	interval := time.Duration(cfg.CleanupIntervalHours) * time.Hour
	retention := time.Duration(cfg.RetentionDays) * 24 * time.Hour

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		cutoff := time.Now().Add(-retention).Unix()
		if deleted, err := store.DeleteOlderThan(cutoff); err != nil {
			log.Error("history cleanup failed", "err", err)
		} else if deleted > 0 {
			log.Info("history cleanup", "deleted", deleted)
		}

		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// appState wires the tray menu and poller to the helper client and the
// settings store.
type appState struct {
	cancel  context.CancelFunc
	client  *headsetcontrol.Client
	caps    headsetcontrol.Capabilities
	store   *storage.DB
	pol     *poller.Poller
	timeout time.Duration
	log     *slog.Logger
}

// Status implements poller.Source. The helper does not report sidetone or
// LED state back, so snapshots carry the last values applied through it.
func (a *appState) Status(ctx context.Context) (status.Snapshot, error) {
	snap, err := a.client.Status(ctx, a.caps)
	if err != nil {
		return snap, err
	}
	if level, ok := a.SavedSidetone(); ok {
		snap.Sidetone = &level
	}
	if on, ok := a.SavedLED(); ok {
		snap.LED = &on
	}
	return snap, nil
}

func (a *appState) RefreshNow() {
	a.pol.Refresh()
}

func (a *appState) RequestShutdown() {
	a.cancel()
	tray.Quit()
}

func (a *appState) ApplySidetone(level int) {
	go a.applySetting(keySidetone, strconv.Itoa(level), func(ctx context.Context) error {
		return a.client.SetSidetone(ctx, level)
	})
}

func (a *appState) ApplyLED(on bool) {
	value := "0"
	if on {
		value = "1"
	}
	go a.applySetting(keyLED, value, func(ctx context.Context) error {
		return a.client.SetLED(ctx, on)
	})
}

func (a *appState) ApplyInactiveTime(minutes int) {
	go a.applySetting(keyInactiveTime, strconv.Itoa(minutes), func(ctx context.Context) error {
		return a.client.SetInactiveTime(ctx, minutes)
	})
}

func (a *appState) applySetting(key, value string, set func(context.Context) error) {
	ctx, cancelSet := context.WithTimeout(context.Background(), a.timeout)
	defer cancelSet()

	if err := set(ctx); err != nil {
		a.log.Warn("apply headset setting failed", "key", key, "value", value, "err", err)
		return
	}
	if err := a.store.SetSetting(key, value); err != nil {
		a.log.Error("persist headset setting", "key", key, "err", err, "topic", "storage")
	}
}

func (a *appState) SavedSidetone() (int, bool) {
	return a.savedInt(keySidetone)
}

func (a *appState) SavedLED() (bool, bool) {
	v, ok := a.savedInt(keyLED)
	return v == 1, ok
}

func (a *appState) SavedInactiveTime() (int, bool) {
	return a.savedInt(keyInactiveTime)
}

func (a *appState) savedInt(key string) (int, bool) {
	value, ok, err := a.store.Setting(key)
	if err != nil {
		a.log.Error("read setting", "key", key, "err", err, "topic", "storage")
		return 0, false
	}
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		a.log.Warn("stored setting not a number", "key", key, "value", value)
		return 0, false
	}
	return n, true
}

// restoreSavedSettings replays saved headset settings against the helper,
// since the headset forgets them when it powers off.
func (a *appState) restoreSavedSettings(ctx context.Context) {
	if a.caps.Sidetone {
		if level, ok := a.SavedSidetone(); ok {
			if err := a.client.SetSidetone(ctx, level); err != nil {
				a.log.Warn("restore sidetone failed", "level", level, "err", err)
			}
		}
	}
	if a.caps.LED {
		if on, ok := a.SavedLED(); ok {
			if err := a.client.SetLED(ctx, on); err != nil {
				a.log.Warn("restore LED state failed", "on", on, "err", err)
			}
		}
	}
	if a.caps.InactiveTime {
		if minutes, ok := a.SavedInactiveTime(); ok {
			if err := a.client.SetInactiveTime(ctx, minutes); err != nil {
				a.log.Warn("restore inactive time failed", "minutes", minutes, "err", err)
			}
		}
	}
}
