// Package headsetcontrol invokes the external HeadsetControl binary
// (https://github.com/Sapd/HeadsetControl/) and parses its JSON output.
// All device communication is delegated to that binary; this package only
// runs it and normalizes what it prints.
package headsetcontrol

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os/exec"
	"time"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

// Helper flag set, fixed by the HeadsetControl CLI.
const (
	flagBattery      = "-b"
	flagChatMix      = "-m"
	flagSidetone     = "-s"
	flagLED          = "-l"
	flagInactiveTime = "-i"
	flagCapabilities = "-?"
	flagSilent       = "-c"
	flagOutput       = "-o"
	outputFormat     = "JSON"
)

// ErrHelperNotFound is returned by New when the binary cannot be located.
var ErrHelperNotFound = errors.New("headsetcontrol binary not found")

// Client runs the HeadsetControl binary with a bounded timeout per call.
type Client struct {
	binary  string
	timeout time.Duration
	log     *slog.Logger
}

// New locates the helper binary on PATH (or verifies an explicit path) and
// returns a client for it.
func New(binary string, timeout time.Duration, log *slog.Logger) (*Client, error) {
	path, err := exec.LookPath(binary)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %v", ErrHelperNotFound, binary, err)
	}
	return &Client{binary: path, timeout: timeout, log: log}, nil
}

// Binary returns the resolved helper path.
func (c *Client) Binary() string {
	return c.binary
}

func (c *Client) run(ctx context.Context, args ...string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	args = append(args, flagSilent, flagOutput, outputFormat)
	out, err := exec.CommandContext(ctx, c.binary, args...).Output()
	if err != nil {
		if ctx.Err() == context.DeadlineExceeded {
			return nil, fmt.Errorf("helper timed out after %s: %w", c.timeout, ctx.Err())
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, fmt.Errorf("helper exited with %d: %s", exitErr.ExitCode(), firstLine(exitErr.Stderr))
		}
		return nil, fmt.Errorf("run helper: %w", err)
	}
	return out, nil
}

// Status polls battery (and, when supported, chat-mix) and returns one
// normalized snapshot. A missing device is a valid Unavailable snapshot,
// not an error; errors mean the helper itself failed.
func (c *Client) Status(ctx context.Context, caps Capabilities) (status.Snapshot, error) {
	now := time.Now()

	out, err := c.run(ctx, flagBattery)
	if err != nil {
		return status.Snapshot{}, err
	}
	dev, err := parseReport(out)
	if errors.Is(err, ErrNoDevice) {
		return status.Snapshot{TakenAt: now, Availability: status.Unavailable}, nil
	}
	if err != nil {
		return status.Snapshot{}, err
	}
	snap := snapshotFromDevice(dev, now)

	if caps.ChatMix && snap.ChatMix == nil {
		// Chat-mix comes from a separate helper invocation. Failures here
		// degrade the one field, not the whole snapshot.
		if mix, err := c.chatMix(ctx); err != nil {
			c.log.Debug("chatmix query failed", "err", err)
		} else if mix != nil {
			snap.ChatMix = mix
		}
	}
	return snap, nil
}

func (c *Client) chatMix(ctx context.Context) (*int, error) {
	out, err := c.run(ctx, flagChatMix)
	if err != nil {
		return nil, err
	}
	dev, err := parseReport(out)
	if err != nil {
		return nil, err
	}
	if msg, ok := dev.Errors["chatmix"]; ok {
		return nil, fmt.Errorf("helper reported chatmix error: %s", msg)
	}
	if dev.ChatMix == nil {
		return nil, nil
	}
	lvl := dev.ChatMix.Level
	return &lvl, nil
}

// Capabilities probes the connected headset's feature set. On any failure
// it reports every capability so the menu does not hide features the
// headset may support once it reconnects.
func (c *Client) Capabilities(ctx context.Context) Capabilities {
	out, err := c.run(ctx, flagCapabilities)
	if err != nil {
		c.log.Warn("capability probe failed, assuming all", "err", err)
		return AllCapabilities()
	}
	dev, err := parseReport(out)
	if err != nil {
		c.log.Warn("capability probe unparseable, assuming all", "err", err)
		return AllCapabilities()
	}
	return capabilitiesFromDevice(dev)
}

// SetSidetone sets the sidetone level, 0 (off) to 128 (max).
func (c *Client) SetSidetone(ctx context.Context, level int) error {
	if level < 0 || level > 128 {
		return fmt.Errorf("sidetone level must be between 0 and 128, got %d", level)
	}
	_, err := c.run(ctx, flagSidetone, fmt.Sprint(level))
	return err
}

// SetLED switches the headset LEDs on or off.
func (c *Client) SetLED(ctx context.Context, on bool) error {
	arg := "0"
	if on {
		arg = "1"
	}
	_, err := c.run(ctx, flagLED, arg)
	return err
}

// SetInactiveTime sets the auto-off idle timeout in minutes, 0 (off) to 90.
func (c *Client) SetInactiveTime(ctx context.Context, minutes int) error {
	if minutes < 0 || minutes > 90 {
		return fmt.Errorf("inactive time must be between 0 and 90 minutes, got %d", minutes)
	}
	_, err := c.run(ctx, flagInactiveTime, fmt.Sprint(minutes))
	return err
}

func firstLine(b []byte) string {
	for i, c := range b {
		if c == '\n' {
			return string(b[:i])
		}
	}
	return string(b)
}
