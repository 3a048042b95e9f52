package tray

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"os"

	"github.com/jpsutton/headset-charge-indicator-qt/internal/status"
)

const iconSize = 64

// badgeColor maps a battery percentage onto a red -> orange -> green
// gradient. 0 is pure red, 50 is orange, 100 is pure green.
func badgeColor(level int) color.NRGBA {
	if level < 0 {
		level = 0
	}
	if level > 100 {
		level = 100
	}
	if level >= 50 {
		ratio := float64(level-50) / 50.0
		return color.NRGBA{
			R: uint8(255 - 255*ratio),
			G: uint8(165 + (255-165)*ratio),
			A: 220,
		}
	}
	ratio := float64(level) / 50.0
	return color.NRGBA{R: 255, G: uint8(165 * ratio), A: 220}
}

// Render draws the tray icon for a snapshot: the headset glyph (or the
// user-supplied base image) with a colored badge circle in the top-right
// corner when a battery percentage is known. Charging and unavailable
// states show the plain glyph, as the indicator always has.
func Render(snap status.Snapshot, class status.Class, base image.Image) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, iconSize, iconSize))
	if base != nil {
		draw.Draw(img, img.Bounds(), base, base.Bounds().Min, draw.Over)
	} else {
		drawHeadsetGlyph(img)
	}

	if class != status.ClassUnknown && snap.LevelKnown && !snap.Charging {
		// White backing ring makes the badge readable on any tray.
		fillCircle(img, 49, 15, 13, color.NRGBA{R: 255, G: 255, B: 255, A: 150})
		fillCircle(img, 49, 15, 12, badgeColor(snap.Level))
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode icon: %w", err)
	}
	return buf.Bytes(), nil
}

// LoadBaseIcon reads a PNG to use instead of the built-in glyph.
func LoadBaseIcon(path string) (image.Image, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	img, err := png.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

var glyphColor = color.NRGBA{R: 225, G: 225, B: 225, A: 255}

// drawHeadsetGlyph paints a simple headset: a headband arc and two ear
// cups. Light gray so it reads on the dark tray backgrounds most desktops
// use.
func drawHeadsetGlyph(img *image.RGBA) {
	const cx, cy = 32, 38
	// Headband: upper half of an annulus.
	for y := 0; y <= cy; y++ {
		for x := 0; x < iconSize; x++ {
			dx, dy := float64(x-cx), float64(y-cy)
			d2 := dx*dx + dy*dy
			if d2 <= 26*26 && d2 >= 19*19 {
				img.Set(x, y, glyphColor)
			}
		}
	}
	// Ear cups.
	fillCircle(img, cx-23, cy+6, 9, glyphColor)
	fillCircle(img, cx+23, cy+6, 9, glyphColor)
}

func fillCircle(img *image.RGBA, cx, cy, r int, col color.NRGBA) {
	for y := cy - r; y <= cy+r; y++ {
		for x := cx - r; x <= cx+r; x++ {
			if x < 0 || y < 0 || x >= iconSize || y >= iconSize {
				continue
			}
			dx, dy := x-cx, y-cy
			if dx*dx+dy*dy <= r*r {
				img.Set(x, y, col)
			}
		}
	}
}
