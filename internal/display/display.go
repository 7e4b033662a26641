// Package display implements the display driver facade of spec.md §4:
// a bitmap framebuffer, text rendering and icon blitting for the
// device's small OLED. The OLED controller itself is out of scope per
// §1; Facade is the capability boundary, in the spirit of
// seedhammer.com/lcd's periph-backed SPI framebuffer, adapted here to
// an I2C monochrome panel and rendered with golang.org/x/image/font,
// as seen used for small displays in periph.io's own cmd/ssd1306.
package display

import (
	"image"
	"image/color"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Width and Height are the panel dimensions (128x64, a common small OLED).
const (
	Width  = 128
	Height = 64
)

// Facade renders to the on-device OLED. Flush pushes the current
// framebuffer contents to the physical panel; a real implementation
// sits behind periph.io/x/conn's I2C (see facade_periph.go, "hardware"
// build tag); tests use NewMemory.
type Facade interface {
	Clear()
	DrawText(x, y int, s string)
	DrawIcon(x, y int, icon Icon)
	Flush() error
}

// Memory is an in-memory Facade backed by a grayscale image, used by tests
// and non-hardware builds. It records every Flush so tests can assert
// on rendered content without a physical panel.
type Memory struct {
	fb      *image.Gray
	flushes int
	face    font.Face
}

// NewMemory returns a ready-to-use in-memory display.
func NewMemory() *Memory {
	return &Memory{
		fb:   image.NewGray(image.Rect(0, 0, Width, Height)),
		face: basicfont.Face7x13,
	}
}

func (m *Memory) Clear() {
	draw.Draw(m.fb, m.fb.Bounds(), image.Black, image.Point{}, draw.Src)
}

func (m *Memory) DrawText(x, y int, s string) {
	d := &font.Drawer{
		Dst:  m.fb,
		Src:  image.White,
		Face: m.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (m *Memory) DrawIcon(x, y int, icon Icon) {
	bmp, ok := icons[icon]
	if !ok {
		return
	}
	for row, bits := range bmp {
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) == 0 {
				continue
			}
			m.fb.SetGray(x+col, y+row, whiteGray)
		}
	}
}

func (m *Memory) Flush() error {
	m.flushes++
	return nil
}

// Flushes reports how many times Flush has been called, for tests.
func (m *Memory) Flushes() int { return m.flushes }

// Image exposes the current framebuffer contents for golden-style
// comparisons in tests.
func (m *Memory) Image() image.Image { return m.fb }

var whiteGray = color.Gray{Y: 255}
