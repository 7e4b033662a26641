//go:build hardware

package display

import (
	"fmt"
	"image"
	"image/draw"

	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
)

// Periph drives a small I2C monochrome OLED (SSD1306-shaped), the same
// conn.Conn-over-i2creg approach seedhammer.com/lcd uses for its SPI
// panel and google-periph's cmd/ssd1306 uses for this exact chip
// family.
type Periph struct {
	dev  *i2c.Dev
	fb   *image.Gray
	face font.Face
}

const (
	cmdSetColumnAddr = 0x21
	cmdSetPageAddr   = 0x22
	cmdDataMode      = 0x40
)

// OpenPeriph opens the I2C bus named busName (empty string picks the
// first available bus) and addresses the panel at addr.
func OpenPeriph(busName string, addr uint16) (*Periph, error) {
	bus, err := i2creg.Open(busName)
	if err != nil {
		return nil, fmt.Errorf("display: i2c open: %w", err)
	}
	return &Periph{
		dev:  &i2c.Dev{Bus: bus, Addr: addr},
		fb:   image.NewGray(image.Rect(0, 0, Width, Height)),
		face: basicfont.Face7x13,
	}, nil
}

func (p *Periph) Clear() {
	draw.Draw(p.fb, p.fb.Bounds(), image.Black, image.Point{}, draw.Src)
}

func (p *Periph) DrawText(x, y int, s string) {
	d := &font.Drawer{
		Dst:  p.fb,
		Src:  image.White,
		Face: p.face,
		Dot:  fixed.P(x, y),
	}
	d.DrawString(s)
}

func (p *Periph) DrawIcon(x, y int, icon Icon) {
	bmp, ok := icons[icon]
	if !ok {
		return
	}
	for row, bits := range bmp {
		for col := 0; col < 8; col++ {
			if bits&(0x80>>col) != 0 {
				p.fb.Set(x+col, y+row, image.White)
			}
		}
	}
}

// Flush packs the framebuffer into SSD1306 page-addressed columns and
// writes it over I2C in one data-mode transaction, preceded by the
// column/page address-range commands.
func (p *Periph) Flush() error {
	if err := p.dev.Tx([]byte{0x00, cmdSetColumnAddr, 0, Width - 1}, nil); err != nil {
		return fmt.Errorf("display: set column range: %w", err)
	}
	if err := p.dev.Tx([]byte{0x00, cmdSetPageAddr, 0, Height/8 - 1}, nil); err != nil {
		return fmt.Errorf("display: set page range: %w", err)
	}
	pages := Height / 8
	buf := make([]byte, 1+Width*pages)
	buf[0] = cmdDataMode
	for page := 0; page < pages; page++ {
		for x := 0; x < Width; x++ {
			var b byte
			for bit := 0; bit < 8; bit++ {
				if p.fb.GrayAt(x, page*8+bit).Y > 0x7f {
					b |= 1 << bit
				}
			}
			buf[1+page*Width+x] = b
		}
	}
	if err := p.dev.Tx(buf, nil); err != nil {
		return fmt.Errorf("display: flush: %w", err)
	}
	return nil
}
