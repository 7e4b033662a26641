package display

// Icon identifies one 8x8 monochrome glyph blitted alongside a
// slideshow screen's value, one per sensor factor (§4.8).
type Icon int

const (
	IconNone Icon = iota
	IconThermometer
	IconDroplet
	IconGauge
	IconMountain
	IconSun
	IconLightbulb
	IconLeaf
	IconCloud
	IconWind
	IconMotion
	IconSpeaker
	IconSplash
)

// icons holds one 8-row, 8-bit-wide bitmap per Icon, most-significant
// bit first, in the same row-major blit shape seedhammer.com's own
// image/alpha4 glyphs use (adapted here to 1bpp rather than 4bpp, since
// the OLED has no anti-aliasing to spend bits on).
var icons = map[Icon][8]byte{
	IconThermometer: {0x18, 0x24, 0x24, 0x24, 0x24, 0x3c, 0x3c, 0x18},
	IconDroplet:     {0x18, 0x18, 0x24, 0x24, 0x42, 0x42, 0x42, 0x3c},
	IconGauge:       {0x3c, 0x42, 0x99, 0xa5, 0xa5, 0x99, 0x42, 0x3c},
	IconMountain:    {0x00, 0x08, 0x14, 0x22, 0x49, 0x55, 0x93, 0xff},
	IconSun:         {0x18, 0x99, 0x5a, 0x3c, 0x3c, 0x5a, 0x99, 0x18},
	IconLightbulb:   {0x18, 0x24, 0x24, 0x24, 0x18, 0x18, 0x18, 0x24},
	IconLeaf:        {0x04, 0x0e, 0x1e, 0x3e, 0x7c, 0x78, 0x70, 0x20},
	IconCloud:       {0x00, 0x38, 0x7c, 0xfe, 0xfe, 0xfe, 0x00, 0x00},
	IconWind:        {0x00, 0x3e, 0x02, 0x3e, 0x20, 0x3e, 0x00, 0x00},
	IconMotion:      {0x10, 0x38, 0x7c, 0x10, 0x10, 0x7c, 0x38, 0x10},
	IconSpeaker:     {0x04, 0x0c, 0x1c, 0xfc, 0xfc, 0x1c, 0x0c, 0x04},
	IconSplash:      {0x81, 0x42, 0x24, 0x18, 0x18, 0x24, 0x42, 0x81},
}
