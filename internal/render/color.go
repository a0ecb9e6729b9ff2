package render

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evalgen/evalgen/internal/model"
)

// FallbackColor is the banner background for evaluations without a known category.
const FallbackColor = "#9de4c1"

// brightnessThreshold is 128 on the 0-255 scale, times 1000 to stay in integers.
const brightnessThreshold = 128 * 1000

// RGB is an 8-bit color.
type RGB struct {
	R, G, B uint8
}

var (
	White = RGB{255, 255, 255}
	Black = RGB{0, 0, 0}
)

// ParseHex reads #rrggbb or #rgb, with or without the leading '#'.
func ParseHex(s string) (RGB, bool) {
	s = strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(s) == 3 {
		s = string([]byte{s[0], s[0], s[1], s[1], s[2], s[2]})
	}
	if len(s) != 6 {
		return RGB{}, false
	}
	v, err := strconv.ParseUint(s, 16, 32)
	if err != nil {
		return RGB{}, false
	}
	return RGB{uint8(v >> 16), uint8(v >> 8), uint8(v)}, true
}

// Hex formats the color as #rrggbb.
func (c RGB) Hex() string {
	return fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
}

// brightness returns the perceived brightness scaled by 1000:
// R*299 + G*587 + B*114.
func (c RGB) brightness() int {
	return int(c.R)*299 + int(c.G)*587 + int(c.B)*114
}

// Brightness is the perceived brightness on the 0-255 scale.
func (c RGB) Brightness() float64 {
	return float64(c.brightness()) / 1000
}

// TextOn picks white text for dark backgrounds and black text otherwise.
// A brightness of exactly 128 counts as light.
func TextOn(bg RGB) RGB {
	if bg.brightness() < brightnessThreshold {
		return White
	}
	return Black
}

// Banner is the color pair of the title banner.
type Banner struct {
	Background RGB
	Text       RGB
}

// BannerFor resolves the banner colors for a category, which may be nil or
// carry an unparsable color.
func BannerFor(cat *model.Category) Banner {
	bg, ok := RGB{}, false
	if cat != nil {
		bg, ok = ParseHex(cat.Color)
	}
	if !ok {
		bg, _ = ParseHex(FallbackColor)
	}
	return Banner{Background: bg, Text: TextOn(bg)}
}
