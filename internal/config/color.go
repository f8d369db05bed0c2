package config

import (
	"encoding/hex"
	"image/color"
	"strings"

	"github.com/pkg/errors"
)

var namedColors = map[string]color.RGBA{
	"white": {R: 255, G: 255, B: 255, A: 255},
	"black": {A: 255},
	"green": {G: 255, A: 255},
	"blue":  {B: 255, A: 255},
	"red":   {R: 255, A: 255},
	"gray":  {R: 128, G: 128, B: 128, A: 255},
}

// ParseColor accepts "#rrggbb", "rrggbb" or a basic color name
func ParseColor(s string) (color.RGBA, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if c, ok := namedColors[s]; ok {
		return c, nil
	}

	raw, err := hex.DecodeString(strings.TrimPrefix(s, "#"))
	if err != nil || len(raw) != 3 {
		return color.RGBA{}, errors.Errorf("invalid color %q", s)
	}
	return color.RGBA{R: raw[0], G: raw[1], B: raw[2], A: 255}, nil
}
