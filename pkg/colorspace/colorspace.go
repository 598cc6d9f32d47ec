// Package colorspace holds the RGB primitives shared by clustering, naming and encoding.
package colorspace

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"go.uber.org/zap"

	"github.com/menta2k/moodlens/pkg/types"
)

// ErrInvalidColorFormat is returned for color literals that cannot be parsed
var ErrInvalidColorFormat = errors.New("invalid color format")

// DefaultColor is substituted for malformed color literals
var DefaultColor = types.NewColor("white", 255, 255, 255)

// RGB is a raw color sample. Components are ints so centroid sums do not overflow.
type RGB [3]int

// FromColor converts a named color to a raw sample
func FromColor(c types.Color) RGB {
	return RGB{c.Red, c.Green, c.Blue}
}

// DistanceSquared is the squared Euclidean distance in RGB space
func DistanceSquared(a, b RGB) int {
	dr := a[0] - b[0]
	dg := a[1] - b[1]
	db := a[2] - b[2]
	return dr*dr + dg*dg + db*db
}

// Clamp limits every component to [0,255]
func Clamp(c RGB) RGB {
	for i, v := range c {
		if v < 0 {
			c[i] = 0
		} else if v > 255 {
			c[i] = 255
		}
	}
	return c
}

// Normalize scales a sample to [0,1] per component
func Normalize(c RGB) [3]float32 {
	c = Clamp(c)
	return [3]float32{float32(c[0]) / 255, float32(c[1]) / 255, float32(c[2]) / 255}
}

// Brightness is the integer mean of the three components
func Brightness(c RGB) int {
	return (c[0] + c[1] + c[2]) / 3
}

// ParseColor parses either "name,R,G,B" or a "#rrggbb" hex literal.
func ParseColor(s string) (types.Color, error) {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "#") {
		c, err := colorful.Hex(s)
		if err != nil {
			return types.Color{}, fmt.Errorf("%w: %q: %v", ErrInvalidColorFormat, s, err)
		}
		r, g, b := c.RGB255()
		return types.NewColor(s, int(r), int(g), int(b)), nil
	}

	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return types.Color{}, fmt.Errorf("%w: %q: expected name,R,G,B", ErrInvalidColorFormat, s)
	}

	var channels [3]int
	for i, p := range parts[1:] {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return types.Color{}, fmt.Errorf("%w: %q: channel %d is not numeric", ErrInvalidColorFormat, s, i+1)
		}
		channels[i] = v
	}

	return types.NewColor(strings.TrimSpace(parts[0]), channels[0], channels[1], channels[2]), nil
}

// ParseColorOrDefault parses a color literal, substituting DefaultColor when the
// literal is malformed. The second return value reports whether a substitution
// happened; substitutions are also logged at warn level.
func ParseColorOrDefault(s string, logger *zap.Logger) (types.Color, bool) {
	c, err := ParseColor(s)
	if err == nil {
		return c, false
	}
	if logger != nil {
		logger.Warn("substituting default color for malformed literal",
			zap.String("literal", s),
			zap.String("default", DefaultColor.Name),
			zap.Error(err))
	}
	return DefaultColor, true
}
