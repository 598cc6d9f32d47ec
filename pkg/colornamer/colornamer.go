// Package colornamer maps cluster centroids to human-readable color names.
package colornamer

import (
	"github.com/menta2k/moodlens/pkg/colorspace"
	"github.com/menta2k/moodlens/pkg/types"
)

const (
	darkThreshold  = 64
	lightThreshold = 220
)

// Palette is the fixed reference table. Declaration order breaks distance ties.
var Palette = []types.Color{
	{Name: "Red", Red: 255, Green: 0, Blue: 0},
	{Name: "Green", Red: 0, Green: 255, Blue: 0},
	{Name: "Blue", Red: 0, Green: 0, Blue: 255},
	{Name: "Yellow", Red: 255, Green: 255, Blue: 0},
	{Name: "Cyan", Red: 0, Green: 255, Blue: 255},
	{Name: "Magenta", Red: 255, Green: 0, Blue: 255},
	{Name: "White", Red: 255, Green: 255, Blue: 255},
	{Name: "Black", Red: 0, Green: 0, Blue: 0},
	{Name: "Gray", Red: 128, Green: 128, Blue: 128},
	{Name: "Orange", Red: 255, Green: 165, Blue: 0},
	{Name: "Purple", Red: 128, Green: 0, Blue: 128},
	{Name: "Brown", Red: 165, Green: 42, Blue: 42},
	{Name: "Pink", Red: 255, Green: 192, Blue: 203},
	{Name: "Olive", Red: 128, Green: 128, Blue: 0},
	{Name: "Navy", Red: 0, Green: 0, Blue: 128},
	{Name: "Teal", Red: 0, Green: 128, Blue: 128},
	{Name: "Maroon", Red: 128, Green: 0, Blue: 0},
	{Name: "Lime", Red: 0, Green: 255, Blue: 0},
	{Name: "Turquoise", Red: 64, Green: 224, Blue: 208},
	{Name: "Lavender", Red: 230, Green: 230, Blue: 250},
	{Name: "Beige", Red: 245, Green: 245, Blue: 220},
}

// Name returns the nearest palette entry's name, prefixed with "Dark " or
// "Light " for very dim or very bright inputs. Black and White never get a prefix.
func Name(r, g, b int) string {
	sample := colorspace.Clamp(colorspace.RGB{r, g, b})

	closest := Palette[0]
	closestDist := -1
	for _, entry := range Palette {
		d := colorspace.DistanceSquared(sample, colorspace.FromColor(entry))
		if closestDist < 0 || d < closestDist {
			closest = entry
			closestDist = d
		}
	}

	if closest.Name == "Black" || closest.Name == "White" {
		return closest.Name
	}

	switch brightness := colorspace.Brightness(sample); {
	case brightness < darkThreshold:
		return "Dark " + closest.Name
	case brightness > lightThreshold:
		return "Light " + closest.Name
	default:
		return closest.Name
	}
}

// NameRGB names a raw sample
func NameRGB(c colorspace.RGB) string {
	return Name(c[0], c[1], c[2])
}

// Describe builds a named Color from a raw sample
func Describe(c colorspace.RGB) types.Color {
	c = colorspace.Clamp(c)
	return types.NewColor(NameRGB(c), c[0], c[1], c[2])
}
