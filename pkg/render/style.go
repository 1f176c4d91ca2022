package render

import (
	"fmt"
	"image/color"

	"github.com/etesami/traffic-accident-observer/pkg/observer"
)

var (
	colorSafe     = color.RGBA{0, 255, 0, 0}
	colorDanger   = color.RGBA{255, 255, 0, 0}
	colorAccident = color.RGBA{255, 0, 0, 0}
	colorVehicle  = color.RGBA{0, 0, 255, 0}
	colorZone     = color.RGBA{0, 255, 0, 0}
	colorLabel    = color.RGBA{0, 255, 0, 0}
)

var palette = []color.RGBA{
	{255, 0, 0, 0},
	{0, 255, 0, 0},
	{0, 0, 255, 0},
	{255, 255, 0, 0},
	{255, 0, 255, 0},
	{0, 255, 255, 0},
	{255, 20, 147, 0},
	{255, 165, 0, 0},
	{32, 178, 170, 0},
	{148, 0, 211, 0},
}

// dangerFrames is the streak above which a pedestrian is drawn as in danger.
const dangerFrames = 2

// paletteColor picks a stable colour for an untracked class by track id.
func paletteColor(id int) color.RGBA {
	if id < 0 {
		id = -id
	}
	return palette[id%len(palette)]
}

// pedestrianColor returns the box colour of a pedestrian; a latched collision wins over a danger streak.
func pedestrianColor(v observer.PedestrianView) color.RGBA {
	switch {
	case v.Collided():
		return colorAccident
	case v.DangerStreak > dangerFrames:
		return colorDanger
	default:
		return colorSafe
	}
}

func label(d observer.Detection, withID bool) string {
	if withID {
		return fmt.Sprintf("%d %s %.2f", d.TrackID, d.Class, d.Confidence)
	}
	return fmt.Sprintf("%s %.2f", d.Class, d.Confidence)
}
