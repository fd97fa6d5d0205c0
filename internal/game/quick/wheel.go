package quick

import "social-casino/internal/game/seed"

// WheelSegment is one slice of the daily bonus wheel. Weights are out of 100.
type WheelSegment struct {
	Prize  int64
	Weight int64
}

// WheelSegments lists the daily wheel from most to least likely.
var WheelSegments = []WheelSegment{
	{Prize: 50, Weight: 30},
	{Prize: 100, Weight: 25},
	{Prize: 200, Weight: 20},
	{Prize: 500, Weight: 15},
	{Prize: 1000, Weight: 8},
	{Prize: 2500, Weight: 2},
}

// SpinWheel returns the segment index and prize selected by s.
func SpinWheel(s string) (int, int64) {
	var total int64
	for _, seg := range WheelSegments {
		total += seg.Weight
	}
	roll := seed.Mod(s, total)
	for i, seg := range WheelSegments {
		if roll < seg.Weight {
			return i, seg.Prize
		}
		roll -= seg.Weight
	}
	last := len(WheelSegments) - 1
	return last, WheelSegments[last].Prize
}
