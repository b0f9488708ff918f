package visibility

import "strings"

// Region is a bit mask of body regions the retargeting engine may drive.
type Region uint8

const (
	Torso Region = 1 << iota
	Head
	Legs
	Arms

	NoRegions  Region = 0
	AllRegions        = Torso | Head | Legs | Arms
)

// Regions returns the regions a state allows.
func Regions(s State) Region {
	switch s {
	case FullBody, UpperBody:
		return AllRegions
	case HeadOnly:
		return Head
	default:
		return NoRegions
	}
}

// Has reports whether r includes every region in other.
func (r Region) Has(other Region) bool {
	return r&other == other && other != 0
}

func (r Region) String() string {
	if r == NoRegions {
		return "none"
	}
	var parts []string
	for _, e := range []struct {
		bit  Region
		name string
	}{{Torso, "torso"}, {Head, "head"}, {Legs, "legs"}, {Arms, "arms"}} {
		if r&e.bit != 0 {
			parts = append(parts, e.name)
		}
	}
	return strings.Join(parts, "|")
}
