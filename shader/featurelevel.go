package shader

import (
	"fmt"
	"strings"
)

// FeatureLevel is the capability tier a kernel program is compiled for.
type FeatureLevel uint8

const (
	// FeatureLevelES31 targets mobile-class compute (GLES 3.1 / WebGPU baseline).
	FeatureLevelES31 FeatureLevel = iota
	// FeatureLevelSM5 targets shader model 5 class desktop hardware.
	FeatureLevelSM5
	// FeatureLevelSM6 targets shader model 6 class hardware.
	FeatureLevelSM6

	// NumFeatureLevels is the number of defined feature levels.
	NumFeatureLevels int = iota
)

var featureLevelNames = [...]string{
	FeatureLevelES31: "es31",
	FeatureLevelSM5:  "sm5",
	FeatureLevelSM6:  "sm6",
}

// String returns the lower-case short name of the level.
func (l FeatureLevel) String() string {
	if int(l) < len(featureLevelNames) {
		return featureLevelNames[l]
	}
	return fmt.Sprintf("FeatureLevel(%d)", uint8(l))
}

// Valid reports whether l is a defined level.
func (l FeatureLevel) Valid() bool { return int(l) < NumFeatureLevels }

// ParseFeatureLevel parses a level name such as "sm5".
func ParseFeatureLevel(s string) (FeatureLevel, error) {
	for i, n := range featureLevelNames {
		if strings.EqualFold(s, n) {
			return FeatureLevel(i), nil
		}
	}
	return 0, fmt.Errorf("shader: unknown feature level %q", s)
}
