// Package priors - Multi-scale SSD prior (anchor) box generation.
package priors

import (
	"sort"

	"github.com/pkg/errors"
)

// ErrConfiguration is returned for an unknown prior box configuration name.
var ErrConfiguration = errors.New("unknown prior box configuration")

// Name identifies a fixed prior box recipe.
type Name string

const (
	// NameVOC is the SSD300 recipe used for Pascal VOC.
	NameVOC Name = "VOC"
	// NameFAT shares the SSD300 recipe.
	NameFAT Name = "FAT"
	// NameCOCO is the SSD512 recipe used for COCO.
	NameCOCO Name = "COCO"
	// NameYCBVideo shares the SSD512 recipe.
	NameYCBVideo Name = "YCBVideo"
)

// Configuration is the generation recipe for one detector variant. All slices are
// indexed by feature-map stage.
type Configuration struct {
	// FeatureMapSizes is the grid side length of each stage.
	FeatureMapSizes []int `json:"feature_map_sizes" yaml:"feature_map_sizes"`
	// ImageSize is the square input resolution in pixels.
	ImageSize int `json:"image_size" yaml:"image_size"`
	// Steps is the pixel stride of each stage.
	Steps []int `json:"steps" yaml:"steps"`
	// MinSizes is the base anchor side in pixels.
	MinSizes []int `json:"min_sizes" yaml:"min_sizes"`
	// MaxSizes is the next stage's base side, used for the geometric-mean anchor.
	MaxSizes []int `json:"max_sizes" yaml:"max_sizes"`
	// AspectRatios lists the extra ratios per stage. Each ratio r adds two anchors,
	// r and 1/r.
	AspectRatios [][]float64 `json:"aspect_ratios" yaml:"aspect_ratios"`
}

// Stages returns the number of feature-map stages.
func (c Configuration) Stages() int {
	return len(c.FeatureMapSizes)
}

// AnchorsPerCell returns the number of anchors emitted for each grid cell of a stage.
func (c Configuration) AnchorsPerCell(stage int) int {
	return 2 + 2*len(c.AspectRatios[stage])
}

// Size returns the total number of anchors the recipe produces.
func (c Configuration) Size() int {
	n := 0
	for k, fm := range c.FeatureMapSizes {
		n += fm * fm * c.AnchorsPerCell(k)
	}
	return n
}

func (c Configuration) validate() error {
	n := c.Stages()
	if n == 0 || len(c.Steps) != n || len(c.MinSizes) != n ||
		len(c.MaxSizes) != n || len(c.AspectRatios) != n {
		return errors.Errorf("configuration has inconsistent stage counts: %d feature maps, "+
			"%d steps, %d min sizes, %d max sizes, %d aspect ratio lists",
			n, len(c.Steps), len(c.MinSizes), len(c.MaxSizes), len(c.AspectRatios))
	}
	if c.ImageSize <= 0 {
		return errors.Errorf("configuration image size must be positive, got %d", c.ImageSize)
	}
	return nil
}

var (
	ssd300 = Configuration{
		FeatureMapSizes: []int{38, 19, 10, 5, 3, 1},
		ImageSize:       300,
		Steps:           []int{8, 16, 32, 64, 100, 300},
		MinSizes:        []int{30, 60, 111, 162, 213, 264},
		MaxSizes:        []int{60, 111, 162, 213, 264, 315},
		AspectRatios:    [][]float64{{2}, {2, 3}, {2, 3}, {2, 3}, {2}, {2}},
	}

	ssd512 = Configuration{
		FeatureMapSizes: []int{64, 32, 16, 8, 4, 2, 1},
		ImageSize:       512,
		Steps:           []int{8, 16, 32, 64, 128, 256, 512},
		MinSizes:        []int{21, 51, 133, 215, 297, 379, 461},
		MaxSizes:        []int{51, 133, 215, 297, 379, 461, 542},
		AspectRatios:    [][]float64{{2}, {2, 3}, {2, 3}, {2, 3}, {2, 3}, {2}, {2}},
	}

	configurations = map[Name]Configuration{
		NameVOC:      ssd300,
		NameFAT:      ssd300,
		NameCOCO:     ssd512,
		NameYCBVideo: ssd512,
	}
)

// Lookup returns the recipe registered under name.
//
// Returns:
//   - Configuration: A copy of the recipe; mutating it does not affect the table.
//   - error: ErrConfiguration (wrapped) if name is unknown.
func Lookup(name Name) (Configuration, error) {
	c, ok := configurations[name]
	if !ok {
		return Configuration{}, errors.Wrapf(ErrConfiguration, "%q", string(name))
	}
	return c.clone(), nil
}

// Names lists the registered configuration names in sorted order.
func Names() []Name {
	names := make([]Name, 0, len(configurations))
	for n := range configurations {
		names = append(names, n)
	}
	sort.Slice(names, func(i, j int) bool { return names[i] < names[j] })
	return names
}

func (c Configuration) clone() Configuration {
	out := Configuration{
		FeatureMapSizes: append([]int(nil), c.FeatureMapSizes...),
		ImageSize:       c.ImageSize,
		Steps:           append([]int(nil), c.Steps...),
		MinSizes:        append([]int(nil), c.MinSizes...),
		MaxSizes:        append([]int(nil), c.MaxSizes...),
		AspectRatios:    make([][]float64, len(c.AspectRatios)),
	}
	for i, r := range c.AspectRatios {
		out.AspectRatios[i] = append([]float64(nil), r...)
	}
	return out
}
