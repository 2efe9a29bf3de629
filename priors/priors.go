package priors

import (
	"math"

	"github.com/nvr-ai/go-anchors/boxes"
)

// Set is an immutable prior box set. Boxes are stored in center form, normalized to the
// input image and clipped into [0, 1]. Index order follows feature-map scanning order
// and is the order every per-anchor array in the pipeline uses.
type Set struct {
	name    Name
	centers []boxes.Box
	corners []boxes.Box
}

// Name returns the configuration the set was generated from.
func (s *Set) Name() Name {
	return s.name
}

// Len returns the number of anchors.
func (s *Set) Len() int {
	return len(s.centers)
}

// At returns anchor i in center form.
func (s *Set) At(i int) boxes.Box {
	return s.centers[i]
}

// Boxes returns a copy of the anchors in center form (cx, cy, w, h).
func (s *Set) Boxes() []boxes.Box {
	return append([]boxes.Box(nil), s.centers...)
}

// Corners returns a copy of the anchors in corner form, as used for IoU.
func (s *Set) Corners() []boxes.Box {
	return append([]boxes.Box(nil), s.corners...)
}

// NewSet wraps caller-provided center-form anchors. Values are used as given.
func NewSet(name Name, centers []boxes.Box) *Set {
	c := append([]boxes.Box(nil), centers...)
	return &Set{name: name, centers: c, corners: boxes.ToPointForm(c)}
}

// Create generates the prior boxes for a named configuration without caching. Use Get
// (or a Store) to share one set across callers.
//
// For each stage k, with f_k = image_size / step_k and s_k = min_size_k / image_size,
// every grid cell (row y, column x) centered at ((x+0.5)/f_k, (y+0.5)/f_k) emits, in
// order:
//   - (s_k, s_k)
//   - (s'_k, s'_k) with s'_k = sqrt(s_k * max_size_k / image_size)
//   - (s_k*sqrt(r), s_k/sqrt(r)) and (s_k/sqrt(r), s_k*sqrt(r)) for each aspect ratio r
//
// Example:
//
//	set, err := priors.Create(priors.NameVOC)
//	// set.Len() == 8732, set.At(0) == (0.013333, 0.013333, 0.1, 0.1)
func Create(name Name) (*Set, error) {
	cfg, err := Lookup(name)
	if err != nil {
		return nil, err
	}
	centers, err := Generate(cfg)
	if err != nil {
		return nil, err
	}
	return &Set{name: name, centers: centers, corners: boxes.ToPointForm(centers)}, nil
}

// Generate enumerates the center-form anchors of an arbitrary recipe.
func Generate(cfg Configuration) ([]boxes.Box, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	imageSize := float64(cfg.ImageSize)
	out := make([]boxes.Box, 0, cfg.Size())
	for k, fm := range cfg.FeatureMapSizes {
		fk := imageSize / float64(cfg.Steps[k])
		sk := float64(cfg.MinSizes[k]) / imageSize
		skPrime := math.Sqrt(sk * (float64(cfg.MaxSizes[k]) / imageSize))

		for y := 0; y < fm; y++ {
			for x := 0; x < fm; x++ {
				cx := (float64(x) + 0.5) / fk
				cy := (float64(y) + 0.5) / fk

				out = append(out,
					clip(boxes.Box{cx, cy, sk, sk}),
					clip(boxes.Box{cx, cy, skPrime, skPrime}),
				)
				for _, r := range cfg.AspectRatios[k] {
					sr := math.Sqrt(r)
					out = append(out,
						clip(boxes.Box{cx, cy, sk * sr, sk / sr}),
						clip(boxes.Box{cx, cy, sk / sr, sk * sr}),
					)
				}
			}
		}
	}
	return out, nil
}

func clip(b boxes.Box) boxes.Box {
	for i, v := range b {
		b[i] = math.Min(1, math.Max(0, v))
	}
	return b
}
