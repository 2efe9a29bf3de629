// Package encoding - SSD regression target encoding and decoding against prior boxes.
package encoding

import (
	"math"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-anchors/boxes"
	"github.com/nvr-ai/go-anchors/priors"
)

// Variances scales the regression targets. Index 0 divides the center offsets and
// index 1 divides the log size ratios.
type Variances [2]float64

// DefaultVariances are the values SSD is usually trained with.
var DefaultVariances = Variances{0.1, 0.2}

// Validate checks that both variances are positive and finite.
func (v Variances) Validate() error {
	for i, x := range v {
		if !(x > 0) || math.IsInf(x, 1) {
			return errors.Errorf("variance %d must be positive and finite, got %v", i, x)
		}
	}
	return nil
}

// Target is the regression target of one anchor: center-form deltas plus the label of
// the matched ground truth.
type Target struct {
	Delta boxes.Box `json:"delta" yaml:"delta"`
	Label int       `json:"label" yaml:"label"`
}

// Encode converts matched ground truth into regression targets relative to the priors.
//
// For a matched box g and prior p, both in center form:
//
//	delta_cx = (g_cx - p_cx) / p_w / v[0]
//	delta_cy = (g_cy - p_cy) / p_h / v[0]
//	delta_w  = log(g_w / p_w) / v[1]
//	delta_h  = log(g_h / p_h) / v[1]
//
// Background rows encode to zero deltas with label 0. Labels are passed through.
//
// Arguments:
//   - matched: One corner-form row per prior, as produced by the matcher.
//   - set: The prior boxes the rows were matched against.
//   - v: Variances.
//
// Returns:
//   - One Target per prior, in prior order.
//   - error: boxes.ErrShape (wrapped) on a length mismatch or a non-zero box labeled as
//     background, or an invalid variance.
func Encode(matched []boxes.Labeled, set *priors.Set, v Variances) ([]Target, error) {
	if err := check(len(matched), set, v); err != nil {
		return nil, err
	}

	out := make([]Target, len(matched))
	for i, m := range matched {
		if m.IsBackground() {
			continue
		}
		if m.Label == boxes.Background {
			return nil, errors.Wrapf(boxes.ErrShape, "row %d has a box but the background label", i)
		}
		g := m.Box.Center()
		p := set.At(i)
		out[i] = Target{
			Delta: boxes.Box{
				(g[0] - p[0]) / p[2] / v[0],
				(g[1] - p[1]) / p[3] / v[0],
				math.Log(g[2]/p[2]) / v[1],
				math.Log(g[3]/p[3]) / v[1],
			},
			Label: m.Label,
		}
	}
	return out, nil
}

// Decode is the inverse of Encode. Targets labeled as background decode to the
// background row.
func Decode(targets []Target, set *priors.Set, v Variances) ([]boxes.Labeled, error) {
	if err := check(len(targets), set, v); err != nil {
		return nil, err
	}

	out := make([]boxes.Labeled, len(targets))
	for i, t := range targets {
		if t.Label == boxes.Background {
			continue
		}
		out[i] = boxes.Labeled{
			Box:   decode(t.Delta, set.At(i), v),
			Label: t.Label,
		}
	}
	return out, nil
}

// DecodeDeltas decodes raw predicted deltas, one per prior, into corner-form boxes.
// There is no background handling; every row is decoded.
func DecodeDeltas(deltas []boxes.Box, set *priors.Set, v Variances) ([]boxes.Box, error) {
	if err := check(len(deltas), set, v); err != nil {
		return nil, err
	}

	out := make([]boxes.Box, len(deltas))
	for i, d := range deltas {
		out[i] = decode(d, set.At(i), v)
	}
	return out, nil
}

func decode(d, p boxes.Box, v Variances) boxes.Box {
	return boxes.Box{
		d[0]*v[0]*p[2] + p[0],
		d[1]*v[0]*p[3] + p[1],
		math.Exp(d[2]*v[1]) * p[2],
		math.Exp(d[3]*v[1]) * p[3],
	}.Corners()
}

func check(n int, set *priors.Set, v Variances) error {
	if set == nil {
		return errors.Wrap(boxes.ErrShape, "nil prior set")
	}
	if n != set.Len() {
		return errors.Wrapf(boxes.ErrShape, "got %d rows for %d prior boxes", n, set.Len())
	}
	return v.Validate()
}
