// Package boxes - Axis-aligned box representations and overlap metrics.
package boxes

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// ErrShape is returned when box data does not have the expected layout, e.g. a row
// that is not 4 (or 5, with a label) values long, or two sequences that must be
// aligned but differ in length.
var ErrShape = errors.New("shape mismatch")

// Background is the class label carried by anchors that matched no ground truth.
const Background = 0

// Box is a 4-value axis-aligned box.
//
// The same type carries both representations used by the pipeline:
//   - Corner form: (x_min, y_min, x_max, y_max).
//   - Center form: (cx, cy, w, h).
//
// Which one a given slice holds is decided by the producer; functions in this package
// document the form they expect.
type Box [4]float64

// Labeled is a corner-form box with an integer class label attached.
type Labeled struct {
	Box   Box `json:"box" yaml:"box"`
	Label int `json:"label" yaml:"label"`
}

// IsBackground reports whether l is the background sentinel: label 0 and an all-zero box.
func (l Labeled) IsBackground() bool {
	return l.Label == Background && l.Box == Box{}
}

func (l Labeled) String() string {
	return fmt.Sprintf("%s label=%d", l.Box, l.Label)
}

func (b Box) String() string {
	return fmt.Sprintf("(%.4f, %.4f, %.4f, %.4f)", b[0], b[1], b[2], b[3])
}

// Center converts a corner-form box to center form.
func (b Box) Center() Box {
	return Box{
		(b[0] + b[2]) / 2,
		(b[1] + b[3]) / 2,
		b[2] - b[0],
		b[3] - b[1],
	}
}

// Corners converts a center-form box to corner form. It is the exact inverse of Center
// for boxes with non-negative width and height.
func (b Box) Corners() Box {
	return Box{
		b[0] - b[2]/2,
		b[1] - b[3]/2,
		b[0] + b[2]/2,
		b[1] + b[3]/2,
	}
}

// Area returns the area of a corner-form box. Negative extents count as zero.
func (b Box) Area() float64 {
	return math.Max(0, b[2]-b[0]) * math.Max(0, b[3]-b[1])
}

// Valid reports whether a corner-form box satisfies x_min <= x_max and y_min <= y_max.
func (b Box) Valid() bool {
	return b[0] <= b[2] && b[1] <= b[3]
}

// ToCenterForm converts corner-form boxes to center form.
//
// Arguments:
//   - corners: Boxes as (x_min, y_min, x_max, y_max).
//
// Returns:
//   - A new slice of the same length holding (cx, cy, w, h).
func ToCenterForm(corners []Box) []Box {
	out := make([]Box, len(corners))
	for i, b := range corners {
		out[i] = b.Center()
	}
	return out
}

// ToPointForm converts center-form boxes back to corner form.
//
// ToPointForm(ToCenterForm(b)) reproduces b exactly for any integer-valued corner boxes
// with non-negative width and height.
//
// Arguments:
//   - centers: Boxes as (cx, cy, w, h).
//
// Returns:
//   - A new slice of the same length holding (x_min, y_min, x_max, y_max).
func ToPointForm(centers []Box) []Box {
	out := make([]Box, len(centers))
	for i, b := range centers {
		out[i] = b.Corners()
	}
	return out
}

// DenormalizeBox scales a normalized corner-form box to pixel coordinates.
//
// x coordinates are multiplied by width and y coordinates by height. Each result is
// rounded to the nearest integer pixel (half away from zero) rather than truncated, so
// values such as 0.29 * 100 = 28.999999999999996 land on 29.
//
// Example:
//
//	x1, y1, x2, y2 := DenormalizeBox(Box{0.1, 0.2, 0.3, 0.4}, 200, 300) // 30, 40, 90, 80
func DenormalizeBox(b Box, height, width int) (x1, y1, x2, y2 int) {
	w, h := float64(width), float64(height)
	return int(math.Round(b[0] * w)),
		int(math.Round(b[1] * h)),
		int(math.Round(b[2] * w)),
		int(math.Round(b[3] * h))
}

// NormalizeBox maps a pixel corner-form box into [0, 1] image coordinates.
func NormalizeBox(b Box, height, width int) Box {
	w, h := float64(width), float64(height)
	return Box{b[0] / w, b[1] / h, b[2] / w, b[3] / h}
}

// NormalizeLabeled applies NormalizeBox to every box, keeping labels.
func NormalizeLabeled(boxes []Labeled, height, width int) []Labeled {
	out := make([]Labeled, len(boxes))
	for i, b := range boxes {
		out[i] = Labeled{Box: NormalizeBox(b.Box, height, width), Label: b.Label}
	}
	return out
}

// FromSlice builds a Box from a raw 4-value row.
func FromSlice(row []float64) (Box, error) {
	if len(row) != 4 {
		return Box{}, errors.Wrapf(ErrShape, "box row has %d values, want 4", len(row))
	}
	return Box{row[0], row[1], row[2], row[3]}, nil
}

// LabeledFromSlice builds a Labeled box from a 5-value row, the last value being the
// class label.
func LabeledFromSlice(row []float64) (Labeled, error) {
	if len(row) != 5 {
		return Labeled{}, errors.Wrapf(ErrShape, "labeled box row has %d values, want 5", len(row))
	}
	return Labeled{
		Box:   Box{row[0], row[1], row[2], row[3]},
		Label: int(row[4]),
	}, nil
}

// Unlabeled strips labels from a slice of labeled boxes.
func Unlabeled(boxes []Labeled) []Box {
	out := make([]Box, len(boxes))
	for i, b := range boxes {
		out[i] = b.Box
	}
	return out
}
