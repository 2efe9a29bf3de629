package boxes

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// IoU (Intersection over Union) measures the overlap between two corner-form boxes.
//
// See also:
//   - http://ronny.rest/tutorials/module/localization_001/iou
//
// It is formally defined by the formula:
//
//	IoU = Area of Intersection / Area of Union
//
//	- A value of 1.0 means the boxes are identical.
//	- A value of 0.0 means the boxes don't overlap at all.
//
// **1. Calculate the Intersection Area**
//
//	The top-left corner of the intersection is the maximum of the two top-left
//	corners, and the bottom-right corner is the minimum of the two bottom-right
//	corners. When the boxes do not overlap the width or height of that rectangle is
//	negative; both are clamped to zero so the intersection area never goes negative.
//
// **2. Calculate the Union Area**
//
//	Area(Union) = Area(A) + Area(B) - Area(Intersection)
//
// **3. Divide and Return**
//
//	A zero union (two degenerate boxes) yields 0 instead of NaN.
//
// Boxes with x_min > x_max or y_min > y_max are a caller error and are not corrected.
//
// Example Usage:
// ```go
//
//	a := Box{0, 0, 10, 10}
//	b := Box{5, 5, 15, 15}
//
//	score := IoU(a, b) // intersection=25, union=175, score≈0.142857
//
// ```
func IoU(a, b Box) float64 {
	ix1 := math.Max(a[0], b[0])
	iy1 := math.Max(a[1], b[1])
	ix2 := math.Min(a[2], b[2])
	iy2 := math.Min(a[3], b[3])

	interW := math.Max(0, ix2-ix1)
	interH := math.Max(0, iy2-iy1)
	interArea := interW * interH

	areaA := (a[2] - a[0]) * (a[3] - a[1])
	areaB := (b[2] - b[0]) * (b[3] - b[1])
	unionArea := areaA + areaB - interArea
	if unionArea <= 0 {
		return 0
	}

	return interArea / unionArea
}

// ComputeIoU returns the IoU of one corner-form box against each of others.
//
// Arguments:
//   - box: The reference box.
//   - others: Boxes to compare against.
//
// Returns:
//   - A slice with len(others) entries, entry j being IoU(box, others[j]).
func ComputeIoU(box Box, others []Box) []float64 {
	out := make([]float64, len(others))
	for j, o := range others {
		out[j] = IoU(box, o)
	}
	return out
}

// ComputeIoUs returns the dense pairwise IoU matrix between two sets of corner-form
// boxes. Row i equals ComputeIoU(a[i], b).
//
// Returns:
//   - A len(a) x len(b) matrix, or nil when either set is empty.
func ComputeIoUs(a, b []Box) *mat.Dense {
	if len(a) == 0 || len(b) == 0 {
		return nil
	}
	data := make([]float64, 0, len(a)*len(b))
	for _, box := range a {
		data = append(data, ComputeIoU(box, b)...)
	}
	return mat.NewDense(len(a), len(b), data)
}
