// Package matcher - Ground-truth to prior box assignment for SSD training targets.
package matcher

import (
	"github.com/pkg/errors"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"

	"github.com/nvr-ai/go-anchors/boxes"
	"github.com/nvr-ai/go-anchors/priors"
)

// Config defines parameters for matching.
type Config struct {
	// IoUThreshold is the minimum IoU for a plain best-overlap assignment. Forced
	// assignments ignore it.
	IoUThreshold float64 `json:"iou_threshold" yaml:"iou_threshold"`
}

// DefaultConfig returns the standard SSD matching threshold of 0.5.
func DefaultConfig() Config {
	return Config{IoUThreshold: 0.5}
}

// Result holds one row per prior box: the ground truth assigned to that anchor, or the
// background row (boxes.Labeled{}) when none was.
type Result []boxes.Labeled

// Positives returns the number of non-background rows.
func (r Result) Positives() int {
	n := 0
	for _, l := range r {
		if !l.IsBackground() {
			n++
		}
	}
	return n
}

// Unique returns the distinct non-background rows in first-seen order.
func (r Result) Unique() []boxes.Labeled {
	seen := make(map[boxes.Labeled]struct{})
	var out []boxes.Labeled
	for _, l := range r {
		if l.IsBackground() {
			continue
		}
		if _, ok := seen[l]; ok {
			continue
		}
		seen[l] = struct{}{}
		out = append(out, l)
	}
	return out
}

// Count returns how many anchors were assigned exactly the given ground truth.
func (r Result) Count(gt boxes.Labeled) int {
	n := 0
	for _, l := range r {
		if l == gt {
			n++
		}
	}
	return n
}

// Match assigns ground-truth boxes to the anchors of a prior set.
//
// Arguments:
//   - gt: Corner-form ground-truth boxes with labels, in the same coordinate space as
//     the priors (normalized for generated sets).
//   - set: The prior boxes.
//   - cfg: Matching configuration.
//
// Returns:
//   - Result: set.Len() rows, see MatchBoxes.
//   - error: boxes.ErrShape (wrapped) if the inputs cannot be matched without orphaning
//     a ground truth, or if a ground truth carries the background label.
func Match(gt []boxes.Labeled, set *priors.Set, cfg Config) (Result, error) {
	if set == nil {
		return nil, errors.Wrap(boxes.ErrShape, "nil prior set")
	}
	return MatchBoxes(gt, set.Corners(), cfg)
}

// MatchBoxes assigns ground-truth boxes to corner-form anchors.
//
// The policy is "every anchor gets its best ground truth, every ground truth gets at
// least one anchor":
//
//  1. Compute the IoU matrix of shape (len(gt), len(anchors)).
//  2. For each anchor pick the ground truth with the highest IoU. Ties go to the lowest
//     ground-truth index.
//  3. Walking ground truths in input order, force each onto its highest-IoU anchor
//     among anchors not already forced by an earlier ground truth. Ties go to the
//     lowest anchor index.
//  4. Forced anchors keep their ground truth regardless of threshold. Every other anchor
//     keeps its step-2 ground truth only if the IoU is at least cfg.IoUThreshold and is
//     background otherwise.
//
// Step 3 never lets two ground truths claim the same anchor, so no ground truth is ever
// dropped as long as there are at least as many anchors as ground truths. Ground truth
// labeled boxes.Background is rejected, since it would be indistinguishable from an
// unmatched anchor once encoded.
func MatchBoxes(gt []boxes.Labeled, anchors []boxes.Box, cfg Config) (Result, error) {
	if len(anchors) == 0 {
		return nil, errors.Wrap(boxes.ErrShape, "no prior boxes to match against")
	}
	if len(gt) > len(anchors) {
		return nil, errors.Wrapf(boxes.ErrShape,
			"%d ground truth boxes cannot each own one of %d prior boxes", len(gt), len(anchors))
	}
	for i, l := range gt {
		if l.Label == boxes.Background {
			return nil, errors.Wrapf(boxes.ErrShape, "ground truth %d uses the background label", i)
		}
	}

	result := make(Result, len(anchors))
	if len(gt) == 0 {
		return result, nil
	}

	ious := boxes.ComputeIoUs(boxes.Unlabeled(gt), anchors)

	bestGT, bestIoU := bestPerAnchor(ious)
	forced := forceAssignments(ious)

	for j := range anchors {
		if bestIoU[j] >= cfg.IoUThreshold {
			result[j] = gt[bestGT[j]]
		}
	}
	for i, j := range forced {
		result[j] = gt[i]
	}

	return result, nil
}

// bestPerAnchor returns, for each column of ious, the row with the highest value and
// that value.
func bestPerAnchor(ious *mat.Dense) ([]int, []float64) {
	rows, cols := ious.Dims()
	bestRow := make([]int, cols)
	bestVal := make([]float64, cols)
	col := make([]float64, rows)
	for j := 0; j < cols; j++ {
		mat.Col(col, j, ious)
		// floats.MaxIdx returns the first index on ties.
		bestRow[j] = floats.MaxIdx(col)
		bestVal[j] = col[bestRow[j]]
	}
	return bestRow, bestVal
}

// forceAssignments returns, for each row of ious, a distinct column: the row's
// highest-IoU column not taken by an earlier row.
func forceAssignments(ious *mat.Dense) []int {
	rows, cols := ious.Dims()
	taken := make([]bool, cols)
	forced := make([]int, rows)
	row := make([]float64, cols)
	for i := 0; i < rows; i++ {
		mat.Row(row, i, ious)
		for j, t := range taken {
			if t {
				// IoU lives in [0, 1], so -1 can never win.
				row[j] = -1
			}
		}
		j := floats.MaxIdx(row)
		forced[i] = j
		taken[j] = true
	}
	return forced
}
