// Package postprocess - Postprocessing utilities for decoded SSD detections.
package postprocess

import (
	"github.com/pkg/errors"

	"github.com/nvr-ai/go-anchors/boxes"
	"github.com/nvr-ai/go-anchors/encoding"
	"github.com/nvr-ai/go-anchors/priors"
)

// Result represents a single detection result.
type Result struct {
	// The corner-form bounding box of the result.
	Box boxes.Box
	// The confidence score of the result.
	Score float64
	// The predicted class index of the result.
	Class int
}

// FromPredictions decodes per-prior deltas and pairs each box with its best scoring
// non-background class.
//
// Arguments:
//   - deltas: One predicted delta row per prior.
//   - scores: One row of class scores per prior; column 0 is background.
//   - set: The prior boxes the model was trained with.
//   - v: Variances used during training.
//
// Returns:
//   - One Result per prior whose best foreground score is at least minScore.
func FromPredictions(
	deltas []boxes.Box,
	scores [][]float64,
	set *priors.Set,
	v encoding.Variances,
	minScore float64,
) ([]Result, error) {
	if len(scores) != len(deltas) {
		return nil, errors.Wrapf(boxes.ErrShape, "got %d score rows for %d delta rows", len(scores), len(deltas))
	}
	decoded, err := encoding.DecodeDeltas(deltas, set, v)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, len(decoded))
	for i, b := range decoded {
		class, score := -1, 0.0
		for c := 1; c < len(scores[i]); c++ {
			if class < 0 || scores[i][c] > score {
				class, score = c, scores[i][c]
			}
		}
		if class < 0 || score < minScore {
			continue
		}
		results = append(results, Result{Box: b, Score: score, Class: class})
	}
	return results, nil
}

// FilterByScore keeps results with a score of at least minScore, preserving order.
func FilterByScore(results []Result, minScore float64) []Result {
	out := make([]Result, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			out = append(out, r)
		}
	}
	return out
}
