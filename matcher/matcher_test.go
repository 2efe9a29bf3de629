package matcher

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-anchors/boxes"
	"github.com/nvr-ai/go-anchors/priors"
)

// Pixel-space ground truth from a VOC image (height 500, width 375 is enough to hold it).
var boxesWithLabel = []boxes.Labeled{
	{Box: boxes.Box{47, 239, 194, 370}, Label: 12},
	{Box: boxes.Box{7, 11, 351, 497}, Label: 15},
	{Box: boxes.Box{138, 199, 206, 300}, Label: 19},
	{Box: boxes.Box{122, 154, 214, 194}, Label: 18},
	{Box: boxes.Box{238, 155, 306, 204}, Label: 9},
}

func vocPriors(t *testing.T) *priors.Set {
	t.Helper()
	set, err := priors.Get(priors.NameVOC)
	require.NoError(t, err)
	return set
}

func TestMatch_PixelBoxesForceDistinctAnchors(t *testing.T) {
	// The pixel boxes never overlap the normalized anchors, so every assignment is forced.
	set := vocPriors(t)
	result, err := Match(boxesWithLabel, set, DefaultConfig())
	require.NoError(t, err)
	require.Len(t, result, set.Len())

	assert.Equal(t, 1, result.Count(boxesWithLabel[4]))
	for i, gt := range boxesWithLabel {
		assert.Equal(t, 1, result.Count(gt), "ground truth %d", i)
	}
	assert.Len(t, result.Unique(), len(boxesWithLabel))
	assert.Equal(t, len(boxesWithLabel), result.Positives())
}

func TestMatch_NormalizedGroundTruth(t *testing.T) {
	set := vocPriors(t)
	gt := boxes.NormalizeLabeled(boxesWithLabel, 500, 375)

	result, err := Match(gt, set, DefaultConfig())
	require.NoError(t, err)

	for i, b := range gt {
		assert.GreaterOrEqual(t, result.Count(b), 1, "ground truth %d was orphaned", i)
	}
	// Large boxes overlap many anchors above threshold.
	assert.Greater(t, result.Positives(), len(gt))

	corners := set.Corners()
	for j, row := range result {
		if row.IsBackground() {
			continue
		}
		assert.Greater(t, boxes.IoU(row.Box, corners[j]), 0.0, "anchor %d", j)
	}
}

func TestMatchBoxes_Policy(t *testing.T) {
	gtA := boxes.Labeled{Box: boxes.Box{0, 0, 20, 20}, Label: 1}
	gtB := boxes.Labeled{Box: boxes.Box{0, 0, 2, 2}, Label: 2}

	tests := []struct {
		name      string
		gt        []boxes.Labeled
		anchors   []boxes.Box
		threshold float64
		expected  Result
	}{
		{
			name:      "tie goes to the lowest anchor index",
			gt:        []boxes.Labeled{gtA},
			anchors:   []boxes.Box{{0, 0, 20, 20}, {0, 0, 20, 20}},
			threshold: 1.1,
			expected:  Result{gtA, {}},
		},
		{
			name:      "threshold keeps strong plain matches",
			gt:        []boxes.Labeled{gtA},
			anchors:   []boxes.Box{{0, 0, 20, 20}, {0, 0, 20, 20}},
			threshold: 0.5,
			expected:  Result{gtA, gtA},
		},
		{
			name: "threshold demotes weak plain matches",
			gt:   []boxes.Labeled{gtA},
			// IoU 1.0 and 0.25.
			anchors:   []boxes.Box{{0, 0, 20, 20}, {0, 0, 10, 10}},
			threshold: 0.5,
			expected:  Result{gtA, {}},
		},
		{
			name:      "lower threshold keeps them",
			gt:        []boxes.Labeled{gtA},
			anchors:   []boxes.Box{{0, 0, 20, 20}, {0, 0, 10, 10}},
			threshold: 0.2,
			expected:  Result{gtA, gtA},
		},
		{
			name: "forced assignment overrides a plain best match",
			gt:   []boxes.Labeled{gtA, gtB},
			// gtA is forced onto anchor 1 (0.9025); anchor 0 plainly prefers gtA (0.81)
			// but is gtB's best free anchor.
			anchors:   []boxes.Box{{0, 0, 18, 18}, {0, 0, 19, 19}},
			threshold: 0.5,
			expected:  Result{gtB, gtA},
		},
		{
			name: "competing ground truths get distinct anchors",
			gt: []boxes.Labeled{
				{Box: boxes.Box{0, 0, 10, 10}, Label: 3},
				{Box: boxes.Box{0, 0, 10, 9}, Label: 4},
			},
			anchors:   []boxes.Box{{0, 0, 10, 10}, {100, 100, 110, 110}},
			threshold: 0.5,
			expected: Result{
				{Box: boxes.Box{0, 0, 10, 10}, Label: 3},
				{Box: boxes.Box{0, 0, 10, 9}, Label: 4},
			},
		},
		{
			name: "equal overlap goes to the lowest ground truth index",
			gt: []boxes.Labeled{
				{Box: boxes.Box{0, 0, 10, 10}, Label: 5},
				{Box: boxes.Box{0, 0, 10, 10}, Label: 6},
			},
			// Anchors 0 and 1 are forced; anchor 2 sees both at IoU 0.81.
			anchors:   []boxes.Box{{0, 0, 10, 10}, {0, 0, 10, 10}, {0, 0, 9, 9}},
			threshold: 0.5,
			expected: Result{
				{Box: boxes.Box{0, 0, 10, 10}, Label: 5},
				{Box: boxes.Box{0, 0, 10, 10}, Label: 6},
				{Box: boxes.Box{0, 0, 10, 10}, Label: 5},
			},
		},
		{
			name:      "no ground truth is all background",
			gt:        nil,
			anchors:   []boxes.Box{{0, 0, 1, 1}, {1, 1, 2, 2}},
			threshold: 0.5,
			expected:  Result{{}, {}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := MatchBoxes(tt.gt, tt.anchors, Config{IoUThreshold: tt.threshold})
			require.NoError(t, err)
			if diff := cmp.Diff(tt.expected, got); diff != "" {
				t.Errorf("MatchBoxes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestMatchBoxes_Errors(t *testing.T) {
	gt := []boxes.Labeled{{Box: boxes.Box{0, 0, 1, 1}, Label: 1}, {Box: boxes.Box{0, 0, 2, 2}, Label: 2}}

	_, err := MatchBoxes(gt, nil, DefaultConfig())
	assert.True(t, errors.Is(err, boxes.ErrShape))

	_, err = MatchBoxes(gt, []boxes.Box{{0, 0, 1, 1}}, DefaultConfig())
	assert.True(t, errors.Is(err, boxes.ErrShape))

	_, err = Match(gt, nil, DefaultConfig())
	assert.True(t, errors.Is(err, boxes.ErrShape))

	t.Run("background label", func(t *testing.T) {
		unlabeled := []boxes.Labeled{{Box: boxes.Box{0.1, 0.1, 0.4, 0.5}, Label: boxes.Background}}
		_, err := Match(unlabeled, vocPriors(t), DefaultConfig())
		require.Error(t, err)
		assert.True(t, errors.Is(err, boxes.ErrShape))
		assert.Contains(t, err.Error(), "background label")
	})
}

// TestMatchBoxes_NoOrphans checks the coverage guarantee over many random scenes.
func TestMatchBoxes_NoOrphans(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	randomBox := func() boxes.Box {
		x, y := rng.Float64()*0.8, rng.Float64()*0.8
		return boxes.Box{x, y, x + 0.01 + rng.Float64()*0.2, y + 0.01 + rng.Float64()*0.2}
	}

	for scene := 0; scene < 50; scene++ {
		anchors := make([]boxes.Box, 5+rng.Intn(30))
		for j := range anchors {
			anchors[j] = randomBox()
		}
		gt := make([]boxes.Labeled, 1+rng.Intn(len(anchors)))
		for i := range gt {
			gt[i] = boxes.Labeled{Box: randomBox(), Label: i + 1}
		}

		result, err := MatchBoxes(gt, anchors, DefaultConfig())
		require.NoError(t, err)
		for i, b := range gt {
			if result.Count(b) == 0 {
				t.Fatalf("scene %d: ground truth %d orphaned", scene, i)
			}
		}
	}
}

func TestMatch_Deterministic(t *testing.T) {
	set := vocPriors(t)
	gt := boxes.NormalizeLabeled(boxesWithLabel, 500, 375)

	first, err := Match(gt, set, DefaultConfig())
	require.NoError(t, err)
	second, err := Match(gt, set, DefaultConfig())
	require.NoError(t, err)
	assert.Equal(t, first, second)
}
