package rotation

import (
	"math"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/nvr-ai/go-anchors/boxes"
)

// Upper-left 3x3 of an object pose from the FAT dataset.
var poseRotation = mat.NewDense(3, 3, []float64{
	0, -0.994522, 0.104528,
	0, 0.104528, 0.994522,
	-1, 0, 0,
})

// axisAngle builds a rotation matrix with Rodrigues' formula.
func axisAngle(axis [3]float64, angle float64) *mat.Dense {
	n := math.Sqrt(axis[0]*axis[0] + axis[1]*axis[1] + axis[2]*axis[2])
	x, y, z := axis[0]/n, axis[1]/n, axis[2]/n
	k := mat.NewDense(3, 3, []float64{
		0, -z, y,
		z, 0, -x,
		-y, x, 0,
	})

	var k2 mat.Dense
	k2.Mul(k, k)
	k.Scale(math.Sin(angle), k)
	k2.Scale(1-math.Cos(angle), &k2)

	r := mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	r.Add(r, k)
	r.Add(r, &k2)
	return r
}

func TestToQuaternion_FATPose(t *testing.T) {
	q, err := ToQuaternion(poseRotation)
	require.NoError(t, err)

	want := []float64{0.525483, -0.473147, 0.525483, 0.473147}
	got := []float64{q.Real, q.Imag, q.Jmag, q.Kmag}
	assert.InDeltaSlice(t, want, got, 1e-5)
}

func TestToQuaternion_RoundTrip(t *testing.T) {
	tests := []struct {
		name string
		r    *mat.Dense
	}{
		{"FAT pose", poseRotation},
		{"identity", axisAngle([3]float64{0, 0, 1}, 0)},
		{"90 about z", axisAngle([3]float64{0, 0, 1}, math.Pi/2)},
		{"180 about x", axisAngle([3]float64{1, 0, 0}, math.Pi)},
		{"180 about y", axisAngle([3]float64{0, 1, 0}, math.Pi)},
		{"180 about z", axisAngle([3]float64{0, 0, 1}, math.Pi)},
		{"200 about x", axisAngle([3]float64{1, 0, 0}, 200*math.Pi/180)},
		{"170 about y", axisAngle([3]float64{0, 1, 0}, 170*math.Pi/180)},
		{"250 about z", axisAngle([3]float64{0, 0, 1}, 250*math.Pi/180)},
		{"oblique", axisAngle([3]float64{1, -2, 0.5}, 2.7)},
		{"oblique negative trace", axisAngle([3]float64{-0.3, 0.4, 1}, -3.0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := ToQuaternion(tt.r)
			require.NoError(t, err)

			assert.InDelta(t, 1.0, quat.Abs(q), 1e-6, "not a unit quaternion")
			assert.GreaterOrEqual(t, q.Real, 0.0, "w must be non-negative")

			back := ToMatrix(q)
			assert.True(t, mat.EqualApprox(tt.r, back, 1e-4),
				"round trip mismatch:\n%v\n%v", mat.Formatted(tt.r), mat.Formatted(back))
		})
	}
}

func TestToQuaternion_CanonicalSign(t *testing.T) {
	t.Run("negated quaternion gives the same result", func(t *testing.T) {
		q := quat.Number{Real: 0.2, Imag: -0.6, Jmag: 0.3, Kmag: 0.714}
		a, err := ToQuaternion(ToMatrix(q))
		require.NoError(t, err)
		b, err := ToQuaternion(ToMatrix(quat.Scale(-1, q)))
		require.NoError(t, err)
		assert.Equal(t, a, b)
	})

	t.Run("half turn picks a positive vector part", func(t *testing.T) {
		halfTurnY := mat.NewDense(3, 3, []float64{
			-1, 0, 0,
			0, 1, 0,
			0, 0, -1,
		})
		q, err := ToQuaternion(halfTurnY)
		require.NoError(t, err)
		assert.Equal(t, quat.Number{Jmag: 1}, q)
	})
}

func TestToQuaternion_Shape(t *testing.T) {
	_, err := ToQuaternion(mat.NewDense(4, 4, nil))
	assert.True(t, errors.Is(err, boxes.ErrShape))
}

func TestToMatrix(t *testing.T) {
	t.Run("unnormalized input", func(t *testing.T) {
		// Scalar-first form of a value cross-checked with SciPy.
		r := ToMatrix(quat.Number{Real: 0.3438, Imag: 0.8764, Jmag: -0.3438, Kmag: 0.8764})
		want := mat.NewDense(3, 3, []float64{
			0, -0.6799, 0.7333,
			0, -0.7333, -0.6799,
			1, 0, 0,
		})
		assert.True(t, mat.EqualApprox(want, r, 1e-3), "got\n%v", mat.Formatted(r))
	})

	t.Run("orthonormal with unit determinant", func(t *testing.T) {
		r := ToMatrix(quat.Number{Real: 0.1, Imag: 0.7, Jmag: -0.2, Kmag: 0.4})
		var rtr mat.Dense
		rtr.Mul(r.T(), r)
		assert.True(t, mat.EqualApprox(&rtr, mat.NewDiagDense(3, []float64{1, 1, 1}), 1e-12))
		assert.InDelta(t, 1.0, mat.Det(r), 1e-12)
	})

	t.Run("zero quaternion is identity", func(t *testing.T) {
		r := ToMatrix(quat.Number{})
		assert.True(t, mat.Equal(r, mat.NewDiagDense(3, []float64{1, 1, 1})))
	})
}
