// Package rotation - Conversions between 3x3 rotation matrices and quaternions.
//
// Quaternions are gonum quat.Number values read scalar-first: (w, x, y, z) is
// (Real, Imag, Jmag, Kmag).
package rotation

import (
	"math"

	"github.com/pkg/errors"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"

	"github.com/nvr-ai/go-anchors/boxes"
)

// ToQuaternion converts a rotation matrix to a unit quaternion.
//
// When the trace is positive the quaternion is recovered from the trace directly.
// Otherwise the branch for the largest diagonal element is used, which keeps the
// divisor away from zero.
//
// q and -q describe the same rotation. The result is canonicalized so that w >= 0, and
// when w == 0 the first non-zero of x, y, z is positive. Equal matrices therefore
// always produce the same quaternion.
//
// Arguments:
//   - r: A 3x3 orthonormal matrix with determinant +1.
//
// Returns:
//   - quat.Number: The canonical unit quaternion.
//   - error: boxes.ErrShape (wrapped) if r is not 3x3.
func ToQuaternion(r mat.Matrix) (quat.Number, error) {
	if rows, cols := r.Dims(); rows != 3 || cols != 3 {
		return quat.Number{}, errors.Wrapf(boxes.ErrShape, "rotation matrix is %dx%d, want 3x3", rows, cols)
	}

	m00, m01, m02 := r.At(0, 0), r.At(0, 1), r.At(0, 2)
	m10, m11, m12 := r.At(1, 0), r.At(1, 1), r.At(1, 2)
	m20, m21, m22 := r.At(2, 0), r.At(2, 1), r.At(2, 2)

	var q quat.Number
	switch trace := m00 + m11 + m22; {
	case trace > 0:
		s := math.Sqrt(trace+1) * 2
		q = quat.Number{
			Real: 0.25 * s,
			Imag: (m21 - m12) / s,
			Jmag: (m02 - m20) / s,
			Kmag: (m10 - m01) / s,
		}
	case m00 > m11 && m00 > m22:
		s := math.Sqrt(1+m00-m11-m22) * 2
		q = quat.Number{
			Real: (m21 - m12) / s,
			Imag: 0.25 * s,
			Jmag: (m01 + m10) / s,
			Kmag: (m02 + m20) / s,
		}
	case m11 > m22:
		s := math.Sqrt(1+m11-m00-m22) * 2
		q = quat.Number{
			Real: (m02 - m20) / s,
			Imag: (m01 + m10) / s,
			Jmag: 0.25 * s,
			Kmag: (m12 + m21) / s,
		}
	default:
		s := math.Sqrt(1+m22-m00-m11) * 2
		q = quat.Number{
			Real: (m10 - m01) / s,
			Imag: (m02 + m20) / s,
			Jmag: (m12 + m21) / s,
			Kmag: 0.25 * s,
		}
	}

	return canonical(q), nil
}

// canonical flips q onto the w >= 0 hemisphere, breaking w == 0 on the first non-zero
// vector component.
func canonical(q quat.Number) quat.Number {
	for _, c := range [...]float64{q.Real, q.Imag, q.Jmag, q.Kmag} {
		if c > 0 {
			return q
		}
		if c < 0 {
			return quat.Scale(-1, q)
		}
	}
	return q
}

// ToMatrix converts a quaternion to a 3x3 rotation matrix. q is normalized first, so
// any non-zero scaling of a quaternion yields the same matrix; the zero quaternion
// yields the identity.
func ToMatrix(q quat.Number) *mat.Dense {
	n := quat.Abs(q)
	if n == 0 {
		return mat.NewDense(3, 3, []float64{1, 0, 0, 0, 1, 0, 0, 0, 1})
	}
	q = quat.Scale(1/n, q)
	w, x, y, z := q.Real, q.Imag, q.Jmag, q.Kmag

	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}
