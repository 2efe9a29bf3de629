package encoding

import (
	"github.com/chewxy/math32"
	"github.com/pkg/errors"
	"gorgonia.org/tensor"

	"github.com/nvr-ai/go-anchors/boxes"
	"github.com/nvr-ai/go-anchors/priors"
)

// TargetsTensor packs targets into a float64 tensor of shape (N, 5): four deltas
// followed by the label, the layout the training loop consumes.
func TargetsTensor(targets []Target) *tensor.Dense {
	data := make([]float64, 0, len(targets)*5)
	for _, t := range targets {
		data = append(data, t.Delta[0], t.Delta[1], t.Delta[2], t.Delta[3], float64(t.Label))
	}
	return tensor.New(tensor.WithShape(len(targets), 5), tensor.WithBacking(data))
}

// DecodeTensor decodes a float32 model output of shape (N, 4), one row of deltas per
// prior, into a float32 tensor of corner-form boxes with the same shape.
//
// The arithmetic stays in float32 to match the precision the model produced.
func DecodeTensor(pred *tensor.Dense, set *priors.Set, v Variances) (*tensor.Dense, error) {
	if pred == nil {
		return nil, errors.Wrap(boxes.ErrShape, "nil prediction tensor")
	}
	if pred.Dtype() != tensor.Float32 {
		return nil, errors.Wrapf(boxes.ErrShape, "prediction dtype is %v, want float32", pred.Dtype())
	}
	shape := pred.Shape()
	if len(shape) != 2 || shape[1] != 4 {
		return nil, errors.Wrapf(boxes.ErrShape, "prediction shape is %v, want (N, 4)", shape)
	}
	if err := check(shape[0], set, v); err != nil {
		return nil, err
	}

	out := make([]float32, shape[0]*4)
	v0, v1 := float32(v[0]), float32(v[1])
	var d [4]float32
	for i := 0; i < shape[0]; i++ {
		for k := range d {
			// At resolves strides, so sliced or transposed views decode correctly.
			val, err := pred.At(i, k)
			if err != nil {
				return nil, errors.Wrapf(err, "reading prediction (%d, %d)", i, k)
			}
			d[k] = val.(float32)
		}
		p := set.At(i)
		pcx, pcy, pw, ph := float32(p[0]), float32(p[1]), float32(p[2]), float32(p[3])

		cx := d[0]*v0*pw + pcx
		cy := d[1]*v0*ph + pcy
		w := math32.Exp(d[2]*v1) * pw
		h := math32.Exp(d[3]*v1) * ph

		out[i*4+0] = cx - w/2
		out[i*4+1] = cy - h/2
		out[i*4+2] = cx + w/2
		out[i*4+3] = cy + h/2
	}
	return tensor.New(tensor.WithShape(shape[0], 4), tensor.WithBacking(out)), nil
}
