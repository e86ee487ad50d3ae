// linear.go - Linear-Layer
package nn

import (
	"github.com/7blacky7/textembed/ml"
)

// Linear ist eine affine Projektion y = W*x + b
type Linear struct {
	Weight ml.Tensor `gguf:"weight"`
	Bias   ml.Tensor `gguf:"bias"`
}

// Forward projiziert t durch die Gewichtsmatrix
func (m *Linear) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	t = m.Weight.Mulmat(ctx, t)
	if m.Bias != nil {
		t = t.Add(ctx, m.Bias)
	}

	return t
}
