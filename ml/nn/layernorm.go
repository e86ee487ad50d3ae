// layernorm.go - LayerNorm-Layer
package nn

import (
	"github.com/7blacky7/textembed/ml"
)

// LayerNorm normalisiert ueber die Feature-Dimension
type LayerNorm struct {
	Weight ml.Tensor `gguf:"weight"`
	Bias   ml.Tensor `gguf:"bias"`
}

// Forward addiert optional einen Residual-Zweig und normalisiert dann.
// Die Addition passiert vor der Statistik, LayerNorm(t + residual).
func (m *LayerNorm) Forward(ctx ml.Context, t, residual ml.Tensor, eps float32) ml.Tensor {
	if residual != nil {
		t = t.Add(ctx, residual)
	}

	return t.LayerNorm(ctx, m.Weight, m.Bias, eps)
}
