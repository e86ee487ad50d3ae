// tensor_nn.go - Neuronale Operationen des CPU-Backends
//
// Dieses Modul enthaelt:
// - Softmax und LayerNorm ueber Dimension 0
// - Aktivierungen: GELU (erf-Form), RELU, SILU, Tanh
// - AttentionVarlen: Attention ueber gepackte Segmente ohne Maske
package cpu

import (
	"math"

	"github.com/7blacky7/textembed/ml"
)

func (t *Tensor) unaryOp(op func(v float32) float32) ml.Tensor {
	out := newTensor(t.dtype, t.Shape(), t.Floats())
	for i := range out.data {
		out.data[i] = op(out.data[i])
	}
	return out
}

// Tanh wendet tanh elementweise an
func (t *Tensor) Tanh(ctx ml.Context) ml.Tensor {
	return t.unaryOp(func(v float32) float32 {
		return float32(math.Tanh(float64(v)))
	})
}

// GELU wendet die exakte erf-Form elementweise an
func (t *Tensor) GELU(ctx ml.Context) ml.Tensor {
	return t.unaryOp(func(v float32) float32 {
		return float32(0.5 * float64(v) * (1 + math.Erf(float64(v)/math.Sqrt2)))
	})
}

// RELU wendet max(0, v) elementweise an
func (t *Tensor) RELU(ctx ml.Context) ml.Tensor {
	return t.unaryOp(func(v float32) float32 {
		return max(v, 0)
	})
}

// SILU wendet v*sigmoid(v) elementweise an
func (t *Tensor) SILU(ctx ml.Context) ml.Tensor {
	return t.unaryOp(func(v float32) float32 {
		return float32(float64(v) / (1 + math.Exp(-float64(v))))
	})
}

// Softmax normalisiert jede Zeile (Dimension 0) zu einer Verteilung.
// Das Maximum wird vor dem Exponenzieren abgezogen.
func (t *Tensor) Softmax(ctx ml.Context) ml.Tensor {
	out := newTensor(t.dtype, t.Shape(), nil)
	row := make([]float32, t.shape[0])
	for i3 := range t.shape[3] {
		for i2 := range t.shape[2] {
			for i1 := range t.shape[1] {
				for i0 := range t.shape[0] {
					row[i0] = t.data[t.index(i0, i1, i2, i3)]
				}
				softmaxRow(row)
				for i0 := range t.shape[0] {
					out.data[out.index(i0, i1, i2, i3)] = row[i0]
				}
			}
		}
	}
	return out
}

func softmaxRow(row []float32) {
	m := row[0]
	for _, v := range row[1:] {
		m = max(m, v)
	}

	var sum float64
	for i, v := range row {
		e := math.Exp(float64(v - m))
		row[i] = float32(e)
		sum += e
	}
	for i := range row {
		row[i] = float32(float64(row[i]) / sum)
	}
}

// LayerNorm normalisiert jede Zeile (Dimension 0) auf Mittelwert 0 und
// Varianz 1 und skaliert anschliessend mit weight und bias
func (t *Tensor) LayerNorm(ctx ml.Context, weight, bias ml.Tensor, eps float32) ml.Tensor {
	w := weight.(*Tensor)
	var b *Tensor
	if bias != nil {
		b = bias.(*Tensor)
	}

	n := t.shape[0]
	out := newTensor(t.dtype, t.Shape(), nil)
	for i3 := range t.shape[3] {
		for i2 := range t.shape[2] {
			for i1 := range t.shape[1] {
				var mean float64
				for i0 := range n {
					mean += float64(t.data[t.index(i0, i1, i2, i3)])
				}
				mean /= float64(n)

				var variance float64
				for i0 := range n {
					d := float64(t.data[t.index(i0, i1, i2, i3)]) - mean
					variance += d * d
				}
				variance /= float64(n)

				inv := 1 / math.Sqrt(variance+float64(eps))
				for i0 := range n {
					v := (float64(t.data[t.index(i0, i1, i2, i3)]) - mean) * inv
					v *= float64(w.data[i0])
					if b != nil {
						v += float64(b.data[i0])
					}
					out.data[out.index(i0, i1, i2, i3)] = float32(v)
				}
			}
		}
	}
	return out
}

// AttentionVarlen rechnet Attention getrennt pro Segment des gepackten
// Batches. Query, Key und Value haben die Shape [headDim, heads, T];
// cuSeqlens sind die kumulativen Segment-Grenzen. Es wird keine Maske
// materialisiert, die Segment-Schleife selbst begrenzt die Sichtbarkeit.
func (t *Tensor) AttentionVarlen(ctx ml.Context, key, value ml.Tensor, cuSeqlens []int32, maxSeqlen int, scale float64) ml.Tensor {
	q, k, v := t, key.(*Tensor), value.(*Tensor)
	headDim, heads := q.shape[0], q.shape[1]

	out := newTensor(ml.DTypeF32, q.Shape(), nil)
	scores := make([]float32, maxSeqlen)
	for r := 0; r+1 < len(cuSeqlens); r++ {
		start, end := int(cuSeqlens[r]), int(cuSeqlens[r+1])
		for h := range heads {
			for i := start; i < end; i++ {
				row := scores[:end-start]
				for j := start; j < end; j++ {
					var dot float64
					for d := range headDim {
						dot += float64(q.data[q.index(d, h, i, 0)]) * float64(k.data[k.index(d, h, j, 0)])
					}
					row[j-start] = float32(dot * scale)
				}
				softmaxRow(row)

				for d := range headDim {
					var sum float64
					for j := start; j < end; j++ {
						sum += float64(row[j-start]) * float64(v.data[v.index(d, h, j, 0)])
					}
					out.data[out.index(d, h, i, 0)] = float32(sum)
				}
			}
		}
	}
	return out
}
