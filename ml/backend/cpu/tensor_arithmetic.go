// tensor_arithmetic.go - Elementweise Operationen des CPU-Backends
//
// Dieses Modul enthaelt:
// - Add/Mul: elementweise Operationen mit ggml-Broadcast (Modulo ueber
//   die kleinere Operanden-Dimension)
// - Scale: Multiplikation mit einem Skalar
// - SumRows: Summe ueber Dimension 0
package cpu

import (
	"fmt"

	"github.com/7blacky7/textembed/ml"
)

func (t *Tensor) binaryOp(t2 ml.Tensor, op func(a, b float32) float32) ml.Tensor {
	u := t2.(*Tensor)
	for i := range maxDims {
		if t.shape[i]%u.shape[i] != 0 {
			panic(fmt.Sprintf("cpu: cannot broadcast %v onto %v", u.Shape(), t.Shape()))
		}
	}

	out := newTensor(t.dtype, t.Shape(), nil)
	for i3 := range t.shape[3] {
		for i2 := range t.shape[2] {
			for i1 := range t.shape[1] {
				for i0 := range t.shape[0] {
					a := t.data[t.index(i0, i1, i2, i3)]
					b := u.data[u.index(i0%u.shape[0], i1%u.shape[1], i2%u.shape[2], i3%u.shape[3])]
					out.data[out.index(i0, i1, i2, i3)] = op(a, b)
				}
			}
		}
	}
	return out
}

// Add addiert t2 elementweise, mit Broadcast ueber kleinere Dimensionen
func (t *Tensor) Add(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binaryOp(t2, func(a, b float32) float32 { return a + b })
}

// Mul multipliziert t2 elementweise, mit Broadcast ueber kleinere Dimensionen
func (t *Tensor) Mul(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.binaryOp(t2, func(a, b float32) float32 { return a * b })
}

// Scale multipliziert alle Elemente mit s
func (t *Tensor) Scale(ctx ml.Context, s float64) ml.Tensor {
	out := newTensor(t.dtype, t.Shape(), t.Floats())
	for i := range out.data {
		out.data[i] *= float32(s)
	}
	return out
}

// SumRows summiert ueber Dimension 0: Shape [n, ...] wird zu [1, ...]
func (t *Tensor) SumRows(ctx ml.Context) ml.Tensor {
	shape := t.Shape()
	shape[0] = 1

	out := newTensor(t.dtype, shape, nil)
	for i3 := range t.shape[3] {
		for i2 := range t.shape[2] {
			for i1 := range t.shape[1] {
				var sum float32
				for i0 := range t.shape[0] {
					sum += t.data[t.index(i0, i1, i2, i3)]
				}
				out.data[out.index(0, i1, i2, i3)] = sum
			}
		}
	}
	return out
}
