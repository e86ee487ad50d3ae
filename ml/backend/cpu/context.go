// context.go - Eager-Context des CPU-Backends
//
// Dieses Modul enthaelt:
// - Context: fuehrt jede Tensor-Operation sofort aus
// - Konstruktoren fuer Eingabe-Tensoren (FromFloats, FromInts, Arange)
//
// Forward und Compute sind No-Ops: es gibt keinen aufgeschobenen
// Graphen, die Ergebnisse liegen nach jeder Operation bereits vor.
package cpu

import (
	"github.com/7blacky7/textembed/ml"
)

// Context fuehrt Operationen eager auf dem Host aus
type Context struct {
	b *Backend
}

// Empty reserviert einen uninitialisierten Tensor
func (c *Context) Empty(dtype ml.DType, shape ...int) ml.Tensor {
	if dtype == ml.DTypeI32 {
		n := 1
		for _, d := range shape {
			n *= d
		}
		return newIntTensor(shape, make([]int32, n))
	}
	return newTensor(ml.DTypeF32, shape, nil)
}

// Zeros reserviert einen Null-Tensor
func (c *Context) Zeros(dtype ml.DType, shape ...int) ml.Tensor {
	return c.Empty(dtype, shape...)
}

// FromFloats erzeugt einen F32-Tensor aus Host-Daten
func (c *Context) FromFloats(s []float32, shape ...int) ml.Tensor {
	data := make([]float32, len(s))
	copy(data, s)
	return newTensor(ml.DTypeF32, shape, data)
}

// FromInts erzeugt einen I32-Tensor aus Host-Daten
func (c *Context) FromInts(s []int32, shape ...int) ml.Tensor {
	data := make([]int32, len(s))
	copy(data, s)
	return newIntTensor(shape, data)
}

// Arange erzeugt die Folge [start, stop) mit Schrittweite step
func (c *Context) Arange(start, stop, step float32, dtype ml.DType) ml.Tensor {
	var values []float32
	for v := start; v < stop; v += step {
		values = append(values, v)
	}

	if dtype == ml.DTypeI32 {
		ints := make([]int32, len(values))
		for i, v := range values {
			ints[i] = int32(v)
		}
		return newIntTensor([]int{len(ints)}, ints)
	}
	return newTensor(ml.DTypeF32, []int{len(values)}, values)
}

// Forward markiert Tensoren als Graph-Ausgaben. Im Eager-Backend ein No-Op.
func (c *Context) Forward(tensors ...ml.Tensor) ml.Context {
	return c
}

// Compute erzwingt die Auswertung. Im Eager-Backend ein No-Op.
func (c *Context) Compute(tensors ...ml.Tensor) {}

// Input gibt den Context fuer Eingabe-Tensoren zurueck
func (c *Context) Input() ml.Context {
	return c
}

// Close gibt die Ressourcen des Contexts frei
func (c *Context) Close() {}
