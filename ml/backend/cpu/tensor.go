// tensor.go - Tensor-Struktur des CPU-Backends
//
// Dieses Modul enthaelt:
// - Tensor: Strided F32/I32-Tensor mit bis zu 4 Dimensionen
// - newTensor/newIntTensor: Konstruktoren
// - Shape-Operationen: Reshape, View, Permute, Contiguous, Concat,
//   Rows, ChunkSections
//
// Shapes folgen der ggml-Konvention: Dimension 0 ist die innerste
// (schnellste) Dimension. Ein Hidden-State der Laenge T hat also die
// Shape [hiddenSize, T].
package cpu

import (
	"fmt"
	"slices"

	"github.com/7blacky7/textembed/ml"
)

const maxDims = 4

// Tensor ist ein strided Tensor ueber F32- oder I32-Daten
type Tensor struct {
	dtype ml.DType

	// rank ist die logische Dimensionalitaet; shape und strides sind
	// intern immer auf maxDims aufgefuellt (Shape 1, Stride 0)
	rank    int
	shape   [maxDims]int
	strides [maxDims]int

	data []float32
	ints []int32
}

func newTensor(dtype ml.DType, shape []int, data []float32) *Tensor {
	t := emptyTensor(dtype, shape)
	if data != nil {
		if len(data) != t.elements() {
			panic(fmt.Sprintf("cpu: data length %d does not match shape %v", len(data), shape))
		}
		t.data = data
	} else {
		t.data = make([]float32, t.elements())
	}
	return t
}

func newIntTensor(shape []int, ints []int32) *Tensor {
	t := emptyTensor(ml.DTypeI32, shape)
	if len(ints) != t.elements() {
		panic(fmt.Sprintf("cpu: data length %d does not match shape %v", len(ints), shape))
	}
	t.ints = ints
	t.data = nil
	return t
}

func emptyTensor(dtype ml.DType, shape []int) *Tensor {
	if len(shape) == 0 || len(shape) > maxDims {
		panic(fmt.Sprintf("cpu: unsupported tensor rank %d", len(shape)))
	}

	t := &Tensor{dtype: dtype, rank: len(shape)}
	for i := range maxDims {
		t.shape[i] = 1
	}
	for i, n := range shape {
		if n <= 0 {
			panic(fmt.Sprintf("cpu: invalid shape %v", shape))
		}
		t.shape[i] = n
	}
	t.strides = contiguousStrides(t.shape)
	return t
}

func contiguousStrides(shape [maxDims]int) [maxDims]int {
	var strides [maxDims]int
	strides[0] = 1
	for i := 1; i < maxDims; i++ {
		strides[i] = strides[i-1] * shape[i-1]
	}
	return strides
}

// elements gibt die Anzahl der Elemente zurueck
func (t *Tensor) elements() int {
	n := 1
	for _, d := range t.shape {
		n *= d
	}
	return n
}

// index berechnet den Daten-Offset fuer eine Koordinate
func (t *Tensor) index(i0, i1, i2, i3 int) int {
	return i0*t.strides[0] + i1*t.strides[1] + i2*t.strides[2] + i3*t.strides[3]
}

// isContiguous prueft ob die Daten dicht und in Standard-Ordnung liegen
func (t *Tensor) isContiguous() bool {
	return t.strides == contiguousStrides(t.shape)
}

// Dim gibt die Groesse der Dimension n zurueck
func (t *Tensor) Dim(n int) int {
	return t.shape[n]
}

// Shape gibt die logische Shape zurueck
func (t *Tensor) Shape() []int {
	return slices.Clone(t.shape[:t.rank])
}

// DType gibt den Datentyp zurueck
func (t *Tensor) DType() ml.DType {
	return t.dtype
}

// Floats materialisiert die Daten in Standard-Ordnung
func (t *Tensor) Floats() []float32 {
	if t.dtype == ml.DTypeI32 {
		panic("cpu: Floats on I32 tensor")
	}

	if t.isContiguous() {
		return slices.Clone(t.data)
	}

	out := make([]float32, t.elements())
	n := 0
	for i3 := range t.shape[3] {
		for i2 := range t.shape[2] {
			for i1 := range t.shape[1] {
				for i0 := range t.shape[0] {
					out[n] = t.data[t.index(i0, i1, i2, i3)]
					n++
				}
			}
		}
	}
	return out
}

// Ints gibt die Daten eines I32-Tensors zurueck
func (t *Tensor) Ints() []int32 {
	if t.dtype != ml.DTypeI32 {
		panic("cpu: Ints on float tensor")
	}
	return slices.Clone(t.ints)
}

// Reshape aendert die Shape bei gleicher Element-Anzahl
func (t *Tensor) Reshape(ctx ml.Context, shape ...int) ml.Tensor {
	out := newTensor(t.dtype, shape, t.Floats())
	if out.elements() != t.elements() {
		panic(fmt.Sprintf("cpu: cannot reshape %v to %v", t.Shape(), shape))
	}
	return out
}

// View liest einen dichten Ausschnitt ab Element-Offset in neuer Shape
func (t *Tensor) View(ctx ml.Context, offset int, shape ...int) ml.Tensor {
	if !t.isContiguous() {
		t = t.Contiguous(ctx).(*Tensor)
	}

	out := emptyTensor(t.dtype, shape)
	if offset < 0 || offset+out.elements() > t.elements() {
		panic(fmt.Sprintf("cpu: view [%d:%d] out of range for %v", offset, offset+out.elements(), t.Shape()))
	}

	out.data = t.data[offset : offset+out.elements()]
	return out
}

// Permute vertauscht Dimensionen: Dimension i wandert an Position axes[i].
// Das Ergebnis ist eine View auf dieselben Daten.
func (t *Tensor) Permute(ctx ml.Context, axes ...int) ml.Tensor {
	if len(axes) != maxDims {
		panic("cpu: permute requires 4 axes")
	}

	out := &Tensor{dtype: t.dtype, data: t.data, ints: t.ints}
	for i, axis := range axes {
		out.shape[axis] = t.shape[i]
		out.strides[axis] = t.strides[i]
	}

	out.rank = maxDims
	for out.rank > 1 && out.shape[out.rank-1] == 1 {
		out.rank--
	}
	return out
}

// Contiguous materialisiert die Daten dicht, optional mit neuer Shape
func (t *Tensor) Contiguous(ctx ml.Context, shape ...int) ml.Tensor {
	out := newTensor(t.dtype, t.Shape(), t.Floats())
	if len(shape) > 0 {
		return out.Reshape(ctx, shape...)
	}
	return out
}

// Concat haengt t2 entlang der Dimension dim an
func (t *Tensor) Concat(ctx ml.Context, t2 ml.Tensor, dim int) ml.Tensor {
	u := t2.(*Tensor)
	for i := range maxDims {
		if i != dim && t.shape[i] != u.shape[i] {
			panic(fmt.Sprintf("cpu: concat shape mismatch %v %v", t.Shape(), u.Shape()))
		}
	}

	shape := t.Shape()
	for len(shape) <= dim {
		shape = append(shape, 1)
	}
	shape[dim] = t.shape[dim] + u.shape[dim]

	out := newTensor(t.dtype, shape, nil)
	for i3 := range out.shape[3] {
		for i2 := range out.shape[2] {
			for i1 := range out.shape[1] {
				for i0 := range out.shape[0] {
					idx := [maxDims]int{i0, i1, i2, i3}
					src := t
					if idx[dim] >= t.shape[dim] {
						idx[dim] -= t.shape[dim]
						src = u
					}
					out.data[out.index(i0, i1, i2, i3)] = src.data[src.index(idx[0], idx[1], idx[2], idx[3])]
				}
			}
		}
	}
	return out
}

// Rows selektiert Zeilen (Dimension 1) anhand eines I32-Index-Tensors:
// out[:, j] = t[:, ids[j]]
func (t *Tensor) Rows(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	ids := t2.(*Tensor)
	if ids.dtype != ml.DTypeI32 {
		panic("cpu: Rows requires an I32 index tensor")
	}

	out := newTensor(t.dtype, []int{t.shape[0], ids.elements()}, nil)
	for j, id := range ids.ints {
		if id < 0 || int(id) >= t.shape[1] {
			panic(fmt.Sprintf("cpu: row index %d out of range [0,%d)", id, t.shape[1]))
		}
		for i := range t.shape[0] {
			out.data[j*t.shape[0]+i] = t.data[t.index(i, int(id), 0, 0)]
		}
	}
	return out
}

// ChunkSections teilt den Tensor entlang dim in Abschnitte der gegebenen Groessen
func (t *Tensor) ChunkSections(ctx ml.Context, dim int, sections ...int) []ml.Tensor {
	total := 0
	for _, s := range sections {
		total += s
	}
	if total != t.shape[dim] {
		panic(fmt.Sprintf("cpu: sections %v do not cover dimension %d of %v", sections, dim, t.Shape()))
	}

	out := make([]ml.Tensor, len(sections))
	low := 0
	for i, s := range sections {
		shape := t.Shape()
		shape[dim] = s

		chunk := newTensor(t.dtype, shape, nil)
		for i3 := range chunk.shape[3] {
			for i2 := range chunk.shape[2] {
				for i1 := range chunk.shape[1] {
					for i0 := range chunk.shape[0] {
						idx := [maxDims]int{i0, i1, i2, i3}
						idx[dim] += low
						chunk.data[chunk.index(i0, i1, i2, i3)] = t.data[t.index(idx[0], idx[1], idx[2], idx[3])]
					}
				}
			}
		}

		out[i] = chunk
		low += s
	}
	return out
}
