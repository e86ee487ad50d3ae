// tensor_matrix.go - Matrixmultiplikation des CPU-Backends
//
// Dieses Modul enthaelt:
// - Mulmat: C[j,i,b] = sum_k A[k,j,b]*B[k,i,b], batchweise ueber die
//   Dimensionen 2 und 3 mit Broadcast des kleineren Operanden
// - MulmatFullPrec: auf dem CPU-Backend identisch zu Mulmat, da immer
//   in F32 gerechnet wird
//
// Die inneren 2D-Produkte laufen ueber BLAS (gonum Sgemm). Im
// ggml-Layout ist ein [K, N]-Tensor im Speicher eine zeilenweise
// N x K-Matrix, also ist C (M x N, zeilenweise) = B_rm * A_rm^T.
package cpu

import (
	"fmt"

	"gonum.org/v1/gonum/blas"
	"gonum.org/v1/gonum/blas/blas32"

	"github.com/7blacky7/textembed/ml"
)

// Mulmat kontrahiert Dimension 0 beider Operanden
func (t *Tensor) Mulmat(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	a := t
	b := t2.(*Tensor)
	if a.shape[0] != b.shape[0] {
		panic(fmt.Sprintf("cpu: mulmat inner dimensions %v %v do not match", a.Shape(), b.Shape()))
	}
	if b.shape[2]%a.shape[2] != 0 || b.shape[3]%a.shape[3] != 0 {
		panic(fmt.Sprintf("cpu: mulmat batch dimensions %v %v do not match", a.Shape(), b.Shape()))
	}

	if !a.isContiguous() {
		a = a.Contiguous(ctx).(*Tensor)
	}
	if !b.isContiguous() {
		b = b.Contiguous(ctx).(*Tensor)
	}

	k := a.shape[0]
	n := a.shape[1]
	m := b.shape[1]

	out := newTensor(ml.DTypeF32, []int{n, m, b.shape[2], b.shape[3]}, nil)
	impl := blas32.Implementation()
	for i3 := range b.shape[3] {
		for i2 := range b.shape[2] {
			adata := a.data[a.index(0, 0, i2%a.shape[2], i3%a.shape[3]):]
			bdata := b.data[b.index(0, 0, i2, i3):]
			cdata := out.data[out.index(0, 0, i2, i3):]
			impl.Sgemm(blas.NoTrans, blas.Trans,
				m, n, k,
				1, bdata[:m*k], k,
				adata[:n*k], k,
				0, cdata[:m*n], n)
		}
	}

	for out.rank > 2 && out.shape[out.rank-1] == 1 {
		out.rank--
	}
	return out
}

// MulmatFullPrec entspricht auf dem CPU-Backend Mulmat
func (t *Tensor) MulmatFullPrec(ctx ml.Context, t2 ml.Tensor) ml.Tensor {
	return t.Mulmat(ctx, t2)
}
