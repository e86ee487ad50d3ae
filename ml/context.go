// context.go - Context und Tensor Interfaces fuer ML-Operationen
// Dieses Modul definiert die Schnittstellen fuer Tensor-Operationen und Compute-Kontexte.
package ml

// Context represents an execution context for tensor operations.
type Context interface {
	Empty(dtype DType, shape ...int) Tensor
	Zeros(dtype DType, shape ...int) Tensor
	FromFloats(s []float32, shape ...int) Tensor
	FromInts(s []int32, shape ...int) Tensor

	// Arange creates a 1D tensor with values within an interval [start, stop) increased by step.
	Arange(start, stop, step float32, dtype DType) Tensor

	Forward(...Tensor) Context
	Compute(...Tensor)
	Close()

	// Input returns a context appropriate for creating tensors that are
	// inputs to the model
	Input() Context
}

// Tensor represents a multi-dimensional array with various operations.
type Tensor interface {
	Dim(n int) int
	Shape() []int
	DType() DType

	Floats() []float32
	Ints() []int32

	Add(ctx Context, t2 Tensor) Tensor
	Mul(ctx Context, t2 Tensor) Tensor

	Mulmat(ctx Context, t2 Tensor) Tensor
	MulmatFullPrec(ctx Context, t2 Tensor) Tensor

	Softmax(ctx Context) Tensor
	LayerNorm(ctx Context, weight, bias Tensor, eps float32) Tensor
	Scale(ctx Context, s float64) Tensor
	SumRows(ctx Context) Tensor

	Tanh(ctx Context) Tensor
	GELU(ctx Context) Tensor
	RELU(ctx Context) Tensor
	SILU(ctx Context) Tensor

	Reshape(ctx Context, shape ...int) Tensor
	View(ctx Context, offset int, shape ...int) Tensor
	Permute(ctx Context, shape ...int) Tensor
	Contiguous(ctx Context, shape ...int) Tensor

	Concat(ctx Context, t2 Tensor, dim int) Tensor
	Rows(ctx Context, t2 Tensor) Tensor
	ChunkSections(ctx Context, dim int, sections ...int) []Tensor
}

// VarlenAttention is the fused variable-length attention primitive. It is
// equivalent to masked scaled-dot-product attention computed per segment of
// cuSeqlens, operating directly on packed [headDim, numHeads, totalTokens]
// query/key/value without materializing padding. Attention is bidirectional;
// tokens never attend across segment boundaries.
//
// Backends that cannot provide a fused kernel simply do not implement this
// interface; callers fall back to the generic masked formulation:
//
//	query = query.Permute(ctx, 0, 2, 1, 3)
//	key = key.Permute(ctx, 0, 2, 1, 3)
//	value = value.Permute(ctx, 1, 2, 0, 3).Contiguous(ctx)
//
//	kq := key.MulmatFullPrec(ctx, query)
//	kq = kq.Scale(ctx, scale)
//	kq = kq.Add(ctx, mask)
//	kq = kq.Softmax(ctx)
//
//	kqv := value.Mulmat(ctx, kq)
//	return kqv.Permute(ctx, 0, 2, 1, 3).Contiguous(ctx)
type VarlenAttention interface {
	AttentionVarlen(ctx Context, key, value Tensor, cuSeqlens []int32, maxSeqlen int, scale float64) Tensor
}
