// pooling.go - Pooling-Strategien fuer Embedding-Modelle
//
// Dieses Modul enthaelt:
// - Type: die im Checkpoint hinterlegte Pooling-Strategie
// - Forward: reduziert einen Hidden-State [hiddenSize, seqLen] auf
//   einen einzelnen Vektor [hiddenSize, 1]
package pooling

import (
	"fmt"

	"github.com/7blacky7/textembed/ml"
)

// Type ist die Pooling-Strategie eines Checkpoints
type Type uint32

const (
	TypeNone Type = iota
	TypeMean
	TypeCLS
)

func (t Type) String() string {
	switch t {
	case TypeNone:
		return "none"
	case TypeMean:
		return "mean"
	case TypeCLS:
		return "cls"
	default:
		return "unknown"
	}
}

// Forward reduziert hiddenStates [hiddenSize, seqLen] auf [hiddenSize, 1]
func (t Type) Forward(ctx ml.Context, hiddenStates ml.Tensor) ml.Tensor {
	switch t {
	case TypeMean:
		seqLen := hiddenStates.Dim(1)
		hiddenStates = hiddenStates.Permute(ctx, 1, 0, 2, 3).Contiguous(ctx)
		hiddenStates = hiddenStates.SumRows(ctx).Scale(ctx, 1/float64(seqLen))
		return hiddenStates.Permute(ctx, 1, 0, 2, 3).Contiguous(ctx)
	case TypeCLS:
		return hiddenStates.View(ctx, 0, hiddenStates.Dim(0), 1)
	default:
		panic(fmt.Sprintf("unknown pooling type %d", t))
	}
}
