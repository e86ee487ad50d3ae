// extract.go - Pooling und Roh-Extraktion
//
// Diese Datei konvertiert den Encoder-Output [hiddenSize, T] in die
// Ausgaben der einzelnen Requests:
// - pool: gepoolte Vektoren fuer PooledIndices, CLS oder Mean
// - extractRaw: rohe Token-Vektoren fuer RawIndices
//
// Die Offset-Arithmetik ueber den gepackten Buffer laeuft komplett
// ueber CumulativeSeqLengths.
package bert

import (
	"fmt"

	"github.com/7blacky7/textembed/ml"
	"github.com/7blacky7/textembed/ml/nn/pooling"
	"github.com/7blacky7/textembed/model/input"
)

// pool berechnet die gepoolten Vektoren [hiddenSize, P] in der
// Reihenfolge von PooledIndices
func (m *Model) pool(ctx ml.Context, hiddenStates ml.Tensor, batch input.Batch) ml.Tensor {
	switch m.poolingType {
	case pooling.TypeCLS:
		return m.poolCLS(ctx, hiddenStates, batch)
	case pooling.TypeMean:
		return m.poolMean(ctx, hiddenStates, batch)
	default:
		panic(fmt.Sprintf("unsupported pooling type %s", m.poolingType))
	}
}

// poolCLS selektiert pro gepooltem Request die Zeile an seinem
// Start-Offset. Ohne Roh-Requests sind alle Requests gepoolt und die
// Start-Offsets werden direkt in Batch-Reihenfolge verwendet; sonst
// werden nur die Starts der PooledIndices in deren Reihenfolge
// zusammengesucht.
func (m *Model) poolCLS(ctx ml.Context, hiddenStates ml.Tensor, batch input.Batch) ml.Tensor {
	var starts []int32
	if len(batch.RawIndices) == 0 {
		starts = batch.CumulativeSeqLengths[:batch.NumRequests()]
	} else {
		starts = make([]int32, len(batch.PooledIndices))
		for i, r := range batch.PooledIndices {
			starts[i] = batch.CumulativeSeqLengths[r]
		}
	}

	return hiddenStates.Rows(ctx, ctx.Input().FromInts(starts, len(starts)))
}

// poolMean mittelt pro gepooltem Request ueber dessen eigene Zeilen.
//
// Ein Batch mit genau einem Request nimmt den schnellen Pfad: einmal
// ueber alle Tokens summieren und durch MaxLength teilen. Das ist nur
// korrekt, weil Batch.Validate garantiert, dass MaxLength bei einem
// einzelnen Request dessen eigener Laenge entspricht.
func (m *Model) poolMean(ctx ml.Context, hiddenStates ml.Tensor, batch input.Batch) ml.Tensor {
	if batch.NumRequests() == 1 {
		sum := hiddenStates.Permute(ctx, 1, 0, 2, 3).Contiguous(ctx).SumRows(ctx)
		sum = sum.Scale(ctx, 1/float64(batch.MaxLength))
		return sum.Permute(ctx, 1, 0, 2, 3).Contiguous(ctx)
	}

	var pooled ml.Tensor
	for _, r := range batch.PooledIndices {
		start := int(batch.CumulativeSeqLengths[r])
		length := batch.SeqLength(int(r))

		rows := hiddenStates.View(ctx, start*m.hiddenSize, m.hiddenSize, length)
		mean := pooling.TypeMean.Forward(ctx, rows)

		if pooled == nil {
			pooled = mean
		} else {
			pooled = pooled.Concat(ctx, mean, 1)
		}
	}
	return pooled
}

// extractRaw liefert die rohen Token-Zeilen aller Roh-Requests als
// [hiddenSize, Traw], Tokens in Request-Reihenfolge der RawIndices.
//
// Nur ein gemischter Batch mit mehr als einem Request braucht eine
// explizite Positions-Liste; sonst entspricht der Encoder-Output
// bereits 1:1 den Tokens der Roh-Requests.
func (m *Model) extractRaw(ctx ml.Context, hiddenStates ml.Tensor, batch input.Batch) ml.Tensor {
	if len(batch.PooledIndices) == 0 || batch.NumRequests() == 1 {
		return hiddenStates
	}

	positions := make([]int32, 0, batch.NumTokens())
	for _, r := range batch.RawIndices {
		for t := batch.CumulativeSeqLengths[r]; t < batch.CumulativeSeqLengths[r+1]; t++ {
			positions = append(positions, t)
		}
	}

	return hiddenStates.Rows(ctx, ctx.Input().FromInts(positions, len(positions)))
}
