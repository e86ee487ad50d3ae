// attention.go - Attention und Encoder-Layer
//
// Diese Datei enthaelt:
// - Attention: gepackte QKV-Projektion mit zwei Strategien, generisch
//   maskiert und fusioniert (varlen)
// - MLP: Feed-Forward-Sublayer mit Post-Normalisierung
// - Layer: ein Encoder-Block aus Attention und MLP
// - attentionMask: Segment-Maske, optional mit ALiBi-Bias
//
// Beide Strategien sind bidirektional und liefern fuer identische
// Gewichte numerisch gleiche Ergebnisse. Tokens sehen nie ueber ihre
// Segment-Grenze hinaus.
package bert

import (
	"fmt"
	"math"

	"github.com/7blacky7/textembed/ml"
	"github.com/7blacky7/textembed/ml/nn"
	"github.com/7blacky7/textembed/model/input"
)

// Attention implementiert den Attention-Sublayer mit gepackter
// QKV-Projektion und Post-Normalisierung
type Attention struct {
	QKV        *nn.Linear    `gguf:"attn_qkv"`
	Output     *nn.Linear    `gguf:"attn_output"`
	OutputNorm *nn.LayerNorm `gguf:"attn_output_norm"`
}

// Forward berechnet den Attention-Sublayer inklusive Residual und
// Normalisierung
func (attn *Attention) Forward(ctx ml.Context, hiddenStates, mask ml.Tensor, batch input.Batch, opts *Options) ml.Tensor {
	residual := hiddenStates
	seqLength := hiddenStates.Dim(1)

	// Eine Projektion liefert Q, K und V gestapelt, danach Aufteilung
	// in Heads: [3*hiddenSize, T] -> 3 x [headDim, numHeads, T]
	qkv := attn.QKV.Forward(ctx, hiddenStates)
	qkv = qkv.Reshape(ctx, opts.headDim, 3*opts.numHeads, seqLength)
	chunks := qkv.ChunkSections(ctx, 1, opts.numHeads, opts.numHeads, opts.numHeads)
	query, key, value := chunks[0], chunks[1], chunks[2]

	var attention ml.Tensor
	if opts.useFused {
		attention = query.(ml.VarlenAttention).AttentionVarlen(ctx, key, value,
			batch.CumulativeSeqLengths, batch.MaxLength, opts.scale())
	} else {
		query = query.Permute(ctx, 0, 2, 1, 3)
		key = key.Permute(ctx, 0, 2, 1, 3)
		value = value.Permute(ctx, 1, 2, 0, 3).Contiguous(ctx)

		kq := key.MulmatFullPrec(ctx, query)
		kq = kq.Scale(ctx, opts.scale())
		kq = kq.Add(ctx, mask)
		kq = kq.Softmax(ctx)

		kqv := value.Mulmat(ctx, kq)
		attention = kqv.Permute(ctx, 0, 2, 1, 3).Contiguous(ctx)
	}

	attention = attention.Reshape(ctx, opts.hiddenSize, seqLength)
	attention = attn.Output.Forward(ctx, attention)

	return attn.OutputNorm.Forward(ctx, attention, residual, opts.eps)
}

// MLP implementiert den Feed-Forward-Sublayer mit Post-Normalisierung
type MLP struct {
	Up         *nn.Linear    `gguf:"ffn_up"`
	Down       *nn.Linear    `gguf:"ffn_down"`
	OutputNorm *nn.LayerNorm `gguf:"layer_output_norm"`
}

// Forward berechnet linear -> Aktivierung -> linear mit Residual
func (mlp *MLP) Forward(ctx ml.Context, hiddenStates ml.Tensor, opts *Options) ml.Tensor {
	residual := hiddenStates

	hiddenStates = mlp.Up.Forward(ctx, hiddenStates)
	switch opts.activation {
	case "gelu":
		hiddenStates = hiddenStates.GELU(ctx)
	case "relu":
		hiddenStates = hiddenStates.RELU(ctx)
	case "silu":
		hiddenStates = hiddenStates.SILU(ctx)
	default:
		panic(fmt.Sprintf("unsupported activation %q", opts.activation))
	}
	hiddenStates = mlp.Down.Forward(ctx, hiddenStates)

	return mlp.OutputNorm.Forward(ctx, hiddenStates, residual, opts.eps)
}

// Layer repraesentiert einen einzelnen Encoder-Block
type Layer struct {
	Attention *Attention
	MLP       *MLP
}

// Forward fuehrt einen Block-Forward-Pass durch
func (l *Layer) Forward(ctx ml.Context, hiddenStates, mask ml.Tensor, batch input.Batch, opts *Options) ml.Tensor {
	hiddenStates = l.Attention.Forward(ctx, hiddenStates, mask, batch, opts)
	return l.MLP.Forward(ctx, hiddenStates, opts)
}

func (l *Layer) validate() error {
	switch {
	case l.Attention == nil || l.Attention.QKV == nil || l.Attention.Output == nil || l.Attention.OutputNorm == nil:
		return fmt.Errorf("missing attention weights")
	case l.MLP == nil || l.MLP.Up == nil || l.MLP.Down == nil || l.MLP.OutputNorm == nil:
		return fmt.Errorf("missing feed forward weights")
	}
	return nil
}

// attentionMask baut die additive Segment-Maske fuer den generischen
// Pfad: 0 innerhalb eines Requests, -inf ueber Segment-Grenzen hinweg.
// Bei ALiBi kommt pro Head der distanzproportionale Bias dazu, die
// Maske hat dann eine Head-Dimension.
func (m *Model) attentionMask(ctx ml.Context, batch input.Batch) ml.Tensor {
	total := batch.NumTokens()
	negInf := float32(math.Inf(-1))

	// Segment-Zugehoerigkeit pro Token
	segment := make([]int32, total)
	for r := 0; r+1 < len(batch.CumulativeSeqLengths); r++ {
		for t := batch.CumulativeSeqLengths[r]; t < batch.CumulativeSeqLengths[r+1]; t++ {
			segment[t] = int32(r)
		}
	}

	if m.positionStyle != positionStyleALiBi {
		mask := make([]float32, total*total)
		for i := range total {
			for j := range total {
				if segment[i] != segment[j] {
					mask[i*total+j] = negInf
				}
			}
		}
		return ctx.Input().FromFloats(mask, total, total)
	}

	slopes := alibiSlopes(m.numHeads)
	mask := make([]float32, total*total*m.numHeads)
	for h := range m.numHeads {
		for i := range total {
			for j := range total {
				v := float32(-slopes[h] * math.Abs(float64(i-j)))
				if segment[i] != segment[j] {
					v = negInf
				}
				mask[(h*total+i)*total+j] = v
			}
		}
	}
	return ctx.Input().FromFloats(mask, total, total, m.numHeads)
}

// alibiSlopes berechnet die Head-Steigungen: fuer Zweierpotenzen n ist
// slope_i = 2^(-8(i+1)/n), sonst wird die naechstkleinere Zweierpotenz
// mit den geraden Steigungen der doppelten Potenz aufgefuellt
func alibiSlopes(numHeads int) []float64 {
	pow2 := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = math.Pow(2, -8*float64(i+1)/float64(n))
		}
		return out
	}

	if numHeads&(numHeads-1) == 0 {
		return pow2(numHeads)
	}

	closest := 1
	for closest*2 < numHeads {
		closest *= 2
	}

	slopes := pow2(closest)
	extra := pow2(2 * closest)
	for i := 0; len(slopes) < numHeads; i += 2 {
		slopes = append(slopes, extra[i])
	}
	return slopes
}
