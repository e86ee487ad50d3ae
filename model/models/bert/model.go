// Package bert - BERT-Familie Encoder Implementierung
//
// Diese Datei enthaelt:
// - Options: Konfigurationsparameter und die beim Laden gewaehlte
//   Attention-Strategie
// - Model: Hauptmodel mit Embedding-Stufe, Encoder-Stack, Pooling und
//   optionalem Klassifikations-Kopf
// - New: Konstruktor mit einmaliger Varianten-Auswahl
//
// Das Model verarbeitet gepackte Batches: variable Request-Laengen
// liegen ohne Padding flach hintereinander, die Segment-Grenzen stehen
// in CumulativeSeqLengths.
package bert

import (
	"errors"
	"fmt"
	"math"

	"github.com/7blacky7/textembed/fs"
	"github.com/7blacky7/textembed/ml"
	"github.com/7blacky7/textembed/ml/nn"
	"github.com/7blacky7/textembed/ml/nn/pooling"
	"github.com/7blacky7/textembed/model"
	"github.com/7blacky7/textembed/model/input"
)

// minFusedComputeMajor ist die kleinste Compute-Capability, gegen die
// der fusionierte Varlen-Attention-Kernel gebaut wird
const minFusedComputeMajor = 8

// Positions-Embedding-Stile
const (
	positionStyleAbsolute = "absolute"
	positionStyleALiBi    = "alibi"
)

// Options enthaelt alle Konfigurationsparameter fuer den Encoder
type Options struct {
	hiddenSize,
	numHeads,
	headDim int

	// Tabellen-Grenzen fuer die Eingabe-Validierung
	vocabSize,
	typeVocabSize,
	maxPositions int

	eps        float32
	activation string

	positionStyle string
	poolingType   pooling.Type
	numLabels     int

	// useFused waehlt den fusionierten Varlen-Attention-Pfad. Die Wahl
	// faellt einmalig beim Laden und wird nie pro Batch neu bewertet.
	useFused bool
}

// Model repraesentiert einen Encoder der BERT-Familie
type Model struct {
	model.Base

	TokenEmbedding    *nn.Embedding `gguf:"token_embd"`
	TypeEmbedding     *nn.Embedding `gguf:"token_types"`
	PositionEmbedding *nn.Embedding `gguf:"position_embd"`
	EmbeddingNorm     *nn.LayerNorm `gguf:"token_embd_norm"`

	Layers []Layer `gguf:"blk"`

	Classifier *Classifier

	*Options
}

// New erstellt ein Model aus der Checkpoint-Konfiguration.
//
// Hier faellt die einmalige Varianten-Auswahl: Positions-Stil
// (absolut vs. ALiBi) und Attention-Strategie (generisch maskiert vs.
// fusioniert). Der fusionierte Pfad verlangt ein GPU-Geraet,
// F16-Praezision und absolute Positionen; TEXTEMBED_FLASH_ATTENTION=0
// erzwingt den generischen Pfad. Eine unzureichende Compute-Capability
// ist ein Lade-Fehler, kein stiller Fallback.
func New(c fs.Config, params model.Params) (model.Model, error) {
	hiddenSize := int(c.Uint("embedding_length"))
	numHeads := int(c.Uint("attention.head_count"))
	if hiddenSize == 0 || numHeads == 0 || hiddenSize%numHeads != 0 {
		return nil, fmt.Errorf("invalid attention geometry: hidden size %d, heads %d", hiddenSize, numHeads)
	}

	positionStyle := c.String("position_embedding_type", positionStyleAbsolute)
	switch positionStyle {
	case positionStyleAbsolute, positionStyleALiBi:
	default:
		return nil, fmt.Errorf("unsupported position embedding type %q", positionStyle)
	}

	opts := &Options{
		hiddenSize:    hiddenSize,
		numHeads:      numHeads,
		headDim:       hiddenSize / numHeads,
		vocabSize:     int(c.Uint("vocab_size")),
		typeVocabSize: int(c.Uint("token_type_count", 2)),
		maxPositions:  int(c.Uint("context_length")),
		eps:           c.Float("attention.layer_norm_epsilon", 1e-12),
		activation:    c.String("activation", "gelu"),
		positionStyle: positionStyle,
		poolingType:   pooling.Type(c.Uint("pooling_type", uint32(pooling.TypeCLS))),
		numLabels:     int(c.Uint("classifier.num_labels")),
	}

	if params.Kind == model.KindClassifier && opts.numLabels == 0 {
		return nil, model.ErrNoClassifier
	}

	// Checkpoints ohne explizites Pooling und alle Checkpoints mit
	// Klassifikations-Kopf arbeiten auf dem ersten Token, unabhaengig
	// vom Default-Pooling des Checkpoints
	if opts.poolingType == pooling.TypeNone || opts.numLabels > 0 {
		opts.poolingType = pooling.TypeCLS
	}

	if device := gpuDevice(params.Devices); device != nil &&
		params.FlashAttention &&
		params.Precision == ml.DTypeF16 &&
		opts.positionStyle == positionStyleAbsolute {
		if device.ComputeMajor < minFusedComputeMajor {
			return nil, fmt.Errorf("gpu %s has compute capability %s, the fused attention kernel requires at least %d.0",
				device.Name, device.Compute(), minFusedComputeMajor)
		}
		opts.useFused = true
	}

	return &Model{
		Layers:  make([]Layer, c.Uint("block_count")),
		Options: opts,
	}, nil
}

// gpuDevice gibt das erste GPU-Geraet zurueck, nil wenn keines vorhanden
func gpuDevice(devices []ml.DeviceInfo) *ml.DeviceInfo {
	for i := range devices {
		if devices[i].IsGPU() {
			return &devices[i]
		}
	}
	return nil
}

// Validate prueft nach der Gewichts-Population, ob das Model unter dem
// aktuellen Namensraum vollstaendig aufgeloest wurde
func (m *Model) Validate() error {
	switch {
	case m.TokenEmbedding == nil || m.TokenEmbedding.Weight == nil:
		return errors.New("missing token embedding table")
	case m.TypeEmbedding == nil || m.TypeEmbedding.Weight == nil:
		return errors.New("missing token type embedding table")
	case m.EmbeddingNorm == nil || m.EmbeddingNorm.Weight == nil:
		return errors.New("missing embedding normalization weights")
	case m.positionStyle == positionStyleAbsolute && (m.PositionEmbedding == nil || m.PositionEmbedding.Weight == nil):
		return errors.New("missing position embedding table")
	case len(m.Layers) == 0:
		return errors.New("model has no encoder layers")
	}

	for i := range m.Layers {
		if err := m.Layers[i].validate(); err != nil {
			return fmt.Errorf("layer %d: %w", i, err)
		}
	}

	if m.numLabels > 0 && !m.Classifier.resolved() {
		return errors.New("missing classification head weights")
	}

	return nil
}

// IsPadded meldet ob die Engine diesen Varianten-Pfad mit Padding
// fuettern muss. Der gepackte Encoder arbeitet immer ohne Padding.
func (m *Model) IsPadded() bool {
	return false
}

// checkIDs validiert alle Eingabe-IDs gegen die Tabellen-Grenzen
func (m *Model) checkIDs(batch input.Batch) error {
	for _, id := range batch.InputIDs {
		if id < 0 || int(id) >= m.vocabSize {
			return fmt.Errorf("input id %d out of vocabulary range [0, %d)", id, m.vocabSize)
		}
	}
	for _, id := range batch.TokenTypeIDs {
		if id < 0 || int(id) >= m.typeVocabSize {
			return fmt.Errorf("token type id %d out of range [0, %d)", id, m.typeVocabSize)
		}
	}
	if m.positionStyle == positionStyleAbsolute {
		for _, id := range batch.PositionIDs {
			if id < 0 || int(id) >= m.maxPositions {
				return fmt.Errorf("position id %d out of range [0, %d)", id, m.maxPositions)
			}
		}
	}
	return nil
}

// embed berechnet den initialen Hidden-State [hiddenSize, T].
//
// Wort- und Typ-Embedding werden summiert; die Normalisierung
// konsumiert diese Summe und das Positions-Embedding als zweiten
// Operanden direkt, es gibt keinen Residual-Add nach der
// Normalisierung. ALiBi-Varianten haben keine Positions-Tabelle.
func (m *Model) embed(ctx ml.Context, batch input.Batch) ml.Tensor {
	inputs := ctx.Input().FromInts(batch.InputIDs, len(batch.InputIDs))
	types := ctx.Input().FromInts(batch.TokenTypeIDs, len(batch.TokenTypeIDs))

	hiddenStates := m.TokenEmbedding.Forward(ctx, inputs)
	hiddenStates = hiddenStates.Add(ctx, m.TypeEmbedding.Forward(ctx, types))

	var positions ml.Tensor
	if m.positionStyle == positionStyleAbsolute {
		ids := ctx.Input().FromInts(batch.PositionIDs, len(batch.PositionIDs))
		positions = m.PositionEmbedding.Forward(ctx, ids)
	}

	return m.EmbeddingNorm.Forward(ctx, hiddenStates, positions, m.eps)
}

// forward fuehrt Embedding-Stufe und Encoder-Stack aus
func (m *Model) forward(ctx ml.Context, batch input.Batch) (ml.Tensor, error) {
	if err := batch.Validate(); err != nil {
		return nil, err
	}
	if err := m.checkIDs(batch); err != nil {
		return nil, err
	}

	hiddenStates := m.embed(ctx, batch)

	// Die Maske haengt nur vom Batch ab und wird fuer alle Layer geteilt.
	// Der fusionierte Pfad materialisiert keine Maske.
	var mask ml.Tensor
	if !m.useFused {
		mask = m.attentionMask(ctx, batch)
	}

	for i := range m.Layers {
		hiddenStates = m.Layers[i].Forward(ctx, hiddenStates, mask, batch, m.Options)
	}

	return hiddenStates, nil
}

// Embed verarbeitet einen gepackten Batch und extrahiert pro Request
// entweder den gepoolten Vektor oder die rohen Token-Vektoren
func (m *Model) Embed(ctx ml.Context, batch input.Batch) (pooled, raw ml.Tensor, err error) {
	hiddenStates, err := m.forward(ctx, batch)
	if err != nil {
		return nil, nil, err
	}

	if len(batch.PooledIndices) > 0 {
		pooled = m.pool(ctx, hiddenStates, batch)
	}
	if len(batch.RawIndices) > 0 {
		raw = m.extractRaw(ctx, hiddenStates, batch)
	}

	return pooled, raw, nil
}

// Predict projiziert die gepoolten Vektoren durch den
// Klassifikations-Kopf auf Logits [numLabels, R]
func (m *Model) Predict(ctx ml.Context, batch input.Batch) (ml.Tensor, error) {
	if m.numLabels == 0 || !m.Classifier.resolved() {
		return nil, model.ErrNoClassifier
	}

	hiddenStates, err := m.forward(ctx, batch)
	if err != nil {
		return nil, err
	}

	// Der Kopf arbeitet immer auf dem ersten Token jedes Requests
	starts := make([]int32, batch.NumRequests())
	copy(starts, batch.CumulativeSeqLengths[:batch.NumRequests()])
	cls := hiddenStates.Rows(ctx, ctx.Input().FromInts(starts, len(starts)))

	return m.Classifier.Forward(ctx, cls), nil
}

// scale ist der Attention-Skalierungsfaktor 1/sqrt(headDim)
func (o *Options) scale() float64 {
	return 1 / math.Sqrt(float64(o.headDim))
}

func init() {
	for _, arch := range []string{"bert", "roberta", "xlm-roberta", "camembert", "nomic-bert"} {
		model.Register(arch, New)
	}
}
