// engine_test.go - End-to-End Tests der Inferenz-Engine
//
// Die Tests schreiben einen kleinen GGUF-Checkpoint mit
// Zufallsgewichten in ein Temp-Verzeichnis und fahren die komplette
// Strecke: Laden, Namensraum-Aufloesung, Forward-Pass, Extraktion.
package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/7blacky7/textembed/fs/ggml"
	"github.com/7blacky7/textembed/model"
	"github.com/7blacky7/textembed/model/input"
	_ "github.com/7blacky7/textembed/model/models/bert"
)

const (
	fixtureHidden    = 8
	fixtureHeads     = 2
	fixtureLayers    = 2
	fixtureFFN       = 16
	fixtureVocab     = 32
	fixturePositions = 16
)

// tensorData ist ein io.WriterTo ueber F32-Werte
type tensorData []float32

func (d tensorData) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, []float32(d)); err != nil {
		return 0, err
	}
	return int64(len(d) * 4), nil
}

type fixture struct {
	prefix      string
	poolingType uint32
	numLabels   uint32
	arch        string
}

// writeFixture schreibt einen vollstaendigen Checkpoint und gibt den
// Pfad zurueck
func writeFixture(tb testing.TB, fx fixture) string {
	tb.Helper()

	if fx.arch == "" {
		fx.arch = "bert"
	}

	rng := rand.New(rand.NewSource(7))
	randData := func(n int) tensorData {
		out := make(tensorData, n)
		for i := range out {
			out[i] = float32(rng.NormFloat64()) * 0.1
		}
		return out
	}
	onesData := func(n int) tensorData {
		out := make(tensorData, n)
		for i := range out {
			out[i] = 1
		}
		return out
	}

	var ts []*ggml.Tensor
	addTensor := func(name string, shape []uint64, data tensorData) {
		ts = append(ts, &ggml.Tensor{
			Name:     fx.prefix + name,
			Kind:     ggml.TensorTypeF32,
			Shape:    shape,
			WriterTo: data,
		})
	}
	addLinear := func(name string, in, out int) {
		addTensor(name+".weight", []uint64{uint64(in), uint64(out)}, randData(in*out))
		addTensor(name+".bias", []uint64{uint64(out)}, randData(out))
	}
	addNorm := func(name string) {
		addTensor(name+".weight", []uint64{fixtureHidden}, onesData(fixtureHidden))
		addTensor(name+".bias", []uint64{fixtureHidden}, make(tensorData, fixtureHidden))
	}

	addTensor("token_embd.weight", []uint64{fixtureHidden, fixtureVocab}, randData(fixtureHidden*fixtureVocab))
	addTensor("token_types.weight", []uint64{fixtureHidden, 2}, randData(fixtureHidden*2))
	addTensor("position_embd.weight", []uint64{fixtureHidden, fixturePositions}, randData(fixtureHidden*fixturePositions))
	addNorm("token_embd_norm")

	for i := range fixtureLayers {
		blk := fmt.Sprintf("blk.%d.", i)
		addLinear(blk+"attn_qkv", fixtureHidden, 3*fixtureHidden)
		addLinear(blk+"attn_output", fixtureHidden, fixtureHidden)
		addNorm(blk + "attn_output_norm")
		addLinear(blk+"ffn_up", fixtureHidden, fixtureFFN)
		addLinear(blk+"ffn_down", fixtureFFN, fixtureHidden)
		addNorm(blk + "layer_output_norm")
	}

	if fx.numLabels > 0 {
		addLinear("cls", fixtureHidden, fixtureHidden)
		addLinear("cls.output", fixtureHidden, int(fx.numLabels))
	}

	kv := ggml.KV{
		"general.architecture":                       fx.arch,
		fx.arch + ".embedding_length":                uint32(fixtureHidden),
		fx.arch + ".block_count":                     uint32(fixtureLayers),
		fx.arch + ".attention.head_count":            uint32(fixtureHeads),
		fx.arch + ".attention.layer_norm_epsilon":    float32(1e-12),
		fx.arch + ".context_length":                  uint32(fixturePositions),
		fx.arch + ".vocab_size":                      uint32(fixtureVocab),
		fx.arch + ".token_type_count":                uint32(2),
		fx.arch + ".pooling_type":                    fx.poolingType,
		fx.arch + ".classifier.num_labels":           fx.numLabels,
	}

	path := filepath.Join(tb.TempDir(), "model.gguf")
	f, err := os.Create(path)
	if err != nil {
		tb.Fatal(err)
	}
	defer f.Close()

	if err := ggml.WriteGGUF(f, kv, ts); err != nil {
		tb.Fatal(err)
	}
	return path
}

// testBatch baut einen gueltigen gepackten Batch aus Request-Laengen
func testBatch(tb testing.TB, lengths []int, pooled, raw []int32) input.Batch {
	tb.Helper()

	batch := input.Batch{
		CumulativeSeqLengths: []int32{0},
		PooledIndices:        pooled,
		RawIndices:           raw,
	}
	token := int32(1)
	for _, length := range lengths {
		for p := range length {
			batch.InputIDs = append(batch.InputIDs, token%fixtureVocab)
			batch.TokenTypeIDs = append(batch.TokenTypeIDs, 0)
			batch.PositionIDs = append(batch.PositionIDs, int32(p))
			token++
		}
		batch.CumulativeSeqLengths = append(batch.CumulativeSeqLengths,
			batch.CumulativeSeqLengths[len(batch.CumulativeSeqLengths)-1]+int32(length))
		batch.MaxLength = max(batch.MaxLength, length)
	}

	if err := batch.Validate(); err != nil {
		tb.Fatal(err)
	}
	return batch
}

func TestEngineEmbed(t *testing.T) {
	path := writeFixture(t, fixture{poolingType: 1}) // mean

	e, err := New(path, "float32", model.KindEmbedding)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if !e.Health() {
		t.Fatal("Engine meldet sich nicht gesund")
	}
	if e.IsPadded() {
		t.Error("gepackte Engine darf kein Padding verlangen")
	}

	batch := testBatch(t, []int{3, 5}, []int32{0}, []int32{1})
	results, err := e.Embed(batch)
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 2 {
		t.Fatalf("erwartet 2 Ergebnisse, bekommen %d", len(results))
	}
	if got := results[0]; len(got.Pooled) != fixtureHidden || got.Tokens != nil {
		t.Errorf("Request 0: erwartet gepoolten Vektor der Laenge %d, bekommen %+v", fixtureHidden, got)
	}
	if got := results[1]; len(got.Tokens) != 5 || got.Pooled != nil {
		t.Fatalf("Request 1: erwartet 5 rohe Token-Vektoren, bekommen %+v", got)
	}
	for _, row := range results[1].Tokens {
		if len(row) != fixtureHidden {
			t.Fatalf("roher Token-Vektor hat Laenge %d, erwartet %d", len(row), fixtureHidden)
		}
	}
}

// TestEngineEmbedSingleRequest: Batch mit genau einem Request nimmt den
// schnellen Mean-Pfad und liefert genau einen Eintrag.
func TestEngineEmbedSingleRequest(t *testing.T) {
	path := writeFixture(t, fixture{poolingType: 1})

	e, err := New(path, "float32", model.KindEmbedding)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	results, err := e.Embed(testBatch(t, []int{4}, []int32{0}, nil))
	if err != nil {
		t.Fatal(err)
	}
	if len(results) != 1 || len(results[0].Pooled) != fixtureHidden {
		t.Fatalf("unerwartetes Ergebnis %+v", results)
	}
}

// TestEngineNamespaceFallback: Checkpoints mit Architektur-Praefix vor
// den Tensor-Namen laden ueber den zweiten Namensraum-Kandidaten.
func TestEngineNamespaceFallback(t *testing.T) {
	path := writeFixture(t, fixture{poolingType: 1, prefix: "bert."})

	e, err := New(path, "float32", model.KindEmbedding)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	if _, err := e.Embed(testBatch(t, []int{4}, []int32{0}, nil)); err != nil {
		t.Fatal(err)
	}
}

func TestEnginePredict(t *testing.T) {
	const numLabels = 3
	path := writeFixture(t, fixture{numLabels: numLabels})

	e, err := New(path, "float32", model.KindClassifier)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	results, err := e.Predict(testBatch(t, []int{4}, []int32{0}, nil))
	if err != nil {
		t.Fatal(err)
	}

	if len(results) != 1 || len(results[0]) != numLabels {
		t.Fatalf("erwartet 1 Ergebnis mit %d Logits, bekommen %+v", numLabels, results)
	}
}

func TestEnginePredictWithoutHead(t *testing.T) {
	path := writeFixture(t, fixture{poolingType: 1})

	e, err := New(path, "float32", model.KindEmbedding)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	_, err = e.Predict(testBatch(t, []int{4}, []int32{0}, nil))

	var inferenceErr *InferenceError
	if !errors.As(err, &inferenceErr) || !errors.Is(err, model.ErrNoClassifier) {
		t.Errorf("erwartet InferenceError mit ErrNoClassifier, bekommen %v", err)
	}
}

func TestEngineInvalidBatch(t *testing.T) {
	path := writeFixture(t, fixture{poolingType: 1})

	e, err := New(path, "float32", model.KindEmbedding)
	if err != nil {
		t.Fatal(err)
	}
	defer e.Close()

	batch := testBatch(t, []int{3, 5}, []int32{0, 1}, nil)
	batch.MaxLength = 99

	var inferenceErr *InferenceError
	if _, err := e.Embed(batch); !errors.As(err, &inferenceErr) {
		t.Errorf("erwartet InferenceError, bekommen %v", err)
	}

	// Die Engine bleibt nach einem Aufruf-Fehler benutzbar
	if _, err := e.Embed(testBatch(t, []int{3}, []int32{0}, nil)); err != nil {
		t.Errorf("Engine nach Fehler nicht mehr benutzbar: %v", err)
	}
}

func TestEngineStartErrors(t *testing.T) {
	var startErr *StartError

	if _, err := New(writeFixture(t, fixture{poolingType: 1}), "int8", model.KindEmbedding); !errors.As(err, &startErr) {
		t.Errorf("erwartet StartError fuer ungueltige Praezision, bekommen %v", err)
	}

	if _, err := New(filepath.Join(t.TempDir(), "missing.gguf"), "float32", model.KindEmbedding); !errors.As(err, &startErr) {
		t.Errorf("erwartet StartError fuer fehlende Datei, bekommen %v", err)
	}

	if _, err := New(writeFixture(t, fixture{arch: "gpt2"}), "float32", model.KindEmbedding); !errors.As(err, &startErr) {
		t.Errorf("erwartet StartError fuer fremde Architektur, bekommen %v", err)
	}

	// Klassifikations-Engine auf einem Checkpoint ohne Kopf
	if _, err := New(writeFixture(t, fixture{poolingType: 1}), "float32", model.KindClassifier); !errors.As(err, &startErr) {
		t.Errorf("erwartet StartError fuer fehlenden Kopf, bekommen %v", err)
	}
}

// Quantisierte Checkpoints muessen beim Laden scheitern, nicht erst
// beim Forward-Pass
func TestEngineRejectsQuantizedCheckpoint(t *testing.T) {
	kv := ggml.KV{
		"general.architecture": "bert",
	}
	ts := []*ggml.Tensor{{
		Name:     "token_embd.weight",
		Kind:     ggml.TensorType(12),
		Shape:    []uint64{fixtureHidden, fixtureVocab},
		WriterTo: tensorData{},
	}}

	path := filepath.Join(t.TempDir(), "model.gguf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()

	if err := ggml.WriteGGUF(f, kv, ts); err != nil {
		t.Fatal(err)
	}

	var startErr *StartError
	_, err = New(path, "float32", model.KindEmbedding)
	if !errors.As(err, &startErr) {
		t.Fatalf("erwartet StartError fuer quantisierten Checkpoint, bekommen %v", err)
	}
	if !strings.Contains(err.Error(), "quantized") {
		t.Errorf("Fehlermeldung nennt den quantisierten Typ nicht: %v", err)
	}
}
