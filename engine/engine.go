// Package engine - Synchrone Inferenz-Engine
//
// Dieses Paket ist die Schnittstelle zwischen Serving-Schicht und
// Model: es laedt einen Checkpoint, nimmt gepackte Batches entgegen,
// fuehrt den Forward-Pass synchron aus und transferiert die Ergebnisse
// zurueck auf den Host.
//
// Hauptkomponenten:
// - Engine: haelt das geladene Model, zustandslos zwischen Aufrufen
// - New: Konstruktion mit Praezisions- und Varianten-Auswahl
// - Embed/Predict: ein Batch pro Aufruf, Ergebnis pro Request-Index
//
// Fehler-Klassen: StartError fuer alles beim Laden, InferenceError fuer
// alles waehrend eines Aufrufs. Ein InferenceError laesst die Engine
// fuer folgende Aufrufe intakt.
package engine

import (
	"fmt"
	"log/slog"

	"github.com/7blacky7/textembed/envconfig"
	"github.com/7blacky7/textembed/ml"
	"github.com/7blacky7/textembed/model"
	"github.com/7blacky7/textembed/model/input"
)

// StartError ist ein fataler Fehler beim Laden des Models
type StartError struct {
	Err error
}

func (e *StartError) Error() string {
	return fmt.Sprintf("could not start model: %v", e.Err)
}

func (e *StartError) Unwrap() error {
	return e.Err
}

// InferenceError ist ein Fehler eines einzelnen Inferenz-Aufrufs
type InferenceError struct {
	Err error
}

func (e *InferenceError) Error() string {
	return fmt.Sprintf("inference failed: %v", e.Err)
}

func (e *InferenceError) Unwrap() error {
	return e.Err
}

// Embedding ist das Ergebnis eines einzelnen Requests: entweder ein
// gepoolter Vektor oder die rohen Token-Vektoren, nie beides
type Embedding struct {
	Pooled []float32
	Tokens [][]float32
}

// Engine fuehrt Batches synchron durch ein geladenes Model
type Engine struct {
	m model.Model
}

// New laedt einen Checkpoint und waehlt die Model-Variante.
//
// precision ist "float32" oder "float16". Alle Lade-Fehler, auch die
// Varianten- und Capability-Auswahl im Model-Konstruktor, kommen als
// StartError zurueck.
func New(modelPath, precision string, kind model.Kind) (*Engine, error) {
	var dtype ml.DType
	switch precision {
	case "float32", "f32":
		dtype = ml.DTypeF32
	case "float16", "f16":
		dtype = ml.DTypeF16
	default:
		return nil, &StartError{Err: fmt.Errorf("unsupported precision %q", precision)}
	}

	m, err := model.New(modelPath, model.Params{
		Kind:           kind,
		Precision:      dtype,
		NumThreads:     int(envconfig.NumThreads()),
		FlashAttention: envconfig.FlashAttention(true),
	})
	if err != nil {
		return nil, &StartError{Err: err}
	}

	slog.Info("engine ready",
		"model", modelPath,
		"precision", precision,
		"kind", kind,
		"padded", m.IsPadded())

	return &Engine{m: m}, nil
}

// Health meldet ob die Engine einsatzbereit ist
func (e *Engine) Health() bool {
	return e != nil && e.m != nil
}

// IsPadded meldet ob die geladene Variante gepaddete Eingaben erwartet
func (e *Engine) IsPadded() bool {
	return e.m.IsPadded()
}

// Close gibt das Model und sein Backend frei
func (e *Engine) Close() {
	if e.m != nil {
		e.m.Backend().Close()
		e.m = nil
	}
}

// infer fuehrt fn aus und faengt Panics der Compute-Schicht als
// InferenceError ab, damit Shape-Fehler einen Aufruf statt den Prozess
// beenden
func infer(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &InferenceError{Err: fmt.Errorf("compute error: %v", r)}
		}
	}()

	if err := fn(); err != nil {
		return &InferenceError{Err: err}
	}
	return nil
}

// Embed verarbeitet einen gepackten Batch und gibt pro Request-Index
// genau ein Embedding zurueck, gepoolt oder roh je nach deklariertem
// Modus des Requests
func (e *Engine) Embed(batch input.Batch) (map[int]Embedding, error) {
	if err := batch.Validate(); err != nil {
		return nil, &InferenceError{Err: err}
	}

	ctx := e.m.Backend().NewContext()
	defer ctx.Close()

	results := make(map[int]Embedding, batch.NumRequests())
	err := infer(func() error {
		pooled, raw, err := e.m.Embed(ctx, batch)
		if err != nil {
			return err
		}

		// Eine synchronisierende Uebertragung am Ende des Aufrufs
		var outputs []ml.Tensor
		if pooled != nil {
			outputs = append(outputs, pooled)
		}
		if raw != nil {
			outputs = append(outputs, raw)
		}
		ctx.Forward(outputs...).Compute(outputs...)

		// Gepoolte Zeilen stehen in der Reihenfolge der PooledIndices
		if pooled != nil {
			hiddenSize := pooled.Dim(0)
			data := pooled.Floats()
			for i, r := range batch.PooledIndices {
				results[int(r)] = Embedding{Pooled: data[i*hiddenSize : (i+1)*hiddenSize]}
			}
		}

		// Rohe Zeilen werden mit einem laufenden Offset ueber die
		// eigenen Laengen der RawIndices zurueckgeschnitten
		if raw != nil {
			hiddenSize := raw.Dim(0)
			data := raw.Floats()
			offset := 0
			for _, r := range batch.RawIndices {
				length := batch.SeqLength(int(r))
				tokens := make([][]float32, length)
				for t := range length {
					tokens[t] = data[(offset+t)*hiddenSize : (offset+t+1)*hiddenSize]
				}
				offset += length
				results[int(r)] = Embedding{Tokens: tokens}
			}
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}

// Predict verarbeitet einen gepackten Batch durch den
// Klassifikations-Kopf und gibt pro Request-Index die Logits zurueck
func (e *Engine) Predict(batch input.Batch) (map[int][]float32, error) {
	if err := batch.Validate(); err != nil {
		return nil, &InferenceError{Err: err}
	}

	ctx := e.m.Backend().NewContext()
	defer ctx.Close()

	results := make(map[int][]float32, batch.NumRequests())
	err := infer(func() error {
		logits, err := e.m.Predict(ctx, batch)
		if err != nil {
			return err
		}

		ctx.Forward(logits).Compute(logits)

		numLabels := logits.Dim(0)
		data := logits.Floats()
		for r := range batch.NumRequests() {
			results[r] = data[r*numLabels : (r+1)*numLabels]
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return results, nil
}
