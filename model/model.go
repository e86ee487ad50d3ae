// Package model - Model-Interface und Initialisierung
//
// Dieses Paket definiert das Model-Interface fuer Encoder-Architekturen
// und stellt Funktionen zur Initialisierung bereit.
//
// Hauptkomponenten:
// - Model: Interface fuer alle Encoder-Architekturen
// - Base: Basis-Implementierung fuer gemeinsame Funktionalitaet
// - New: Erstellt neue Model-Instanzen aus einem Checkpoint
// - Register: Registriert Architektur-Konstruktoren
package model

import (
	"errors"
	"fmt"
	"reflect"

	"github.com/7blacky7/textembed/fs"
	"github.com/7blacky7/textembed/ml"
	_ "github.com/7blacky7/textembed/ml/backend"
	"github.com/7blacky7/textembed/model/input"
)

// Fehler-Definitionen
var (
	ErrUnsupportedModel = errors.New("model not supported")
	ErrNoClassifier     = errors.New("model has no classification head")
)

// Kind unterscheidet wofuer ein geladenes Modell eingesetzt wird
type Kind int

const (
	// KindEmbedding liefert Embeddings ueber Embed
	KindEmbedding Kind = iota

	// KindClassifier liefert Logits ueber Predict
	KindClassifier
)

func (k Kind) String() string {
	switch k {
	case KindEmbedding:
		return "embedding"
	case KindClassifier:
		return "classifier"
	default:
		return "unknown"
	}
}

// Params sind die Lade-Parameter fuer eine Model-Instanz
type Params struct {
	// Kind ist der Einsatzzweck des Modells
	Kind Kind

	// Precision ist die angeforderte Rechen-Praezision
	Precision ml.DType

	// NumThreads ist die Thread-Anzahl fuer das Backend, 0 = automatisch
	NumThreads int

	// Devices sind die Geraete des konstruierten Backends. Wird von New
	// gesetzt, bevor der Architektur-Konstruktor laeuft.
	Devices []ml.DeviceInfo

	// FlashAttention erlaubt den fusionierten Attention-Pfad, sofern
	// das Backend ihn traegt
	FlashAttention bool
}

// Model definiert das Interface fuer Encoder-Architekturen
type Model interface {
	// Embed verarbeitet einen gepackten Batch und gibt die gepoolten
	// Embeddings sowie die rohen Token-Embeddings zurueck. Jede der
	// beiden Ausgaben kann nil sein, wenn der Batch keine Requests der
	// jeweiligen Art enthaelt.
	Embed(ctx ml.Context, batch input.Batch) (pooled, raw ml.Tensor, err error)

	// Predict verarbeitet einen gepackten Batch durch den
	// Klassifikations-Kopf und gibt pro Request eine Logit-Zeile zurueck
	Predict(ctx ml.Context, batch input.Batch) (ml.Tensor, error)

	// IsPadded meldet ob die Engine Eingaben auf eine gemeinsame Laenge
	// auffuellen muss. Gepackte Encoder geben false zurueck.
	IsPadded() bool

	Backend() ml.Backend
}

// Validator ist ein optionales Interface fuer Post-Load-Validierung
type Validator interface {
	Validate() error
}

// Base implementiert gemeinsame Felder und Methoden fuer alle Modelle
type Base struct {
	b ml.Backend
}

// Backend gibt das Backend zurueck, das das Modell ausfuehrt
func (m *Base) Backend() ml.Backend {
	return m.b
}

// models speichert registrierte Architektur-Konstruktoren
var models = make(map[string]func(fs.Config, Params) (Model, error))

// Register registriert einen Architektur-Konstruktor
func Register(name string, f func(fs.Config, Params) (Model, error)) {
	if _, ok := models[name]; ok {
		panic("model: model already registered")
	}

	models[name] = f
}

// New initialisiert eine neue Model-Instanz aus einem Checkpoint.
//
// Die Gewichte eines Checkpoints koennen unter einem Architektur-Praefix
// liegen. New probiert die Namensraeume in fester Reihenfolge durch:
// erst ohne Praefix, dann mit dem Architektur-Namen, zuletzt mit
// "roberta". Der erste Namensraum, unter dem das Modell vollstaendig
// validiert, gewinnt.
func New(modelPath string, params Params) (Model, error) {
	b, err := ml.NewBackend(modelPath, ml.BackendParams{
		Precision:  params.Precision,
		NumThreads: params.NumThreads,
	})
	if err != nil {
		return nil, err
	}

	params.Devices = b.BackendDevices()

	arch := b.Config().Architecture()
	f, ok := models[arch]
	if !ok {
		b.Close()
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedModel, arch)
	}

	var lastErr error
	for _, prefix := range []string{"", arch, "roberta"} {
		m, err := f(b.Config(), params)
		if err != nil {
			b.Close()
			return nil, err
		}

		base := Base{b: b}
		v := reflect.ValueOf(m)

		var tags []Tag
		if prefix != "" {
			tags = append(tags, Tag{name: prefix})
		}
		v.Elem().Set(populateFields(base, v.Elem(), tags...))

		validator, ok := m.(Validator)
		if !ok {
			return m, nil
		}

		if err := validator.Validate(); err != nil {
			lastErr = err
			continue
		}

		return m, nil
	}

	b.Close()
	return nil, lastErr
}
