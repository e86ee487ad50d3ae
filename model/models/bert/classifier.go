// classifier.go - Klassifikations-Kopf
//
// Diese Datei enthaelt den optionalen Kopf, der gepoolte Vektoren auf
// Klassen-Logits projiziert. Je nach Checkpoint ist er einstufig (nur
// eine dichte Projektion) oder zweistufig (dicht -> tanh -> dicht).
package bert

import (
	"github.com/7blacky7/textembed/ml"
	"github.com/7blacky7/textembed/ml/nn"
)

// Classifier projiziert gepoolte Vektoren auf Logits
type Classifier struct {
	Dense  *nn.Linear `gguf:"cls"`
	Output *nn.Linear `gguf:"cls.output"`
}

// resolved meldet ob mindestens eine Projektion geladen wurde
func (c *Classifier) resolved() bool {
	return c != nil && (c.Dense != nil || c.Output != nil)
}

// Forward projiziert t [hiddenSize, R] auf Logits [numLabels, R]
func (c *Classifier) Forward(ctx ml.Context, t ml.Tensor) ml.Tensor {
	if c.Dense != nil && c.Output != nil {
		t = c.Dense.Forward(ctx, t)
		t = t.Tanh(ctx)
		return c.Output.Forward(ctx, t)
	}

	if c.Dense != nil {
		return c.Dense.Forward(ctx, t)
	}
	return c.Output.Forward(ctx, t)
}
