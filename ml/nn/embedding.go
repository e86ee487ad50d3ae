// embedding.go - Embedding-Layer
package nn

import (
	"github.com/7blacky7/textembed/ml"
)

// Embedding ist eine Lookup-Tabelle von IDs auf Vektoren
type Embedding struct {
	Weight ml.Tensor `gguf:"weight"`
}

// Forward selektiert die Zeilen der Tabelle fuer die gegebenen IDs
func (m *Embedding) Forward(ctx ml.Context, ids ml.Tensor) ml.Tensor {
	return m.Weight.Rows(ctx, ids)
}
