// Package ggml - Tensor-Metadaten
//
// Dieses Modul enthaelt:
// - Tensors: Menge der Tensor-Metadaten eines Checkpoints plus Daten-Offset
// - Tensor: Name, Typ, Shape und Offset eines einzelnen Tensors
package ggml

import (
	"io"
	"slices"
	"strconv"
	"strings"
)

// Tensors ist die Menge der Tensor-Metadaten eines Checkpoints.
// Offset ist der absolute Beginn des Datenbereichs in der Datei.
type Tensors struct {
	items  []*Tensor
	Offset int64
}

// Items gibt alle Tensors zurueck, optional gefiltert nach Namens-Prefix
func (s Tensors) Items(prefix ...string) []*Tensor {
	if len(prefix) == 0 {
		return s.items
	}

	var items []*Tensor
	for _, t := range s.items {
		if strings.HasPrefix(t.Name, prefix[0]) {
			items = append(items, t)
		}
	}

	return items
}

// Get sucht einen Tensor nach Name
func (s Tensors) Get(name string) *Tensor {
	if i := slices.IndexFunc(s.items, func(t *Tensor) bool {
		return t.Name == name
	}); i >= 0 {
		return s.items[i]
	}

	return nil
}

// Tensor beschreibt einen einzelnen Tensor im Checkpoint.
// Offset ist relativ zum Beginn des Datenbereichs.
// WriterTo liefert die Daten beim Schreiben eines Checkpoints.
type Tensor struct {
	Name   string `json:"name"`
	Kind   TensorType
	Offset uint64
	Shape  []uint64 `json:"shape"`

	io.WriterTo `json:"-"`
}

// block gibt den Layer-Index zurueck, -1 fuer globale Tensors
func (t Tensor) block() (n int) {
	if _, after, found := strings.Cut(t.Name, "blk."); found {
		if n, err := strconv.Atoi(strings.Split(after, ".")[0]); err == nil {
			return n
		}
	}

	return -1
}

// Elements gibt die Anzahl der Elemente zurueck
func (t Tensor) Elements() uint64 {
	var count uint64 = 1
	for _, n := range t.Shape {
		count *= n
	}
	return count
}

// Size gibt die Groesse der Tensor-Daten in Bytes zurueck
func (t Tensor) Size() uint64 {
	return t.Elements() * t.Kind.TypeSize()
}

// Type gibt den Typ-Namen zurueck
func (t Tensor) Type() string {
	return t.Kind.String()
}
