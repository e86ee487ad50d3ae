// Package ggml - Array-Hilfstyp fuer KV-Werte
//
// Arrays werden hinter einem eigenen Typ gekapselt, damit grosse
// Tokenizer-Listen beim JSON-Marshaling abgeschnitten werden koennen.
package ggml

import "encoding/json"

type array[T any] struct {
	// size ist die tatsaechliche Groesse des Arrays
	size int

	// values sind die gelesenen Werte
	values []T
}

func (a *array[T]) MarshalJSON() ([]byte, error) {
	return json.Marshal(a.values)
}

func newArray[T any](size int) *array[T] {
	return &array[T]{size: size, values: make([]T, 0, size)}
}
