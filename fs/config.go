// config.go - Konfigurations-Interface fuer Modell-Metadaten
// Dieses Modul definiert das Config-Interface, ueber das Modell-Konstruktoren
// auf die Key-Value-Metadaten eines Checkpoints zugreifen.
package fs

import "iter"

// Config ist die read-only Sicht auf die Checkpoint-Metadaten.
// Keys ohne "general."- oder "tokenizer."-Prefix werden implizit um den
// Architektur-Namen ergaenzt (z.B. "embedding_length" -> "bert.embedding_length").
type Config interface {
	Architecture() string

	String(key string, defaultValue ...string) string
	Uint(key string, defaultValue ...uint32) uint32
	Float(key string, defaultValue ...float32) float32
	Bool(key string, defaultValue ...bool) bool

	Strings(key string, defaultValue ...[]string) []string
	Ints(key string, defaultValue ...[]int32) []int32
	Uints(key string, defaultValue ...[]uint32) []uint32
	Floats(key string, defaultValue ...[]float32) []float32

	Len() int
	Keys() iter.Seq[string]
	Value(key string) any
}
