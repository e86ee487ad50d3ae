// Package ggml - Tensor-Datentypen
//
// Dieses Modul enthaelt den TensorType und seine Groessen-Arithmetik.
// Nur die nicht-quantisierten Typen werden vom Engine benoetigt;
// quantisierte Checkpoints werden beim Laden abgewiesen.
package ggml

import "fmt"

// TensorType ist der Datentyp eines Tensors im Checkpoint
type TensorType uint32

const (
	TensorTypeF32  TensorType = 0
	TensorTypeF16  TensorType = 1
	TensorTypeI32  TensorType = 26
	TensorTypeF64  TensorType = 28
	TensorTypeBF16 TensorType = 30
)

// ParseTensorType parst einen Typ-Namen
func ParseTensorType(s string) (TensorType, error) {
	switch s {
	case "F32":
		return TensorTypeF32, nil
	case "F16":
		return TensorTypeF16, nil
	case "I32":
		return TensorTypeI32, nil
	case "F64":
		return TensorTypeF64, nil
	case "BF16":
		return TensorTypeBF16, nil
	default:
		return 0, fmt.Errorf("unsupported tensor type %s", s)
	}
}

// TypeSize gibt die Groesse eines Elements in Bytes zurueck
func (t TensorType) TypeSize() uint64 {
	switch t {
	case TensorTypeF32, TensorTypeI32:
		return 4
	case TensorTypeF16, TensorTypeBF16:
		return 2
	case TensorTypeF64:
		return 8
	default:
		return 0
	}
}

// IsQuantized prueft ob der Typ quantisiert ist
func (t TensorType) IsQuantized() bool {
	switch t {
	case TensorTypeF32, TensorTypeF16, TensorTypeI32, TensorTypeF64, TensorTypeBF16:
		return false
	default:
		return true
	}
}

// String gibt den Typ-Namen zurueck
func (t TensorType) String() string {
	switch t {
	case TensorTypeF32:
		return "F32"
	case TensorTypeF16:
		return "F16"
	case TensorTypeI32:
		return "I32"
	case TensorTypeF64:
		return "F64"
	case TensorTypeBF16:
		return "BF16"
	default:
		return fmt.Sprintf("unknown(%d)", uint32(t))
	}
}
