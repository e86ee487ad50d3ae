// Package ggml - GGUF Checkpoint Container
//
// Dieses Modul enthaelt das Einlesen eines GGUF-Checkpoints:
// - GGML: Geparster Checkpoint (KV-Metadaten + Tensor-Metadaten)
// - Decode: Parst Header, KV-Paare und Tensor-Infos
// - readGGUF/readGGUFString/readGGUFArray: Low-Level Leser
//
// Es werden GGUF Version 2 und 3 in Little-Endian unterstuetzt.
package ggml

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Typ-Konstanten fuer GGUF-Werte
const (
	ggufTypeUint8 uint32 = iota
	ggufTypeInt8
	ggufTypeUint16
	ggufTypeInt16
	ggufTypeUint32
	ggufTypeInt32
	ggufTypeFloat32
	ggufTypeBool
	ggufTypeString
	ggufTypeArray
	ggufTypeUint64
	ggufTypeInt64
	ggufTypeFloat64
)

var ggufMagic = []byte("GGUF")

// ErrUnsupportedFormat wird bei unbekannten Formaten oder Versionen zurueckgegeben
var ErrUnsupportedFormat = errors.New("unsupported model format")

// GGML ist ein geparster Checkpoint
type GGML struct {
	kv      KV
	tensors Tensors
}

// KV gibt die Metadaten zurueck
func (g *GGML) KV() KV {
	return g.kv
}

// Tensors gibt die Tensor-Metadaten zurueck
func (g *GGML) Tensors() Tensors {
	return g.tensors
}

// Decode parst einen GGUF-Checkpoint aus dem Reader
func Decode(rs io.ReadSeeker) (*GGML, error) {
	var magic [4]byte
	if err := binary.Read(rs, binary.LittleEndian, &magic); err != nil {
		return nil, err
	}

	if !bytes.Equal(magic[:], ggufMagic) {
		return nil, fmt.Errorf("%w: magic %v", ErrUnsupportedFormat, magic)
	}

	var version uint32
	if err := binary.Read(rs, binary.LittleEndian, &version); err != nil {
		return nil, err
	}

	if version < 2 {
		return nil, fmt.Errorf("%w: version %d", ErrUnsupportedFormat, version)
	}

	var numTensors, numKV uint64
	if err := binary.Read(rs, binary.LittleEndian, &numTensors); err != nil {
		return nil, err
	}
	if err := binary.Read(rs, binary.LittleEndian, &numKV); err != nil {
		return nil, err
	}

	kv := make(KV, numKV)
	for range numKV {
		key, err := readGGUFString(rs)
		if err != nil {
			return nil, err
		}

		value, err := readGGUFValue(rs)
		if err != nil {
			return nil, fmt.Errorf("key %s: %w", key, err)
		}

		kv[key] = value
	}

	tensors := make([]*Tensor, 0, numTensors)
	for range numTensors {
		t, err := readGGUFTensorInfo(rs)
		if err != nil {
			return nil, err
		}

		tensors = append(tensors, t)
	}

	// Datenbereich beginnt am naechsten Alignment nach den Metadaten
	offset, err := rs.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, err
	}

	alignment := cmp.Or(int64(kv.Uint("general.alignment")), 32)
	offset += ggufPadding(offset, alignment)

	return &GGML{
		kv:      kv,
		tensors: Tensors{items: tensors, Offset: offset},
	}, nil
}

// readGGUFTensorInfo liest die Metadaten eines einzelnen Tensors
func readGGUFTensorInfo(r io.Reader) (*Tensor, error) {
	name, err := readGGUFString(r)
	if err != nil {
		return nil, err
	}

	var dims uint32
	if err := binary.Read(r, binary.LittleEndian, &dims); err != nil {
		return nil, err
	}

	shape := make([]uint64, dims)
	for i := range dims {
		if err := binary.Read(r, binary.LittleEndian, &shape[i]); err != nil {
			return nil, err
		}
	}

	var kind uint32
	if err := binary.Read(r, binary.LittleEndian, &kind); err != nil {
		return nil, err
	}

	var offset uint64
	if err := binary.Read(r, binary.LittleEndian, &offset); err != nil {
		return nil, err
	}

	return &Tensor{
		Name:   name,
		Kind:   TensorType(kind),
		Offset: offset,
		Shape:  shape,
	}, nil
}

// readGGUFValue liest einen typisierten Wert
func readGGUFValue(r io.Reader) (any, error) {
	var t uint32
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return nil, err
	}

	switch t {
	case ggufTypeUint8:
		return readGGUF[uint8](r)
	case ggufTypeInt8:
		return readGGUF[int8](r)
	case ggufTypeUint16:
		return readGGUF[uint16](r)
	case ggufTypeInt16:
		return readGGUF[int16](r)
	case ggufTypeUint32:
		return readGGUF[uint32](r)
	case ggufTypeInt32:
		return readGGUF[int32](r)
	case ggufTypeUint64:
		return readGGUF[uint64](r)
	case ggufTypeInt64:
		return readGGUF[int64](r)
	case ggufTypeFloat32:
		return readGGUF[float32](r)
	case ggufTypeFloat64:
		return readGGUF[float64](r)
	case ggufTypeBool:
		return readGGUF[bool](r)
	case ggufTypeString:
		return readGGUFString(r)
	case ggufTypeArray:
		return readGGUFArray(r)
	default:
		return nil, fmt.Errorf("%w: value type %d", ErrUnsupportedFormat, t)
	}
}

// readGGUF liest einen typisierten Wert aus dem Reader
func readGGUF[T any](r io.Reader) (t T, err error) {
	err = binary.Read(r, binary.LittleEndian, &t)
	return t, err
}

// readGGUFString liest einen laengen-praefixierten String
func readGGUFString(r io.Reader) (string, error) {
	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}

	bts := make([]byte, n)
	if _, err := io.ReadFull(r, bts); err != nil {
		return "", err
	}

	return string(bts), nil
}

// readGGUFArray liest ein typisiertes Array
func readGGUFArray(r io.Reader) (any, error) {
	var t uint32
	if err := binary.Read(r, binary.LittleEndian, &t); err != nil {
		return nil, err
	}

	var n uint64
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return nil, err
	}

	switch t {
	case ggufTypeUint8:
		return readGGUFArrayData[uint8](r, n)
	case ggufTypeInt8:
		return readGGUFArrayData[int8](r, n)
	case ggufTypeUint16:
		return readGGUFArrayData[uint16](r, n)
	case ggufTypeInt16:
		return readGGUFArrayData[int16](r, n)
	case ggufTypeUint32:
		return readGGUFArrayData[uint32](r, n)
	case ggufTypeInt32:
		return readGGUFArrayData[int32](r, n)
	case ggufTypeUint64:
		return readGGUFArrayData[uint64](r, n)
	case ggufTypeInt64:
		return readGGUFArrayData[int64](r, n)
	case ggufTypeFloat32:
		return readGGUFArrayData[float32](r, n)
	case ggufTypeFloat64:
		return readGGUFArrayData[float64](r, n)
	case ggufTypeBool:
		return readGGUFArrayData[bool](r, n)
	case ggufTypeString:
		return readGGUFArrayString(r, n)
	default:
		return nil, fmt.Errorf("%w: array type %d", ErrUnsupportedFormat, t)
	}
}

// readGGUFArrayData liest typisierte Array-Daten
func readGGUFArrayData[T any](r io.Reader, n uint64) (*array[T], error) {
	a := newArray[T](int(n))
	for range a.size {
		e, err := readGGUF[T](r)
		if err != nil {
			return nil, err
		}

		a.values = append(a.values, e)
	}

	return a, nil
}

// readGGUFArrayString liest ein String-Array
func readGGUFArrayString(r io.Reader, n uint64) (*array[string], error) {
	a := newArray[string](int(n))
	for range a.size {
		e, err := readGGUFString(r)
		if err != nil {
			return nil, err
		}

		a.values = append(a.values, e)
	}

	return a, nil
}

// ggufPadding berechnet das Padding fuer Alignment
func ggufPadding(offset, align int64) int64 {
	return (align - offset%align) % align
}
