// backend.go - CPU Referenz-Backend
//
// Dieses Modul enthaelt das CPU-Backend:
// - Backend: Haelt alle Gewichte als F32-Tensors im Speicher
// - New: Oeffnet einen GGUF-Checkpoint und materialisiert alle Tensors
// - Get/Config/NewContext/BackendDevices: ml.Backend Implementierung
//
// Gewichte werden unabhaengig vom Storage-Typ (F32/F16/BF16) in F32
// konvertiert; quantisierte Checkpoints werden abgewiesen.
package cpu

import (
	"encoding/binary"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"
	"sync"

	"github.com/d4l3k/go-bfloat16"
	"github.com/x448/float16"
	"golang.org/x/sync/errgroup"

	"github.com/7blacky7/textembed/fs"
	"github.com/7blacky7/textembed/fs/ggml"
	"github.com/7blacky7/textembed/logutil"
	"github.com/7blacky7/textembed/ml"
)

// Backend ist das CPU Referenz-Backend
type Backend struct {
	meta *ggml.GGML

	mu      sync.RWMutex
	tensors map[string]*Tensor

	precision  ml.DType
	numThreads int
}

// New oeffnet einen GGUF-Checkpoint und laedt alle Tensors in den Speicher
func New(modelPath string, params ml.BackendParams) (ml.Backend, error) {
	switch params.Precision {
	case ml.DTypeF32, ml.DTypeF16:
	default:
		return nil, fmt.Errorf("cpu: unsupported precision %s", params.Precision)
	}

	f, err := os.Open(modelPath)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	meta, err := ggml.Decode(f)
	if err != nil {
		return nil, err
	}

	slog.Info("loading model",
		"architecture", meta.KV().Architecture(),
		"tensors", len(meta.Tensors().Items()),
		"precision", params.Precision)

	numThreads := params.NumThreads
	if numThreads <= 0 {
		numThreads = runtime.GOMAXPROCS(0)
	}

	b := &Backend{
		meta:       meta,
		tensors:    make(map[string]*Tensor, len(meta.Tensors().Items())),
		precision:  params.Precision,
		numThreads: numThreads,
	}

	var g errgroup.Group
	g.SetLimit(numThreads)
	for _, t := range meta.Tensors().Items() {
		g.Go(func() error {
			tensor, err := readTensor(f, meta.Tensors().Offset, t)
			if err != nil {
				return fmt.Errorf("tensor %s: %w", t.Name, err)
			}

			b.mu.Lock()
			b.tensors[t.Name] = tensor
			b.mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	return b, nil
}

// readTensor liest die Daten eines Tensors und konvertiert sie nach F32
func readTensor(f *os.File, base int64, t *ggml.Tensor) (*Tensor, error) {
	shape := make([]int, len(t.Shape))
	for i, n := range t.Shape {
		shape[i] = int(n)
	}

	r := io.NewSectionReader(f, base+int64(t.Offset), int64(t.Size()))

	n := int(t.Elements())
	switch t.Kind {
	case ggml.TensorTypeF32:
		data := make([]float32, n)
		if err := binary.Read(r, binary.LittleEndian, data); err != nil {
			return nil, err
		}
		return newTensor(ml.DTypeF32, shape, data), nil

	case ggml.TensorTypeF16:
		bits := make([]uint16, n)
		if err := binary.Read(r, binary.LittleEndian, bits); err != nil {
			return nil, err
		}
		data := make([]float32, n)
		for i, b := range bits {
			data[i] = float16.Frombits(b).Float32()
		}
		return newTensor(ml.DTypeF32, shape, data), nil

	case ggml.TensorTypeBF16:
		bts := make([]byte, 2*n)
		if _, err := io.ReadFull(r, bts); err != nil {
			return nil, err
		}
		return newTensor(ml.DTypeF32, shape, bfloat16.DecodeFloat32(bts)), nil

	case ggml.TensorTypeI32:
		ints := make([]int32, n)
		if err := binary.Read(r, binary.LittleEndian, ints); err != nil {
			return nil, err
		}
		return newIntTensor(shape, ints), nil

	default:
		if t.Kind.IsQuantized() {
			return nil, fmt.Errorf("quantized tensor type %s is not supported, convert the checkpoint to f32/f16/bf16", t.Kind)
		}
		return nil, fmt.Errorf("unsupported tensor type %s", t.Kind)
	}
}

// Close gibt alle Ressourcen frei
func (b *Backend) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.tensors = nil
}

// Config gibt die Checkpoint-Metadaten zurueck
func (b *Backend) Config() fs.Config {
	return b.meta.KV()
}

// Get gibt einen Gewichts-Tensor nach Name zurueck, nil wenn nicht vorhanden
func (b *Backend) Get(name string) ml.Tensor {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if t, ok := b.tensors[name]; ok {
		logutil.Trace("found tensor", "name", name, "shape", t.Shape())
		return t
	}

	return nil
}

// NewContext erstellt einen Compute-Context
func (b *Backend) NewContext() ml.Context {
	return &Context{b: b}
}

// BackendDevices gibt die verfuegbaren Geraete zurueck
func (b *Backend) BackendDevices() []ml.DeviceInfo {
	return []ml.DeviceInfo{{
		DeviceID:     ml.DeviceID{ID: "0", Library: "cpu"},
		Name:         "cpu",
		Description:  "reference CPU backend",
		ComputeMajor: -1,
		ComputeMinor: -1,
	}}
}

func init() {
	ml.RegisterBackend("cpu", New)
}
