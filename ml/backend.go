// backend.go - Backend-Interface und Registrierung fuer ML-Backends
// Dieses Modul definiert das Backend-Interface und die Backend-Factory-Funktionen.
package ml

import (
	"fmt"

	"github.com/7blacky7/textembed/fs"
)

// Backend represents a model execution backend (e.g., CPU).
type Backend interface {
	// Close frees all memory associated with this backend
	Close()

	Config() fs.Config
	Get(name string) Tensor
	NewContext() Context

	// Enumerate the devices available for inference via this backend
	BackendDevices() []DeviceInfo
}

// BackendParams enthaelt die Parameter fuer die Backend-Erstellung
type BackendParams struct {
	// Precision ist die angeforderte numerische Praezision der Gewichte
	Precision DType

	// NumThreads ist die Thread-Anzahl fuer Compute, 0 = GOMAXPROCS
	NumThreads int
}

// backends speichert registrierte Backend-Konstruktoren
var backends = make(map[string]func(string, BackendParams) (Backend, error))

// RegisterBackend registriert einen Backend-Konstruktor
func RegisterBackend(name string, f func(string, BackendParams) (Backend, error)) {
	if _, ok := backends[name]; ok {
		panic("backend: backend already registered")
	}

	backends[name] = f
}

// NewBackend erstellt ein Backend fuer den gegebenen Checkpoint
func NewBackend(modelPath string, params BackendParams) (Backend, error) {
	if backend, ok := backends["cpu"]; ok {
		return backend(modelPath, params)
	}

	return nil, fmt.Errorf("unsupported backend")
}
