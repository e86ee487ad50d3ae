// device_info.go
// Dieses Modul enthaelt die DeviceInfo-Struktur fuer Geraete-Beschreibung
// und Capability-Angaben der Backends.
package ml

import (
	"fmt"
	"strconv"
	"strings"
)

// DeviceID identifiziert ein Geraet innerhalb eines Backends
type DeviceID struct {
	// ID is the identifier of the device as labeled by the backend
	ID string `json:"id"`

	// Library identifies the backend that provides the device (e.g. "cpu", "CUDA")
	Library string `json:"backend"`
}

// DeviceInfo beschreibt ein Geraet und seine Faehigkeiten
type DeviceInfo struct {
	DeviceID

	// Name is the name of the device as labeled by the backend
	Name string `json:"name"`

	// Description is the longer user-friendly identification of the device
	Description string `json:"description"`

	// TotalMemory is the total amount of memory the device can use for loading models
	TotalMemory uint64 `json:"total_memory"`

	// FreeMemory is the amount of memory currently available on the device
	FreeMemory uint64 `json:"free_memory,omitempty"`

	// ComputeMajor is the major version of capabilities of the device
	// if unsupported by the backend, -1 will be returned
	ComputeMajor int

	// ComputeMinor is the minor version of capabilities of the device
	// if unsupported by the backend, -1 will be returned
	ComputeMinor int
}

// Compute gibt die Capability als String zurueck
func (d DeviceInfo) Compute() string {
	// AMD gfx is encoded into the major minor in hex form
	if strings.EqualFold(d.Library, "ROCm") {
		return fmt.Sprintf("gfx%x%02x", d.ComputeMajor, d.ComputeMinor)
	}
	return strconv.Itoa(d.ComputeMajor) + "." + strconv.Itoa(d.ComputeMinor)
}

// IsGPU prueft ob das Geraet ein Beschleuniger ist
func (d DeviceInfo) IsGPU() bool {
	return !strings.EqualFold(d.Library, "cpu")
}
