// dispatch_test.go - Tests fuer die Varianten-Auswahl beim Laden
package bert

import (
	"testing"

	"github.com/7blacky7/textembed/fs/ggml"
	"github.com/7blacky7/textembed/ml"
	"github.com/7blacky7/textembed/model"
)

func testConfig(extra map[string]any) ggml.KV {
	kv := ggml.KV{
		"general.architecture":              "bert",
		"bert.embedding_length":             uint32(testHiddenSize),
		"bert.block_count":                  uint32(testLayers),
		"bert.attention.head_count":         uint32(testHeads),
		"bert.attention.layer_norm_epsilon": float32(1e-12),
		"bert.context_length":               uint32(testPositions),
		"bert.vocab_size":                   uint32(testVocab),
	}
	for k, v := range extra {
		kv[k] = v
	}
	return kv
}

var (
	cpuDevice = ml.DeviceInfo{
		DeviceID:     ml.DeviceID{ID: "0", Library: "cpu"},
		ComputeMajor: -1, ComputeMinor: -1,
	}
	testGPUDevice = ml.DeviceInfo{
		DeviceID:     ml.DeviceID{ID: "0", Library: "cuda"},
		Name:         "test gpu",
		ComputeMajor: 9, ComputeMinor: 0,
	}
	oldGPUDevice = ml.DeviceInfo{
		DeviceID:     ml.DeviceID{ID: "0", Library: "cuda"},
		Name:         "old gpu",
		ComputeMajor: 7, ComputeMinor: 5,
	}
)

// TestDispatch prueft die einmalige Strategie-Auswahl in New
func TestDispatch(t *testing.T) {
	cases := []struct {
		name      string
		config    map[string]any
		params    model.Params
		wantFused bool
		wantErr   bool
	}{
		{
			name:      "CPU bleibt generisch",
			params:    model.Params{Precision: ml.DTypeF16, FlashAttention: true, Devices: []ml.DeviceInfo{cpuDevice}},
			wantFused: false,
		},
		{
			name:      "GPU mit F16 und absoluten Positionen fusioniert",
			params:    model.Params{Precision: ml.DTypeF16, FlashAttention: true, Devices: []ml.DeviceInfo{testGPUDevice}},
			wantFused: true,
		},
		{
			name:      "F32 erzwingt den generischen Pfad",
			params:    model.Params{Precision: ml.DTypeF32, FlashAttention: true, Devices: []ml.DeviceInfo{testGPUDevice}},
			wantFused: false,
		},
		{
			name:      "Opt-out erzwingt den generischen Pfad",
			params:    model.Params{Precision: ml.DTypeF16, FlashAttention: false, Devices: []ml.DeviceInfo{testGPUDevice}},
			wantFused: false,
		},
		{
			name:      "ALiBi erzwingt den generischen Pfad",
			config:    map[string]any{"bert.position_embedding_type": "alibi"},
			params:    model.Params{Precision: ml.DTypeF16, FlashAttention: true, Devices: []ml.DeviceInfo{testGPUDevice}},
			wantFused: false,
		},
		{
			name:    "zu alte Compute-Capability ist ein Lade-Fehler",
			params:  model.Params{Precision: ml.DTypeF16, FlashAttention: true, Devices: []ml.DeviceInfo{oldGPUDevice}},
			wantErr: true,
		},
		{
			name:    "unbekannter Positions-Stil ist ein Lade-Fehler",
			config:  map[string]any{"bert.position_embedding_type": "rotary"},
			params:  model.Params{Precision: ml.DTypeF32, Devices: []ml.DeviceInfo{cpuDevice}},
			wantErr: true,
		},
		{
			name:    "Klassifikations-Einsatz ohne Kopf ist ein Lade-Fehler",
			params:  model.Params{Kind: model.KindClassifier, Precision: ml.DTypeF32, Devices: []ml.DeviceInfo{cpuDevice}},
			wantErr: true,
		},
	}

	for _, tt := range cases {
		t.Run(tt.name, func(t *testing.T) {
			m, err := New(testConfig(tt.config), tt.params)
			if tt.wantErr {
				if err == nil {
					t.Fatal("erwarteter Lade-Fehler blieb aus")
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}

			bm := m.(*Model)
			if bm.useFused != tt.wantFused {
				t.Errorf("useFused = %v, erwartet %v", bm.useFused, tt.wantFused)
			}
			if bm.IsPadded() {
				t.Error("gepackte Encoder duerfen kein Padding verlangen")
			}
		})
	}
}

// TestDispatchForcesCLSForClassifier: ein Kopf erzwingt CLS-Pooling,
// auch wenn der Checkpoint Mean konfiguriert.
func TestDispatchForcesCLSForClassifier(t *testing.T) {
	kv := testConfig(map[string]any{
		"bert.pooling_type":          uint32(1), // mean
		"bert.classifier.num_labels": uint32(3),
	})

	m, err := New(kv, model.Params{Precision: ml.DTypeF32, Devices: []ml.DeviceInfo{cpuDevice}})
	if err != nil {
		t.Fatal(err)
	}

	if got := m.(*Model).poolingType.String(); got != "cls" {
		t.Errorf("poolingType = %s, erwartet cls", got)
	}
}
