// ggml_test.go - Tests fuer GGUF-Dekodierung und KV-Zugriff
package ggml

import (
	"encoding/binary"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type f32Data []float32

func (d f32Data) WriteTo(w io.Writer) (int64, error) {
	if err := binary.Write(w, binary.LittleEndian, []float32(d)); err != nil {
		return 0, err
	}
	return int64(len(d) * 4), nil
}

// TestWriteDecodeRoundtrip schreibt ein GGUF-File und liest es zurueck
func TestWriteDecodeRoundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "model.gguf")
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}

	kv := KV{
		"general.architecture":      "bert",
		"bert.embedding_length":     uint32(8),
		"bert.block_count":          uint32(2),
		"bert.attention.head_count": uint32(2),
		"bert.pooling_type":         uint32(1),
		"bert.tags":                 []string{"encoder", "test"},
	}
	ts := []*Tensor{
		{Name: "token_embd.weight", Kind: TensorTypeF32, Shape: []uint64{8, 4}, WriterTo: make(f32Data, 32)},
		{Name: "blk.0.attn_qkv.weight", Kind: TensorTypeF32, Shape: []uint64{8, 24}, WriterTo: make(f32Data, 192)},
	}

	if err := WriteGGUF(f, kv, ts); err != nil {
		t.Fatal(err)
	}
	f.Close()

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	gg, err := Decode(r)
	if err != nil {
		t.Fatal(err)
	}

	got := gg.KV()
	if got.Architecture() != "bert" {
		t.Errorf("Architecture = %q, erwartet bert", got.Architecture())
	}

	// Der Architektur-Prefix wird beim Lesen implizit ergaenzt
	if n := got.Uint("embedding_length"); n != 8 {
		t.Errorf("embedding_length = %d, erwartet 8", n)
	}
	if n := got.Uint("block_count"); n != 2 {
		t.Errorf("block_count = %d, erwartet 2", n)
	}
	if diff := cmp.Diff([]string{"encoder", "test"}, got.Strings("tags")); diff != "" {
		t.Errorf("unerwartete Tags (-want +got):\n%s", diff)
	}
	if n := got.Uint("missing_key", 7); n != 7 {
		t.Errorf("Default-Wert = %d, erwartet 7", n)
	}

	tensors := gg.Tensors()
	if len(tensors.Items()) != 2 {
		t.Fatalf("erwartet 2 Tensors, bekommen %d", len(tensors.Items()))
	}

	embd := tensors.Get("token_embd.weight")
	if embd == nil {
		t.Fatal("token_embd.weight nicht gefunden")
	}
	if diff := cmp.Diff([]uint64{8, 4}, embd.Shape); diff != "" {
		t.Errorf("unerwartete Shape (-want +got):\n%s", diff)
	}
	if embd.Size() != 128 {
		t.Errorf("Size = %d, erwartet 128", embd.Size())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.gguf")
	if err := os.WriteFile(path, []byte("definitely not gguf"), 0o644); err != nil {
		t.Fatal(err)
	}

	r, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer r.Close()

	if _, err := Decode(r); err == nil {
		t.Error("erwarteter Fehler fuer ungueltiges Format blieb aus")
	}
}

func TestTensorTypeParse(t *testing.T) {
	cases := map[string]TensorType{
		"F32":  TensorTypeF32,
		"F16":  TensorTypeF16,
		"BF16": TensorTypeBF16,
	}
	for name, want := range cases {
		got, err := ParseTensorType(name)
		if err != nil {
			t.Fatal(err)
		}
		if got != want {
			t.Errorf("ParseTensorType(%q) = %v, erwartet %v", name, got, want)
		}
		if got.String() != name {
			t.Errorf("String() = %q, erwartet %q", got.String(), name)
		}
	}

	if _, err := ParseTensorType("Q4_K"); err == nil {
		t.Error("erwarteter Fehler fuer nicht unterstuetzten Typ blieb aus")
	}

	if TensorTypeF32.IsQuantized() || TensorTypeBF16.IsQuantized() {
		t.Error("Float-Typen duerfen nicht als quantisiert gelten")
	}
	if !TensorType(12).IsQuantized() {
		t.Error("unbekannter Block-Typ muss als quantisiert gelten")
	}
}
