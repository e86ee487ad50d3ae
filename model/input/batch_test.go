// batch_test.go - Tests fuer Batch-Invarianten und Pack
package input

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestPack(t *testing.T) {
	batch, err := Pack([][]int32{{1, 2, 3}, {4, 5}}, []bool{false, true})
	if err != nil {
		t.Fatal(err)
	}

	if diff := cmp.Diff([]int32{1, 2, 3, 4, 5}, batch.InputIDs); diff != "" {
		t.Errorf("unerwartete InputIDs (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{0, 1, 2, 0, 1}, batch.PositionIDs); diff != "" {
		t.Errorf("Positionen starten nicht pro Request bei 0 (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{0, 3, 5}, batch.CumulativeSeqLengths); diff != "" {
		t.Errorf("unerwartete Segment-Grenzen (-want +got):\n%s", diff)
	}
	if batch.MaxLength != 3 {
		t.Errorf("MaxLength = %d, erwartet 3", batch.MaxLength)
	}
	if diff := cmp.Diff([]int32{0}, batch.PooledIndices); diff != "" {
		t.Errorf("unerwartete PooledIndices (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int32{1}, batch.RawIndices); diff != "" {
		t.Errorf("unerwartete RawIndices (-want +got):\n%s", diff)
	}

	if batch.NumRequests() != 2 || batch.NumTokens() != 5 {
		t.Errorf("unerwartete Groessen: R=%d T=%d", batch.NumRequests(), batch.NumTokens())
	}
	if batch.SeqLength(1) != 2 {
		t.Errorf("SeqLength(1) = %d, erwartet 2", batch.SeqLength(1))
	}
}

func TestPackRejectsEmpty(t *testing.T) {
	if _, err := Pack(nil, nil); err == nil {
		t.Error("erwarteter Fehler fuer leere Request-Liste blieb aus")
	}
	if _, err := Pack([][]int32{{1}, {}}, nil); err == nil {
		t.Error("erwarteter Fehler fuer leeren Request blieb aus")
	}
}

func TestValidateMaxLengthEquivalence(t *testing.T) {
	// Der Mean-Fast-Path teilt bei einem einzelnen Request durch
	// MaxLength; Validate erzwingt die Gleichheit mit der Request-Laenge
	batch, err := Pack([][]int32{{1, 2, 3, 4}}, nil)
	if err != nil {
		t.Fatal(err)
	}

	batch.MaxLength = 3
	if err := batch.Validate(); err == nil {
		t.Error("erwarteter Fehler fuer abweichendes MaxLength blieb aus")
	}
}
