// batch.go - Gepackte Batch-Eingabe fuer Embedding-Modelle
//
// Dieses Modul enthaelt:
// - Batch: mehrere Requests, ohne Padding flach hintereinander gepackt
// - Validate: prueft die Konsistenz-Invarianten eines Batches
//
// Alle Token-Arrays haben dieselbe Laenge T. CumulativeSeqLengths hat
// R+1 Eintraege und markiert die Segment-Grenzen: Request r belegt die
// Positionen [CumulativeSeqLengths[r], CumulativeSeqLengths[r+1]).
package input

import (
	"fmt"
)

// Batch ist ein gepackter Batch aus R Requests mit insgesamt T Tokens
type Batch struct {
	// InputIDs sind die Token-IDs aller Requests, flach konkateniert
	InputIDs []int32

	// TokenTypeIDs sind die Segment-IDs, parallel zu InputIDs
	TokenTypeIDs []int32

	// PositionIDs starten fuer jeden Request wieder bei 0
	PositionIDs []int32

	// CumulativeSeqLengths sind die R+1 Segment-Grenzen, beginnend bei 0
	CumulativeSeqLengths []int32

	// MaxLength ist die Laenge des laengsten Requests im Batch
	MaxLength int

	// PooledIndices und RawIndices zerlegen die Request-Indizes [0, R)
	// disjunkt in Requests mit gepoolter bzw. roher Ausgabe. Beide
	// Listen sind aufsteigend sortiert.
	PooledIndices []int32
	RawIndices    []int32
}

// NumRequests gibt die Anzahl der Requests im Batch zurueck
func (b Batch) NumRequests() int {
	if len(b.CumulativeSeqLengths) == 0 {
		return 0
	}
	return len(b.CumulativeSeqLengths) - 1
}

// NumTokens gibt die Gesamtzahl der Tokens im Batch zurueck
func (b Batch) NumTokens() int {
	return len(b.InputIDs)
}

// SeqLength gibt die Laenge des Requests r zurueck
func (b Batch) SeqLength(r int) int {
	return int(b.CumulativeSeqLengths[r+1] - b.CumulativeSeqLengths[r])
}

// Validate prueft alle Invarianten des gepackten Batches
func (b Batch) Validate() error {
	total := len(b.InputIDs)
	if total == 0 {
		return fmt.Errorf("batch contains no tokens")
	}
	if len(b.TokenTypeIDs) != total {
		return fmt.Errorf("token type ids length %d does not match %d tokens", len(b.TokenTypeIDs), total)
	}
	if len(b.PositionIDs) != total {
		return fmt.Errorf("position ids length %d does not match %d tokens", len(b.PositionIDs), total)
	}

	if len(b.CumulativeSeqLengths) < 2 {
		return fmt.Errorf("cumulative sequence lengths need at least 2 entries, have %d", len(b.CumulativeSeqLengths))
	}
	if b.CumulativeSeqLengths[0] != 0 {
		return fmt.Errorf("cumulative sequence lengths start at %d, expected 0", b.CumulativeSeqLengths[0])
	}

	maxLength := 0
	for r := 0; r+1 < len(b.CumulativeSeqLengths); r++ {
		length := int(b.CumulativeSeqLengths[r+1] - b.CumulativeSeqLengths[r])
		if length <= 0 {
			return fmt.Errorf("request %d has invalid length %d", r, length)
		}
		maxLength = max(maxLength, length)
	}
	if int(b.CumulativeSeqLengths[len(b.CumulativeSeqLengths)-1]) != total {
		return fmt.Errorf("cumulative sequence lengths end at %d, expected %d",
			b.CumulativeSeqLengths[len(b.CumulativeSeqLengths)-1], total)
	}
	if b.MaxLength != maxLength {
		return fmt.Errorf("max length %d does not match longest request %d", b.MaxLength, maxLength)
	}

	numRequests := b.NumRequests()
	seen := make(map[int32]bool, numRequests)
	for _, set := range [][]int32{b.PooledIndices, b.RawIndices} {
		for i, r := range set {
			if r < 0 || int(r) >= numRequests {
				return fmt.Errorf("request index %d out of range [0, %d)", r, numRequests)
			}
			if i > 0 && set[i-1] >= r {
				return fmt.Errorf("request indices must be in increasing order, %d follows %d", r, set[i-1])
			}
			if seen[r] {
				return fmt.Errorf("request index %d selected twice", r)
			}
			seen[r] = true
		}
	}
	if len(seen) != numRequests {
		return fmt.Errorf("%d of %d requests have no output mode", numRequests-len(seen), numRequests)
	}

	return nil
}
