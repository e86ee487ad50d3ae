// pack.go - Packen tokenisierter Requests
//
// Dieses Modul baut aus einzelnen tokenisierten Requests den flachen
// gepackten Batch: Token-IDs konkateniert, Positionen pro Request ab 0,
// Segment-Grenzen in CumulativeSeqLengths.
package input

import (
	"fmt"
)

// Pack konkateniert Requests zu einem gepackten Batch. raw[i] waehlt
// fuer Request i die rohe Token-Ausgabe statt des gepoolten Vektors;
// ein nil raw pooled alle Requests.
func Pack(requests [][]int32, raw []bool) (Batch, error) {
	if len(requests) == 0 {
		return Batch{}, fmt.Errorf("no requests to pack")
	}
	if raw != nil && len(raw) != len(requests) {
		return Batch{}, fmt.Errorf("output modes for %d requests, have %d", len(requests), len(raw))
	}

	batch := Batch{CumulativeSeqLengths: make([]int32, 1, len(requests)+1)}
	for i, tokens := range requests {
		if len(tokens) == 0 {
			return Batch{}, fmt.Errorf("request %d is empty", i)
		}

		for p, id := range tokens {
			batch.InputIDs = append(batch.InputIDs, id)
			batch.TokenTypeIDs = append(batch.TokenTypeIDs, 0)
			batch.PositionIDs = append(batch.PositionIDs, int32(p))
		}
		batch.CumulativeSeqLengths = append(batch.CumulativeSeqLengths,
			batch.CumulativeSeqLengths[i]+int32(len(tokens)))
		batch.MaxLength = max(batch.MaxLength, len(tokens))

		if raw != nil && raw[i] {
			batch.RawIndices = append(batch.RawIndices, int32(i))
		} else {
			batch.PooledIndices = append(batch.PooledIndices, int32(i))
		}
	}

	return batch, batch.Validate()
}
