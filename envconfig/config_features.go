// config_features.go - Feature-Flags
//
// Dieses Modul enthaelt:
// - FlashAttention: Opt-out fuer den Fused-Attention-Pfad
// - NumThreads: Thread-Anzahl fuer das CPU-Backend
package envconfig

// =============================================================================
// Feature-Flags
// =============================================================================

var (
	// FlashAttention steuert den Fused-Attention-Pfad. Default ist an;
	// TEXTEMBED_FLASH_ATTENTION=0 schaltet ihn explizit ab, auch wenn
	// Geraet, Precision und Position-Embeddings ihn erlauben wuerden.
	FlashAttention = BoolWithDefault("TEXTEMBED_FLASH_ATTENTION")

	// NumThreads setzt die Thread-Anzahl fuer das CPU-Backend
	// Konfigurierbar via TEXTEMBED_NUM_THREADS, 0 = GOMAXPROCS
	NumThreads = Uint("TEXTEMBED_NUM_THREADS", 0)
)
